// Package clipboard writes text to the user's clipboard.
package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/aymanbagabas/go-osc52/v2"

	"github.com/fyrsmithlabs/digipin/internal/config"
)

// Clipboard accepts text for the system clipboard.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// New returns the clipboard selected by cfg.
func New(cfg config.ClipboardConfig) (Clipboard, error) {
	switch cfg.Mode {
	case config.ClipboardOSC52, "":
		return NewOSC52(os.Stderr), nil
	case config.ClipboardCommand:
		return NewCommand(cfg.Command...)
	case config.ClipboardNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown clipboard mode %q", cfg.Mode)
	}
}

// OSC52 sets the clipboard through the terminal with an OSC 52 escape
// sequence. It works over SSH and inside tmux or screen.
type OSC52 struct {
	mu sync.Mutex
	w  io.Writer
}

// NewOSC52 writes escape sequences to w.
func NewOSC52(w io.Writer) *OSC52 {
	return &OSC52{w: w}
}

func (c *OSC52) Copy(_ context.Context, text string) error {
	seq := osc52.New(text)
	switch {
	case os.Getenv("TMUX") != "":
		seq = seq.Tmux()
	case os.Getenv("STY") != "":
		seq = seq.Screen()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := seq.WriteTo(c.w); err != nil {
		return fmt.Errorf("write osc52 sequence: %w", err)
	}
	return nil
}

// Command pipes text to an external program such as wl-copy, xclip or pbcopy.
type Command struct {
	name string
	args []string
}

// NewCommand returns a clipboard that runs argv with text on stdin.
func NewCommand(argv ...string) (*Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("clipboard command is required")
	}
	return &Command{name: argv[0], args: argv[1:]}, nil
}

func (c *Command) Copy(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stdin = bytes.NewBufferString(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("%s: %w: %s", c.name, err, msg)
		}
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return nil
}

// Writer prints copied text on its own line, for surfaces whose
// "clipboard" is their output stream.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (c *Writer) Copy(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, text)
	return err
}

// Nop discards text.
type Nop struct{}

func (Nop) Copy(context.Context, string) error { return nil }

// Recorder keeps copied text in memory.
type Recorder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

// NewRecorder returns a Recorder that returns err, if non-nil, after
// recording each copy.
func NewRecorder(err error) *Recorder {
	return &Recorder{err: err}
}

func (r *Recorder) Copy(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return r.err
}

// Texts returns everything copied so far.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

// Last returns the most recent copy, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}
