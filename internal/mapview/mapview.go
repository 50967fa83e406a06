// Package mapview opens coordinates in an external map viewer.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/fyrsmithlabs/digipin/internal/config"
)

// DefaultBaseURL is the map viewer used when none is configured.
const DefaultBaseURL = "https://www.google.com/maps"

// URL builds base?q=<a>,<b> from the first two comma-separated fields of
// coords. Extra fields are ignored. It reports false when either of the
// first two is missing after trimming.
func URL(base, coords string) (string, bool) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return "", false
	}
	a, b := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if a == "" || b == "" {
		return "", false
	}
	if base == "" {
		base = DefaultBaseURL
	}

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "q=" + url.QueryEscape(a) + "," + url.QueryEscape(b), true
}

// Opener launches a URL in the user's browser.
type Opener interface {
	Open(ctx context.Context, target string) error
}

// Viewer combines URL building with an Opener.
type Viewer struct {
	base   string
	opener Opener
}

// New returns a Viewer for cfg. An empty OpenCommand picks the platform
// default.
func New(cfg config.MapsConfig) *Viewer {
	var opener Opener = Command(cfg.OpenCommand)
	if len(cfg.OpenCommand) == 0 {
		opener = Command(defaultCommand())
	}
	return &Viewer{base: cfg.BaseURL, opener: opener}
}

// NewWithOpener returns a Viewer using opener.
func NewWithOpener(base string, opener Opener) *Viewer {
	return &Viewer{base: base, opener: opener}
}

// URL returns the viewer URL for coords.
func (v *Viewer) URL(coords string) (string, bool) {
	return URL(v.base, coords)
}

// Open opens coords in the map viewer. A malformed pair is a silent no-op;
// opened reports whether anything was launched.
func (v *Viewer) Open(ctx context.Context, coords string) (opened bool, err error) {
	target, ok := v.URL(coords)
	if !ok {
		return false, nil
	}
	if err := v.opener.Open(ctx, target); err != nil {
		return false, err
	}
	return true, nil
}

// Command runs argv with the URL appended.
type Command []string

// The launched process outlives ctx.
func (c Command) Open(_ context.Context, target string) error {
	if len(c) == 0 {
		return errors.New("no open command available")
	}
	args := append(append([]string(nil), c[1:]...), target)
	cmd := exec.Command(c[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", c[0], err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func defaultCommand() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return []string{"xdg-open"}
	}
}
