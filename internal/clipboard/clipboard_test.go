package clipboard

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/digipin/internal/config"
)

func TestOSC52_Copy(t *testing.T) {
	t.Setenv("TMUX", "")
	t.Setenv("STY", "")

	var buf bytes.Buffer
	require.NoError(t, NewOSC52(&buf).Copy(context.Background(), "39J-438-TJC7"))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\x1b]52;c;"), "got %q", out)
	assert.Contains(t, out, base64.StdEncoding.EncodeToString([]byte("39J-438-TJC7")))
}

func TestOSC52_Tmux(t *testing.T) {
	t.Setenv("TMUX", "/tmp/tmux-1000/default,1,0")
	t.Setenv("STY", "")

	var buf bytes.Buffer
	require.NoError(t, NewOSC52(&buf).Copy(context.Background(), "x"))
	assert.True(t, strings.HasPrefix(buf.String(), "\x1bPtmux;"), "got %q", buf.String())
}

func TestCommand_Copy(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	out := filepath.Join(t.TempDir(), "clip")

	c, err := NewCommand("sh", "-c", "cat > "+out)
	require.NoError(t, err)
	require.NoError(t, c.Copy(context.Background(), "28.613901,77.208998"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "28.613901,77.208998", string(data))
}

func TestCommand_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	c, err := NewCommand("sh", "-c", "echo no display >&2; exit 3")
	require.NoError(t, err)

	err = c.Copy(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")
}

func TestNewCommand_RequiresProgram(t *testing.T) {
	_, err := NewCommand()
	assert.Error(t, err)
	_, err = NewCommand("")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	c, err := New(config.ClipboardConfig{Mode: config.ClipboardOSC52})
	require.NoError(t, err)
	assert.IsType(t, &OSC52{}, c)

	c, err = New(config.ClipboardConfig{Mode: config.ClipboardCommand, Command: []string{"wl-copy"}})
	require.NoError(t, err)
	assert.IsType(t, &Command{}, c)

	c, err = New(config.ClipboardConfig{Mode: config.ClipboardNone})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)

	_, err = New(config.ClipboardConfig{Mode: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Copy(context.Background(), "39J-438-TJC7"))
	require.NoError(t, w.Copy(context.Background(), "4P3-JK8-52C9"))
	assert.Equal(t, "39J-438-TJC7\n4P3-JK8-52C9\n", buf.String())
}

func TestRecorder(t *testing.T) {
	boom := errors.New("denied")
	r := NewRecorder(boom)

	assert.Equal(t, "", r.Last())
	assert.ErrorIs(t, r.Copy(context.Background(), "a"), boom)
	assert.ErrorIs(t, r.Copy(context.Background(), "b"), boom)
	assert.Equal(t, []string{"a", "b"}, r.Texts())
	assert.Equal(t, "b", r.Last())
}
