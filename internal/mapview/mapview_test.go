package mapview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/digipin/internal/config"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		coords string
		want   string
		ok     bool
	}{
		{"default base", "", "28.613901,77.208998", "https://www.google.com/maps?q=28.613901,77.208998", true},
		{"trims halves", "https://maps.example", " 12.97 , 77.59 ", "https://maps.example?q=12.97,77.59", true},
		{"base with query", "https://maps.example/?z=12", "1,2", "https://maps.example/?z=12&q=1,2", true},
		{"negative", "", "-12.5,-45", "https://www.google.com/maps?q=-12.5,-45", true},
		{"missing second half", "", "28.6,", "", false},
		{"missing first half", "", ",77.2", "", false},
		{"no comma", "", "28.6 77.2", "", false},
		{"extra fields ignored", "", "1,2,3", "https://www.google.com/maps?q=1,2", true},
		{"empty third field", "", "28.6,77.2,", "https://www.google.com/maps?q=28.6,77.2", true},
		{"empty", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := URL(tt.base, tt.coords)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type recordingOpener struct {
	targets []string
	err     error
}

func (r *recordingOpener) Open(_ context.Context, target string) error {
	r.targets = append(r.targets, target)
	return r.err
}

func TestViewer_Open(t *testing.T) {
	opener := &recordingOpener{}
	v := NewWithOpener("https://maps.example", opener)

	opened, err := v.Open(context.Background(), "28.613901,77.208998")
	require.NoError(t, err)
	assert.True(t, opened)

	opened, err = v.Open(context.Background(), "28.613901")
	require.NoError(t, err, "malformed pairs are a silent no-op")
	assert.False(t, opened)

	assert.Equal(t, []string{"https://maps.example?q=28.613901,77.208998"}, opener.targets)
}

func TestViewer_OpenFailure(t *testing.T) {
	v := NewWithOpener("", &recordingOpener{err: errors.New("no browser")})
	opened, err := v.Open(context.Background(), "1,2")
	assert.Error(t, err)
	assert.False(t, opened)
}

func TestCommand_Open(t *testing.T) {
	assert.Error(t, Command(nil).Open(context.Background(), "https://x"))
	assert.Error(t, Command{"/nonexistent/digipin-opener"}.Open(context.Background(), "https://x"))
}

func TestNew(t *testing.T) {
	v := New(config.MapsConfig{BaseURL: "https://maps.example", OpenCommand: []string{"firefox", "--new-tab"}})
	assert.Equal(t, Command{"firefox", "--new-tab"}, v.opener)

	got, ok := v.URL("1,2")
	assert.True(t, ok)
	assert.Equal(t, "https://maps.example?q=1,2", got)

	assert.NotEmpty(t, New(config.MapsConfig{}).opener)
}
