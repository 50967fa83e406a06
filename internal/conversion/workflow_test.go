package conversion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/digipin/internal/clipboard"
	"github.com/fyrsmithlabs/digipin/internal/geocode"
	"github.com/fyrsmithlabs/digipin/internal/history"
	"github.com/fyrsmithlabs/digipin/internal/logging"
	"github.com/fyrsmithlabs/digipin/internal/notify"
	"github.com/fyrsmithlabs/digipin/internal/storage"
	"github.com/fyrsmithlabs/digipin/internal/telemetry"
)

type fixture struct {
	workflow  *Workflow
	store     *history.Store
	notifier  *notify.Recorder
	clipboard *clipboard.Recorder
	logger    *logging.TestLogger
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	store, err := history.NewStore(storage.NewMemoryKV())
	require.NoError(t, err)

	f := &fixture{
		store:     store,
		notifier:  notify.NewRecorder(nil),
		clipboard: clipboard.NewRecorder(nil),
		logger:    logging.NewTestLogger(),
	}
	base := []Option{
		WithNotifier(f.notifier),
		WithClipboard(f.clipboard),
		WithLogger(f.logger.Logger),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	}
	f.workflow, err = New(geocode.New(), store, append(base, opts...)...)
	require.NoError(t, err)
	return f
}

func (f *fixture) items(t *testing.T) []history.Item {
	t.Helper()
	items, _, err := f.store.Load(context.Background())
	require.NoError(t, err)
	return items
}

// recorderFunc adapts a function to Recorder.
type recorderFunc func(ctx context.Context, item history.Item) ([]history.Item, error)

func (f recorderFunc) Append(ctx context.Context, item history.Item) ([]history.Item, error) {
	return f(ctx, item)
}

// stubProvider returns fixed results.
type stubProvider struct {
	code   string
	coords geocode.Coordinates
	err    error
}

func (s stubProvider) Encode(float64, float64) (string, error)     { return s.code, s.err }
func (s stubProvider) Decode(string) (geocode.Coordinates, error) { return s.coords, s.err }

func TestNew_RequiresDependencies(t *testing.T) {
	store, err := history.NewStore(storage.NewMemoryKV())
	require.NoError(t, err)

	_, err = New(nil, store)
	assert.Error(t, err)
	_, err = New(geocode.New(), nil)
	assert.Error(t, err)
}

func TestRunEncode(t *testing.T) {
	f := newFixture(t)

	code, err := f.workflow.RunEncode(context.Background(), " 28.6139 ", "77.2090")
	require.NoError(t, err)
	assert.Equal(t, "39J-438-TJC7", code)

	items := f.items(t)
	require.Len(t, items, 1)
	assert.Equal(t, history.Item{
		Kind:      history.KindEncode,
		Input:     "28.6139,77.209",
		Output:    "39J-438-TJC7",
		Timestamp: 1700000000000,
	}, items[0])

	assert.Equal(t, []string{"Converted: 39J-438-TJC7"}, f.notifier.Messages())
	assert.Equal(t, []string{"39J-438-TJC7"}, f.clipboard.Texts())
	assert.Equal(t, notify.Title, f.notifier.All()[0].Title)
}

func TestRunEncode_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng string
	}{
		{"empty latitude", "", "77.2"},
		{"blank longitude", "28.6", "   "},
		{"not a number", "abc", "77.2"},
		{"nan", "NaN", "77.2"},
		{"infinity", "28.6", "+Inf"},
		{"out of range", "51.5", "-0.12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.workflow.RunEncode(context.Background(), tt.lat, tt.lng)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, f.items(t))
			assert.Empty(t, f.notifier.Messages())
			assert.Empty(t, f.clipboard.Texts())
		})
	}
}

func TestRunEncode_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	w, err := New(stubProvider{err: errors.New("backend offline")}, f.store)
	require.NoError(t, err)

	_, err = w.RunEncode(context.Background(), "28.6", "77.2")
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.NotErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.items(t))
}

func TestRunDecode(t *testing.T) {
	f := newFixture(t)

	coords, err := f.workflow.RunDecode(context.Background(), "  39J-438-TJC7 ")
	require.NoError(t, err)
	assert.Equal(t, geocode.Coordinates{Latitude: 28.613901, Longitude: 77.208998}, coords)

	items := f.items(t)
	require.Len(t, items, 1)
	assert.Equal(t, history.KindDecode, items[0].Kind)
	assert.Equal(t, "39J-438-TJC7", items[0].Input)
	assert.Equal(t, "28.613901,77.208998", items[0].Output)

	assert.Equal(t, []string{"Decoded: 28.613901,77.208998"}, f.notifier.Messages())
	assert.Equal(t, []string{"28.613901,77.208998"}, f.clipboard.Texts())
}

func TestRunDecode_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow.RunDecode(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.workflow.RunDecode(context.Background(), "ZZZ-ZZZ-ZZZZ")
	assert.ErrorIs(t, err, ErrInvalidCode)

	assert.Empty(t, f.items(t), "malformed codes must not be recorded")
	assert.Empty(t, f.notifier.Messages())

	w, err := New(stubProvider{err: errors.New("boom")}, f.store)
	require.NoError(t, err)
	_, err = w.RunDecode(context.Background(), "39J-438-TJC7")
	assert.ErrorIs(t, err, ErrProviderFailure)
}

func TestDecodeAfterTwoConversions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.workflow.RunEncode(ctx, "28.6139", "77.2090")
	require.NoError(t, err)
	_, err = f.workflow.RunEncode(ctx, "12.9716", "77.5946")
	require.NoError(t, err)

	first := f.items(t)[1]
	assert.Equal(t, "39J-438-TJC7", first.Output)

	coords, err := f.workflow.RunDecode(ctx, first.Output)
	require.NoError(t, err)
	assert.InDelta(t, 28.6139, coords.Latitude, 1e-4)
	assert.InDelta(t, 77.2090, coords.Longitude, 1e-4)

	items := f.items(t)
	require.Len(t, items, 3)
	assert.Equal(t, history.KindDecode, items[0].Kind)
}

func TestSideEffectFailuresAreSwallowed(t *testing.T) {
	store, err := history.NewStore(storage.NewMemoryKV())
	require.NoError(t, err)
	notifier := notify.NewRecorder(errors.New("notification daemon gone"))
	clip := clipboard.NewRecorder(errors.New("no display"))
	tl := logging.NewTestLogger()

	w, err := New(geocode.New(), store,
		WithNotifier(notifier),
		WithClipboard(clip),
		WithLogger(tl.Logger),
	)
	require.NoError(t, err)

	code, err := w.RunEncode(context.Background(), "28.6139", "77.2090")
	require.NoError(t, err)
	assert.Equal(t, "39J-438-TJC7", code)

	// The clipboard is still attempted after the notifier fails.
	assert.Len(t, notifier.Messages(), 1)
	assert.Equal(t, []string{code}, clip.Texts())
	tl.AssertLogged(t, zapcore.WarnLevel, "notification failed")
	tl.AssertLogged(t, zapcore.WarnLevel, "clipboard write failed")
}

func TestSideEffectsRunAfterHistoryWrite(t *testing.T) {
	var order []string
	recorder := recorderFunc(func(_ context.Context, item history.Item) ([]history.Item, error) {
		order = append(order, "history")
		return []history.Item{item}, nil
	})

	w, err := New(geocode.New(), recorder,
		WithNotifier(notify.Func(func(context.Context, notify.Notification) error {
			order = append(order, "notify")
			return nil
		})),
		WithClipboard(clipboardFunc(func(context.Context, string) error {
			order = append(order, "clipboard")
			return nil
		})),
	)
	require.NoError(t, err)

	_, err = w.RunEncode(context.Background(), "28.6139", "77.2090")
	require.NoError(t, err)
	assert.Equal(t, []string{"history", "notify", "clipboard"}, order)
}

type clipboardFunc func(ctx context.Context, text string) error

func (f clipboardFunc) Copy(ctx context.Context, text string) error { return f(ctx, text) }

func TestStorageFailure(t *testing.T) {
	boom := errors.New("disk full")
	notifier := notify.NewRecorder(nil)
	clip := clipboard.NewRecorder(nil)

	w, err := New(geocode.New(),
		recorderFunc(func(context.Context, history.Item) ([]history.Item, error) { return nil, boom }),
		WithNotifier(notifier),
		WithClipboard(clip),
	)
	require.NoError(t, err)

	_, err = w.RunEncode(context.Background(), "28.6139", "77.2090")
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, notifier.Messages(), "side effects must not run when history fails")
	assert.Empty(t, clip.Texts())

	_, err = w.RunDecode(context.Background(), "39J-438-TJC7")
	assert.ErrorIs(t, err, ErrStorage)
}

func TestRunEncode_Telemetry(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	f := newFixture(t, WithTracerProvider(tel.TracerProvider()))

	_, err := f.workflow.RunEncode(context.Background(), "28.6139", "77.2090")
	require.NoError(t, err)
	_, err = f.workflow.RunDecode(context.Background(), "nope")
	require.Error(t, err)

	tel.AssertSpanExists(t, "conversion.encode")
	tel.AssertSpanAttribute(t, "conversion.encode", "result", "ok")
	tel.AssertSpanAttribute(t, "conversion.decode", "result", "invalid_code")
}

func TestParseCoordinate(t *testing.T) {
	v, err := ParseCoordinate(" -12.5 ")
	require.NoError(t, err)
	assert.Equal(t, -12.5, v)

	for _, bad := range []string{"", " ", "1.2.3", "NaN", "inf", "-Infinity", "28,6"} {
		_, err := ParseCoordinate(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestFormatPair(t *testing.T) {
	assert.Equal(t, "28.6139,77.209", FormatPair(28.6139, 77.2090))
	assert.Equal(t, "28,77", FormatPair(28, 77))
	assert.Equal(t, "-0.5,0.0000001", FormatPair(-0.5, 0.0000001))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "invalid_input", resultLabel(ErrInvalidInput))
	assert.Equal(t, "storage_failure", resultLabel(errors.Join(ErrStorage, errors.New("x"))))
	assert.Equal(t, "error", resultLabel(errors.New("x")))
}
