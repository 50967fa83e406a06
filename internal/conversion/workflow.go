// Package conversion runs encode and decode requests end to end: parse,
// convert through the geocode provider, record in history, then notify and
// copy the result.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/clipboard"
	"github.com/fyrsmithlabs/digipin/internal/geocode"
	"github.com/fyrsmithlabs/digipin/internal/history"
	"github.com/fyrsmithlabs/digipin/internal/logging"
	"github.com/fyrsmithlabs/digipin/internal/notify"
)

const instrumentationName = "github.com/fyrsmithlabs/digipin/internal/conversion"

// Recorder persists successful conversions.
type Recorder interface {
	Append(ctx context.Context, item history.Item) ([]history.Item, error)
}

// Workflow performs conversions and their side effects.
type Workflow struct {
	provider  geocode.Provider
	history   Recorder
	notifier  notify.Notifier
	clipboard clipboard.Clipboard
	logger    *logging.Logger
	tracer    trace.Tracer
	metrics   *Metrics
	now       func() time.Time
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithNotifier sets the notifier. Defaults to notify.Nop.
func WithNotifier(n notify.Notifier) Option {
	return func(w *Workflow) {
		if n != nil {
			w.notifier = n
		}
	}
}

// WithClipboard sets the clipboard. Defaults to clipboard.Nop.
func WithClipboard(c clipboard.Clipboard) Option {
	return func(w *Workflow) {
		if c != nil {
			w.clipboard = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(w *Workflow) {
		if tp != nil {
			w.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithClock overrides time.Now for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

// New creates a Workflow.
func New(provider geocode.Provider, recorder Recorder, opts ...Option) (*Workflow, error) {
	if provider == nil {
		return nil, errors.New("geocode provider is required")
	}
	if recorder == nil {
		return nil, errors.New("history recorder is required")
	}

	w := &Workflow{
		provider:  provider,
		history:   recorder,
		notifier:  notify.Nop{},
		clipboard: clipboard.Nop{},
		logger:    logging.NewNop(),
		tracer:    otel.Tracer(instrumentationName),
		metrics:   NewMetrics(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// RunEncode parses latText and lngText, encodes them and records the result.
func (w *Workflow) RunEncode(ctx context.Context, latText, lngText string) (code string, err error) {
	ctx, span := w.tracer.Start(ctx, "conversion.encode")
	defer func() { w.finish(span, history.KindEncode, err) }()

	lat, err := ParseCoordinate(latText)
	if err != nil {
		return "", fmt.Errorf("%w: latitude: %v", ErrInvalidInput, err)
	}
	lng, err := ParseCoordinate(lngText)
	if err != nil {
		return "", fmt.Errorf("%w: longitude: %v", ErrInvalidInput, err)
	}

	code, err = w.provider.Encode(lat, lng)
	if err != nil {
		if errors.Is(err, geocode.ErrOutOfRange) {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	input := FormatPair(lat, lng)
	if err := w.record(ctx, history.KindEncode, input, code); err != nil {
		return "", err
	}

	w.sideEffects(ctx, "Converted: "+code, code)
	return code, nil
}

// RunDecode decodes codeText and records the result.
func (w *Workflow) RunDecode(ctx context.Context, codeText string) (coords geocode.Coordinates, err error) {
	ctx, span := w.tracer.Start(ctx, "conversion.decode")
	defer func() { w.finish(span, history.KindDecode, err) }()

	code := strings.TrimSpace(codeText)
	if code == "" {
		return geocode.Coordinates{}, fmt.Errorf("%w: empty code", ErrInvalidInput)
	}

	coords, err = w.provider.Decode(code)
	if err != nil {
		if errors.Is(err, geocode.ErrInvalidCode) {
			return geocode.Coordinates{}, fmt.Errorf("%w: %v", ErrInvalidCode, err)
		}
		return geocode.Coordinates{}, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	output := FormatPair(coords.Latitude, coords.Longitude)
	if err := w.record(ctx, history.KindDecode, code, output); err != nil {
		return geocode.Coordinates{}, err
	}

	w.sideEffects(ctx, "Decoded: "+output, output)
	return coords, nil
}

func (w *Workflow) record(ctx context.Context, kind history.Kind, input, output string) error {
	item := history.NewItem(kind, input, output, w.now())
	if _, err := w.history.Append(ctx, item); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// sideEffects notifies, then copies text. Failures are logged only.
func (w *Workflow) sideEffects(ctx context.Context, message, text string) {
	if err := w.notifier.Notify(ctx, notify.New(message)); err != nil {
		w.logger.Warn(ctx, "notification failed", zap.Error(err))
	}
	if err := w.clipboard.Copy(ctx, text); err != nil {
		w.logger.Warn(ctx, "clipboard write failed", zap.Error(err))
	}
}

func (w *Workflow) finish(span trace.Span, kind history.Kind, err error) {
	defer span.End()

	result := resultLabel(err)
	w.metrics.Conversions.WithLabelValues(string(kind), result).Inc()
	span.SetAttributes(attribute.String("result", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// ParseCoordinate parses a trimmed decimal degree value. Empty, NaN and
// infinite values are rejected.
func ParseCoordinate(text string) (float64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, errors.New("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite: %q", s)
	}
	return v, nil
}

// FormatPair renders "lat,lng" in shortest decimal form.
func FormatPair(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}
