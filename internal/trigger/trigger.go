// Package trigger implements the "Convert to DIGIPIN" selection action.
//
// A Trigger receives raw selected text, extracts the first coordinate pair and
// hands it to the conversion workflow. Only one selection is processed at a
// time; a selection arriving while another is in flight fails with ErrBusy.
package trigger

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/clipboard"
	"github.com/fyrsmithlabs/digipin/internal/logging"
	"github.com/fyrsmithlabs/digipin/internal/notify"
)

// User-facing messages.
const (
	HintMessage    = "Select coordinates like: 28.6139,77.2090"
	FailureMessage = "Failed to convert selection."
)

// ErrBusy is returned when a selection is already being processed.
var ErrBusy = errors.New("selection conversion already in progress")

var pairPattern = regexp.MustCompile(`(-?\d+(\.\d+)?)[,\s]+(-?\d+(\.\d+)?)`)

// State is the trigger's processing state.
type State int

const (
	Idle State = iota
	Processing
)

func (s State) String() string {
	if s == Processing {
		return "processing"
	}
	return "idle"
}

// Outcome is what happened to a selection.
type Outcome string

const (
	OutcomeHint      Outcome = "hint"
	OutcomeFailed    Outcome = "failed"
	OutcomeConverted Outcome = "converted"
)

// Result reports a handled selection. Code is set only when converted.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Code    string  `json:"code,omitempty"`
	Err     error   `json:"-"`
}

// Encoder runs an encode conversion.
type Encoder interface {
	RunEncode(ctx context.Context, latText, lngText string) (string, error)
}

// Trigger handles selections.
type Trigger struct {
	encoder  Encoder
	notifier notify.Notifier
	page     clipboard.Clipboard
	logger   *logging.Logger
	busy     atomic.Bool
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithNotifier sets the notifier used for hint and failure messages.
func WithNotifier(n notify.Notifier) Option {
	return func(t *Trigger) {
		if n != nil {
			t.notifier = n
		}
	}
}

// WithPageClipboard sets the clipboard of the surface the selection came
// from. It receives the code in addition to the workflow's own copy.
func WithPageClipboard(c clipboard.Clipboard) Option {
	return func(t *Trigger) {
		if c != nil {
			t.page = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Trigger) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a Trigger.
func New(encoder Encoder, opts ...Option) (*Trigger, error) {
	if encoder == nil {
		return nil, errors.New("encoder is required")
	}
	t := &Trigger{
		encoder:  encoder,
		notifier: notify.Nop{},
		page:     clipboard.Nop{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// State returns the current state.
func (t *Trigger) State() State {
	if t.busy.Load() {
		return Processing
	}
	return Idle
}

// Handle processes one selection. It returns ErrBusy if another selection
// is still being processed; every other failure is reported in the Result.
func (t *Trigger) Handle(ctx context.Context, selection string) (Result, error) {
	if !t.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer t.busy.Store(false)

	if logging.SourceFromContext(ctx) == "" {
		ctx = logging.WithSource(ctx, logging.SourceMenu)
	}

	lat, lng, ok := ExtractPair(selection)
	if !ok {
		t.notify(ctx, HintMessage)
		return Result{Outcome: OutcomeHint}, nil
	}

	code, err := t.encoder.RunEncode(ctx, lat, lng)
	if err != nil {
		t.logger.Warn(ctx, "selection conversion failed", zap.Error(err))
		t.notify(ctx, FailureMessage)
		return Result{Outcome: OutcomeFailed, Err: err}, nil
	}

	if err := t.page.Copy(ctx, code); err != nil {
		t.logger.Warn(ctx, "page clipboard write failed", zap.Error(err))
	}

	t.logger.Info(ctx, "selection converted", zap.String("code", code))
	return Result{Outcome: OutcomeConverted, Code: code}, nil
}

func (t *Trigger) notify(ctx context.Context, message string) {
	if err := t.notifier.Notify(ctx, notify.New(message)); err != nil {
		t.logger.Warn(ctx, "notification failed", zap.Error(err))
	}
}

// ExtractPair finds the first "lat,lng" or "lat lng" pair in text. It
// reports false when there is no match or either number is not finite.
func ExtractPair(text string) (lat, lng string, ok bool) {
	m := pairPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", "", false
	}
	lat, lng = m[1], m[3]
	if !finite(lat) || !finite(lng) {
		return "", "", false
	}
	return lat, lng, true
}

func finite(s string) bool {
	v, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
}
