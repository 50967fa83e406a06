package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/logging"
	"github.com/fyrsmithlabs/digipin/internal/storage"
)

const instrumentationName = "github.com/fyrsmithlabs/digipin/internal/history"

// Storage keys.
const (
	KeyLastResult = "lastResult"
	KeyHistory    = "history"
	KeyLimit      = "historyLimit"
)

var stateKeys = []string{KeyHistory, KeyLimit, KeyLastResult}

// DefaultLimit is the retention limit used when none is stored.
const DefaultLimit = 20

// LimitOptions are the retention choices offered by the panel.
var LimitOptions = []int{5, 10, 20, 50}

// Store owns the persisted history. Each mutation is one storage.KV.Update,
// so it reads and rewrites the state with no other writer in between, even
// when another process shares the backend.
type Store struct {
	mu           sync.Mutex
	kv           storage.KV
	defaultLimit int
	logger       *logging.Logger
	tracer       trace.Tracer
	metrics      *Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultLimit overrides DefaultLimit. Non-positive values are ignored.
func WithDefaultLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) {
		if tp != nil {
			s.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// NewStore creates a Store over kv.
func NewStore(kv storage.KV, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, errors.New("storage is required")
	}

	s := &Store{
		kv:           kv,
		defaultLimit: DefaultLimit,
		logger:       logging.NewNop(),
		tracer:       otel.Tracer(instrumentationName),
		metrics:      NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// state is the decoded persisted state.
type state struct {
	items []Item
	limit int
}

// Load returns the history and the retention limit. Absent state yields an
// empty list and the default limit.
func (s *Store) Load(ctx context.Context) ([]Item, int, error) {
	ctx, span := s.tracer.Start(ctx, "history.load")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read(ctx)
	s.finish(span, "load", err, len(st.items))
	if err != nil {
		return nil, 0, err
	}
	return st.items, st.limit, nil
}

// Append prepends item, truncates to the limit and persists. It returns the
// new sequence.
func (s *Store) Append(ctx context.Context, item Item) ([]Item, error) {
	ctx, span := s.tracer.Start(ctx, "history.append",
		trace.WithAttributes(attribute.String("kind", string(item.Kind))))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.mutate(ctx, func(st *state) map[string]any {
		items := make([]Item, 0, len(st.items)+1)
		items = append(items, item)
		items = append(items, st.items...)
		st.items = truncate(items, st.limit)
		return map[string]any{
			KeyHistory:    st.items,
			KeyLimit:      st.limit,
			KeyLastResult: item,
		}
	})
	if err != nil {
		err = fmt.Errorf("persist history: %w", err)
	}

	s.finish(span, "append", err, len(st.items))
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "history appended",
		zap.String("kind", string(item.Kind)),
		zap.Int("size", len(st.items)),
		zap.Int("limit", st.limit),
	)
	return st.items, nil
}

// SetLimit stores a new retention limit and truncates the history to it.
// Non-positive limits fall back to the default. The history never grows.
// It returns the truncated sequence and the limit actually stored.
func (s *Store) SetLimit(ctx context.Context, n int) ([]Item, int, error) {
	ctx, span := s.tracer.Start(ctx, "history.set_limit",
		trace.WithAttributes(attribute.Int("requested", n)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	limit := s.normalize(n)
	st, err := s.mutate(ctx, func(st *state) map[string]any {
		st.limit = limit
		st.items = truncate(st.items, limit)
		return map[string]any{
			KeyHistory: st.items,
			KeyLimit:   st.limit,
		}
	})
	if err != nil {
		err = fmt.Errorf("persist history limit: %w", err)
	}

	s.finish(span, "set_limit", err, len(st.items))
	if err != nil {
		return nil, 0, err
	}
	return st.items, limit, nil
}

// Clear empties the history. The limit is unchanged.
func (s *Store) Clear(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "history.clear")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.mutate(ctx, func(st *state) map[string]any {
		st.items = []Item{}
		// lastResult is dropped too, otherwise Load would merge it back.
		return map[string]any{
			KeyHistory:    st.items,
			KeyLastResult: nil,
		}
	})
	if err != nil {
		err = fmt.Errorf("clear history: %w", err)
	}

	s.finish(span, "clear", err, 0)
	return err
}

// Watch signals whenever the persisted state changes.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	return s.kv.Watch(ctx)
}

// DefaultLimit returns the limit applied when none is stored.
func (s *Store) DefaultLimit() int {
	return s.defaultLimit
}

func (s *Store) normalize(n int) int {
	if n <= 0 {
		return s.defaultLimit
	}
	return n
}

func (s *Store) read(ctx context.Context) (state, error) {
	raw, err := s.kv.Get(ctx, stateKeys...)
	if err != nil {
		return state{}, fmt.Errorf("read history: %w", err)
	}
	return s.decode(ctx, raw), nil
}

// mutate applies change to the current state inside one KV update and
// returns the state as written. change may run more than once when the
// backend retries.
func (s *Store) mutate(ctx context.Context, change func(st *state) map[string]any) (state, error) {
	var written state
	err := s.kv.Update(ctx, stateKeys, func(current map[string]json.RawMessage) (map[string]any, error) {
		st := s.decode(ctx, current)
		values := change(&st)
		written = st
		return values, nil
	})
	if err != nil {
		return state{}, err
	}
	return written, nil
}

// decode builds the state from raw keys. Malformed keys fall back to
// defaults.
func (s *Store) decode(ctx context.Context, raw map[string]json.RawMessage) state {
	st := state{limit: s.defaultLimit}

	if data, ok := raw[KeyLimit]; ok {
		var n int
		if err := json.Unmarshal(data, &n); err != nil || n <= 0 {
			s.logger.Warn(ctx, "ignoring invalid stored history limit", zap.ByteString("value", data))
		} else {
			st.limit = n
		}
	}

	if data, ok := raw[KeyHistory]; ok && !isNull(data) {
		if err := json.Unmarshal(data, &st.items); err != nil {
			s.logger.Warn(ctx, "ignoring malformed stored history", zap.Error(err))
			st.items = nil
		}
	}

	if data, ok := raw[KeyLastResult]; ok && !isNull(data) {
		var last Item
		if err := json.Unmarshal(data, &last); err != nil {
			s.logger.Warn(ctx, "ignoring malformed last result", zap.Error(err))
		} else if len(st.items) == 0 || st.items[0] != last {
			st.items = append([]Item{last}, st.items...)
		}
	}

	if st.items == nil {
		st.items = []Item{}
	}
	st.items = truncate(st.items, st.limit)
	return st
}

func (s *Store) finish(span trace.Span, op string, err error, size int) {
	s.metrics.observe(op, err, size)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.Int("history.size", size))
}

func truncate(items []Item, limit int) []Item {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func isNull(data json.RawMessage) bool {
	return string(data) == "null"
}
