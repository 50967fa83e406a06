// Package notify delivers short user-facing notifications.
//
// Notifications are fire-and-forget: callers log a delivery failure and move
// on. The daemon typically combines a log notifier with a NATS publisher so a
// desktop helper subscribed to the subject can raise a system notification.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/logging"
)

// Title is the title used for every digipin notification.
const Title = "DIGIPIN"

// Notification is one message shown to the user.
type Notification struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// New returns a titled notification with a fresh ID.
func New(message string) Notification {
	return Notification{
		ID:      uuid.NewString(),
		Title:   Title,
		Message: message,
		Time:    time.Now().UTC(),
	}
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }

// Log writes notifications to the structured log.
type Log struct {
	logger *logging.Logger
}

// NewLog returns a notifier that logs at info level.
func NewLog(logger *logging.Logger) *Log {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, n Notification) error {
	l.logger.Info(ctx, n.Message,
		zap.String("notification.id", n.ID),
		zap.String("notification.title", n.Title),
	)
	return nil
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

// NewRecorder returns a Recorder that fails every call with err, if non-nil,
// after recording it.
func NewRecorder(err error) *Recorder {
	return &Recorder{err: err}
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

// Messages returns the recorded messages in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, n := range r.sent {
		out[i] = n.Message
	}
	return out
}

// All returns the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}
