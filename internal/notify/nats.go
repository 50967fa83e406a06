package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject notifications are published on.
const DefaultSubject = "digipin.notifications"

// NATS publishes notifications as JSON on a subject.
type NATS struct {
	conn    *nats.Conn
	subject string
}

// NewNATS returns a publisher on subject, or DefaultSubject when empty.
func NewNATS(nc *nats.Conn, subject string) (*NATS, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{conn: nc, subject: subject}, nil
}

func (p *NATS) Notify(_ context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Subscribe calls fn for every notification published on subject until ctx
// is done. Messages that do not decode are skipped.
func Subscribe(ctx context.Context, nc *nats.Conn, subject string, fn func(Notification)) error {
	if subject == "" {
		subject = DefaultSubject
	}

	msgs := make(chan *nats.Msg, 16)
	sub, err := nc.ChanSubscribe(subject, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-msgs:
			var n Notification
			if err := json.Unmarshal(msg.Data, &n); err != nil {
				continue
			}
			fn(n)
		}
	}
}
