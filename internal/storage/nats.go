package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/logging"
)

const (
	// documentKey is the single KV entry holding the whole document.
	documentKey = "state"

	// maxUpdateAttempts bounds optimistic-concurrency retries in Update.
	maxUpdateAttempts = 10
)

// NATSKV stores the document in a JetStream key-value bucket.
//
// Each Update reads the current entry, applies the caller's change and
// writes back with KeyValue.Update conditioned on the read revision. A
// conflicting write from another connection fails the condition and the
// whole read-apply-write is retried against the newer document.
type NATSKV struct {
	mu     sync.Mutex
	kv     nats.KeyValue
	conn   *nats.Conn // owned connection, closed by Close; may be nil
	logger *logging.Logger
}

// NATSOption configures a NATSKV.
type NATSOption func(*NATSKV)

// WithNATSLogger sets the logger.
func WithNATSLogger(l *logging.Logger) NATSOption {
	return func(n *NATSKV) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithOwnedConn makes Close also close nc.
func WithOwnedConn(nc *nats.Conn) NATSOption {
	return func(n *NATSKV) {
		n.conn = nc
	}
}

// DialNATS connects to a NATS server with the reconnect policy the daemon uses.
func DialNATS(url, token string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("digipin"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NewNATSKV binds to bucket, creating it when it does not exist.
func NewNATSKV(nc *nats.Conn, bucket string, opts ...NATSOption) (*NATSKV, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	if bucket == "" {
		return nil, errors.New("nats bucket is required")
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "digipin conversion history",
			History:     1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bind KV bucket %q: %w", bucket, err)
	}

	n := &NATSKV{kv: kv, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *NATSKV) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, _, err := n.read()
	if err != nil {
		return nil, err
	}
	return doc.pick(keys), nil
}

func (n *NATSKV) Set(ctx context.Context, values map[string]any) error {
	return n.Update(ctx, nil, set(values))
}

func (n *NATSKV) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, revision, err := n.read()
		if err != nil {
			return err
		}
		next, err := doc.apply(keys, fn)
		if err != nil || next == nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal storage: %w", err)
		}

		if revision == 0 {
			_, lastErr = n.kv.Create(documentKey, data)
		} else {
			_, lastErr = n.kv.Update(documentKey, data, revision)
		}
		if lastErr == nil {
			return nil
		}

		n.logger.Debug(ctx, "storage update conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Uint64("revision", revision),
			zap.Error(lastErr),
		)
	}
	return fmt.Errorf("failed to update storage after %d attempts: %w", maxUpdateAttempts, lastErr)
}

func (n *NATSKV) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := n.kv.Watch(documentKey, nats.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to watch storage: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() { _ = w.Stop() }()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-w.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				signal(out)
			}
		}
	}()
	return out, nil
}

// Close closes the connection when it is owned.
func (n *NATSKV) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}

// read returns the current document and its revision (0 when absent).
func (n *NATSKV) read() (document, uint64, error) {
	entry, err := n.kv.Get(documentKey)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return document{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read storage: %w", err)
	}
	doc, err := decodeDocument(entry.Value())
	if err != nil {
		return nil, 0, err
	}
	return doc, entry.Revision(), nil
}
