// Package storage provides the key-value store that digipin state lives in.
//
// The model is a single JSON document of named keys. Get returns the raw
// JSON of the requested keys that exist; Set merges keys into the document.
// Every backend applies one Set as a single replacement of the document, so a
// reader never observes half of a multi-key write.
//
// Update is the read-modify-write primitive. It is atomic across every KV
// instance sharing the same backend, including instances in other
// processes: the file backend holds an exclusive lock file for the whole
// update and the NATS backend retries on revision conflict.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrCorrupted indicates the persisted document could not be parsed.
	ErrCorrupted = errors.New("storage document corrupted")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("storage closed")
)

// KV is a JSON key-value store.
type KV interface {
	// Get returns the stored JSON for each requested key that exists.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)

	// Set marshals each value and merges it into the document atomically.
	Set(ctx context.Context, values map[string]any) error

	// Update reads keys, passes them to fn and merges the values fn returns,
	// with no other write in between. fn may run more than once and must
	// derive its result only from current. A nil map from fn writes nothing.
	Update(ctx context.Context, keys []string, fn UpdateFunc) error

	// Watch signals on the returned channel whenever the document changes,
	// including changes made by other processes where the backend allows.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan struct{}, error)

	Close() error
}

// UpdateFunc computes the values to merge from the current values of the
// requested keys.
type UpdateFunc func(current map[string]json.RawMessage) (map[string]any, error)

// document is the persisted shape shared by all backends.
type document map[string]json.RawMessage

func decodeDocument(data []byte) (document, error) {
	doc := document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return doc, nil
}

// merge applies values onto a copy of doc.
func (d document) merge(values map[string]any) (document, error) {
	next := make(document, len(d)+len(values))
	for k, v := range d {
		next[k] = v
	}
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		next[k] = raw
	}
	return next, nil
}

// apply runs fn against doc and returns the merged result, or nil when fn
// has nothing to write.
func (d document) apply(keys []string, fn UpdateFunc) (document, error) {
	values, err := fn(d.pick(keys))
	if err != nil {
		return nil, err
	}
	if values == nil {
		return nil, nil
	}
	return d.merge(values)
}

// set is the UpdateFunc for a blind Set.
func set(values map[string]any) UpdateFunc {
	return func(map[string]json.RawMessage) (map[string]any, error) {
		return values, nil
	}
}

// pick returns the subset of doc named by keys.
func (d document) pick(keys []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := d[k]; ok {
			out[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// signal performs a non-blocking send, coalescing bursts into one wakeup.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
