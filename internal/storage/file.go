package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/logging"
)

// lockRetryDelay is how often a blocked writer polls the lock file.
const lockRetryDelay = 10 * time.Millisecond

// FileKV stores the document as one JSON file.
//
// Writes go to a uniquely named sibling temp file that is renamed over the
// target, so the file on disk is always either the previous or the next
// complete document. Writers hold an exclusive lock on path+".lock" from
// read to rename, which serializes FileKVs in different processes.
type FileKV struct {
	mu     sync.Mutex
	path   string
	lock   *flock.Flock
	logger *logging.Logger
}

// FileOption configures a FileKV.
type FileOption func(*FileKV)

// WithFileLogger sets the logger used for watcher errors.
func WithFileLogger(l *logging.Logger) FileOption {
	return func(f *FileKV) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFileKV opens (without creating) the document at path. The parent
// directory is created with 0700 permissions.
func NewFileKV(path string, opts ...FileOption) (*FileKV, error) {
	if path == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	f := &FileKV{path: path, lock: flock.New(path + ".lock"), logger: logging.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Path returns the document location.
func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	return doc.pick(keys), nil
}

func (f *FileKV) Set(ctx context.Context, values map[string]any) error {
	return f.Update(ctx, nil, set(values))
}

func (f *FileKV) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock storage: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock storage: %s", f.lock.Path())
	}
	defer func() { _ = f.lock.Unlock() }()

	doc, err := f.load()
	if err != nil {
		return err
	}
	next, err := doc.apply(keys, fn)
	if err != nil || next == nil {
		return err
	}
	return f.save(next)
}

// Watch reports changes to the document file, including writes by other
// processes sharing the same path.
func (f *FileKV) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: rename-based writes replace the file inode.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(f.path), err)
	}

	out := make(chan struct{}, 1)
	name := filepath.Clean(f.path)

	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					signal(out)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn(ctx, "storage watcher error", zap.String("path", f.path), zap.Error(err))
			}
		}
	}()

	return out, nil
}

// Close is a no-op; FileKV holds no open handles between calls.
func (f *FileKV) Close() error {
	return nil
}

func (f *FileKV) load() (document, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read storage: %w", err)
	}
	return decodeDocument(data)
}

func (f *FileKV) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp storage: %w", err)
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0600)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename storage: %w", err)
	}
	return nil
}
