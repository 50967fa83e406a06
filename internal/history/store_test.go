package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/digipin/internal/logging"
	"github.com/fyrsmithlabs/digipin/internal/storage"
	"github.com/fyrsmithlabs/digipin/internal/telemetry"
)

// failingKV fails every operation with err.
type failingKV struct {
	storage.KV
	getErr error
	setErr error
}

func (f *failingKV) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.KV.Get(ctx, keys...)
}

func (f *failingKV) Set(ctx context.Context, values map[string]any) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.KV.Set(ctx, values)
}

func (f *failingKV) Update(ctx context.Context, keys []string, fn storage.UpdateFunc) error {
	if f.getErr != nil {
		return f.getErr
	}
	if f.setErr != nil {
		return f.setErr
	}
	return f.KV.Update(ctx, keys, fn)
}

func newStore(t *testing.T, opts ...Option) (*Store, *storage.MemoryKV) {
	t.Helper()
	kv := storage.NewMemoryKV()
	s, err := NewStore(kv, opts...)
	require.NoError(t, err)
	return s, kv
}

func item(n int) Item {
	return NewItem(KindEncode, fmt.Sprintf("%d,77", n), fmt.Sprintf("CODE-%d", n), time.UnixMilli(int64(n)))
}

func TestNewStore_RequiresStorage(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

func TestStore_LoadEmpty(t *testing.T) {
	s, _ := newStore(t)

	items, limit, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
	assert.Equal(t, DefaultLimit, limit)
}

func TestStore_AppendMostRecentFirst(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, item(1))
	require.NoError(t, err)
	items, err := s.Append(ctx, item(2))
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "CODE-2", items[0].Output)
	assert.Equal(t, "CODE-1", items[1].Output)

	loaded, limit, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, items, loaded)
	assert.Equal(t, DefaultLimit, limit)
}

func TestStore_FIFOEviction(t *testing.T) {
	tests := []struct {
		n, limit int
	}{
		{3, 5},
		{5, 5},
		{8, 5},
		{25, 20},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_items_limit_%d", tt.n, tt.limit), func(t *testing.T) {
			s, _ := newStore(t)
			ctx := context.Background()

			_, _, err := s.SetLimit(ctx, tt.limit)
			require.NoError(t, err)

			var items []Item
			for i := 1; i <= tt.n; i++ {
				items, err = s.Append(ctx, item(i))
				require.NoError(t, err)
			}

			want := min(tt.n, tt.limit)
			require.Len(t, items, want)
			for j := 0; j < want; j++ {
				assert.Equal(t, fmt.Sprintf("CODE-%d", tt.n-j), items[j].Output)
			}
		})
	}
}

func TestStore_LimitFiveOverEightItems(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, _, err := s.SetLimit(ctx, 5)
	require.NoError(t, err)
	for i := 1; i <= 8; i++ {
		_, err := s.Append(ctx, item(i))
		require.NoError(t, err)
	}

	items, limit, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)
	require.Len(t, items, 5)
	assert.Equal(t, "CODE-8", items[0].Output)
	assert.Equal(t, "CODE-4", items[4].Output)
}

func TestStore_SetLimitTruncatesNeverGrows(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		_, err := s.Append(ctx, item(i))
		require.NoError(t, err)
	}

	items, limit, err := s.SetLimit(ctx, 5)
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Equal(t, 5, limit)
	assert.Equal(t, "CODE-10", items[0].Output)

	items, limit, err = s.SetLimit(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, limit)
	assert.Len(t, items, 5, "raising the limit must not restore evicted items")

	_, limit, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, limit)
}

func TestStore_SetLimitInvalidFallsBackToDefault(t *testing.T) {
	for _, n := range []int{0, -3} {
		s, _ := newStore(t)
		_, stored, err := s.SetLimit(context.Background(), n)
		require.NoError(t, err)
		assert.Equal(t, DefaultLimit, stored, "n=%d", n)

		_, limit, err := s.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, DefaultLimit, limit, "n=%d", n)
	}
}

func TestStore_ClearKeepsLimit(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, _, err := s.SetLimit(ctx, 10)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		_, err := s.Append(ctx, item(i))
		require.NoError(t, err)
	}

	require.NoError(t, s.Clear(ctx))

	items, limit, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "last result must not reappear after clear")
	assert.Equal(t, 10, limit)
}

func TestStore_MergesLastResult(t *testing.T) {
	s, kv := newStore(t)
	ctx := context.Background()

	older := item(1)
	last := item(2)
	require.NoError(t, kv.Set(ctx, map[string]any{
		KeyHistory:    []Item{older},
		KeyLastResult: last,
	}))

	items, _, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, last, items[0])

	// Already at the head: no duplicate.
	require.NoError(t, kv.Set(ctx, map[string]any{
		KeyHistory:    []Item{last, older},
		KeyLastResult: last,
	}))
	items, _, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestStore_LastResultOnly(t *testing.T) {
	s, kv := newStore(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, map[string]any{KeyLastResult: item(7)}))

	items, limit, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "CODE-7", items[0].Output)
	assert.Equal(t, DefaultLimit, limit)
}

func TestStore_MalformedKeysDefault(t *testing.T) {
	tl := logging.NewTestLogger()
	s, kv := newStore(t, WithLogger(tl.Logger))
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, map[string]any{
		KeyHistory:    "not a list",
		KeyLimit:      -4,
		KeyLastResult: []int{1},
	}))

	items, limit, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, DefaultLimit, limit)
	tl.AssertLogged(t, zapcore.WarnLevel, "invalid stored history limit")
	tl.AssertLogged(t, zapcore.WarnLevel, "malformed stored history")
}

func TestStore_WithDefaultLimit(t *testing.T) {
	s, _ := newStore(t, WithDefaultLimit(7), WithDefaultLimit(0))
	_, limit, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, limit)
	assert.Equal(t, 7, s.DefaultLimit())
}

func TestStore_StorageFailures(t *testing.T) {
	boom := errors.New("disk full")
	ctx := context.Background()

	t.Run("read", func(t *testing.T) {
		s, err := NewStore(&failingKV{KV: storage.NewMemoryKV(), getErr: boom})
		require.NoError(t, err)

		_, _, err = s.Load(ctx)
		assert.ErrorIs(t, err, boom)
		_, err = s.Append(ctx, item(1))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("write", func(t *testing.T) {
		s, err := NewStore(&failingKV{KV: storage.NewMemoryKV(), setErr: boom})
		require.NoError(t, err)

		_, err = s.Append(ctx, item(1))
		assert.ErrorIs(t, err, boom)
		_, _, err = s.SetLimit(ctx, 5)
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, s.Clear(ctx), boom)
	})
}

func TestStore_ConcurrentAppends(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append(ctx, item(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	items, _, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, items, DefaultLimit)

	seen := map[string]bool{}
	for _, it := range items {
		assert.False(t, seen[it.Output], "duplicate %s", it.Output)
		seen[it.Output] = true
	}
}

// sharedStores returns two Stores over separate KV instances of the same
// backend, the way the CLI and digipind share one storage file or bucket.
func sharedStores(t *testing.T) map[string]func(t *testing.T) (*Store, *Store, []storage.KV) {
	return map[string]func(t *testing.T) (*Store, *Store, []storage.KV){
		"file": func(t *testing.T) (*Store, *Store, []storage.KV) {
			path := filepath.Join(t.TempDir(), "storage.json")
			a, err := storage.NewFileKV(path)
			require.NoError(t, err)
			b, err := storage.NewFileKV(path)
			require.NoError(t, err)
			return storesOver(t, a, b)
		},
		"nats": func(t *testing.T) (*Store, *Store, []storage.KV) {
			url := startJetStream(t)
			open := func() storage.KV {
				nc, err := nats.Connect(url)
				require.NoError(t, err)
				kv, err := storage.NewNATSKV(nc, "digipin-history", storage.WithOwnedConn(nc))
				require.NoError(t, err)
				t.Cleanup(func() { _ = kv.Close() })
				return kv
			}
			return storesOver(t, open(), open())
		},
	}
}

func storesOver(t *testing.T, a, b storage.KV) (*Store, *Store, []storage.KV) {
	t.Helper()
	first, err := NewStore(a)
	require.NoError(t, err)
	second, err := NewStore(b)
	require.NoError(t, err)
	return first, second, []storage.KV{a, b}
}

func startJetStream(t *testing.T) string {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)
	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server.ClientURL()
}

func TestStore_ConcurrentAppendsAcrossStores(t *testing.T) {
	for name, open := range sharedStores(t) {
		t.Run(name, func(t *testing.T) {
			first, second, _ := open(t)
			ctx := context.Background()

			_, _, err := first.SetLimit(ctx, 50)
			require.NoError(t, err)

			const perStore = 12
			var wg sync.WaitGroup
			for i, s := range []*Store{first, second} {
				for j := 0; j < perStore; j++ {
					wg.Add(1)
					go func(s *Store, n int) {
						defer wg.Done()
						_, err := s.Append(ctx, item(n))
						assert.NoError(t, err)
					}(s, i*perStore+j+1)
				}
			}
			wg.Wait()

			items, limit, err := second.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 50, limit)
			require.Len(t, items, 2*perStore, "an append was lost")

			seen := map[string]bool{}
			for _, it := range items {
				assert.False(t, seen[it.Output], "duplicate %s", it.Output)
				seen[it.Output] = true
			}
		})
	}
}

// interleavingKV lets another writer append after the first read of an
// update and before its write.
type interleavingKV struct {
	storage.KV
	between func()
	once    sync.Once
}

func (k *interleavingKV) Update(ctx context.Context, keys []string, fn storage.UpdateFunc) error {
	return k.KV.Update(ctx, keys, func(current map[string]json.RawMessage) (map[string]any, error) {
		k.once.Do(k.between)
		return fn(current)
	})
}

func TestStore_AppendInterleavedWithOtherProcess(t *testing.T) {
	ctx := context.Background()
	_, _, kvs := sharedStores(t)["nats"](t)

	other, err := NewStore(kvs[1])
	require.NoError(t, err)
	wrapped := &interleavingKV{KV: kvs[0], between: func() {
		_, err := other.Append(ctx, item(2))
		require.NoError(t, err)
	}}
	s, err := NewStore(wrapped)
	require.NoError(t, err)

	items, err := s.Append(ctx, item(1))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "CODE-1", items[0].Output)
	assert.Equal(t, "CODE-2", items[1].Output)

	items, _, err = other.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestStore_PersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	ctx := context.Background()

	kv, err := storage.NewFileKV(path)
	require.NoError(t, err)
	first, err := NewStore(kv)
	require.NoError(t, err)
	_, _, err = first.SetLimit(ctx, 5)
	require.NoError(t, err)
	_, err = first.Append(ctx, item(1))
	require.NoError(t, err)

	kv2, err := storage.NewFileKV(path)
	require.NoError(t, err)
	second, err := NewStore(kv2)
	require.NoError(t, err)

	items, limit, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)
	require.Len(t, items, 1)
	assert.Equal(t, item(1), items[0])
}

func TestStore_Watch(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := s.Watch(ctx)
	require.NoError(t, err)

	_, err = s.Append(context.Background(), item(1))
	require.NoError(t, err)

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
}

func TestStore_Spans(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	s, _ := newStore(t, WithTracerProvider(tel.TracerProvider()))
	ctx := context.Background()

	_, err := s.Append(ctx, item(1))
	require.NoError(t, err)
	_, _, err = s.Load(ctx)
	require.NoError(t, err)

	tel.AssertSpanExists(t, "history.append")
	tel.AssertSpanAttribute(t, "history.append", "kind", "encode")
	tel.AssertSpanAttribute(t, "history.load", "history.size", int64(1))
}
