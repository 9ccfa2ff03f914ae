package searchcache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-sticker/domains/pinterest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFileCache(t *testing.T, clock *fakeClock) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database", "pinterest-cache.json")
	return New(pinterest.NamespaceImage, NewFileBackend(path), WithClock(clock.Now)), path
}

func records(locations ...string) []pinterest.ResultRecord {
	out := make([]pinterest.ResultRecord, 0, len(locations))
	for _, l := range locations {
		out = append(out, pinterest.ResultRecord{Location: l, Kind: pinterest.KindImage})
	}
	return out
}

func TestCache_LoadMissingFileIsEmpty(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache, _ := newFileCache(t, clock)

	entries := cache.Load(context.Background())
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestCache_LoadCorruptFileIsEmpty(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache, path := newFileCache(t, clock)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	entries := cache.Load(context.Background())
	assert.Empty(t, entries)
}

func TestCache_SaveWritesCompatibleSchema(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1700000000000)}
	cache, path := newFileCache(t, clock)
	ctx := context.Background()

	entries := pinterest.Entries{
		"gato fofo": pinterest.NewCacheEntry("gato fofo", []pinterest.ResultRecord{
			{Location: "/tmp/a.jpg", Kind: pinterest.KindImage},
			{Location: "/tmp/b.gif", Kind: pinterest.KindGif},
		}, clock.Now()),
	}
	cache.Save(ctx, entries)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	entry := decoded["gato fofo"]
	require.NotNil(t, entry)
	assert.EqualValues(t, 1700000000000, entry["timestamp"])
	assert.EqualValues(t, 1, entry["currentIndex"])

	results := entry["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "/tmp/a.jpg", first["filePath"])
	assert.Equal(t, "image", first["type"])
	assert.Equal(t, "gif", results[1].(map[string]any)["type"])

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestCache_LoadReadsExistingFile(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1700000000000)}
	cache, path := newFileCache(t, clock)

	legacy := `{
  "cats": {
    "timestamp": 1699999990000,
    "results": [
      {"filePath": "/tmp/1.jpg", "type": "image"},
      {"filePath": "/tmp/2.webp", "type": "gif"}
    ],
    "currentIndex": 1
  },
  "empty": {"timestamp": 1699999990000, "results": [], "currentIndex": 0},
  "bad-cursor": {"timestamp": 1699999990000, "results": [{"filePath": "/tmp/x.png", "type": "image"}], "currentIndex": 7}
}`
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	entries := cache.Load(context.Background())
	require.Len(t, entries, 2)

	cats := entries["cats"]
	assert.Equal(t, "cats", cats.Query)
	assert.Equal(t, 1, cats.Cursor)
	assert.Equal(t, pinterest.KindGif, cats.Current().Kind)
	assert.Equal(t, time.UnixMilli(1699999990000), cats.CreatedAt)

	assert.Equal(t, 0, entries["bad-cursor"].Cursor)
	_, ok := entries["empty"]
	assert.False(t, ok)
}

func TestCache_SweepExpired(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache, _ := newFileCache(t, clock)

	entries := pinterest.Entries{
		"fresh": pinterest.NewCacheEntry("fresh", records("a"), clock.Now().Add(-10*time.Minute)),
		"stale": pinterest.NewCacheEntry("stale", records("b"), clock.Now().Add(-31*time.Minute)),
	}

	swept := cache.SweepExpired(entries)
	assert.Len(t, swept, 1)
	assert.Contains(t, swept, "fresh")
	assert.Len(t, entries, 2, "input map must not be modified")
}

func TestCache_MutatePersistsSweepAndChanges(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache, _ := newFileCache(t, clock)
	ctx := context.Background()

	cache.Save(ctx, pinterest.Entries{
		"old": pinterest.NewCacheEntry("old", records("a"), clock.Now().Add(-time.Hour)),
	})

	removed := cache.Mutate(ctx, func(entries pinterest.Entries) bool {
		entries["new"] = pinterest.NewCacheEntry("new", records("b", "c"), clock.Now())
		return true
	})
	assert.Equal(t, 1, removed)

	stored := cache.Load(ctx)
	assert.Len(t, stored, 1)
	assert.Contains(t, stored, "new")
}

func TestCache_MutateSerializesWriters(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache, _ := newFileCache(t, clock)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			cache.Mutate(ctx, func(entries pinterest.Entries) bool {
				entries[key] = pinterest.NewCacheEntry(key, records(key), clock.Now())
				return true
			})
		}(i)
	}
	wg.Wait()

	assert.Len(t, cache.Load(ctx), writers, "no writer update may be lost")
}

type failingBackend struct {
	readErr  error
	writeErr error
	writes   int
}

func (f *failingBackend) Name() string { return "failing" }

func (f *failingBackend) Read(ctx context.Context) ([]byte, error) {
	return nil, f.readErr
}

func (f *failingBackend) Write(ctx context.Context, data []byte) error {
	f.writes++
	return f.writeErr
}

func TestCache_StoreErrorsAreAbsorbed(t *testing.T) {
	backend := &failingBackend{readErr: errors.New("disk gone"), writeErr: errors.New("read-only")}
	cache := New(pinterest.NamespaceGif, backend)
	ctx := context.Background()

	assert.Empty(t, cache.Load(ctx))
	assert.NotPanics(t, func() {
		cache.Save(ctx, pinterest.Entries{"q": pinterest.NewCacheEntry("q", records("a"), time.Now())})
	})
	assert.Equal(t, 1, backend.writes)
}

func TestCache_MutateSkipsWriteWhenUnchanged(t *testing.T) {
	backend := &failingBackend{}
	cache := New(pinterest.NamespaceImage, backend)

	cache.Mutate(context.Background(), func(entries pinterest.Entries) bool { return false })
	assert.Equal(t, 0, backend.writes)
}

type unlockableBackend struct {
	failingBackend
	lockErr error
}

func (u *unlockableBackend) Lock(ctx context.Context) (func(), error) {
	return nil, u.lockErr
}

func TestCache_MutateSkipsCycleWithoutStoreLock(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	backend := &unlockableBackend{lockErr: errors.New("lock acquisition timed out after max retries")}
	cache := New(pinterest.NamespaceImage, backend, WithClock(clock.Now))

	called := false
	removed := cache.Mutate(context.Background(), func(entries pinterest.Entries) bool {
		called = true
		entries["cats"] = pinterest.NewCacheEntry("cats", records("a"), clock.Now())
		return true
	})

	assert.False(t, called)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 0, backend.writes)
}
