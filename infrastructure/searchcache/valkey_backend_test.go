package searchcache

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-sticker/domains/pinterest"
	"github.com/AzielCF/az-sticker/infrastructure/valkey"
)

func newTestValkey(t *testing.T) (*valkey.Client, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client, err := valkey.NewClient(valkey.Config{
		Address:      server.Addr(),
		KeyPrefix:    "test",
		DisableCache: true,
		AlwaysRESP2:  true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, server
}

func TestValkeyBackend_RoundTrip(t *testing.T) {
	client, server := newTestValkey(t)
	backend := NewValkeyBackend(client, pinterest.NamespaceGif)
	ctx := context.Background()

	data, err := backend.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, backend.Write(ctx, []byte(`{"a":1}`)))
	data, err = backend.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	assert.Equal(t, "test:pinterest:gif", backend.Name())
	assert.True(t, server.Exists("test:pinterest:gif"))
}

func TestValkeyBackend_LockIsExclusive(t *testing.T) {
	client, server := newTestValkey(t)
	backend := NewValkeyBackend(client, pinterest.NamespaceImage)
	ctx := context.Background()

	release, err := backend.Lock(ctx)
	require.NoError(t, err)
	assert.True(t, server.Exists("test:pinterest:image:lock"))

	shortCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = backend.Lock(shortCtx)
	assert.Error(t, err)

	release()
	assert.False(t, server.Exists("test:pinterest:image:lock"))

	release2, err := backend.Lock(ctx)
	require.NoError(t, err)
	release2()
}

func TestValkeyBackend_HeldLockBlocksMutate(t *testing.T) {
	client, server := newTestValkey(t)
	backend := NewValkeyBackend(client, pinterest.NamespaceImage)
	cache := New(pinterest.NamespaceImage, backend)

	release, err := backend.Lock(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	called := false
	cache.Mutate(ctx, func(entries pinterest.Entries) bool {
		called = true
		entries["cats"] = pinterest.NewCacheEntry("cats", records("a"), time.Now())
		return true
	})

	assert.False(t, called)
	assert.False(t, server.Exists("test:pinterest:image"))
	ttl := server.TTL("test:pinterest:image:lock")
	assert.Greater(t, ttl, 2*time.Second)
}

func TestValkeyBackend_NamespacesAreIsolated(t *testing.T) {
	client, _ := newTestValkey(t)
	clock := &fakeClock{now: time.Now()}
	ctx := context.Background()

	images := New(pinterest.NamespaceImage, NewValkeyBackend(client, pinterest.NamespaceImage), WithClock(clock.Now))
	gifs := New(pinterest.NamespaceGif, NewValkeyBackend(client, pinterest.NamespaceGif), WithClock(clock.Now))

	images.Mutate(ctx, func(entries pinterest.Entries) bool {
		entries["cats"] = pinterest.NewCacheEntry("cats", records("a", "b"), clock.Now())
		return true
	})

	assert.Contains(t, images.Load(ctx), "cats")
	assert.NotContains(t, gifs.Load(ctx), "cats")
}

func TestValkeyBackend_ConcurrentMutate(t *testing.T) {
	client, _ := newTestValkey(t)
	clock := &fakeClock{now: time.Now()}
	ctx := context.Background()

	// Two caches over the same key behave like two bot processes.
	first := New(pinterest.NamespaceImage, NewValkeyBackend(client, pinterest.NamespaceImage), WithClock(clock.Now))
	second := New(pinterest.NamespaceImage, NewValkeyBackend(client, pinterest.NamespaceImage), WithClock(clock.Now))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := first
			if i%2 == 1 {
				c = second
			}
			key := string(rune('a' + i))
			c.Mutate(ctx, func(entries pinterest.Entries) bool {
				entries[key] = pinterest.NewCacheEntry(key, records(key), clock.Now())
				return true
			})
		}(i)
	}
	wg.Wait()

	assert.Len(t, first.Load(ctx), 10)
}
