package searchcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-sticker/domains/pinterest"
)

// DefaultTTL is how long a fetched result list stays servable.
const DefaultTTL = 30 * time.Minute

// Cache is the durable query -> rotating results map of one namespace.
// Store I/O failures never reach callers: a failed load yields an empty map
// and a failed save only loses that write. Both are logged.
type Cache struct {
	namespace pinterest.Namespace
	backend   pinterest.CacheBackend
	ttl       time.Duration
	now       func() time.Time
	tag       string

	mu sync.Mutex
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(ns pinterest.Namespace, backend pinterest.CacheBackend, opts ...Option) *Cache {
	c := &Cache{
		namespace: ns,
		backend:   backend,
		ttl:       DefaultTTL,
		now:       time.Now,
		tag:       logTag(ns),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func logTag(ns pinterest.Namespace) string {
	if ns == pinterest.NamespaceGif {
		return "[PINTEREST-GIF]"
	}
	return "[PINTEREST]"
}

func (c *Cache) Namespace() pinterest.Namespace {
	return c.namespace
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) Now() time.Time {
	return c.now()
}

// Load reads the stored map. Missing or corrupt data yields an empty map.
func (c *Cache) Load(ctx context.Context) pinterest.Entries {
	data, err := c.backend.Read(ctx)
	if err != nil {
		logrus.WithError(fmt.Errorf("%w: %v", pinterest.ErrStoreIO, err)).
			Errorf("%s Failed to load cache from %s", c.tag, c.backend.Name())
		return make(pinterest.Entries)
	}

	entries, err := decodeEntries(data)
	if err != nil {
		logrus.WithError(err).Errorf("%s Cache at %s is corrupt, starting empty", c.tag, c.backend.Name())
		return make(pinterest.Entries)
	}
	return entries
}

// Save replaces the stored map.
func (c *Cache) Save(ctx context.Context, entries pinterest.Entries) {
	data, err := encodeEntries(entries)
	if err != nil {
		logrus.WithError(err).Errorf("%s Failed to encode cache", c.tag)
		return
	}
	if err := c.backend.Write(ctx, data); err != nil {
		logrus.WithError(fmt.Errorf("%w: %v", pinterest.ErrStoreIO, err)).
			Errorf("%s Failed to save cache to %s", c.tag, c.backend.Name())
	}
}

// SweepExpired returns a new map holding only entries inside the TTL window.
func (c *Cache) SweepExpired(entries pinterest.Entries) pinterest.Entries {
	now := c.now()
	cleaned := make(pinterest.Entries, len(entries))
	for key, e := range entries {
		if !e.Expired(now, c.ttl) {
			cleaned[key] = e
		}
	}
	return cleaned
}

// Snapshot returns the live (non-expired) entries without writing anything.
func (c *Cache) Snapshot(ctx context.Context) pinterest.Entries {
	return c.SweepExpired(c.Load(ctx))
}

// Mutate runs one load -> sweep -> fn -> save cycle while holding the
// namespace lock. fn receives a private map it may change in place and
// reports whether it did. The map is written back when fn changed it or when
// the sweep dropped something. Mutate returns how many entries expired.
//
// When a shared store cannot be locked the cycle is skipped entirely: fn is
// not called and nothing is written, same as any other absorbed store error.
func (c *Cache) Mutate(ctx context.Context, fn func(entries pinterest.Entries) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if locker, ok := c.backend.(pinterest.BackendLocker); ok {
		release, err := locker.Lock(ctx)
		if err != nil {
			logrus.WithError(fmt.Errorf("%w: %v", pinterest.ErrStoreIO, err)).
				Warnf("%s Skipping cache update, store lock on %s unavailable", c.tag, c.backend.Name())
			return 0
		}
		defer release()
	}

	loaded := c.Load(ctx)
	swept := c.SweepExpired(loaded)
	removed := len(loaded) - len(swept)

	changed := false
	if fn != nil {
		changed = fn(swept)
	}

	if changed || removed > 0 {
		c.Save(ctx, swept)
	}
	return removed
}
