package pinterest

import (
	"context"
	"strings"
	"time"
)

// Namespace separates independent cache domains. The same query may live in
// both namespaces with unrelated state.
type Namespace string

const (
	NamespaceImage Namespace = "image"
	NamespaceGif   Namespace = "gif"
)

func (n Namespace) Valid() bool {
	return n == NamespaceImage || n == NamespaceGif
}

// ResultKind is serialized as the "type" field of the on-disk cache.
type ResultKind string

const (
	KindImage ResultKind = "image"
	KindGif   ResultKind = "gif"
)

// ResultRecord points to a media artifact downloaded to local disk.
type ResultRecord struct {
	Location string     `json:"filePath"`
	Kind     ResultKind `json:"type"`
}

// CacheEntry holds the rotating results of one normalized query.
// Results is never empty and Cursor is always a valid index into it.
type CacheEntry struct {
	Query     string
	CreatedAt time.Time
	Results   []ResultRecord
	Cursor    int
}

// Current returns the record the cursor points at.
func (e CacheEntry) Current() ResultRecord {
	return e.Results[e.Cursor]
}

// Advance returns a copy with the cursor moved one step, wrapping around.
func (e CacheEntry) Advance() CacheEntry {
	e.Cursor = (e.Cursor + 1) % len(e.Results)
	return e
}

// Expired reports whether the entry is outside the validity window at now.
func (e CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) >= ttl
}

// NewCacheEntry builds the entry stored after a fresh fetch. The first record
// is handed back right away, so the cursor starts at the second one.
func NewCacheEntry(query string, results []ResultRecord, now time.Time) CacheEntry {
	copied := make([]ResultRecord, len(results))
	copy(copied, results)
	return CacheEntry{
		Query:     query,
		CreatedAt: now,
		Results:   copied,
		Cursor:    1 % len(copied),
	}
}

// Entries maps normalized query to its cache entry.
type Entries map[string]CacheEntry

// Clone returns a shallow copy of the map. Entries are values so the copy is
// safe to mutate.
func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// NormalizeQuery lowercases and trims a user query into a cache key.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// FetchResult is what a caller receives for a query.
type FetchResult struct {
	Record    ResultRecord `json:"record"`
	FromCache bool         `json:"from_cache"`
}

// SearchTool performs the network search and download for one namespace and
// returns a flat list of local artifacts.
type SearchTool interface {
	Search(ctx context.Context, query string, maxResults int) ([]ResultRecord, error)
}

// CacheBackend persists the serialized entries of one namespace.
// Read returns (nil, nil) when nothing was stored yet.
type CacheBackend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Name() string
}

// BackendLocker is implemented by backends shared between processes. Lock
// returns a release function.
type BackendLocker interface {
	Lock(ctx context.Context) (func(), error)
}

type NamespaceStats struct {
	Namespace Namespace `json:"namespace"`
	Entries   int       `json:"entries"`
	Results   int       `json:"results"`
}

type CacheStats struct {
	Namespaces []NamespaceStats `json:"namespaces"`
	TempSize   int64            `json:"temp_size"`
	HumanSize  string           `json:"human_size"`
}

type SweepReport struct {
	Removed     map[Namespace]int `json:"removed"`
	TempRemoved int               `json:"temp_removed"`
	TempFreed   int64             `json:"temp_freed"`
	HumanFreed  string            `json:"human_freed"`
}

type SearchRequest struct {
	Query     string    `json:"q" query:"q"`
	Namespace Namespace `json:"type" query:"type"`
}

type ISearchUsecase interface {
	// FetchNext serves the next rotated record for query, searching on a miss.
	FetchNext(ctx context.Context, ns Namespace, query string) (FetchResult, error)
	// EnsureFresh re-fetches when a cached record's artifact is gone.
	EnsureFresh(ctx context.Context, ns Namespace, query string, result FetchResult) (FetchResult, error)
	// Resolve is FetchNext followed by EnsureFresh.
	Resolve(ctx context.Context, ns Namespace, query string) (FetchResult, error)
	Invalidate(ctx context.Context, ns Namespace, query string) (bool, error)
}

type IJanitorUsecase interface {
	SweepNow(ctx context.Context) map[Namespace]int
	CleanupTempFiles(ctx context.Context, maxAge time.Duration) (int, int64)
	RunOnce(ctx context.Context) SweepReport
	Stats(ctx context.Context) (CacheStats, error)
	StartBackgroundSweep(ctx context.Context) error
	Stop()
}
