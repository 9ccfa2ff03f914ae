package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-sticker/config"
	domainPinterest "github.com/AzielCF/az-sticker/domains/pinterest"
	"github.com/AzielCF/az-sticker/infrastructure/searchcache"
	pkgError "github.com/AzielCF/az-sticker/pkg/error"
	"github.com/AzielCF/az-sticker/pkg/metrics"
)

// rotator binds one namespace's cache to the tool that fills it.
type rotator struct {
	cache *searchcache.Cache
	tool  domainPinterest.SearchTool
	tag   string
}

type searchService struct {
	rotators   map[domainPinterest.Namespace]*rotator
	timeout    time.Duration
	maxResults int
	recorder   *metrics.Recorder
	exists     func(path string) bool
}

type SearchOption func(*searchService)

func WithSearchTimeout(d time.Duration) SearchOption {
	return func(s *searchService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMaxResults(n int) SearchOption {
	return func(s *searchService) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

func WithRecorder(rec *metrics.Recorder) SearchOption {
	return func(s *searchService) {
		s.recorder = rec
	}
}

// WithArtifactCheck replaces the os.Stat based existence check.
func WithArtifactCheck(fn func(path string) bool) SearchOption {
	return func(s *searchService) {
		if fn != nil {
			s.exists = fn
		}
	}
}

func NewSearchService(
	imageCache *searchcache.Cache, imageTool domainPinterest.SearchTool,
	gifCache *searchcache.Cache, gifTool domainPinterest.SearchTool,
	opts ...SearchOption,
) domainPinterest.ISearchUsecase {
	s := &searchService{
		rotators: map[domainPinterest.Namespace]*rotator{
			domainPinterest.NamespaceImage: {cache: imageCache, tool: imageTool, tag: "[PINTEREST]"},
			domainPinterest.NamespaceGif:   {cache: gifCache, tool: gifTool, tag: "[PINTEREST-GIF]"},
		},
		timeout:    config.PinterestSearchTimeout,
		maxResults: config.PinterestMaxResults,
		exists:     artifactExists,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func artifactExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (s *searchService) rotatorFor(ns domainPinterest.Namespace) (*rotator, error) {
	r, ok := s.rotators[ns]
	if !ok || r.cache == nil || r.tool == nil {
		return nil, domainPinterest.ErrInvalidNamespace
	}
	return r, nil
}

func (s *searchService) FetchNext(ctx context.Context, ns domainPinterest.Namespace, query string) (domainPinterest.FetchResult, error) {
	start := time.Now()
	result, outcome, err := s.fetchNext(ctx, ns, query)
	s.recorder.ObserveFetch(string(ns), outcome, time.Since(start))
	return result, err
}

func (s *searchService) fetchNext(ctx context.Context, ns domainPinterest.Namespace, query string) (domainPinterest.FetchResult, metrics.FetchOutcome, error) {
	r, err := s.rotatorFor(ns)
	if err != nil {
		return domainPinterest.FetchResult{}, metrics.FetchError, err
	}

	key := domainPinterest.NormalizeQuery(query)
	if key == "" {
		return domainPinterest.FetchResult{}, metrics.FetchError, domainPinterest.ErrEmptyQuery
	}

	var hit domainPinterest.CacheEntry
	found := false
	removed := r.cache.Mutate(ctx, func(entries domainPinterest.Entries) bool {
		entry, ok := entries[key]
		if !ok {
			return false
		}
		hit, found = entry, true
		entries[key] = entry.Advance()
		return true
	})
	s.recorder.ObserveSwept(string(ns), removed)

	if found {
		logrus.Infof("%s Using cached result %d/%d for %q", r.tag, hit.Cursor+1, len(hit.Results), key)
		return domainPinterest.FetchResult{Record: hit.Current(), FromCache: true}, metrics.FetchHit, nil
	}

	logrus.Infof("%s Searching for %q", r.tag, key)
	records, err := s.search(ctx, r, strings.TrimSpace(query))
	if err != nil {
		logrus.WithError(err).Warnf("%s Search failed for %q", r.tag, key)
		return domainPinterest.FetchResult{}, metrics.FetchError, err
	}

	entry := domainPinterest.NewCacheEntry(key, records, r.cache.Now())
	r.cache.Mutate(ctx, func(entries domainPinterest.Entries) bool {
		entries[key] = entry
		return true
	})
	logrus.Infof("%s Cached %d results for %q", r.tag, len(records), key)

	return domainPinterest.FetchResult{Record: records[0], FromCache: false}, metrics.FetchMiss, nil
}

// search runs the tool under the configured budget. Nothing is committed by
// the caller unless this returns at least one record.
func (s *searchService) search(ctx context.Context, r *rotator, query string) ([]domainPinterest.ResultRecord, error) {
	searchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := r.tool.Search(searchCtx, query, s.maxResults)
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return nil, ctxErr
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(searchCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", domainPinterest.ErrExternalToolTimeout, s.timeout, err)
		}
		var generic pkgError.GenericError
		if errors.As(err, &generic) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domainPinterest.ErrExternalToolFailure, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %q", domainPinterest.ErrNoResultsFound, query)
	}
	if len(records) > s.maxResults {
		records = records[:s.maxResults]
	}
	return records, nil
}

func (s *searchService) EnsureFresh(ctx context.Context, ns domainPinterest.Namespace, query string, result domainPinterest.FetchResult) (domainPinterest.FetchResult, error) {
	if s.exists(result.Record.Location) {
		return result, nil
	}
	if !result.FromCache {
		return domainPinterest.FetchResult{}, fmt.Errorf("%w: %s", domainPinterest.ErrFetchProducedNoArtifact, result.Record.Location)
	}

	r, err := s.rotatorFor(ns)
	if err != nil {
		return domainPinterest.FetchResult{}, err
	}
	logrus.Warnf("%s Cached file %s is gone, dropping %q and searching again", r.tag, result.Record.Location, domainPinterest.NormalizeQuery(query))

	if _, err := s.Invalidate(ctx, ns, query); err != nil {
		return domainPinterest.FetchResult{}, err
	}

	fresh, err := s.FetchNext(ctx, ns, query)
	if err != nil {
		return domainPinterest.FetchResult{}, err
	}
	if !s.exists(fresh.Record.Location) {
		return domainPinterest.FetchResult{}, fmt.Errorf("%w: %s", domainPinterest.ErrFetchProducedNoArtifact, fresh.Record.Location)
	}
	return fresh, nil
}

func (s *searchService) Resolve(ctx context.Context, ns domainPinterest.Namespace, query string) (domainPinterest.FetchResult, error) {
	result, err := s.FetchNext(ctx, ns, query)
	if err != nil {
		return domainPinterest.FetchResult{}, err
	}
	return s.EnsureFresh(ctx, ns, query, result)
}

// Invalidate drops the whole entry of query. It reports whether one existed.
func (s *searchService) Invalidate(ctx context.Context, ns domainPinterest.Namespace, query string) (bool, error) {
	r, err := s.rotatorFor(ns)
	if err != nil {
		return false, err
	}
	key := domainPinterest.NormalizeQuery(query)
	if key == "" {
		return false, domainPinterest.ErrEmptyQuery
	}

	existed := false
	removed := r.cache.Mutate(ctx, func(entries domainPinterest.Entries) bool {
		if _, ok := entries[key]; !ok {
			return false
		}
		delete(entries, key)
		existed = true
		return true
	})
	s.recorder.ObserveSwept(string(ns), removed)

	if existed {
		s.recorder.ObserveInvalidation(string(ns))
		logrus.Infof("%s Invalidated cache for %q", r.tag, key)
	}
	return existed, nil
}
