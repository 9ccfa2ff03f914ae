package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-sticker/config"
	domainPinterest "github.com/AzielCF/az-sticker/domains/pinterest"
	"github.com/AzielCF/az-sticker/infrastructure/searchcache"
	"github.com/AzielCF/az-sticker/pkg/metrics"
)

// Temp entries owned by the search and download tools.
var tempPrefixes = []string{"pinterest_", "instagram_"}

type janitorService struct {
	caches     []*searchcache.Cache
	tempDir    string
	tempMaxAge time.Duration
	schedule   string
	recorder   *metrics.Recorder
	now        func() time.Time

	mu        sync.Mutex
	scheduler *cron.Cron
}

type JanitorOption func(*janitorService)

func WithJanitorSchedule(spec string) JanitorOption {
	return func(s *janitorService) {
		if strings.TrimSpace(spec) != "" {
			s.schedule = spec
		}
	}
}

func WithTempMaxAge(d time.Duration) JanitorOption {
	return func(s *janitorService) {
		s.tempMaxAge = d
	}
}

func WithJanitorRecorder(rec *metrics.Recorder) JanitorOption {
	return func(s *janitorService) {
		s.recorder = rec
	}
}

func WithJanitorClock(now func() time.Time) JanitorOption {
	return func(s *janitorService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewJanitorService(tempDir string, caches []*searchcache.Cache, opts ...JanitorOption) domainPinterest.IJanitorUsecase {
	s := &janitorService{
		caches:     caches,
		tempDir:    tempDir,
		tempMaxAge: config.JanitorTempMaxAge,
		schedule:   config.JanitorSchedule,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *janitorService) SweepNow(ctx context.Context) map[domainPinterest.Namespace]int {
	removed := make(map[domainPinterest.Namespace]int, len(s.caches))
	for _, c := range s.caches {
		n := c.Mutate(ctx, nil)
		removed[c.Namespace()] += n
		s.recorder.ObserveSwept(string(c.Namespace()), n)
		if n > 0 {
			logrus.Infof("[JANITOR] Removed %d expired entries from %s cache", n, c.Namespace())
		} else {
			logrus.Debugf("[JANITOR] No expired entries in %s cache", c.Namespace())
		}
	}
	return removed
}

// CleanupTempFiles removes tool output older than maxAge from the temp dir.
// A zero maxAge removes everything the tools own.
func (s *janitorService) CleanupTempFiles(ctx context.Context, maxAge time.Duration) (int, int64) {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).Warnf("[JANITOR] Failed to read temp dir %s", s.tempDir)
		}
		return 0, 0
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	var freed int64

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !ownedByTools(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if maxAge > 0 && info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.tempDir, entry.Name())
		size, _ := pathSize(path)
		if err := os.RemoveAll(path); err != nil {
			logrus.WithError(err).Warnf("[JANITOR] Failed to remove %s", path)
			continue
		}
		removed++
		freed += size
	}

	if removed > 0 {
		logrus.Infof("[JANITOR] Removed %d temp entries (%s)", removed, humanize.Bytes(uint64(freed)))
	}
	return removed, freed
}

func (s *janitorService) RunOnce(ctx context.Context) domainPinterest.SweepReport {
	removed := s.SweepNow(ctx)
	count, freed := s.CleanupTempFiles(ctx, s.tempMaxAge)
	return domainPinterest.SweepReport{
		Removed:     removed,
		TempRemoved: count,
		TempFreed:   freed,
		HumanFreed:  humanize.Bytes(uint64(freed)),
	}
}

func (s *janitorService) Stats(ctx context.Context) (domainPinterest.CacheStats, error) {
	stats := domainPinterest.CacheStats{Namespaces: make([]domainPinterest.NamespaceStats, 0, len(s.caches))}
	for _, c := range s.caches {
		entries := c.Snapshot(ctx)
		results := 0
		for _, e := range entries {
			results += len(e.Results)
		}
		stats.Namespaces = append(stats.Namespaces, domainPinterest.NamespaceStats{
			Namespace: c.Namespace(),
			Entries:   len(entries),
			Results:   results,
		})
	}

	dirEntries, err := os.ReadDir(s.tempDir)
	if err != nil && !os.IsNotExist(err) {
		return stats, fmt.Errorf("failed to read temp dir: %w", err)
	}
	for _, entry := range dirEntries {
		if !ownedByTools(entry.Name()) {
			continue
		}
		size, _ := pathSize(filepath.Join(s.tempDir, entry.Name()))
		stats.TempSize += size
	}
	stats.HumanSize = humanize.Bytes(uint64(stats.TempSize))
	return stats, nil
}

// StartBackgroundSweep runs RunOnce on the configured cron schedule until ctx
// is done or Stop is called. Calling it twice is a no-op.
func (s *janitorService) StartBackgroundSweep(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return nil
	}

	scheduler := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := scheduler.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", s.schedule, err)
	}
	scheduler.Start()
	s.scheduler = scheduler
	logrus.Infof("[JANITOR] Background sweep scheduled (%s)", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *janitorService) Stop() {
	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()

	if scheduler == nil {
		return
	}
	<-scheduler.Stop().Done()
	logrus.Info("[JANITOR] Background sweep stopped")
}

func ownedByTools(name string) bool {
	for _, prefix := range tempPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func pathSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// cronLogger routes robfig/cron output through logrus.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logrus.WithFields(cronFields(keysAndValues)).Debugf("[JANITOR] %s", msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logrus.WithError(err).WithFields(cronFields(keysAndValues)).Errorf("[JANITOR] %s", msg)
}

func cronFields(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
