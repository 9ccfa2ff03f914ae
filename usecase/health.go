package usecase

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/AzielCF/az-sticker/domains/health"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type healthService struct {
	checks  []health.Check
	mu      sync.RWMutex
	records map[string]health.HealthRecord
	now     func() time.Time
}

func NewHealthService(checks ...health.Check) health.IHealthUsecase {
	return &healthService{
		checks:  checks,
		records: make(map[string]health.HealthRecord),
		now:     time.Now,
	}
}

// BinaryCheck reports whether name can be found on PATH.
func BinaryCheck(name string) health.Check {
	return health.Check{
		EntityType: health.EntityTool,
		EntityID:   name,
		Probe: func(ctx context.Context) error {
			_, err := exec.LookPath(name)
			return err
		},
	}
}

// WritableDirCheck creates and removes a probe file in dir.
func WritableDirCheck(dir string) health.Check {
	return health.Check{
		EntityType: health.EntityStore,
		EntityID:   dir,
		Probe: func(ctx context.Context) error {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
			probe := filepath.Join(dir, ".health-"+uuid.NewString())
			if err := os.WriteFile(probe, nil, 0644); err != nil {
				return err
			}
			return os.Remove(probe)
		},
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func PingCheck(id string, p pinger) health.Check {
	return health.Check{
		EntityType: health.EntityStore,
		EntityID:   id,
		Probe:      p.Ping,
	}
}

func recordKey(t health.EntityType, id string) string {
	return string(t) + ":" + id
}

func (s *healthService) run(ctx context.Context, check health.Check) health.HealthRecord {
	now := s.now()
	record := health.HealthRecord{
		EntityType:  check.EntityType,
		EntityID:    check.EntityID,
		Status:      health.StatusOk,
		LastMessage: "ok",
		LastChecked: now,
	}

	key := recordKey(check.EntityType, check.EntityID)
	s.mu.RLock()
	prev, seen := s.records[key]
	s.mu.RUnlock()
	if seen {
		record.LastSuccess = prev.LastSuccess
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := check.Probe(probeCtx); err != nil {
		record.Status = health.StatusError
		record.LastMessage = fmt.Sprintf("%v", err)
		logrus.Warnf("[HEALTH] %s %s failing: %v", check.EntityType, check.EntityID, err)
	} else {
		record.LastSuccess = &now
	}

	s.mu.Lock()
	s.records[key] = record
	s.mu.Unlock()
	return record
}

func (s *healthService) CheckAll(ctx context.Context) []health.HealthRecord {
	results := make([]health.HealthRecord, 0, len(s.checks))
	for _, check := range s.checks {
		results = append(results, s.run(ctx, check))
	}
	return results
}

// GetStatus returns the last known record of every check, UNKNOWN for
// checks that never ran.
func (s *healthService) GetStatus(ctx context.Context) []health.HealthRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]health.HealthRecord, 0, len(s.checks))
	for _, check := range s.checks {
		record, ok := s.records[recordKey(check.EntityType, check.EntityID)]
		if !ok {
			record = health.HealthRecord{
				EntityType: check.EntityType,
				EntityID:   check.EntityID,
				Status:     health.StatusUnknown,
			}
		}
		results = append(results, record)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].EntityType < results[j].EntityType
	})
	return results
}

func (s *healthService) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	logrus.Infof("[HEALTH] starting periodic health checks loop (interval: %s)", interval)
	ticker := time.NewTicker(interval)

	go func() {
		logrus.Debug("[HEALTH] performing initial health check")
		s.CheckAll(ctx)
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				s.CheckAll(ctx)
			}
		}
	}()
}
