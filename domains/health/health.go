package health

import (
	"context"
	"time"
)

type EntityType string

const (
	EntityTool  EntityType = "external_tool"
	EntityStore EntityType = "cache_store"
)

type Status string

const (
	StatusOk      Status = "OK"
	StatusError   Status = "ERROR"
	StatusUnknown Status = "UNKNOWN"
)

type HealthRecord struct {
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	Status      Status     `json:"status"`
	LastMessage string     `json:"last_message"`
	LastChecked time.Time  `json:"last_checked"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
}

// Check probes one dependency. A nil error means healthy.
type Check struct {
	EntityType EntityType
	EntityID   string
	Probe      func(ctx context.Context) error
}

type IHealthUsecase interface {
	CheckAll(ctx context.Context) []HealthRecord
	GetStatus(ctx context.Context) []HealthRecord
	StartPeriodicChecks(ctx context.Context, interval time.Duration)
}
