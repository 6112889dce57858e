package models

import (
	"time"

	"github.com/google/uuid"
)

// Sync trigger constants
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Sync status constants
const (
	SyncRunning = "running"
	SyncSuccess = "success"
	SyncPartial = "partial"
	SyncFailed  = "failed"
)

// Per-indicator outcome constants
const (
	IndicatorOK      = "ok"
	IndicatorFailed  = "failed"
	IndicatorSkipped = "skipped"
)

// ConfigLastSyncTime is the app_config key holding the last completed run time.
const ConfigLastSyncTime = "last_sync_time"

// SyncLog is one row per sync run.
type SyncLog struct {
	ID                uuid.UUID            `json:"id"`
	Trigger           string               `json:"trigger"`
	Status            string               `json:"status"`
	StartedAt         time.Time            `json:"started_at"`
	CompletedAt       *time.Time           `json:"completed_at"`
	IndicatorsUpdated int                  `json:"indicators_updated"`
	RecordsAdded      int                  `json:"records_added"`
	RecordsUpdated    int                  `json:"records_updated"`
	ErrorMessage      *string              `json:"error_message"`
	Indicators        []IndicatorSyncEntry `json:"indicators,omitempty"`
}

// IndicatorSyncEntry records what a run did for a single indicator, including
// whether the stored observations came from the live source or seed data.
type IndicatorSyncEntry struct {
	IndicatorID    string  `json:"indicator_id"`
	Provenance     string  `json:"provenance"`
	Status         string  `json:"status"`
	RecordsAdded   int     `json:"records_added"`
	RecordsUpdated int     `json:"records_updated"`
	ErrorMessage   *string `json:"error_message,omitempty"`
}

// SyncResult is returned to the caller that triggered a run.
type SyncResult struct {
	ID                uuid.UUID            `json:"id"`
	Trigger           string               `json:"trigger"`
	Status            string               `json:"status"`
	IndicatorsUpdated int                  `json:"indicatorsUpdated"`
	RecordsAdded      int                  `json:"recordsAdded"`
	RecordsUpdated    int                  `json:"recordsUpdated"`
	DurationMs        int64                `json:"duration"`
	Error             string               `json:"error,omitempty"`
	Indicators        []IndicatorSyncEntry `json:"indicators"`
}
