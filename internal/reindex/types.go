// Package reindex rebuilds the chunk index as tracked asynchronous jobs
// and reports staleness and cost metrics for each run.
package reindex

import (
	"context"
	"errors"
	"time"
)

// Status is a reindex job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final. Terminal jobs are frozen;
// a completed job never becomes failed and vice versa.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// TriggerType records what initiated a job.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
)

// JobMetadata carries immutable facts about a run.
type JobMetadata struct {
	TriggerType TriggerType `json:"trigger_type"`
	Version     string      `json:"version"`
	ModelUsed   string      `json:"model_used"`
}

// Job is one reindex run. The id is assigned and persisted before any
// chunking work starts so callers can track the job immediately.
type Job struct {
	ID                 string      `json:"id"`
	Status             Status      `json:"status"`
	StartTime          time.Time   `json:"start_time"`
	EndTime            *time.Time  `json:"end_time,omitempty"`
	DocumentsProcessed int         `json:"documents_processed"`
	VectorsGenerated   int         `json:"vectors_generated"`
	CostEstimate       float64     `json:"cost_estimate"`
	StaleDocRate       float64     `json:"stale_doc_rate"`
	ErrorCount         int         `json:"error_count"`
	Metadata           JobMetadata `json:"metadata"`
}

// SLAReport states whether a run met the staleness target.
type SLAReport struct {
	Compliant    bool    `json:"compliant"`
	StaleDocRate float64 `json:"stale_doc_rate"`
	Threshold    float64 `json:"threshold"`
}

// StatusReport is the operator-facing view of the reindex pipeline.
type StatusReport struct {
	LastRun       string    `json:"last_run"`
	NextScheduled time.Time `json:"next_scheduled"`
	SLATarget     float64   `json:"sla_target"`
	SLA           SLAReport `json:"sla"`
	RecentJobs    []Job     `json:"recent_jobs"`
}

var (
	// ErrReindexInFlight is returned when a trigger arrives while another
	// run is active. Overlapping rebuilds would corrupt stale-rate and
	// counter computations.
	ErrReindexInFlight = errors.New("reindex already in flight")

	// ErrJobNotFound is returned when a job id is unknown.
	ErrJobNotFound = errors.New("reindex job not found")

	// ErrJobFinalized is returned on attempts to change a terminal job's
	// status.
	ErrJobFinalized = errors.New("reindex job already finalized")
)

// JobStore persists job records with at-least-once durability. The core
// does not prescribe the storage technology.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id string) (Job, error)
	GetRecentJobs(ctx context.Context, limit int) ([]Job, error)
}
