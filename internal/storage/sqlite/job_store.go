package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ragd/internal/reindex"
)

// jobStore implements reindex.JobStore.
type jobStore struct {
	store *Store
}

var _ reindex.JobStore = (*jobStore)(nil)

// CreateJob persists a new job record. Duplicate ids are rejected.
func (s *jobStore) CreateJob(ctx context.Context, job reindex.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO reindex_jobs
			(id, status, start_time, end_time, documents_processed, vectors_generated,
			 cost_estimate, stale_doc_rate, error_count, trigger_type, version, model_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, string(job.Status), job.StartTime.UTC().Format(time.RFC3339Nano),
		formatNullableTime(job.EndTime), job.DocumentsProcessed, job.VectorsGenerated,
		job.CostEstimate, job.StaleDocRate, job.ErrorCount,
		string(job.Metadata.TriggerType), job.Metadata.Version, job.Metadata.ModelUsed)

	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// UpdateJob replaces a job record. The WHERE clause freezes terminal rows:
// a completed or failed job only accepts updates that keep its status.
func (s *jobStore) UpdateJob(ctx context.Context, job reindex.Job) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE reindex_jobs SET
			status = ?,
			start_time = ?,
			end_time = ?,
			documents_processed = ?,
			vectors_generated = ?,
			cost_estimate = ?,
			stale_doc_rate = ?,
			error_count = ?,
			trigger_type = ?,
			version = ?,
			model_used = ?
		WHERE id = ? AND (status NOT IN ('completed', 'failed') OR status = ?)
	`, string(job.Status), job.StartTime.UTC().Format(time.RFC3339Nano),
		formatNullableTime(job.EndTime), job.DocumentsProcessed, job.VectorsGenerated,
		job.CostEstimate, job.StaleDocRate, job.ErrorCount,
		string(job.Metadata.TriggerType), job.Metadata.Version, job.Metadata.ModelUsed,
		job.ID, string(job.Status))

	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetJob(ctx, job.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %s", reindex.ErrJobFinalized, job.ID)
	}
	return nil
}

// GetJob retrieves a job by id.
func (s *jobStore) GetJob(ctx context.Context, id string) (reindex.Job, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, status, start_time, end_time, documents_processed, vectors_generated,
		       cost_estimate, stale_doc_rate, error_count, trigger_type, version, model_used
		FROM reindex_jobs WHERE id = ?
	`, id)

	job, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return reindex.Job{}, fmt.Errorf("%w: %s", reindex.ErrJobNotFound, id)
	}
	if err != nil {
		return reindex.Job{}, fmt.Errorf("scanning job: %w", err)
	}
	return job, nil
}

// GetRecentJobs returns up to limit jobs, most recent first.
func (s *jobStore) GetRecentJobs(ctx context.Context, limit int) ([]reindex.Job, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, status, start_time, end_time, documents_processed, vectors_generated,
		       cost_estimate, stale_doc_rate, error_count, trigger_type, version, model_used
		FROM reindex_jobs
		ORDER BY start_time DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []reindex.Job //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	return jobs, nil
}

// scanJob scans one job row through the given Scan function, shared
// between *sql.Row and *sql.Rows.
func scanJob(scan func(dest ...any) error) (reindex.Job, error) {
	var job reindex.Job
	var status, trigger, startTime string
	var endTime sql.NullString

	if err := scan(&job.ID, &status, &startTime, &endTime,
		&job.DocumentsProcessed, &job.VectorsGenerated,
		&job.CostEstimate, &job.StaleDocRate, &job.ErrorCount,
		&trigger, &job.Metadata.Version, &job.Metadata.ModelUsed); err != nil {
		return reindex.Job{}, err
	}

	job.Status = reindex.Status(status)
	job.Metadata.TriggerType = reindex.TriggerType(trigger)

	st, err := time.Parse(time.RFC3339Nano, startTime)
	if err != nil {
		return reindex.Job{}, fmt.Errorf("parsing start_time: %w", err)
	}
	job.StartTime = st
	job.EndTime = parseNullableTime(endTime)

	return job, nil
}
