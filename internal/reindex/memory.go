package reindex

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory JobStore. It backs tests and ephemeral
// deployments; durable deployments use the SQLite store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

// CreateJob persists a new job record.
func (m *MemoryStore) CreateJob(_ context.Context, job Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	m.jobs[job.ID] = job
	return nil
}

// UpdateJob replaces a job record. Terminal jobs are frozen.
func (m *MemoryStore) UpdateJob(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.jobs[job.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	if cur.Status.Terminal() && cur.Status != job.Status {
		return fmt.Errorf("%w: %s is %s", ErrJobFinalized, job.ID, cur.Status)
	}
	m.jobs[job.ID] = job
	return nil
}

// GetJob returns a job by id.
func (m *MemoryStore) GetJob(_ context.Context, id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// GetRecentJobs returns up to limit jobs, most recent first.
func (m *MemoryStore) GetRecentJobs(_ context.Context, limit int) ([]Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartTime.Equal(jobs[j].StartTime) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].StartTime.After(jobs[j].StartTime)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}
