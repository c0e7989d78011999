// Package cost provides a read-only embedding spend projection over recent
// reindex job history.
package cost

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/reindex"
)

// Estimate is an aggregate projection over completed reindex jobs.
type Estimate struct {
	JobsConsidered int     `json:"jobs_considered"`
	TotalVectors   int     `json:"total_vectors"`
	TotalTokens    int64   `json:"total_tokens"`
	EstimatedCost  float64 `json:"estimated_cost"`
	Currency       string  `json:"currency"`
	Model          string  `json:"model"`
}

// Estimator derives cost projections from the job store. It is read-only:
// estimating never mutates job history and never triggers a reindex.
type Estimator struct {
	jobs reindex.JobStore
	cfg  config.ReindexConfig
}

// NewEstimator creates a cost estimator.
func NewEstimator(jobs reindex.JobStore, cfg config.ReindexConfig) (*Estimator, error) {
	if jobs == nil {
		return nil, errors.New("job store is required")
	}
	return &Estimator{jobs: jobs, cfg: cfg}, nil
}

// Estimate rolls up the last completed jobs within the configured history
// limit. Failed and in-flight jobs carry no generated vectors worth
// billing and are skipped.
func (e *Estimator) Estimate(ctx context.Context) (Estimate, error) {
	jobs, err := e.jobs.GetRecentJobs(ctx, e.cfg.HistoryLimit)
	if err != nil {
		return Estimate{}, fmt.Errorf("reading job history: %w", err)
	}

	est := Estimate{
		Currency: "USD",
		Model:    e.cfg.EmbeddingModel,
	}
	for _, job := range jobs {
		if job.Status != reindex.StatusCompleted {
			continue
		}
		est.JobsConsidered++
		est.TotalVectors += job.VectorsGenerated
	}

	est.TotalTokens = int64(est.TotalVectors) * int64(e.cfg.AvgTokensPerVector)
	est.EstimatedCost = reindex.EstimateCost(est.TotalVectors, e.cfg.AvgTokensPerVector, e.cfg.CostPer1KTokens)

	return est, nil
}
