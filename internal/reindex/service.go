package reindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

const instrumentationName = "github.com/fyrsmithlabs/ragd/internal/reindex"

// Service orchestrates reindex runs over a single corpus.
type Service interface {
	// Trigger starts an asynchronous run and returns the pending job
	// record immediately. A second trigger while a run is active returns
	// ErrReindexInFlight.
	Trigger(ctx context.Context, trigger TriggerType) (Job, error)

	// GetRecentJobs returns up to limit job records, most recent first.
	GetRecentJobs(ctx context.Context, limit int) ([]Job, error)

	// GetStatus returns the operator-facing pipeline view.
	GetStatus(ctx context.Context) (StatusReport, error)

	// Close cancels any running job and waits for it to finalize.
	Close() error
}

type service struct {
	cfg    config.ReindexConfig
	docs   *document.Store
	chunks *chunker.Chunker
	index  *retrieval.Index
	jobs   JobStore
	logger *zap.Logger
	tracer trace.Tracer

	inFlight atomic.Bool
	wg       sync.WaitGroup
	runCtx   context.Context
	cancel   context.CancelFunc
}

// NewService creates a reindex service. One run at a time per corpus is
// enforced with a compare-and-swap on an in-flight flag.
func NewService(
	cfg config.ReindexConfig,
	docs *document.Store,
	chunks *chunker.Chunker,
	index *retrieval.Index,
	jobs JobStore,
	logger *zap.Logger,
) (Service, error) {
	if docs == nil {
		return nil, errors.New("document store is required")
	}
	if chunks == nil {
		return nil, errors.New("chunker is required")
	}
	if index == nil {
		return nil, errors.New("retrieval index is required")
	}
	if jobs == nil {
		return nil, errors.New("job store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &service{
		cfg:    cfg,
		docs:   docs,
		chunks: chunks,
		index:  index,
		jobs:   jobs,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		runCtx: ctx,
		cancel: cancel,
	}, nil
}

func (s *service) Trigger(ctx context.Context, trigger TriggerType) (Job, error) {
	ctx, span := s.tracer.Start(ctx, "reindex.trigger")
	defer span.End()
	span.SetAttributes(attribute.String("trigger", string(trigger)))

	if !s.inFlight.CompareAndSwap(false, true) {
		span.RecordError(ErrReindexInFlight)
		return Job{}, ErrReindexInFlight
	}

	job := Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		StartTime: time.Now().UTC(),
		Metadata: JobMetadata{
			TriggerType: trigger,
			Version:     s.cfg.Version,
			ModelUsed:   s.cfg.EmbeddingModel,
		},
	}

	// The pending record must be durable before the id is handed back,
	// so callers can track the job from the first moment.
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		s.inFlight.Store(false)
		span.RecordError(err)
		return Job{}, fmt.Errorf("persisting job: %w", err)
	}

	s.logger.Info("reindex triggered",
		zap.String("job_id", job.ID),
		zap.String("trigger", string(trigger)),
	)

	s.wg.Add(1)
	go s.run(job)

	return job, nil
}

// run executes one reindex job. It always finalizes the job record, even
// on panic or cancellation, and releases the in-flight flag last so a new
// trigger never observes a half-written terminal record.
func (s *service) run(job Job) {
	defer s.wg.Done()
	defer s.inFlight.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reindex panicked",
				zap.String("job_id", job.ID),
				zap.Any("panic", r),
			)
			s.finalize(job, fmt.Errorf("panic: %v", r))
		}
	}()

	started := time.Now()

	job.Status = StatusRunning
	if err := s.jobs.UpdateJob(context.Background(), job); err != nil {
		s.logger.Error("failed to mark job running", zap.String("job_id", job.ID), zap.Error(err))
	}

	prevEnd := s.lastCompletedEnd()

	// The corpus is listed, chunked, and committed inside the index write
	// section. A concurrent add or remove either lands fully before the
	// list or applies to the rebuilt snapshot after the commit; it can
	// never be half-reflected. Staleness counts against the same listing,
	// so the rate stays within [0,1].
	var (
		docCount   int
		staleCount int
		cancelled  error
	)
	s.index.Rebuild(func() ([]chunker.Chunk, bool) {
		docs := s.docs.List()
		docCount = len(docs)

		all := make([]chunker.Chunk, 0, len(docs))
		for _, doc := range docs {
			if err := s.runCtx.Err(); err != nil {
				cancelled = err
				return nil, false
			}
			if doc.Metadata.LastUpdated.After(prevEnd) {
				staleCount++
			}
			chunks := s.chunks.Chunk(doc)
			all = append(all, chunks...)
			job.DocumentsProcessed++
			job.VectorsGenerated += len(chunks)
		}
		return all, true
	})
	if cancelled != nil {
		s.finalize(job, fmt.Errorf("reindex cancelled: %w", cancelled))
		return
	}

	if docCount > 0 {
		job.StaleDocRate = float64(staleCount) / float64(docCount)
	}
	job.CostEstimate = EstimateCost(job.VectorsGenerated, s.cfg.AvgTokensPerVector, s.cfg.CostPer1KTokens)

	job.Status = StatusCompleted
	now := time.Now().UTC()
	job.EndTime = &now
	if err := s.jobs.UpdateJob(context.Background(), job); err != nil {
		s.logger.Error("failed to finalize job", zap.String("job_id", job.ID), zap.Error(err))
	}

	jobsTotal.WithLabelValues(string(StatusCompleted), string(job.Metadata.TriggerType)).Inc()
	jobDuration.Observe(time.Since(started).Seconds())
	staleDocRate.Set(job.StaleDocRate)

	sla := s.slaReport(job.StaleDocRate)
	if !sla.Compliant {
		slaViolations.Inc()
		s.logger.Warn("stale document SLA violated",
			zap.String("job_id", job.ID),
			zap.Float64("stale_doc_rate", sla.StaleDocRate),
			zap.Float64("threshold", sla.Threshold),
		)
	}

	s.logger.Info("reindex completed",
		zap.String("job_id", job.ID),
		zap.Int("documents_processed", job.DocumentsProcessed),
		zap.Int("vectors_generated", job.VectorsGenerated),
		zap.Float64("cost_estimate", job.CostEstimate),
		zap.Float64("stale_doc_rate", job.StaleDocRate),
		zap.Bool("sla_compliant", sla.Compliant),
		zap.Duration("duration", time.Since(started)),
	)
}

// finalize marks a job failed. Chunks committed by prior completed runs
// remain valid and queryable.
func (s *service) finalize(job Job, cause error) {
	job.Status = StatusFailed
	job.ErrorCount++
	now := time.Now().UTC()
	job.EndTime = &now

	if err := s.jobs.UpdateJob(context.Background(), job); err != nil {
		s.logger.Error("failed to persist failed job", zap.String("job_id", job.ID), zap.Error(err))
	}

	jobsTotal.WithLabelValues(string(StatusFailed), string(job.Metadata.TriggerType)).Inc()

	s.logger.Error("reindex failed",
		zap.String("job_id", job.ID),
		zap.Int("error_count", job.ErrorCount),
		zap.Error(cause),
	)
}

// lastCompletedEnd returns the end time of the most recent completed job,
// or the zero time when no run has ever completed. Against the zero time
// every document counts as stale: nothing is reflected in an index that
// was never built.
func (s *service) lastCompletedEnd() time.Time {
	jobs, err := s.jobs.GetRecentJobs(context.Background(), s.cfg.HistoryLimit)
	if err != nil {
		s.logger.Warn("failed to read job history for staleness baseline", zap.Error(err))
		return time.Time{}
	}
	for _, job := range jobs {
		if job.Status == StatusCompleted && job.EndTime != nil {
			return *job.EndTime
		}
	}
	return time.Time{}
}

func (s *service) slaReport(rate float64) SLAReport {
	return SLAReport{
		Compliant:    rate < s.cfg.SLAThreshold,
		StaleDocRate: rate,
		Threshold:    s.cfg.SLAThreshold,
	}
}

func (s *service) GetRecentJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	return s.jobs.GetRecentJobs(ctx, limit)
}

func (s *service) GetStatus(ctx context.Context) (StatusReport, error) {
	ctx, span := s.tracer.Start(ctx, "reindex.get_status")
	defer span.End()

	jobs, err := s.jobs.GetRecentJobs(ctx, s.cfg.HistoryLimit)
	if err != nil {
		span.RecordError(err)
		return StatusReport{}, fmt.Errorf("reading job history: %w", err)
	}

	report := StatusReport{
		LastRun:       "never",
		NextScheduled: time.Now().UTC().Add(s.cfg.Interval),
		SLATarget:     s.cfg.SLAThreshold,
		SLA:           s.slaReport(0),
		RecentJobs:    jobs,
	}

	for _, job := range jobs {
		if job.Status == StatusCompleted && job.EndTime != nil {
			report.LastRun = job.EndTime.Format(time.RFC3339)
			report.NextScheduled = job.EndTime.Add(s.cfg.Interval)
			report.SLA = s.slaReport(job.StaleDocRate)
			break
		}
	}

	return report, nil
}

func (s *service) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

// EstimateCost projects the embedding spend for a vector count:
// vectors * avgTokensPerVector / 1000 * costPer1KTokens.
func EstimateCost(vectors, avgTokensPerVector int, costPer1KTokens float64) float64 {
	return float64(vectors) * float64(avgTokensPerVector) / 1000 * costPer1KTokens
}
