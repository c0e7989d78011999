package reindex

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler triggers periodic reindex runs.
type Scheduler struct {
	service  Service
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler that fires every interval.
func NewScheduler(service Service, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if service == nil {
		return nil, errors.New("reindex service is required")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		service:  service,
		interval: interval,
		logger:   logger,
	}, nil
}

// Start begins the periodic trigger loop. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(s.stopCh, s.doneCh)

	s.logger.Info("reindex scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the loop and waits for it to exit. A job already in flight
// keeps running; only future triggers stop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.running = false

	s.logger.Info("reindex scheduler stopped")
}

func (s *Scheduler) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick fires one scheduled trigger. A panic here must not kill the loop.
func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled reindex panicked", zap.Any("panic", r))
		}
	}()

	job, err := s.service.Trigger(context.Background(), TriggerScheduled)
	switch {
	case errors.Is(err, ErrReindexInFlight):
		s.logger.Debug("skipping scheduled reindex, run already in flight")
	case err != nil:
		s.logger.Error("scheduled reindex trigger failed", zap.Error(err))
	default:
		s.logger.Info("scheduled reindex triggered", zap.String("job_id", job.ID))
	}
}
