// Package scheduler runs the periodic syncs for every enabled connection.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"prokipsync/internal/logger"
	"prokipsync/internal/metrics"
)

const defaultInterval = 15 * time.Minute

var (
	// ErrCycleSkipped is returned by RunOnce when another instance holds the lock.
	ErrCycleSkipped = errors.New("another scheduler cycle is running")
	// ErrLockLost stops a cycle whose lock expired or was taken over.
	ErrLockLost = errors.New("scheduler lock lost")
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.SyncMetrics
	Interval time.Duration
	// LockRefresh is how often a running cycle extends its lock. It must be
	// well under the lock TTL; defaults to a third of the default TTL.
	LockRefresh time.Duration
}

// Service executes registered jobs on a fixed cadence.
type Service struct {
	logger   *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.SyncMetrics
	interval time.Duration
	refresh  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	refresh := params.LockRefresh
	if refresh <= 0 {
		refresh = defaultLockTTL / 3
	}
	return &Service{
		logger:   params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		refresh:  refresh,
	}, nil
}

// Run starts the loop until the context is cancelled. The first cycle runs
// immediately.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started, interval %s", s.interval)
	if err := s.runCycle(ctx); err != nil && !errors.Is(err, ErrCycleSkipped) {
		s.logger.Error("Scheduled run failed: %v", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil && !errors.Is(err, ErrCycleSkipped) {
				s.logger.Error("Scheduled run failed: %v", err)
			}
		}
	}
}

// RunOnce runs one cycle now, honoring the lock.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logger.Info("Another scheduler instance is running; skipping this cycle")
		s.metrics.IncLockSkipped()
		return ErrCycleSkipped
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.Error("Failed to release scheduler lock: %v", relErr)
		}
	}()

	cycleCtx, cancel := context.WithCancelCause(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.holdLock(cycleCtx, cancel)
	}()
	// Stop refreshing before the deferred release runs.
	defer func() {
		cancel(nil)
		wg.Wait()
	}()

	s.logger.Info("Scheduled run starting")
	for _, job := range s.registry.Jobs() {
		if cycleCtx.Err() != nil {
			return context.Cause(cycleCtx)
		}
		s.runJob(cycleCtx, job)
	}
	if cycleCtx.Err() != nil {
		return context.Cause(cycleCtx)
	}
	s.logger.Info("Scheduled run complete")
	return nil
}

// holdLock keeps the lock alive for as long as the cycle runs and cancels
// the cycle once another instance could have taken over.
func (s *Service) holdLock(ctx context.Context, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := s.lock.Refresh(ctx)
			if err != nil {
				s.logger.Warn("Failed to refresh scheduler lock: %v", err)
				continue
			}
			if !held {
				s.logger.Error("Scheduler lock lost; stopping this cycle")
				cancel(ErrLockLost)
				return
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	log := s.logger.With("job", job.Name())
	log.Debug("Job start")

	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)

	if err != nil {
		log.Error("Job failed after %s: %v", duration, err)
		s.metrics.IncFailure(job.Name())
		return
	}
	log.Info("Job completed in %s", duration)
	s.metrics.IncSuccess(job.Name())
}
