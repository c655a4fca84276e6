package cron

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
)

// ServiceParams wires a Service. Interval defaults to once a day.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval while holding the
// cluster-wide lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	every    time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("cron: logger is required")
	case p.Lock == nil:
		return nil, errors.New("cron: lock is required")
	}
	s := &Service{
		logg:     p.Logger,
		registry: p.Registry,
		lock:     p.Lock,
		metrics:  p.Metrics,
		every:    p.Interval,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.every <= 0 {
		s.every = 24 * time.Hour
	}
	return s, nil
}

// Run fires a cycle at startup and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	tick := time.NewTicker(s.every)
	defer tick.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// RunOnce is one cycle. A held lock skips the cycle. Failing jobs are logged
// and counted and do not stop the rest; only lock errors are returned.
func (s *Service) RunOnce(ctx context.Context) error {
	got, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !got {
		s.logg.Info(ctx, "cron.skipped_locked")
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)

	began := time.Now()
	report, err := job.Run(ctx)
	took := time.Since(began)
	s.metrics.Observe(name, took, report.Affected, err)

	fields := map[string]any{"duration_ms": took.Milliseconds(), "affected": report.Affected}
	maps.Copy(fields, report.Fields)
	ctx = s.logg.WithFields(ctx, fields)
	if err != nil {
		s.logg.Error(ctx, "cron.job_failed", err)
		return
	}
	s.logg.Info(ctx, "cron.job_completed")
}
