// Package scheduler runs the background discovery loop. By default a pass runs
// at startup and then again after each fixed delay; a cron expression may be
// configured instead.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultInterval is the delay between the end of one pass and the start of the next.
const DefaultInterval = 900 * time.Second

// Job performs one discovery pass.
type Job func(ctx context.Context) error

// Config selects the scheduling mode. Cron, when set, takes precedence over Interval.
type Config struct {
	Interval time.Duration
	Cron     string
}

// Scheduler owns the background loop. It never exits because a pass failed.
type Scheduler struct {
	job      Job
	interval time.Duration
	cron     *cron.Cron
	spec     string
	logger   *zap.Logger
}

// New validates cfg and returns a Scheduler for job.
func New(job Job, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler job is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{job: job, interval: cfg.Interval, spec: cfg.Cron, logger: logger}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if cfg.Cron == "" {
		return s, nil
	}

	cl := cronLogger{logger: logger.Sugar()}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return nil, fmt.Errorf("parse cron schedule %q: %w", cfg.Cron, err)
	}
	return s, nil
}

// Run executes a pass immediately and then keeps scheduling passes until ctx
// is canceled. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cron != nil {
		return s.runCron(ctx)
	}

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	for {
		s.runOnce(ctx)

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}
	}
}

func (s *Scheduler) runCron(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule discovery job: %w", err)
	}
	s.logger.Info("scheduler started", zap.String("cron", s.spec))

	s.runOnce(ctx)
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled pass panicked", zap.Any("panic", r))
		}
	}()
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled pass failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	s.logger.Debug("scheduled pass completed", zap.Duration("duration", time.Since(start)))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
