package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coingecko_etl/config"
	"coingecko_etl/models"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// maxAttempts is the first try plus the single retry
const maxAttempts = 2

// Runner executes one pipeline attempt
type Runner interface {
	Run(ctx context.Context, attempt int) (models.RunReport, error)
}

// Scheduler manages the recurring ETL job
type Scheduler struct {
	cron       *gocron.Scheduler
	runner     Runner
	interval   time.Duration
	retryDelay time.Duration
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler instance
func NewScheduler(runner Runner, cfg config.ScheduleConfig, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       gocron.NewScheduler(time.UTC),
		runner:     runner,
		interval:   cfg.Interval,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers the ETL job and starts the scheduler. The first run fires
// immediately.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.Duration("interval", s.interval),
		zap.Duration("retry_delay", s.retryDelay),
	)

	// a trigger that fires while a run (or its retry) is still going is
	// dropped; the job tries again on its next tick
	s.cron.SetMaxConcurrentJobs(1, gocron.RescheduleMode)

	if _, err := s.cron.Every(s.interval).Tag("coingecko_etl").Do(s.runScheduled); err != nil {
		return fmt.Errorf("failed to schedule ETL job: %w", err)
	}

	s.cron.StartAsync()
	s.logger.Info("scheduler started successfully")
	return nil
}

// Stop stops the scheduler and abandons any pending retry
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runScheduled() {
	// errors are logged by RunWithRetry
	_ = s.RunWithRetry(s.ctx)
}

// RunWithRetry runs the pipeline, retrying once after the retry delay
func (s *Scheduler) RunWithRetry(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			s.logger.Warn("pipeline attempt failed, retrying",
				zap.Int("attempt", attempt-1),
				zap.Duration("retry_delay", s.retryDelay),
				zap.Error(err),
			)
			if waitErr := wait(ctx, s.retryDelay); waitErr != nil {
				return errors.Join(err, waitErr)
			}
		}

		if _, err = s.runner.Run(ctx, attempt); err == nil {
			return nil
		}
	}

	s.logger.Error("scheduled run failed",
		zap.Int("attempts", maxAttempts),
		zap.Error(err),
	)
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
