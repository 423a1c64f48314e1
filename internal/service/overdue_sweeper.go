package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/jobs"
)

const (
	overdueSweepJobType     = "billing.overdue_sweep"
	defaultOverdueSchedule  = "@hourly"
	defaultOverdueSweepTime = 30 * time.Second
)

type overdueCounter interface {
	CountOverdue(ctx context.Context) ([]models.OverdueCount, error)
}

// OverdueSweeperConfig controls the sweep schedule.
type OverdueSweeperConfig struct {
	Schedule string
	Timeout  time.Duration
}

// OverdueSweeper periodically counts overdue bills and publishes the totals
// as gauges. It never mutates bills.
type OverdueSweeper struct {
	counter overdueCounter
	metrics *MetricsService
	logger  *zap.Logger
	config  OverdueSweeperConfig
	queue   *jobs.Queue
	cron    *cron.Cron
}

// NewOverdueSweeper constructs a sweeper. The schedule is validated here so a
// bad expression fails at startup.
func NewOverdueSweeper(counter overdueCounter, metrics *MetricsService, logger *zap.Logger, cfg OverdueSweeperConfig) (*OverdueSweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaultOverdueSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOverdueSweepTime
	}

	s := &OverdueSweeper{
		counter: counter,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "overdue_sweeper")),
		config:  cfg,
	}
	s.queue = jobs.NewQueue("overdue-sweep", s.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 1,
		MaxRetries: 0,
		Logger:     logger,
	})
	s.cron = cron.New(cron.WithLocation(time.UTC))
	if _, err := s.cron.AddFunc(cfg.Schedule, s.trigger); err != nil {
		return nil, fmt.Errorf("parse overdue sweep schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start launches the worker and the schedule.
func (s *OverdueSweeper) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.cron.Start()
	s.logger.Info("overdue sweep scheduled", zap.String("schedule", s.config.Schedule))
}

// Stop halts the schedule, waits for a running sweep and stops the worker.
func (s *OverdueSweeper) Stop() {
	<-s.cron.Stop().Done()
	s.queue.Stop()
}

// Sweep counts overdue bills once and publishes the result.
func (s *OverdueSweeper) Sweep(ctx context.Context) ([]models.OverdueCount, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	counts, err := s.counter.CountOverdue(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.SetOverdue(counts)

	fields := make([]zap.Field, 0, len(counts)*2)
	for _, c := range counts {
		fields = append(fields,
			zap.Int(string(c.Kind)+"_count", c.Count),
			zap.String(string(c.Kind)+"_outstanding", c.Outstanding.StringFixed(models.MoneyScale)),
		)
	}
	s.logger.Info("overdue sweep completed", fields...)
	return counts, nil
}

func (s *OverdueSweeper) trigger() {
	err := s.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: overdueSweepJobType})
	switch {
	case err == nil:
	case errors.Is(err, jobs.ErrQueueFull):
		s.logger.Warn("overdue sweep still running, skipping tick")
	default:
		s.logger.Error("enqueue overdue sweep failed", zap.Error(err))
	}
}

func (s *OverdueSweeper) handle(ctx context.Context, job jobs.Job) error {
	_, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("overdue sweep failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	return err
}
