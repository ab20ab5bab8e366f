package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/observability"
)

const (
	ModeOneshot  = "oneshot"
	ModeInterval = "interval"
	ModeCron     = "cron"
)

// CycleRunner реализуется *Orchestrator
type CycleRunner interface {
	RunCycle(ctx context.Context) (*CycleStats, error)
}

// Scheduler запускает циклы сбора: один раз, с интервалом или по cron
type Scheduler struct {
	mode     string
	interval time.Duration
	cronExpr string
	loc      *time.Location
	runner   CycleRunner
	logger   *observability.Logger
}

func NewScheduler(cfg *config.Config, runner CycleRunner, logger *observability.Logger) (*Scheduler, error) {
	loc, err := cfg.GetLocation()
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		mode:     cfg.Scheduler.Mode,
		interval: cfg.GetSchedulerInterval(),
		cronExpr: cfg.Scheduler.CronExpr,
		loc:      loc,
		runner:   runner,
		logger:   logger.With("component", "scheduler"),
	}

	if s.mode == ModeCron {
		if _, err := cron.ParseStandard(s.cronExpr); err != nil {
			return nil, fmt.Errorf("invalid scheduler.cron_expr %q: %w", s.cronExpr, err)
		}
	}
	return s, nil
}

// Run блокирует до отмены ctx (в режиме oneshot до конца цикла)
func (s *Scheduler) Run(ctx context.Context) error {
	switch s.mode {
	case ModeOneshot:
		_, err := s.runner.RunCycle(ctx)
		return err
	case ModeInterval:
		return s.runInterval(ctx)
	case ModeCron:
		return s.runCron(ctx)
	default:
		return fmt.Errorf("unknown scheduler mode %q", s.mode)
	}
}

func (s *Scheduler) runInterval(ctx context.Context) error {
	s.logger.Info("Scheduler started", "mode", ModeInterval, "interval", s.interval.String())

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) runCron(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.cronExpr, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule cron job: %w", err)
	}

	s.logger.Info("Scheduler started", "mode", ModeCron, "cron_expr", s.cronExpr)
	c.Start()

	<-ctx.Done()

	// ждём текущий цикл
	<-c.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunCycle(ctx); err != nil {
		if errors.Is(err, ErrCycleRunning) {
			s.logger.Warn("Skipping tick, previous cycle still running")
			return
		}
		s.logger.Error("Cycle failed", "error", err.Error())
	}
}
