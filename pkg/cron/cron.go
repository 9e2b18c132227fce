// Package cron schedules recurring maintenance jobs.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/repository"
)

// Scheduler runs background maintenance on a fixed schedule.
type Scheduler struct {
	cron   *cron.Cron
	repo   repository.MetricsRepository
	logger *slog.Logger
}

// New creates a Scheduler.
func New(repo repository.MetricsRepository, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		repo:   repo,
		logger: logger,
	}
}

// Start registers the jobs and begins the schedule. The monthly rollup view
// is refreshed after every ingestion as well; the weekly job exists so the
// view converges even if a refresh was skipped.
func (s *Scheduler) Start() error {
	// Monday 02:00, after the weekend's uploads have settled.
	_, err := s.cron.AddFunc("0 2 * * 1", s.refreshRollup)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("cron scheduler started")
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("cron scheduler stopped")
}

func (s *Scheduler) refreshRollup() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.repo.RefreshMonthlyRollup(ctx); err != nil {
		s.logger.Error("monthly rollup refresh failed", slog.Any("error", err))
		return
	}
	s.logger.Info("monthly rollup refreshed")
}
