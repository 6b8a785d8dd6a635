// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/repository"
)

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron         *cron.Cron
	repo         repository.CatalogRepository
	historyLimit int
	logger       *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(repo repository.CatalogRepository, historyLimit int, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:         c,
		repo:         repo,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	// Import-history prune: runs daily at 3:00 AM. The import service already
	// prunes per owner after each run; this catches owners that stopped
	// importing.
	_, err := s.cron.AddFunc("0 3 * * *", s.pruneImportHistory)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

func (s *Scheduler) pruneImportHistory() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.repo.PruneAllReports(ctx, s.historyLimit); err != nil {
		s.logger.Warn("import-history prune failed", slog.Any("error", err))
		return
	}
	s.logger.Info("import-history prune finished")
}
