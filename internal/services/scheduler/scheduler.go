package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// Service re-indexes every version that has a stored source URL on a cron
// schedule, so long-lived deployments stay fresh without manual re-runs.
// Disabled by default.
type Service struct {
	store    interfaces.DocumentStorage
	pipeline interfaces.Pipeline
	config   *common.Config
	logger   arbor.ILogger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewService(logger arbor.ILogger, config *common.Config, store interfaces.DocumentStorage, pipeline interfaces.Pipeline) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	if config == nil {
		config = common.NewDefaultConfig()
	}
	return &Service{
		store:    store,
		pipeline: pipeline,
		config:   config,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers the refresh entry and starts the cron runner. When the
// scheduler is disabled in config this is a no-op.
func (s *Service) Start() error {
	if !s.config.Scheduler.Enabled {
		s.logger.Debug().Msg("Refresh scheduler disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	expr := s.config.Scheduler.Cron
	if expr == "" {
		expr = common.DefaultRefreshCron
	}
	if _, err := s.cron.AddFunc(expr, s.refreshAll); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Str("cron", expr).Msg("Refresh scheduler started")
	return nil
}

// Stop halts the cron runner and waits for an in-flight refresh pass to
// finish enqueueing.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Refresh scheduler stopped")
}

// refreshAll re-enqueues every version with a stored source URL, skipping
// keys that already have an active job.
func (s *Service) refreshAll() {
	ctx := context.Background()

	byLibrary, err := s.store.QueryLibraryVersions(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Refresh pass could not list versions")
		return
	}

	active := make(map[string]bool)
	jobs, err := s.pipeline.GetJobs(ctx, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Refresh pass could not list jobs")
	} else {
		for _, job := range jobs {
			if job.Status.IsActive() {
				active[job.Library+"@"+job.Version] = true
			}
		}
	}

	enqueued := 0
	for library, versions := range byLibrary {
		for _, version := range versions {
			if version.SourceURL == "" {
				continue
			}
			if active[library+"@"+version.Version] {
				continue
			}
			switch version.Status {
			case models.VersionStatusQueued, models.VersionStatusRunning, models.VersionStatusUpdating:
				continue
			}

			if _, err := s.pipeline.EnqueueJobWithStoredOptions(ctx, library, version.Version); err != nil {
				s.logger.Warn().
					Err(err).
					Str("library", library).
					Str("version", version.Version).
					Msg("Refresh enqueue failed")
				continue
			}
			enqueued++
		}
	}

	if enqueued > 0 {
		s.logger.Info().Int("count", enqueued).Msg("Scheduled refresh enqueued jobs")
	}
}
