package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/handlers"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/documents"
	"github.com/ternarybob/scriptor/internal/services/embeddings"
	"github.com/ternarybob/scriptor/internal/services/scheduler"
	"github.com/ternarybob/scriptor/internal/services/scraper"
	"github.com/ternarybob/scriptor/internal/services/search"
	"github.com/ternarybob/scriptor/internal/services/splitter"
	"github.com/ternarybob/scriptor/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Store     interfaces.DocumentStorage
	Pipeline  interfaces.Pipeline
	Documents *documents.Service
	Scheduler *scheduler.Service

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	JobsHandler      *handlers.JobsHandler
	DocumentsHandler *handlers.DocumentsHandler
}

// New initializes the application with all dependencies. Construction order
// matters: storage first, then the pipeline on top of it (job recovery runs
// inside Pipeline.Start), then the read services and handlers.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initServices(ctx); err != nil {
		return nil, err
	}
	app.initHandlers()

	return app, nil
}

func (a *App) initServices(ctx context.Context) error {
	embedder, err := embeddings.NewProvider(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize embeddings: %w", err)
	}

	splitterService := splitter.NewService(a.Config.Splitter, a.Logger)

	store, err := storage.NewDocumentStorage(a.Logger, a.Config, embedder, splitterService)
	if err != nil {
		return fmt.Errorf("failed to initialize document storage: %w", err)
	}
	a.Store = store

	localScraper := scraper.NewLocalScraper(a.Logger)
	a.Pipeline = pipeline.NewPipeline(a.Logger, a.Config, store, localScraper)
	if err := a.Pipeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	retriever := search.NewRetriever(a.Logger, a.Config, store)
	a.Documents = documents.NewService(a.Logger, store, retriever)

	a.Scheduler = scheduler.NewService(a.Logger, a.Config, store, a.Pipeline)
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.JobsHandler = handlers.NewJobsHandler(a.Logger, a.Pipeline)
	a.DocumentsHandler = handlers.NewDocumentsHandler(a.Logger, a.Documents)
}

// Close closes all application resources in reverse construction order.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.Pipeline != nil {
		if err := a.Pipeline.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop pipeline")
		}
	}

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
