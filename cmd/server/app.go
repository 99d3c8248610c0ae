package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SugrSertraline/neu-ink-sub000/internal/config"
	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/events"
	"github.com/SugrSertraline/neu-ink-sub000/internal/platform/gemini"
	"github.com/SugrSertraline/neu-ink-sub000/internal/platform/openai"
	"github.com/SugrSertraline/neu-ink-sub000/internal/platform/postgres"
	"github.com/SugrSertraline/neu-ink-sub000/internal/redact"
	"github.com/SugrSertraline/neu-ink-sub000/internal/service"
	"github.com/SugrSertraline/neu-ink-sub000/internal/splice"
	"github.com/SugrSertraline/neu-ink-sub000/internal/store"
	"github.com/SugrSertraline/neu-ink-sub000/internal/structuring"
	"github.com/SugrSertraline/neu-ink-sub000/internal/task"
)

// taskFailureTimeout bounds the session repair writes performed by the
// executor's error handler, which runs without a request context.
const taskFailureTimeout = 10 * time.Second

// executorStopTimeout is how long shutdown waits for in-flight ingestion
// tasks to drain before abandoning them to lost-task recovery.
const executorStopTimeout = 30 * time.Second

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	sessionStore store.ParsingSessionStore
	sectionStore store.SectionStore
	failureStore store.StructuringFailureStore

	// Pipeline components
	generator    structuring.TextGenerator
	structurer   *structuring.Service
	resultCache  *splice.ResultCache
	spliceEngine *splice.Engine

	// Event system
	eventEmitter *events.InMemoryEventEmitter

	// Task handling
	taskFactory *task.IngestionTaskFactory
	executor    *task.Executor

	// Service interfaces
	ingestionService service.IngestionService
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	app.sessionStore = postgres.NewPostgresParsingSessionStore(db, logger)
	app.sectionStore = postgres.NewPostgresSectionStore(db, logger)
	app.failureStore = postgres.NewPostgresStructuringFailureStore(db, logger)

	// Create the LLM generator for the configured provider
	var err error
	app.generator, err = newTextGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.ModelName)

	// Initialize the structuring service with the failure sink
	app.structurer, err = structuring.NewService(
		app.generator,
		app.failureStore,
		cfg.Ingestion.MaxInputChars,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create structuring service: %w", err)
	}

	// Initialize the splice result cache and engine
	app.resultCache = splice.NewResultCache(
		cfg.Cache.ResultTTL(),
		cfg.Cache.PruneInterval(),
		logger,
	)

	app.spliceEngine, err = splice.NewEngine(db, app.sectionStore, app.resultCache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create splice engine: %w", err)
	}

	// Initialize the event emitter with the logging handler so every
	// session transition lands in the structured log
	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.NewLoggingHandler(logger))

	// Create the task factory
	app.taskFactory = task.NewIngestionTaskFactory(
		app.sessionStore,
		app.sectionStore,
		app.structurer,
		app.spliceEngine,
		app.eventEmitter,
		logger,
	)

	// Initialize the executor and wire the failure net: a crashed work
	// function must never leave its session stuck in processing
	app.executor = task.NewExecutor(task.Config{
		WorkerCount: cfg.Ingestion.WorkerCount,
		QueueSize:   cfg.Ingestion.QueueSize,
	}, logger)
	app.executor.SetErrorHandler(app.handleTaskFailure)

	// Initialize the ingestion service
	app.ingestionService, err = service.NewIngestionService(
		app.sessionStore,
		app.sectionStore,
		app.spliceEngine,
		app.executor,
		app.taskFactory,
		cfg.Ingestion.MaxRequestChars,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestion service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// newTextGenerator selects and constructs the configured LLM provider.
func newTextGenerator(
	ctx context.Context,
	cfg config.LLMConfig,
	logger *slog.Logger,
) (structuring.TextGenerator, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewGeminiGenerator(ctx, logger, cfg)
	case "openai":
		return openai.NewOpenAIGenerator(logger, cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// handleTaskFailure is the executor's error handler. The ingestion task
// normally drives its own session to a terminal state before returning an
// error, in which case there is nothing to do here. When the work function
// panicked or bailed early, this forces the session to failed and parks the
// placeholder, mirroring the lost-task transition the resume path applies.
func (app *application) handleTaskFailure(t task.Task, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), taskFailureTimeout)
	defer cancel()

	// Task id and session id are the same value.
	sessionID := t.ID()
	log := app.logger.With(
		slog.String("component", "task_failure_handler"),
		slog.String("session_id", sessionID.String()))

	markErr := app.sessionStore.MarkFailed(ctx, sessionID, err.Error())
	switch {
	case markErr == nil:
		log.Warn("session forced to failed after task error",
			slog.String("error", redact.Error(err)))
	case errors.Is(markErr, store.ErrSessionTerminal):
		// The task already recorded its own outcome.
		log.Debug("session already terminal, no repair needed")
		return
	default:
		log.Error("failed to mark session failed after task error",
			slog.String("error", redact.Error(markErr)))
		return
	}

	session, getErr := app.sessionStore.GetByID(ctx, sessionID)
	if getErr != nil {
		log.Warn("cannot load session for placeholder repair",
			slog.String("error", redact.Error(getErr)))
		return
	}

	advErr := app.spliceEngine.AdvancePlaceholder(
		ctx,
		session.SectionID,
		session.PlaceholderBlockID,
		domain.PlaceholderStageFailed,
		nil,
	)
	if advErr != nil && !errors.Is(advErr, store.ErrBlockNotFound) {
		log.Warn("failed to park placeholder after task error",
			slog.String("error", redact.Error(advErr)))
	}
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.executor != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), executorStopTimeout)
		defer cancel()

		if err := app.executor.Stop(stopCtx); err != nil {
			app.logger.Error(
				"Executor stop timed out, in-flight tasks left to lost-task recovery",
				"error", err,
			)
		}
	}

	if app.resultCache != nil {
		app.resultCache.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
