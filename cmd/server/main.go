// Package main implements the entry point for the neu-ink ingestion server,
// which turns raw source text into structured bilingual content blocks and
// splices them into document sections.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/SugrSertraline/neu-ink-sub000/internal/config"
	"github.com/SugrSertraline/neu-ink-sub000/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to run application: %v", err)
	}
}

// run drives the whole process lifecycle: configuration, logging, database,
// migrations, dependency wiring, and finally the HTTP server. Returning an
// error instead of exiting keeps the flow testable and gives deferred
// cleanup a chance to execute.
func run() error {
	migrateCmd := flag.String(
		"migrate",
		"",
		"run a migration command instead of serving (up|down|reset|status|version|create)",
	)
	migrationName := flag.String("name", "", "migration name, required for '-migrate create'")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Set up structured logging using the configured log level
	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	// Log the sanitized effective configuration; secrets (database URL,
	// API key) never appear here.
	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.ModelName,
		"worker_count", cfg.Ingestion.WorkerCount,
		"queue_size", cfg.Ingestion.QueueSize,
		"max_request_chars", cfg.Ingestion.MaxRequestChars)

	// A -migrate invocation runs the requested command and exits without
	// starting the server.
	if *migrateCmd != "" {
		return runMigrationCommand(cfg, *migrateCmd, *migrationName, appLogger)
	}

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.Database, appLogger)
	if err != nil {
		return err
	}

	// Normal starts apply pending migrations before serving, so a deploy
	// never runs against a stale schema.
	if err := runMigrations(ctx, db, "up", "", appLogger); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("Error closing database connection", "error", closeErr)
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("Error closing database connection", "error", closeErr)
		}
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
