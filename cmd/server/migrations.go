package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/SugrSertraline/neu-ink-sub000/internal/config"
)

// migrationsDir is where the versioned SQL migrations live, relative to the
// working directory.
const migrationsDir = "migrations"

// migrationTableName is the table goose uses to track applied versions.
const migrationTableName = "schema_migrations"

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct{}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrations")
}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrations")
	os.Exit(1)
}

// runMigrationCommand opens a dedicated connection for the -migrate flag,
// runs the requested goose command, and closes it again.
func runMigrationCommand(cfg *config.Config, command, name string, logger *slog.Logger) error {
	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Error closing database connection", "error", closeErr)
		}
	}()

	return runMigrations(ctx, db, command, name, logger)
}

// runMigrations executes one goose command against the given connection.
func runMigrations(ctx context.Context, db *sql.DB, command, name string, logger *slog.Logger) error {
	dir, err := resolveMigrationsDir()
	if err != nil {
		return err
	}

	goose.SetLogger(&slogGooseLogger{})
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	log := logger.With("component", "migrations", "command", command)
	log.Info("Running migration command", "dir", dir)

	switch command {
	case "up":
		err = goose.UpContext(ctx, db, dir)
	case "down":
		err = goose.DownContext(ctx, db, dir)
	case "reset":
		err = goose.ResetContext(ctx, db, dir)
	case "status":
		err = goose.StatusContext(ctx, db, dir)
	case "version":
		err = goose.VersionContext(ctx, db, dir)
	case "create":
		if name == "" {
			return fmt.Errorf("migration name is required for 'create', pass -name")
		}
		return goose.Create(db, dir, name, "sql")
	default:
		return fmt.Errorf(
			"unknown migration command: %s (expected up, down, reset, status, version, or create)",
			command,
		)
	}
	if err != nil {
		return fmt.Errorf("migration command %q failed: %w", command, err)
	}

	if version, verr := goose.GetDBVersionContext(ctx, db); verr == nil {
		log.Info("Migration command completed", "db_version", version)
	} else {
		log.Info("Migration command completed")
	}
	return nil
}

// resolveMigrationsDir locates the migrations directory relative to the
// working directory.
func resolveMigrationsDir() (string, error) {
	abs, err := filepath.Abs(migrationsDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations directory: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("migrations directory not found at %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("migrations path %s is not a directory", abs)
	}

	return abs, nil
}
