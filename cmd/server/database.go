package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/SugrSertraline/neu-ink-sub000/internal/config"
	"github.com/SugrSertraline/neu-ink-sub000/internal/redact"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// pingTimeout bounds each individual connectivity probe.
const pingTimeout = 5 * time.Second

// openDatabase opens the connection pool and verifies connectivity. The ping
// retries with bounded exponential backoff so a deploy racing its database
// instance settles instead of crash-looping.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	err = retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()
			return db.PingContext(pingCtx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(cfg.ConnectAttempts)),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logger.Warn("database ping failed, retrying",
				"attempt", attempt+1,
				"max_attempts", cfg.ConnectAttempts,
				"error", redact.Error(err))
		}),
	)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Error closing database connection", "error", closeErr)
		}
		return nil, fmt.Errorf(
			"failed to reach database after %d attempts: %w",
			cfg.ConnectAttempts, err,
		)
	}

	logger.Info("Database connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
		"conn_max_lifetime", cfg.ConnMaxLifetime().String())
	return db, nil
}
