package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/platform/logger"
	"github.com/SugrSertraline/neu-ink-sub000/internal/store"
)

// PostgresStructuringFailureStore implements store.StructuringFailureStore
// using a PostgreSQL database. Rows carry the unmodified model output, so
// the table is the one place in the system where raw LLM text is persisted
// for offline inspection.
type PostgresStructuringFailureStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Verify PostgresStructuringFailureStore implements store.StructuringFailureStore interface
var _ store.StructuringFailureStore = (*PostgresStructuringFailureStore)(nil)

// NewPostgresStructuringFailureStore creates a new PostgreSQL implementation
// of the StructuringFailureStore interface.
func NewPostgresStructuringFailureStore(db store.DBTX, log *slog.Logger) *PostgresStructuringFailureStore {
	if db == nil {
		panic("db cannot be nil for PostgresStructuringFailureStore")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresStructuringFailureStore{
		db:     db,
		logger: log.With(slog.String("component", "structuring_failure_store")),
	}
}

// Record inserts one failure row. The raw response is stored verbatim.
func (s *PostgresStructuringFailureStore) Record(ctx context.Context, sessionID uuid.UUID, rawResponse, reason string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO structuring_failures (id, session_id, raw_response, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		sessionID,
		rawResponse,
		reason,
		time.Now().UTC(),
	)
	if err != nil {
		log.Error("failed to record structuring failure",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
		return MapError(err)
	}

	log.Debug("structuring failure recorded",
		slog.String("session_id", sessionID.String()),
		slog.String("reason", reason))
	return nil
}
