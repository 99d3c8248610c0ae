package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/platform/logger"
	"github.com/SugrSertraline/neu-ink-sub000/internal/store"
)

// PostgresParsingSessionStore implements the store.ParsingSessionStore interface
// using a PostgreSQL database. Terminal-state protection lives in the SQL itself:
// every status-changing statement carries a WHERE clause restricted to active
// sessions, so a completed or failed row can never transition again regardless
// of how many workers race on it.
type PostgresParsingSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Verify PostgresParsingSessionStore implements store.ParsingSessionStore interface
var _ store.ParsingSessionStore = (*PostgresParsingSessionStore)(nil)

// NewPostgresParsingSessionStore creates a new PostgreSQL implementation of the
// ParsingSessionStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresParsingSessionStore(db store.DBTX, log *slog.Logger) *PostgresParsingSessionStore {
	if db == nil {
		panic("db cannot be nil for PostgresParsingSessionStore")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresParsingSessionStore{
		db:     db,
		logger: log.With(slog.String("component", "parsing_session_store")),
	}
}

// Create saves a new parsing session to the database.
// It validates the session before saving and returns domain validation errors
// unchanged so callers can map them to client-facing responses.
func (s *PostgresParsingSessionStore) Create(ctx context.Context, session *domain.ParsingSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		log.Warn("parsing session validation failed during creation",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return err
	}

	query := `
		INSERT INTO parsing_sessions
			(id, owner_id, document_id, section_id, source_text,
			 insert_after_block_id, placeholder_block_id, insert_index,
			 status, progress, message, result_blocks, error_message,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	resultJSON, err := marshalResultBlocks(session.ResultBlocks)
	if err != nil {
		return fmt.Errorf("failed to encode result blocks: %w", err)
	}

	_, err = s.db.ExecContext(ctx, query,
		session.ID,
		session.OwnerID,
		session.DocumentID,
		session.SectionID,
		session.SourceText,
		session.InsertAfterBlockID,
		session.PlaceholderBlockID,
		session.InsertIndex,
		session.Status,
		session.Progress,
		session.Message,
		resultJSON,
		session.ErrorMessage,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create parsing session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()),
			slog.String("section_id", session.SectionID.String()))
		return MapError(err)
	}

	log.Debug("parsing session created successfully",
		slog.String("session_id", session.ID.String()),
		slog.String("section_id", session.SectionID.String()))
	return nil
}

// GetByID retrieves a parsing session by its unique ID.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *PostgresParsingSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ParsingSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, owner_id, document_id, section_id, source_text,
		       insert_after_block_id, placeholder_block_id, insert_index,
		       status, progress, message, result_blocks, error_message,
		       created_at, updated_at
		FROM parsing_sessions
		WHERE id = $1
	`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if IsNotFoundError(err) {
			log.Debug("parsing session not found", slog.String("session_id", id.String()))
			return nil, store.ErrSessionNotFound
		}
		log.Error("failed to get parsing session",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return nil, MapError(err)
	}

	return session, nil
}

// UpdateProgress records a non-terminal progress checkpoint for a session.
// The update only applies while the session is still active; once a row has
// reached completed or failed the WHERE clause no longer matches and the
// call reports store.ErrSessionTerminal.
func (s *PostgresParsingSessionStore) UpdateProgress(ctx context.Context, id uuid.UUID, status domain.ParsingSessionStatus, progress int, message string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if status != domain.ParsingSessionStatusPending && status != domain.ParsingSessionStatusProcessing {
		return domain.ErrInvalidSessionStatus
	}
	if progress < 0 || progress > 100 {
		return domain.ErrInvalidProgress
	}

	query := `
		UPDATE parsing_sessions
		SET status = $1, progress = $2, message = $3, updated_at = NOW()
		WHERE id = $4 AND status IN ('pending', 'processing')
	`

	result, err := s.db.ExecContext(ctx, query, status, progress, message, id)
	if err != nil {
		log.Error("failed to update parsing session progress",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return MapError(err)
	}

	if err := s.checkActiveUpdate(ctx, result, id); err != nil {
		return err
	}

	log.Debug("parsing session progress updated",
		slog.String("session_id", id.String()),
		slog.String("status", string(status)),
		slog.Int("progress", progress))
	return nil
}

// MarkCompleted transitions a session to the completed terminal state and
// stores the structured result blocks. A nil block slice is persisted as an
// empty JSON array so completed sessions always carry a non-null result.
func (s *PostgresParsingSessionStore) MarkCompleted(ctx context.Context, id uuid.UUID, resultBlocks domain.BlockList) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	resultJSON, err := json.Marshal(resultBlocks)
	if err != nil {
		return fmt.Errorf("failed to encode result blocks: %w", err)
	}

	query := `
		UPDATE parsing_sessions
		SET status = 'completed', progress = 100, message = 'completed',
		    result_blocks = $1, error_message = NULL, updated_at = NOW()
		WHERE id = $2 AND status IN ('pending', 'processing')
	`

	result, err := s.db.ExecContext(ctx, query, string(resultJSON), id)
	if err != nil {
		log.Error("failed to mark parsing session completed",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return MapError(err)
	}

	if err := s.checkActiveUpdate(ctx, result, id); err != nil {
		return err
	}

	log.Info("parsing session completed",
		slog.String("session_id", id.String()),
		slog.Int("result_blocks", len(resultBlocks)))
	return nil
}

// MarkFailed transitions a session to the failed terminal state with the
// given error message. Progress is reset to zero and any partial result is
// cleared, keeping the terminal invariants in one statement.
func (s *PostgresParsingSessionStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if errorMessage == "" {
		return domain.ErrMissingErrorMessage
	}

	query := `
		UPDATE parsing_sessions
		SET status = 'failed', progress = 0, message = 'failed',
		    result_blocks = NULL, error_message = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ('pending', 'processing')
	`

	result, err := s.db.ExecContext(ctx, query, errorMessage, id)
	if err != nil {
		log.Error("failed to mark parsing session failed",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return MapError(err)
	}

	if err := s.checkActiveUpdate(ctx, result, id); err != nil {
		return err
	}

	log.Info("parsing session failed",
		slog.String("session_id", id.String()),
		slog.String("session_error", errorMessage))
	return nil
}

// ListActiveByOwner retrieves all pending and processing sessions belonging
// to the given owner, newest first. Used by the resume coordinator after a
// restart to find work that was in flight when the previous process died.
func (s *PostgresParsingSessionStore) ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.ParsingSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, owner_id, document_id, section_id, source_text,
		       insert_after_block_id, placeholder_block_id, insert_index,
		       status, progress, message, result_blocks, error_message,
		       created_at, updated_at
		FROM parsing_sessions
		WHERE owner_id = $1 AND status IN ('pending', 'processing')
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		log.Error("failed to list active parsing sessions",
			slog.String("error", err.Error()),
			slog.String("owner_id", ownerID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*domain.ParsingSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parsing session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return sessions, nil
}

// WithTx returns a new store instance that uses the provided transaction.
// This allows the store to participate in caller-managed transactions.
func (s *PostgresParsingSessionStore) WithTx(tx *sql.Tx) store.ParsingSessionStore {
	return &PostgresParsingSessionStore{
		db:     tx,
		logger: s.logger,
	}
}

// checkActiveUpdate classifies a zero-row update against an active-only WHERE
// clause. The row is either gone (not found) or already terminal; one extra
// status probe tells the two apart.
func (s *PostgresParsingSessionStore) checkActiveUpdate(ctx context.Context, result sql.Result, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var status domain.ParsingSessionStatus
	err = s.db.QueryRowContext(ctx, "SELECT status FROM parsing_sessions WHERE id = $1", id).Scan(&status)
	if err != nil {
		if IsNotFoundError(err) {
			return store.ErrSessionNotFound
		}
		return MapError(err)
	}

	return fmt.Errorf("%w: session is %s", store.ErrSessionTerminal, status)
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSession reads one parsing session row into a domain object.
func scanSession(row rowScanner) (*domain.ParsingSession, error) {
	var (
		session            domain.ParsingSession
		insertAfterBlockID sql.NullString
		resultJSON         []byte
		errorMessage       sql.NullString
	)

	err := row.Scan(
		&session.ID,
		&session.OwnerID,
		&session.DocumentID,
		&session.SectionID,
		&session.SourceText,
		&insertAfterBlockID,
		&session.PlaceholderBlockID,
		&session.InsertIndex,
		&session.Status,
		&session.Progress,
		&session.Message,
		&resultJSON,
		&errorMessage,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if insertAfterBlockID.Valid {
		session.InsertAfterBlockID = &insertAfterBlockID.String
	}
	if errorMessage.Valid {
		session.ErrorMessage = &errorMessage.String
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &session.ResultBlocks); err != nil {
			return nil, fmt.Errorf("failed to decode result blocks: %w", err)
		}
	}

	return &session, nil
}

// marshalResultBlocks encodes a block list for storage, mapping a nil list to
// SQL NULL rather than an empty array. Only terminal completed rows hold a
// non-null result column.
func marshalResultBlocks(blocks domain.BlockList) (interface{}, error) {
	if blocks == nil {
		return nil, nil
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
