package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
)

// ParsingSessionStore defines the interface for parsing session persistence.
//
// Status transitions written through this interface are monotonic: the
// implementation must guard terminal states at the storage layer so that a
// concurrent writer can never move a completed or failed session back to an
// intermediate state.
type ParsingSessionStore interface {
	// Create saves a new pending session to the store.
	// It handles domain validation internally.
	Create(ctx context.Context, session *domain.ParsingSession) error

	// GetByID retrieves a session by its unique ID.
	// Returns ErrSessionNotFound if the session does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ParsingSession, error)

	// UpdateProgress applies an intermediate (pending/processing) transition.
	// Returns ErrSessionNotFound if the session does not exist and
	// ErrSessionTerminal if it has already reached a terminal state.
	UpdateProgress(
		ctx context.Context,
		id uuid.UUID,
		status domain.ParsingSessionStatus,
		progress int,
		message string,
	) error

	// MarkCompleted moves the session to completed/100 and stores its result
	// blocks. An empty list is stored as an empty JSON array, never NULL.
	// Returns ErrSessionTerminal if the session is already terminal.
	MarkCompleted(ctx context.Context, id uuid.UUID, resultBlocks domain.BlockList) error

	// MarkFailed moves the session to failed/0 with the given error message.
	// Returns ErrSessionTerminal if the session is already terminal.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error

	// ListActiveByOwner retrieves the owner's pending and processing
	// sessions, newest first. Returns an empty slice when none match.
	ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.ParsingSession, error)

	// WithTx returns a new ParsingSessionStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) ParsingSessionStore
}
