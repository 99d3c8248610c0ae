package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
)

// SectionStore defines the interface for section persistence.
//
// Block mutations follow the document-store contract backing the splice
// engine: every write touches exactly one array element, addressed by block
// id at execution time. Implementations must never rewrite the whole block
// array; concurrent editors and ingestions share these arrays.
type SectionStore interface {
	// Create saves a new section to the store.
	Create(ctx context.Context, section *domain.Section) error

	// GetByID retrieves a section, blocks included.
	// Returns ErrSectionNotFound if the section does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Section, error)

	// BlockIDs returns the ordered block ids of the section.
	// Returns ErrSectionNotFound if the section does not exist.
	BlockIDs(ctx context.Context, sectionID uuid.UUID) ([]string, error)

	// BlockIndex returns the current index of the block with the given id.
	// Returns ErrBlockNotFound if no block carries the id.
	BlockIndex(ctx context.Context, sectionID uuid.UUID, blockID string) (int, error)

	// GetBlock retrieves a single block by id.
	// Returns ErrBlockNotFound if no block carries the id.
	GetBlock(ctx context.Context, sectionID uuid.UUID, blockID string) (domain.Block, error)

	// InsertBlockAt inserts the block before the given index; an index at or
	// past the end appends. The write touches only the inserted element.
	InsertBlockAt(ctx context.Context, sectionID uuid.UUID, index int, block domain.Block) error

	// UpdateBlock replaces the block with the given id in place.
	// Returns ErrBlockNotFound if no block carries the id.
	UpdateBlock(ctx context.Context, sectionID uuid.UUID, blockID string, block domain.Block) error

	// RemoveBlock deletes the block with the given id.
	// Returns ErrBlockNotFound if no block carries the id.
	RemoveBlock(ctx context.Context, sectionID uuid.UUID, blockID string) error

	// WithTx returns a new SectionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SectionStore
}
