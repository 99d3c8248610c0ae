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

// PostgresSectionStore implements the store.SectionStore interface using a
// PostgreSQL database. Section content lives in a single JSONB column and
// every block mutation is a single-element JSONB operation addressed by
// block ID. The element index is resolved inside the statement itself, so
// a stale index observed by the caller can never corrupt the array.
type PostgresSectionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Verify PostgresSectionStore implements store.SectionStore interface
var _ store.SectionStore = (*PostgresSectionStore)(nil)

// NewPostgresSectionStore creates a new PostgreSQL implementation of the
// SectionStore interface.
func NewPostgresSectionStore(db store.DBTX, log *slog.Logger) *PostgresSectionStore {
	if db == nil {
		panic("db cannot be nil for PostgresSectionStore")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresSectionStore{
		db:     db,
		logger: log.With(slog.String("component", "section_store")),
	}
}

// Create saves a new section to the database.
func (s *PostgresSectionStore) Create(ctx context.Context, section *domain.Section) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := section.Validate(); err != nil {
		log.Warn("section validation failed during creation",
			slog.String("error", err.Error()),
			slog.String("section_id", section.ID.String()))
		return err
	}

	blocksJSON, err := json.Marshal(section.Blocks)
	if err != nil {
		return fmt.Errorf("failed to encode section blocks: %w", err)
	}

	query := `
		INSERT INTO sections (id, document_id, title_en, title_zh, blocks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.db.ExecContext(ctx, query,
		section.ID,
		section.DocumentID,
		section.Title.EN,
		section.Title.ZH,
		string(blocksJSON),
		section.CreatedAt,
		section.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create section",
			slog.String("error", err.Error()),
			slog.String("section_id", section.ID.String()))
		return MapError(err)
	}

	log.Debug("section created successfully",
		slog.String("section_id", section.ID.String()),
		slog.Int("block_count", len(section.Blocks)))
	return nil
}

// GetByID retrieves a section by its unique ID, including its full block list.
// Returns store.ErrSectionNotFound if the section does not exist.
func (s *PostgresSectionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Section, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, document_id, title_en, title_zh, blocks, created_at, updated_at
		FROM sections
		WHERE id = $1
	`

	var (
		section    domain.Section
		blocksJSON []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&section.ID,
		&section.DocumentID,
		&section.Title.EN,
		&section.Title.ZH,
		&blocksJSON,
		&section.CreatedAt,
		&section.UpdatedAt,
	)
	if err != nil {
		if IsNotFoundError(err) {
			log.Debug("section not found", slog.String("section_id", id.String()))
			return nil, store.ErrSectionNotFound
		}
		log.Error("failed to get section",
			slog.String("error", err.Error()),
			slog.String("section_id", id.String()))
		return nil, MapError(err)
	}

	if len(blocksJSON) > 0 {
		if err := json.Unmarshal(blocksJSON, &section.Blocks); err != nil {
			return nil, fmt.Errorf("failed to decode section blocks: %w", err)
		}
	}

	return &section, nil
}

// BlockIDs returns the IDs of all blocks in the section in document order.
// Returns store.ErrSectionNotFound if the section does not exist; a section
// with no blocks yields an empty slice.
func (s *PostgresSectionStore) BlockIDs(ctx context.Context, sectionID uuid.UUID) ([]string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT elems.blk ->> 'id'
		FROM sections, jsonb_array_elements(sections.blocks) WITH ORDINALITY AS elems(blk, ord)
		WHERE sections.id = $1
		ORDER BY elems.ord
	`

	rows, err := s.db.QueryContext(ctx, query, sectionID)
	if err != nil {
		log.Error("failed to list block IDs",
			slog.String("error", err.Error()),
			slog.String("section_id", sectionID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan block ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	// Zero rows means either an empty section or no section at all.
	if len(ids) == 0 {
		if err := s.checkSectionExists(ctx, sectionID); err != nil {
			return nil, err
		}
	}

	return ids, nil
}

// BlockIndex returns the zero-based position of the block with the given ID.
// Returns store.ErrBlockNotFound if no block in the section carries that ID.
func (s *PostgresSectionStore) BlockIndex(ctx context.Context, sectionID uuid.UUID, blockID string) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT elems.ord - 1
		FROM sections, jsonb_array_elements(sections.blocks) WITH ORDINALITY AS elems(blk, ord)
		WHERE sections.id = $1 AND elems.blk ->> 'id' = $2
		LIMIT 1
	`

	var index int
	err := s.db.QueryRowContext(ctx, query, sectionID, blockID).Scan(&index)
	if err != nil {
		if IsNotFoundError(err) {
			if err := s.checkSectionExists(ctx, sectionID); err != nil {
				return 0, err
			}
			log.Debug("block not found in section",
				slog.String("section_id", sectionID.String()),
				slog.String("block_id", blockID))
			return 0, store.ErrBlockNotFound
		}
		log.Error("failed to locate block",
			slog.String("error", err.Error()),
			slog.String("section_id", sectionID.String()),
			slog.String("block_id", blockID))
		return 0, MapError(err)
	}

	return index, nil
}

// GetBlock retrieves a single block from the section by its ID.
func (s *PostgresSectionStore) GetBlock(ctx context.Context, sectionID uuid.UUID, blockID string) (domain.Block, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT elems.blk
		FROM sections, jsonb_array_elements(sections.blocks) AS elems(blk)
		WHERE sections.id = $1 AND elems.blk ->> 'id' = $2
		LIMIT 1
	`

	var blockJSON []byte
	err := s.db.QueryRowContext(ctx, query, sectionID, blockID).Scan(&blockJSON)
	if err != nil {
		if IsNotFoundError(err) {
			if err := s.checkSectionExists(ctx, sectionID); err != nil {
				return nil, err
			}
			return nil, store.ErrBlockNotFound
		}
		log.Error("failed to get block",
			slog.String("error", err.Error()),
			slog.String("section_id", sectionID.String()),
			slog.String("block_id", blockID))
		return nil, MapError(err)
	}

	block, err := domain.UnmarshalBlock(blockJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode block %s: %w", blockID, err)
	}

	return block, nil
}

// InsertBlockAt inserts a block before the given zero-based index. An index
// at or past the end of the array appends; the caller is responsible for
// clamping negative values.
func (s *PostgresSectionStore) InsertBlockAt(ctx context.Context, sectionID uuid.UUID, index int, block domain.Block) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := domain.ValidateBlock(block); err != nil {
		return err
	}

	blockJSON, err := domain.MarshalBlock(block)
	if err != nil {
		return fmt.Errorf("failed to encode block: %w", err)
	}

	query := `
		UPDATE sections
		SET blocks = jsonb_insert(blocks, ARRAY[$2::text], $3::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, sectionID, index, string(blockJSON))
	if err != nil {
		log.Error("failed to insert block",
			slog.String("error", err.Error()),
			slog.String("section_id", sectionID.String()),
			slog.String("block_id", block.BlockID()),
			slog.Int("index", index))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "section"); err != nil {
		return fmt.Errorf("%w: %v", store.ErrSectionNotFound, err)
	}

	log.Debug("block inserted",
		slog.String("section_id", sectionID.String()),
		slog.String("block_id", block.BlockID()),
		slog.Int("index", index))
	return nil
}

// UpdateBlock replaces the block carrying the given ID in place. The target
// index is resolved by ID inside the statement and the EXISTS guard keeps a
// missing block from touching the row at all.
func (s *PostgresSectionStore) UpdateBlock(ctx context.Context, sectionID uuid.UUID, blockID string, block domain.Block) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := domain.ValidateBlock(block); err != nil {
		return err
	}

	blockJSON, err := domain.MarshalBlock(block)
	if err != nil {
		return fmt.Errorf("failed to encode block: %w", err)
	}

	query := `
		UPDATE sections
		SET blocks = jsonb_set(blocks, ARRAY[(
		        SELECT (elems.ord - 1)::text
		        FROM jsonb_array_elements(sections.blocks) WITH ORDINALITY AS elems(blk, ord)
		        WHERE elems.blk ->> 'id' = $2
		        LIMIT 1
		    )], $3::jsonb),
		    updated_at = NOW()
		WHERE id = $1
		  AND EXISTS (
		        SELECT 1
		        FROM jsonb_array_elements(sections.blocks) AS guard(blk)
		        WHERE guard.blk ->> 'id' = $2
		  )
	`

	result, err := s.db.ExecContext(ctx, query, sectionID, blockID, string(blockJSON))
	if err != nil {
		log.Error("failed to update block",
			slog.String("error", err.Error()),
			slog.String("section_id", sectionID.String()),
			slog.String("block_id", blockID))
		return MapError(err)
	}

	if err := s.checkBlockUpdate(ctx, result, sectionID, blockID); err != nil {
		return err
	}

	log.Debug("block updated",
		slog.String("section_id", sectionID.String()),
		slog.String("block_id", blockID))
	return nil
}

// RemoveBlock deletes the block carrying the given ID from the section.
func (s *PostgresSectionStore) RemoveBlock(ctx context.Context, sectionID uuid.UUID, blockID string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE sections
		SET blocks = blocks #- ARRAY[(
		        SELECT (elems.ord - 1)::text
		        FROM jsonb_array_elements(sections.blocks) WITH ORDINALITY AS elems(blk, ord)
		        WHERE elems.blk ->> 'id' = $2
		        LIMIT 1
		    )],
		    updated_at = NOW()
		WHERE id = $1
		  AND EXISTS (
		        SELECT 1
		        FROM jsonb_array_elements(sections.blocks) AS guard(blk)
		        WHERE guard.blk ->> 'id' = $2
		  )
	`

	result, err := s.db.ExecContext(ctx, query, sectionID, blockID)
	if err != nil {
		log.Error("failed to remove block",
			slog.String("error", err.Error()),
			slog.String("section_id", sectionID.String()),
			slog.String("block_id", blockID))
		return MapError(err)
	}

	if err := s.checkBlockUpdate(ctx, result, sectionID, blockID); err != nil {
		return err
	}

	log.Debug("block removed",
		slog.String("section_id", sectionID.String()),
		slog.String("block_id", blockID))
	return nil
}

// WithTx returns a new store instance that uses the provided transaction.
func (s *PostgresSectionStore) WithTx(tx *sql.Tx) store.SectionStore {
	return &PostgresSectionStore{
		db:     tx,
		logger: s.logger,
	}
}

// checkSectionExists returns store.ErrSectionNotFound when no section row
// carries the given ID.
func (s *PostgresSectionStore) checkSectionExists(ctx context.Context, sectionID uuid.UUID) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sections WHERE id = $1)", sectionID).Scan(&exists)
	if err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrSectionNotFound
	}
	return nil
}

// checkBlockUpdate classifies a zero-row block mutation: either the section
// is gone or the section exists but no block carries the target ID.
func (s *PostgresSectionStore) checkBlockUpdate(ctx context.Context, result sql.Result, sectionID uuid.UUID, blockID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	if err := s.checkSectionExists(ctx, sectionID); err != nil {
		return err
	}
	return fmt.Errorf("%w: block %s", store.ErrBlockNotFound, blockID)
}
