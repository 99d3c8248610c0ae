package splice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/store"
)

// Common errors returned by the Engine
var (
	ErrNilDB           = errors.New("database cannot be nil")
	ErrNilSectionStore = errors.New("section store cannot be nil")
	ErrNilResultCache  = errors.New("result cache cannot be nil")
	ErrNilLogger       = errors.New("logger cannot be nil")

	// ErrNotPlaceholder is returned when an id addressed as a placeholder
	// resolves to a content block instead.
	ErrNotPlaceholder = errors.New("block is not a placeholder")
)

// Engine performs the placeholder lifecycle against a section's block array:
// insert, stage advance, replacement with the structured result, removal.
//
// Every mutation addresses its block by id at execution time. Indexes are
// located immediately before each write and never reused across writes, so a
// sibling appended by a concurrent editor keeps its position and is never
// overwritten by a stale offset.
type Engine struct {
	db       *sql.DB
	sections store.SectionStore
	cache    *ResultCache
	logger   *slog.Logger
}

// NewEngine creates a splice engine over the given section store and
// fallback result cache.
func NewEngine(
	db *sql.DB,
	sections store.SectionStore,
	cache *ResultCache,
	logger *slog.Logger,
) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if sections == nil {
		return nil, ErrNilSectionStore
	}
	if cache == nil {
		return nil, ErrNilResultCache
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &Engine{
		db:       db,
		sections: sections,
		cache:    cache,
		logger:   logger.With(slog.String("component", "splice_engine")),
	}, nil
}

// InsertPlaceholder inserts a fresh placeholder for the session immediately
// after afterBlockID, or appends when afterBlockID is nil or no longer
// present. It returns the placeholder and the index it landed at; the index
// is diagnostic only and must never be used to address the placeholder
// later.
func (e *Engine) InsertPlaceholder(
	ctx context.Context,
	sectionID uuid.UUID,
	afterBlockID *string,
	sessionID uuid.UUID,
) (*domain.PlaceholderBlock, int, error) {
	placeholder := domain.NewPlaceholderBlock(sessionID)

	var index int
	err := store.RunInTransaction(ctx, e.db, func(ctx context.Context, tx *sql.Tx) error {
		s := e.sections.WithTx(tx)

		ids, err := s.BlockIDs(ctx, sectionID)
		if err != nil {
			return err
		}

		index = len(ids)
		if afterBlockID != nil {
			anchorIndex, err := s.BlockIndex(ctx, sectionID, *afterBlockID)
			switch {
			case errors.Is(err, store.ErrBlockNotFound):
				// The anchor vanished between the caller reading the
				// section and this write; fall back to appending.
				e.logger.DebugContext(ctx, "anchor block gone, appending placeholder",
					slog.String("section_id", sectionID.String()),
					slog.String("after_block_id", *afterBlockID))
			case err != nil:
				return err
			default:
				index = anchorIndex + 1
			}
		}

		return s.InsertBlockAt(ctx, sectionID, index, placeholder)
	})
	if err != nil {
		return nil, 0, err
	}

	e.logger.DebugContext(ctx, "placeholder inserted",
		slog.String("section_id", sectionID.String()),
		slog.String("placeholder_id", placeholder.BlockID()),
		slog.String("session_id", sessionID.String()),
		slog.Int("index", index))

	return placeholder, index, nil
}

// AdvancePlaceholder updates the placeholder's stage and advertised result
// ids in place, located by id. Returns store.ErrBlockNotFound if the
// placeholder is gone and ErrNotPlaceholder if the id resolves to a content
// block.
func (e *Engine) AdvancePlaceholder(
	ctx context.Context,
	sectionID uuid.UUID,
	placeholderID string,
	stage domain.PlaceholderStage,
	resultIDs []string,
) error {
	err := store.RunInTransaction(ctx, e.db, func(ctx context.Context, tx *sql.Tx) error {
		s := e.sections.WithTx(tx)

		placeholder, err := e.getPlaceholder(ctx, s, sectionID, placeholderID)
		if err != nil {
			return err
		}

		placeholder.Stage = stage
		placeholder.ResultBlockIDs = resultIDs
		return s.UpdateBlock(ctx, sectionID, placeholderID, placeholder)
	})
	if err != nil {
		return err
	}

	e.logger.DebugContext(ctx, "placeholder advanced",
		slog.String("section_id", sectionID.String()),
		slog.String("placeholder_id", placeholderID),
		slog.String("stage", string(stage)))

	return nil
}

// ReplaceWithResult splices the structured blocks into the section at the
// placeholder's current position and removes the placeholder. It returns the
// ids of the blocks this splice actually added.
//
// The placeholder is located by id, never by the index recorded at insertion
// time. The returned ids are deduplicated against a snapshot of the
// section's id set taken immediately before insertion: a block id that a
// concurrent writer landed first is never claimed as new.
//
// An empty blocks list is a valid result: the placeholder is removed, zero
// blocks are added, and the empty outcome is still remembered in the cache.
func (e *Engine) ReplaceWithResult(
	ctx context.Context,
	sectionID uuid.UUID,
	placeholderID string,
	blocks domain.BlockList,
) ([]string, error) {
	var newIDs []string

	err := store.RunInTransaction(ctx, e.db, func(ctx context.Context, tx *sql.Tx) error {
		s := e.sections.WithTx(tx)

		if _, err := e.getPlaceholder(ctx, s, sectionID, placeholderID); err != nil {
			return err
		}

		// Snapshot the id set before any insertion. Only ids absent from
		// this snapshot count as newly added.
		existing, err := s.BlockIDs(ctx, sectionID)
		if err != nil {
			return err
		}
		before := make(map[string]struct{}, len(existing))
		for _, id := range existing {
			before[id] = struct{}{}
		}

		// Insert one-by-one, re-locating the placeholder before every
		// write: each landed block shifts the placeholder right, so a
		// reused index would scatter the results. A mid-loop failure rolls
		// the whole transaction back, retaining the placeholder with no
		// partial blocks.
		for i, block := range blocks {
			index, err := s.BlockIndex(ctx, sectionID, placeholderID)
			if err != nil {
				return fmt.Errorf("locating placeholder for block %d of %d: %w",
					i+1, len(blocks), err)
			}
			if err := s.InsertBlockAt(ctx, sectionID, index, block); err != nil {
				return fmt.Errorf("inserting block %d of %d: %w",
					i+1, len(blocks), err)
			}
		}

		newIDs = make([]string, 0, len(blocks))
		for _, block := range blocks {
			if _, taken := before[block.BlockID()]; taken {
				continue
			}
			newIDs = append(newIDs, block.BlockID())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Remembered after the insertion commits and before the placeholder is
	// removed, so a reader never finds both gone with nothing to resolve
	// against.
	e.cache.Remember(placeholderID, sectionID, newIDs)

	if err := e.RemovePlaceholder(ctx, sectionID, placeholderID); err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "placeholder replaced with result",
		slog.String("section_id", sectionID.String()),
		slog.String("placeholder_id", placeholderID),
		slog.Int("result_count", len(blocks)),
		slog.Int("new_count", len(newIDs)))

	return newIDs, nil
}

// RemovePlaceholder deletes the placeholder by id. It refuses to remove a
// content block that happens to carry the given id.
func (e *Engine) RemovePlaceholder(
	ctx context.Context,
	sectionID uuid.UUID,
	placeholderID string,
) error {
	return store.RunInTransaction(ctx, e.db, func(ctx context.Context, tx *sql.Tx) error {
		s := e.sections.WithTx(tx)

		if _, err := e.getPlaceholder(ctx, s, sectionID, placeholderID); err != nil {
			return err
		}
		return s.RemoveBlock(ctx, sectionID, placeholderID)
	})
}

// CachedResult resolves a removed placeholder through the fallback cache.
func (e *Engine) CachedResult(placeholderID string) (ResultEntry, bool) {
	return e.cache.Lookup(placeholderID)
}

// getPlaceholder loads the block with the given id and asserts it is a
// placeholder.
func (e *Engine) getPlaceholder(
	ctx context.Context,
	s store.SectionStore,
	sectionID uuid.UUID,
	placeholderID string,
) (*domain.PlaceholderBlock, error) {
	block, err := s.GetBlock(ctx, sectionID, placeholderID)
	if err != nil {
		return nil, err
	}

	placeholder, ok := block.(*domain.PlaceholderBlock)
	if !ok {
		return nil, fmt.Errorf("%w: %s in section %s is %s",
			ErrNotPlaceholder, placeholderID, sectionID, block.Kind())
	}
	return placeholder, nil
}
