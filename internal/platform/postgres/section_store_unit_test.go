package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/store"
)

func validHeading(t *testing.T) *domain.HeadingBlock {
	t.Helper()
	h := &domain.HeadingBlock{BlockMeta: domain.NewBlockMeta(), Level: 2}
	h.Content.EN = []domain.Inline{{Kind: domain.InlineText, Text: "Background"}}
	return h
}

func TestNewPostgresSectionStore(t *testing.T) {
	t.Parallel()

	t.Run("nil_db_panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			NewPostgresSectionStore(nil, nil)
		})
	})

	t.Run("valid_db", func(t *testing.T) {
		t.Parallel()
		s := NewPostgresSectionStore(&mockDBTX{}, nil)
		require.NotNil(t, s)
		assert.NotNil(t, s.logger)
	})
}

func TestSectionStoreCreateValidatesBlocks(t *testing.T) {
	t.Parallel()

	db := &mockDBTX{}
	s := NewPostgresSectionStore(db, nil)

	section, err := domain.NewSection(uuid.New(), domain.BilingualText{EN: "Methods"})
	require.NoError(t, err)

	bad := validHeading(t)
	bad.Level = 9
	section.Blocks = append(section.Blocks, bad)

	err = s.Create(context.Background(), section)
	assert.ErrorIs(t, err, domain.ErrInvalidHeadingLevel)
	assert.Zero(t, db.execCalls, "invalid section must not reach the database")
}

func TestSectionStoreInsertBlockAt(t *testing.T) {
	t.Parallel()

	t.Run("binds_index_and_typed_json", func(t *testing.T) {
		t.Parallel()

		db := &mockDBTX{}
		s := NewPostgresSectionStore(db, nil)
		block := validHeading(t)

		err := s.InsertBlockAt(context.Background(), uuid.New(), 3, block)
		require.NoError(t, err)

		assert.Contains(t, db.lastQuery, "jsonb_insert")
		require.Len(t, db.lastArgs, 3)
		assert.Equal(t, 3, db.lastArgs[1])

		blockJSON, ok := db.lastArgs[2].(string)
		require.True(t, ok, "block should be bound as a JSON string")

		var raw map[string]any
		require.NoError(t, json.Unmarshal([]byte(blockJSON), &raw))
		assert.Equal(t, "heading", raw["type"])
		assert.Equal(t, block.BlockID(), raw["id"])
	})

	t.Run("validates_block_first", func(t *testing.T) {
		t.Parallel()

		db := &mockDBTX{}
		s := NewPostgresSectionStore(db, nil)

		invalid := &domain.PlaceholderBlock{BlockMeta: domain.NewBlockMeta()}
		err := s.InsertBlockAt(context.Background(), uuid.New(), 0, invalid)
		assert.Error(t, err)
		assert.Zero(t, db.execCalls)
	})

	t.Run("missing_section_maps_to_sentinel", func(t *testing.T) {
		t.Parallel()

		db := &mockDBTX{execResult: fakeResult{rows: 0}}
		s := NewPostgresSectionStore(db, nil)

		err := s.InsertBlockAt(context.Background(), uuid.New(), 0, validHeading(t))
		assert.ErrorIs(t, err, store.ErrSectionNotFound)
	})
}

func TestSectionStoreUpdateBlockAddressesByID(t *testing.T) {
	t.Parallel()

	db := &mockDBTX{}
	s := NewPostgresSectionStore(db, nil)
	block := validHeading(t)

	err := s.UpdateBlock(context.Background(), uuid.New(), block.BlockID(), block)
	require.NoError(t, err)

	assert.Contains(t, db.lastQuery, "jsonb_set")
	assert.Contains(t, db.lastQuery, "->> 'id' = $2")
	assert.Contains(t, db.lastQuery, "EXISTS")
	require.Len(t, db.lastArgs, 3)
	assert.Equal(t, block.BlockID(), db.lastArgs[1])
}

func TestSectionStoreRemoveBlockAddressesByID(t *testing.T) {
	t.Parallel()

	db := &mockDBTX{}
	s := NewPostgresSectionStore(db, nil)
	blockID := uuid.NewString()

	err := s.RemoveBlock(context.Background(), uuid.New(), blockID)
	require.NoError(t, err)

	assert.Contains(t, db.lastQuery, "#-")
	assert.Contains(t, db.lastQuery, "->> 'id' = $2")
	assert.Contains(t, db.lastQuery, "EXISTS")
	require.Len(t, db.lastArgs, 2)
	assert.Equal(t, blockID, db.lastArgs[1])
}

func TestSectionStoreWithTx(t *testing.T) {
	t.Parallel()

	original := NewPostgresSectionStore(&mockDBTX{}, nil)
	tx := &sql.Tx{}

	txStore := original.WithTx(tx)
	require.NotNil(t, txStore)

	impl, ok := txStore.(*PostgresSectionStore)
	require.True(t, ok)
	assert.Equal(t, store.DBTX(tx), impl.db)
	assert.Same(t, original.logger, impl.logger)
}
