package splice

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewResultCache(t *testing.T) {
	t.Parallel()

	t.Run("nil_logger_panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			NewResultCache(time.Minute, 0, nil)
		})
	})

	t.Run("non_positive_ttl_uses_default", func(t *testing.T) {
		t.Parallel()
		cache := NewResultCache(0, 0, setupTestLogger())
		t.Cleanup(cache.Stop)
		assert.Equal(t, DefaultResultTTL, cache.ttl)
	})

	t.Run("non_positive_prune_interval_derives_from_ttl", func(t *testing.T) {
		t.Parallel()

		cache := NewResultCache(10*time.Second, 0, setupTestLogger())
		t.Cleanup(cache.Stop)
		assert.Equal(t, 10*time.Second, cache.prune, "short TTLs sweep at TTL cadence")

		slow := NewResultCache(time.Hour, 0, setupTestLogger())
		t.Cleanup(slow.Stop)
		assert.Equal(t, DefaultPruneInterval, slow.prune, "long TTLs sweep at the capped cadence")
	})

	t.Run("stop_is_idempotent", func(t *testing.T) {
		t.Parallel()
		cache := NewResultCache(time.Minute, 0, setupTestLogger())
		cache.Stop()
		cache.Stop()
	})
}

func TestResultCacheRememberLookup(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(time.Minute, 0, setupTestLogger())
	t.Cleanup(cache.Stop)

	placeholderID := uuid.NewString()

	t.Run("miss_on_unknown_id", func(t *testing.T) {
		entry, ok := cache.Lookup(uuid.NewString())
		assert.False(t, ok)
		assert.Zero(t, entry)
	})

	t.Run("round_trip", func(t *testing.T) {
		sectionID := uuid.New()
		blockIDs := []string{uuid.NewString(), uuid.NewString()}

		cache.Remember(placeholderID, sectionID, blockIDs)

		entry, ok := cache.Lookup(placeholderID)
		require.True(t, ok)
		assert.Equal(t, sectionID, entry.SectionID)
		assert.Equal(t, blockIDs, entry.BlockIDs)
		assert.WithinDuration(t, time.Now(), entry.StoredAt, time.Second)
	})

	t.Run("overwrites_by_key", func(t *testing.T) {
		latest := []string{uuid.NewString()}
		latestSection := uuid.New()

		cache.Remember(placeholderID, latestSection, latest)

		entry, ok := cache.Lookup(placeholderID)
		require.True(t, ok)
		assert.Equal(t, latestSection, entry.SectionID)
		assert.Equal(t, latest, entry.BlockIDs)
	})

	t.Run("empty_result_is_a_hit", func(t *testing.T) {
		emptyID := uuid.NewString()
		cache.Remember(emptyID, uuid.New(), []string{})

		entry, ok := cache.Lookup(emptyID)
		require.True(t, ok)
		assert.Empty(t, entry.BlockIDs)
	})
}

func TestResultCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(15*time.Millisecond, 0, setupTestLogger())
	t.Cleanup(cache.Stop)

	placeholderID := uuid.NewString()
	cache.Remember(placeholderID, uuid.New(), []string{uuid.NewString()})

	_, ok := cache.Lookup(placeholderID)
	require.True(t, ok, "fresh entry must hit")

	// Expired entries miss on Lookup even before the janitor sweeps them.
	assert.Eventually(t, func() bool {
		_, ok := cache.Lookup(placeholderID)
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestResultCacheJanitorPrunes(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(10*time.Millisecond, 10*time.Millisecond, setupTestLogger())
	t.Cleanup(cache.Stop)

	cache.Remember(uuid.NewString(), uuid.New(), []string{uuid.NewString()})
	cache.Remember(uuid.NewString(), uuid.New(), nil)

	assert.Eventually(t, func() bool {
		cache.mu.RLock()
		defer cache.mu.RUnlock()
		return len(cache.entries) == 0
	}, 2*time.Second, 10*time.Millisecond, "janitor should reclaim expired entries")
}
