package splice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultResultTTL is how long a remembered splice result stays resolvable
// after its placeholder has been removed from the section.
const DefaultResultTTL = 10 * time.Minute

// DefaultPruneInterval caps how long expired entries can linger before the
// background sweep reclaims them when no explicit interval is configured.
const DefaultPruneInterval = time.Minute

// ResultEntry records which blocks replaced a placeholder.
type ResultEntry struct {
	SectionID uuid.UUID
	BlockIDs  []string
	StoredAt  time.Time
}

// ResultCache is a process-local TTL map from placeholder id to splice
// result. It covers one reader race: a poll that lands after the placeholder
// was removed but before the session's terminal state is visible. The cache
// is advisory only; it never feeds splice decisions or session state, and a
// miss is an empty answer, never an error.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]ResultEntry
	ttl     time.Duration
	prune   time.Duration

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
	logger     *slog.Logger
}

// NewResultCache creates a ResultCache and starts its janitor goroutine.
// A non-positive ttl falls back to DefaultResultTTL; a non-positive
// pruneInterval falls back to the smaller of the ttl and
// DefaultPruneInterval. Call Stop to terminate the janitor when the cache is
// no longer needed.
func NewResultCache(ttl, pruneInterval time.Duration, logger *slog.Logger) *ResultCache {
	if logger == nil {
		panic("logger cannot be nil")
	}
	if ttl <= 0 {
		logger.Warn("invalid result cache TTL specified, using default",
			"specified_ttl", ttl.String(),
			"default_ttl", DefaultResultTTL.String())
		ttl = DefaultResultTTL
	}
	if pruneInterval <= 0 {
		pruneInterval = ttl
		if pruneInterval > DefaultPruneInterval {
			pruneInterval = DefaultPruneInterval
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &ResultCache{
		entries:    make(map[string]ResultEntry),
		ttl:        ttl,
		prune:      pruneInterval,
		ctx:        ctx,
		cancelFunc: cancel,
		logger:     logger.With(slog.String("component", "result_cache")),
	}

	c.wg.Add(1)
	go c.janitor()

	return c
}

// Remember stores the splice result for a placeholder, overwriting any
// previous entry for the same id. The splice engine calls it exactly once
// per successful replacement, before the placeholder is removed, so there is
// never a window where a reader finds neither.
func (c *ResultCache) Remember(placeholderID string, sectionID uuid.UUID, blockIDs []string) {
	entry := ResultEntry{
		SectionID: sectionID,
		BlockIDs:  blockIDs,
		StoredAt:  time.Now(),
	}

	c.mu.Lock()
	c.entries[placeholderID] = entry
	c.mu.Unlock()
}

// Lookup returns the remembered result for a placeholder. Expired entries
// miss even if the janitor has not swept them yet.
func (c *ResultCache) Lookup(placeholderID string) (ResultEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[placeholderID]
	c.mu.RUnlock()

	if !ok || time.Since(entry.StoredAt) > c.ttl {
		return ResultEntry{}, false
	}
	return entry, true
}

// Stop terminates the janitor goroutine and waits for it to exit. It is safe
// to call more than once.
func (c *ResultCache) Stop() {
	c.stopOnce.Do(func() {
		c.cancelFunc()
		c.wg.Wait()
	})
}

// janitor prunes expired entries on a ticker until the cache is stopped.
// Lookup already treats expired entries as misses; the sweep just keeps the
// map from accumulating dead placeholders.
func (c *ResultCache) janitor() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.prune)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case <-ticker.C:
			cutoff := time.Now().Add(-c.ttl)

			c.mu.Lock()
			pruned := 0
			for id, entry := range c.entries {
				if entry.StoredAt.Before(cutoff) {
					delete(c.entries, id)
					pruned++
				}
			}
			c.mu.Unlock()

			if pruned > 0 {
				c.logger.Debug("pruned expired splice results",
					"pruned_count", pruned)
			}
		}
	}
}
