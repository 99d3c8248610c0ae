package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/events"
	"github.com/SugrSertraline/neu-ink-sub000/internal/redact"
)

// Progress checkpoints written by the ingestion work function. Completion
// always writes 100 and failure always resets to 0; these are the two
// intermediate values callers see while polling.
const (
	progressStructuring = 10
	progressSplicing    = 70
)

// Common errors
var (
	ErrNilSessionStore = errors.New("session store cannot be nil")
	ErrNilSectionStore = errors.New("section reader cannot be nil")
	ErrNilStructurer   = errors.New("structurer cannot be nil")
	ErrNilSplicer      = errors.New("splicer cannot be nil")
	ErrNilEmitter      = errors.New("event emitter cannot be nil")
	ErrNilLogger       = errors.New("logger cannot be nil")
	ErrEmptySessionID  = errors.New("session ID cannot be empty")
)

// SessionStore defines the session persistence operations the ingestion task
// needs. The full store interface lives in internal/store; this narrow view
// keeps the task decoupled and easy to test.
type SessionStore interface {
	// GetByID retrieves a session by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ParsingSession, error)

	// UpdateProgress applies an intermediate status/progress transition
	UpdateProgress(ctx context.Context, id uuid.UUID, status domain.ParsingSessionStatus, progress int, message string) error

	// MarkCompleted moves the session to completed with its result blocks
	MarkCompleted(ctx context.Context, id uuid.UUID, resultBlocks domain.BlockList) error

	// MarkFailed moves the session to failed with an error message
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// SectionReader provides the section lookup used for the prompt hint.
type SectionReader interface {
	// GetByID retrieves a section by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Section, error)
}

// Structurer defines the interface for the block structuring service.
type Structurer interface {
	// Structure converts free text into repaired, validated content blocks
	Structure(ctx context.Context, sessionID uuid.UUID, text, hint string) (domain.BlockList, error)
}

// Splicer defines the splice-engine operations the task drives: advancing
// the placeholder's visible stage and the final replacement.
type Splicer interface {
	// AdvancePlaceholder updates the placeholder's stage and result ids in place
	AdvancePlaceholder(ctx context.Context, sectionID uuid.UUID, placeholderID string, stage domain.PlaceholderStage, resultIDs []string) error

	// ReplaceWithResult swaps the placeholder for the result blocks
	ReplaceWithResult(ctx context.Context, sectionID uuid.UUID, placeholderID string, blocks domain.BlockList) ([]string, error)
}

// IngestionTask implements the Task interface for one text ingestion. Its
// task ID is the session ID, which is what makes duplicate submissions for
// the same session collapse in the executor.
type IngestionTask struct {
	sessionID  uuid.UUID
	sessions   SessionStore
	sections   SectionReader
	structurer Structurer
	splicer    Splicer
	emitter    events.EventEmitter
	logger     *slog.Logger
}

// NewIngestionTask creates a new ingestion task for the given session.
func NewIngestionTask(
	sessionID uuid.UUID,
	sessions SessionStore,
	sections SectionReader,
	structurer Structurer,
	splicer Splicer,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*IngestionTask, error) {
	if sessions == nil {
		return nil, ErrNilSessionStore
	}
	if sections == nil {
		return nil, ErrNilSectionStore
	}
	if structurer == nil {
		return nil, ErrNilStructurer
	}
	if splicer == nil {
		return nil, ErrNilSplicer
	}
	if emitter == nil {
		return nil, ErrNilEmitter
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if sessionID == uuid.Nil {
		return nil, ErrEmptySessionID
	}

	return &IngestionTask{
		sessionID:  sessionID,
		sessions:   sessions,
		sections:   sections,
		structurer: structurer,
		splicer:    splicer,
		emitter:    emitter,
		logger:     logger.With("task_type", TaskTypeTextIngestion, "session_id", sessionID),
	}, nil
}

// ID returns the task's unique identifier, which is the session ID.
func (t *IngestionTask) ID() uuid.UUID {
	return t.sessionID
}

// Type returns the task type identifier
func (t *IngestionTask) Type() string {
	return TaskTypeTextIngestion
}

// Execute runs the ingestion: structure the session's text into blocks,
// advance the placeholder, splice the blocks into the section, and record
// the terminal session state. Every error is terminal for the session; the
// pipeline never retries.
func (t *IngestionTask) Execute(ctx context.Context) error {
	t.logger.Info("starting text ingestion")

	// 1. Load the session. A terminal session means this is a duplicate or
	// replayed submission; there is nothing left to do.
	session, err := t.sessions.GetByID(ctx, t.sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session.IsTerminal() {
		t.logger.Info("session already terminal, skipping", "status", session.Status)
		return nil
	}

	// 2. First checkpoint: the model call is about to start.
	if err := t.advance(ctx, progressStructuring, "structuring source text"); err != nil {
		return t.fail(ctx, session, fmt.Errorf("%w: %v", domain.ErrStructuringFailed, err))
	}

	// 3. Structure the text, with the section title as the prompt hint.
	blocks, err := t.structurer.Structure(ctx, t.sessionID, session.SourceText, t.sectionHint(ctx, session.SectionID))
	if err != nil {
		return t.fail(ctx, session, fmt.Errorf("%w: %v", domain.ErrStructuringFailed, err))
	}
	t.logger.Info("structuring produced blocks", "count", len(blocks))

	// 4. Second checkpoint, and the placeholder starts advertising the ids
	// of the blocks that will replace it. A stage-advance failure is not
	// fatal on its own: the splice below addresses the placeholder by id and
	// raises the authoritative error if it is gone.
	if err := t.advance(ctx, progressSplicing, "preparing bilingual blocks"); err != nil {
		return t.fail(ctx, session, fmt.Errorf("%w: %v", domain.ErrSpliceFailed, err))
	}
	if err := t.splicer.AdvancePlaceholder(ctx, session.SectionID, session.PlaceholderBlockID,
		domain.PlaceholderStageTranslating, blocks.IDs()); err != nil {
		t.logger.Warn("failed to advance placeholder stage", "error", err)
	}

	// 5. Splice the result into the section. On failure the placeholder is
	// retained at its position as the visible signal of the stalled insert.
	if _, err := t.splicer.ReplaceWithResult(ctx, session.SectionID, session.PlaceholderBlockID, blocks); err != nil {
		return t.fail(ctx, session, fmt.Errorf("%w: %v", domain.ErrSpliceFailed, err))
	}

	// 6. Terminal success. An empty block list is still a success: the
	// placeholder is gone and the session completes with zero blocks.
	writeCtx := t.writeContext(ctx)
	if err := t.sessions.MarkCompleted(writeCtx, t.sessionID, blocks); err != nil {
		t.logger.Error("failed to mark session completed after successful splice", "error", err)
		return fmt.Errorf("failed to mark session completed: %w", err)
	}

	t.emit(writeCtx, domain.ParsingSessionStatusCompleted, 100, "completed")
	t.logger.Info("text ingestion completed", "blocks_spliced", len(blocks))
	return nil
}

// advance writes an intermediate progress checkpoint and emits the matching
// event.
func (t *IngestionTask) advance(ctx context.Context, progress int, message string) error {
	if err := t.sessions.UpdateProgress(ctx, t.sessionID, domain.ParsingSessionStatusProcessing, progress, message); err != nil {
		return err
	}
	t.emit(ctx, domain.ParsingSessionStatusProcessing, progress, message)
	return nil
}

// fail drives the session and its placeholder to their failed states and
// returns the cause for the executor's error handler. Terminal writes use a
// context that survives task cancellation, so a cancelled ingestion still
// records why it stopped.
func (t *IngestionTask) fail(ctx context.Context, session *domain.ParsingSession, cause error) error {
	writeCtx := t.writeContext(ctx)
	msg := redact.Error(cause)

	t.logger.Error("text ingestion failed", "error", cause)

	if err := t.sessions.MarkFailed(writeCtx, t.sessionID, msg); err != nil {
		t.logger.Error("failed to mark session failed", "error", err)
	}
	if err := t.splicer.AdvancePlaceholder(writeCtx, session.SectionID, session.PlaceholderBlockID,
		domain.PlaceholderStageFailed, nil); err != nil {
		t.logger.Warn("failed to mark placeholder failed", "error", err)
	}

	t.emit(writeCtx, domain.ParsingSessionStatusFailed, 0, msg)
	return cause
}

// writeContext detaches terminal writes from task cancellation while keeping
// the context's values (trace id, logger).
func (t *IngestionTask) writeContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// sectionHint fetches the section title for the structuring prompt. The hint
// is optional; a failed lookup just means a hint-less prompt.
func (t *IngestionTask) sectionHint(ctx context.Context, sectionID uuid.UUID) string {
	section, err := t.sections.GetByID(ctx, sectionID)
	if err != nil {
		t.logger.Warn("failed to load section for prompt hint", "error", err)
		return ""
	}
	if section.Title.EN != "" {
		return section.Title.EN
	}
	return section.Title.ZH
}

// emit publishes a session transition, best-effort.
func (t *IngestionTask) emit(ctx context.Context, status domain.ParsingSessionStatus, progress int, message string) {
	event := events.NewSessionEvent(t.sessionID, status, progress, message)
	if err := t.emitter.EmitEvent(ctx, event); err != nil {
		t.logger.Warn("failed to emit session event", "error", err)
	}
}
