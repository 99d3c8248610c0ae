package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/splice"
	"github.com/SugrSertraline/neu-ink-sub000/internal/store"
	"github.com/SugrSertraline/neu-ink-sub000/internal/task"
)

// SectionReader provides the section lookups the service needs: the
// existence/ownership check at start and the placeholder-presence probe for
// splice lookups.
type SectionReader interface {
	// GetByID retrieves a section, blocks included
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Section, error)

	// BlockIndex returns the current index of the block with the given id
	BlockIndex(ctx context.Context, sectionID uuid.UUID, blockID string) (int, error)
}

// PlaceholderSplicer is the slice of the splice engine the service drives.
// The replacement itself belongs to the background task, not to the service.
type PlaceholderSplicer interface {
	// InsertPlaceholder inserts a fresh placeholder for the session
	InsertPlaceholder(
		ctx context.Context,
		sectionID uuid.UUID,
		afterBlockID *string,
		sessionID uuid.UUID,
	) (*domain.PlaceholderBlock, int, error)

	// AdvancePlaceholder updates the placeholder's stage in place
	AdvancePlaceholder(
		ctx context.Context,
		sectionID uuid.UUID,
		placeholderID string,
		stage domain.PlaceholderStage,
		resultIDs []string,
	) error

	// RemovePlaceholder deletes the placeholder by id
	RemovePlaceholder(ctx context.Context, sectionID uuid.UUID, placeholderID string) error

	// CachedResult resolves a removed placeholder through the fallback cache
	CachedResult(placeholderID string) (splice.ResultEntry, bool)
}

// TaskExecutor is the slice of the executor the service drives.
type TaskExecutor interface {
	// Submit offers a task; false with a nil error means it was already tracked
	Submit(ctx context.Context, t task.Task) (bool, error)

	// Get reports whether a task is tracked and its lifecycle snapshot
	Get(taskID uuid.UUID) (task.Snapshot, bool)

	// Cancel requests best-effort cancellation of a tracked task
	Cancel(taskID uuid.UUID) bool
}

// TaskFactory builds the background task for a session.
type TaskFactory interface {
	// NewTask creates the ingestion task whose ID is the session ID
	NewTask(sessionID uuid.UUID) (task.Task, error)
}

// StartIngestionRequest carries one ingestion submission.
type StartIngestionRequest struct {
	DocumentID      uuid.UUID
	SectionID       uuid.UUID
	Text            string
	AfterBlockID    *string
	ResumeSessionID *uuid.UUID
}

// StartIngestionResult reports the accepted session. On the resume path
// Status carries the resolved session state and Resumed is true.
type StartIngestionResult struct {
	SessionID          uuid.UUID
	PlaceholderBlockID string
	Resumed            bool
	Status             *IngestionStatus
}

// IngestionStatus is the caller-facing view of one session, assembled after
// the resume decision has run.
type IngestionStatus struct {
	SessionID          uuid.UUID
	SectionID          uuid.UUID
	PlaceholderBlockID string
	Status             domain.ParsingSessionStatus
	Progress           int
	Message            string
	ResultBlocks       domain.BlockList
	Error              *string
}

// SpliceLookup is the answer to the fallback-cache read path. Exactly one
// shape applies: placeholder still present (Pending), resolved block ids, or
// empty when nothing is known.
type SpliceLookup struct {
	Pending  bool
	BlockIDs []string
}

// IngestionService exposes the ingestion pipeline to callers: start (or
// resume), poll, cancel, list, and the fallback splice lookup.
type IngestionService interface {
	// StartIngestion validates the request, creates the session and its
	// placeholder, and enqueues the background task. With ResumeSessionID
	// set it resolves the existing session instead; nothing new is created.
	StartIngestion(
		ctx context.Context,
		ownerID uuid.UUID,
		req StartIngestionRequest,
	) (*StartIngestionResult, error)

	// GetStatus resolves the session's current state. Reading status runs
	// the resume decision: a session whose task vanished in a restart is
	// forced to failed here.
	GetStatus(ctx context.Context, sessionID uuid.UUID) (*IngestionStatus, error)

	// CancelIngestion requests best-effort cancellation of the session's
	// task. Terminal sessions are a no-op success.
	CancelIngestion(ctx context.Context, sessionID uuid.UUID) error

	// ListActiveSessions returns the owner's pending and processing
	// sessions, newest first.
	ListActiveSessions(ctx context.Context, ownerID uuid.UUID) ([]*domain.ParsingSession, error)

	// LookupSpliceResult resolves which blocks replaced a placeholder when
	// the caller's fresh section read shows neither the placeholder nor the
	// expected blocks. A miss is an empty result, never an error.
	LookupSpliceResult(
		ctx context.Context,
		sectionID uuid.UUID,
		placeholderID string,
	) (*SpliceLookup, error)
}

// ingestionServiceImpl implements the IngestionService interface
type ingestionServiceImpl struct {
	sessions        store.ParsingSessionStore
	sections        SectionReader
	splicer         PlaceholderSplicer
	executor        TaskExecutor
	taskFactory     TaskFactory
	maxRequestChars int
	logger          *slog.Logger
}

// NewIngestionService creates a new IngestionService.
// It returns an error if any of the required dependencies are nil.
func NewIngestionService(
	sessions store.ParsingSessionStore,
	sections SectionReader,
	splicer PlaceholderSplicer,
	executor TaskExecutor,
	taskFactory TaskFactory,
	maxRequestChars int,
	logger *slog.Logger,
) (IngestionService, error) {
	if sessions == nil {
		return nil, &IngestionServiceError{
			Operation: "create_service",
			Message:   "sessions cannot be nil",
		}
	}
	if sections == nil {
		return nil, &IngestionServiceError{
			Operation: "create_service",
			Message:   "sections cannot be nil",
		}
	}
	if splicer == nil {
		return nil, &IngestionServiceError{
			Operation: "create_service",
			Message:   "splicer cannot be nil",
		}
	}
	if executor == nil {
		return nil, &IngestionServiceError{
			Operation: "create_service",
			Message:   "executor cannot be nil",
		}
	}
	if taskFactory == nil {
		return nil, &IngestionServiceError{
			Operation: "create_service",
			Message:   "taskFactory cannot be nil",
		}
	}
	if maxRequestChars <= 0 {
		return nil, &IngestionServiceError{
			Operation: "create_service",
			Message:   "maxRequestChars must be positive",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &ingestionServiceImpl{
		sessions:        sessions,
		sections:        sections,
		splicer:         splicer,
		executor:        executor,
		taskFactory:     taskFactory,
		maxRequestChars: maxRequestChars,
		logger:          logger.With("component", "ingestion_service"),
	}, nil
}

// inputError marks a caller mistake rejected before any session or
// placeholder exists.
func inputError(message string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, message)
}

// StartIngestion validates the request, inserts the placeholder, persists
// the pending session, and submits the background task. Any failure after
// the placeholder exists compensates or terminates the session so nothing
// dangles.
func (s *ingestionServiceImpl) StartIngestion(
	ctx context.Context,
	ownerID uuid.UUID,
	req StartIngestionRequest,
) (*StartIngestionResult, error) {
	if req.ResumeSessionID != nil {
		return s.resumeIngestion(ctx, *req.ResumeSessionID)
	}

	if ownerID == uuid.Nil {
		return nil, inputError("owner id cannot be empty")
	}
	if req.DocumentID == uuid.Nil {
		return nil, inputError("document id cannot be empty")
	}
	if req.SectionID == uuid.Nil {
		return nil, inputError("section id cannot be empty")
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, inputError("text cannot be empty")
	}
	if utf8.RuneCountInString(text) > s.maxRequestChars {
		return nil, inputError(
			fmt.Sprintf("text exceeds the maximum of %d characters", s.maxRequestChars))
	}

	section, err := s.sections.GetByID(ctx, req.SectionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load target section",
			"error", err,
			"section_id", req.SectionID)
		return nil, NewIngestionServiceError("start_ingestion", "failed to load section", err)
	}
	if section.DocumentID != req.DocumentID {
		return nil, inputError("section does not belong to the document")
	}

	session, err := domain.NewParsingSession(
		ownerID, req.DocumentID, req.SectionID, text, req.AfterBlockID)
	if err != nil {
		return nil, NewIngestionServiceError("start_ingestion", "failed to build session", err)
	}

	placeholder, index, err := s.splicer.InsertPlaceholder(
		ctx, req.SectionID, req.AfterBlockID, session.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to insert placeholder",
			"error", err,
			"section_id", req.SectionID,
			"session_id", session.ID)
		return nil, NewIngestionServiceError("start_ingestion", "failed to insert placeholder", err)
	}

	session.PlaceholderBlockID = placeholder.BlockID()
	session.InsertIndex = index

	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist session, removing placeholder",
			"error", err,
			"session_id", session.ID,
			"placeholder_block_id", session.PlaceholderBlockID)
		if removeErr := s.splicer.RemovePlaceholder(
			ctx, req.SectionID, session.PlaceholderBlockID); removeErr != nil {
			s.logger.ErrorContext(ctx, "failed to remove placeholder after create failure",
				"error", removeErr,
				"section_id", req.SectionID,
				"placeholder_block_id", session.PlaceholderBlockID)
		}
		return nil, NewIngestionServiceError("start_ingestion", "failed to persist session", err)
	}

	ingestionTask, err := s.taskFactory.NewTask(session.ID)
	if err != nil {
		s.failStart(ctx, session, "failed to build ingestion task")
		return nil, NewIngestionServiceError("start_ingestion", "failed to build task", err)
	}

	accepted, err := s.executor.Submit(ctx, ingestionTask)
	if err != nil {
		reason := "failed to enqueue ingestion task"
		if errors.Is(err, task.ErrQueueFull) {
			reason = "executor queue full"
		}
		s.failStart(ctx, session, reason)
		return nil, NewIngestionServiceError("start_ingestion", reason, err)
	}
	if !accepted {
		// A fresh session id cannot collide with a tracked task unless the
		// same request was replayed; the first submission wins either way.
		s.logger.WarnContext(ctx, "ingestion task already tracked",
			"session_id", session.ID)
	}

	s.logger.InfoContext(ctx, "ingestion started",
		"session_id", session.ID,
		"section_id", req.SectionID,
		"placeholder_block_id", session.PlaceholderBlockID,
		"insert_index", index)

	return &StartIngestionResult{
		SessionID:          session.ID,
		PlaceholderBlockID: session.PlaceholderBlockID,
	}, nil
}

// resumeIngestion resolves an existing session without creating anything
// new: no placeholder, no generation call, just the resume decision.
func (s *ingestionServiceImpl) resumeIngestion(
	ctx context.Context,
	sessionID uuid.UUID,
) (*StartIngestionResult, error) {
	status, err := s.GetStatus(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ingestion resumed",
		"session_id", sessionID,
		"status", status.Status)

	return &StartIngestionResult{
		SessionID:          status.SessionID,
		PlaceholderBlockID: status.PlaceholderBlockID,
		Resumed:            true,
		Status:             status,
	}, nil
}

// GetStatus loads the session and runs the resume decision on it.
func (s *ingestionServiceImpl) GetStatus(
	ctx context.Context,
	sessionID uuid.UUID,
) (*IngestionStatus, error) {
	if sessionID == uuid.Nil {
		return nil, inputError("session id cannot be empty")
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, store.ErrSessionNotFound) {
			s.logger.ErrorContext(ctx, "failed to load session",
				"error", err,
				"session_id", sessionID)
		}
		return nil, NewIngestionServiceError("get_status", "failed to load session", err)
	}

	return s.resolveSession(ctx, session)
}

// CancelIngestion requests best-effort cancellation. The session still
// reaches a terminal state through the task's own failure path; cancellation
// never writes session state directly.
func (s *ingestionServiceImpl) CancelIngestion(ctx context.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return inputError("session id cannot be empty")
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return NewIngestionServiceError("cancel_ingestion", "failed to load session", err)
	}

	if session.IsTerminal() {
		s.logger.DebugContext(ctx, "cancel requested for terminal session",
			"session_id", sessionID,
			"status", session.Status)
		return nil
	}

	cancelled := s.executor.Cancel(session.ID)
	s.logger.InfoContext(ctx, "ingestion cancellation requested",
		"session_id", sessionID,
		"task_tracked", cancelled)
	return nil
}

// ListActiveSessions returns the owner's pending and processing sessions.
func (s *ingestionServiceImpl) ListActiveSessions(
	ctx context.Context,
	ownerID uuid.UUID,
) ([]*domain.ParsingSession, error) {
	if ownerID == uuid.Nil {
		return nil, inputError("owner id cannot be empty")
	}

	sessions, err := s.sessions.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list active sessions",
			"error", err,
			"owner_id", ownerID)
		return nil, NewIngestionServiceError("list_active_sessions", "failed to list sessions", err)
	}
	return sessions, nil
}

// LookupSpliceResult answers the poller that cannot find its placeholder:
// still present means pending, a cache hit names the blocks that replaced
// it, and anything else is an empty answer.
func (s *ingestionServiceImpl) LookupSpliceResult(
	ctx context.Context,
	sectionID uuid.UUID,
	placeholderID string,
) (*SpliceLookup, error) {
	if sectionID == uuid.Nil {
		return nil, inputError("section id cannot be empty")
	}
	if placeholderID == "" {
		return nil, inputError("placeholder id cannot be empty")
	}

	_, err := s.sections.BlockIndex(ctx, sectionID, placeholderID)
	switch {
	case err == nil:
		return &SpliceLookup{Pending: true}, nil
	case errors.Is(err, store.ErrBlockNotFound), errors.Is(err, store.ErrSectionNotFound):
		// Placeholder (or the whole section) is gone; the cache is the only
		// remaining source.
	default:
		s.logger.ErrorContext(ctx, "failed to probe placeholder",
			"error", err,
			"section_id", sectionID,
			"placeholder_block_id", placeholderID)
		return nil, NewIngestionServiceError("lookup_splice_result", "failed to read section", err)
	}

	entry, ok := s.splicer.CachedResult(placeholderID)
	if !ok || entry.SectionID != sectionID {
		return &SpliceLookup{}, nil
	}

	return &SpliceLookup{BlockIDs: entry.BlockIDs}, nil
}

// failStart drives a session that never reached its task to failed and
// marks its placeholder, so a refused submission leaves a visible terminal
// session instead of a dangling pending one.
func (s *ingestionServiceImpl) failStart(
	ctx context.Context,
	session *domain.ParsingSession,
	reason string,
) {
	if err := s.sessions.MarkFailed(ctx, session.ID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to record start failure",
			"error", err,
			"session_id", session.ID,
			"reason", reason)
	}
	s.markPlaceholderFailed(ctx, session)
}
