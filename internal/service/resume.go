package service

import (
	"context"
	"errors"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/store"
)

// resolveSession runs the resume decision on a loaded session:
//
//   - terminal session → its stored state, no task interaction;
//   - in-flight session with a tracked task → live state, caller keeps
//     polling;
//   - in-flight session with no tracked task → the task was lost in a
//     process restart; the session is forced to failed here rather than
//     left processing forever.
//
// The lost-task write makes this the only status writer besides the task's
// own work function.
func (s *ingestionServiceImpl) resolveSession(
	ctx context.Context,
	session *domain.ParsingSession,
) (*IngestionStatus, error) {
	if session.IsTerminal() {
		return statusFromSession(session), nil
	}

	if _, tracked := s.executor.Get(session.ID); tracked {
		return statusFromSession(session), nil
	}

	s.logger.WarnContext(ctx, "session has no tracked task, forcing failed",
		"session_id", session.ID,
		"status", session.Status,
		"progress", session.Progress)

	err := s.sessions.MarkFailed(ctx, session.ID, domain.ErrTaskLost.Error())
	switch {
	case err == nil:
		s.markPlaceholderFailed(ctx, session)
	case errors.Is(err, store.ErrSessionTerminal):
		// The task finished in the window between our read and this write;
		// the re-read below returns the real terminal state.
	default:
		s.logger.ErrorContext(ctx, "failed to record lost task",
			"error", err,
			"session_id", session.ID)
		return nil, NewIngestionServiceError("get_status", "failed to record lost task", err)
	}

	fresh, err := s.sessions.GetByID(ctx, session.ID)
	if err != nil {
		return nil, NewIngestionServiceError("get_status", "failed to reload session", err)
	}
	return statusFromSession(fresh), nil
}

// markPlaceholderFailed advances the session's placeholder to the failed
// stage. Best-effort: the placeholder may already be gone, and the session's
// terminal state never depends on this write.
func (s *ingestionServiceImpl) markPlaceholderFailed(
	ctx context.Context,
	session *domain.ParsingSession,
) {
	if session.PlaceholderBlockID == "" {
		return
	}
	if err := s.splicer.AdvancePlaceholder(
		ctx, session.SectionID, session.PlaceholderBlockID,
		domain.PlaceholderStageFailed, nil); err != nil {
		s.logger.WarnContext(ctx, "failed to mark placeholder failed",
			"error", err,
			"section_id", session.SectionID,
			"placeholder_block_id", session.PlaceholderBlockID)
	}
}

// statusFromSession shapes the caller-facing view of a session. Result
// blocks appear only on completed sessions and the error only on failed
// ones, mirroring what the store guarantees about those fields.
func statusFromSession(session *domain.ParsingSession) *IngestionStatus {
	status := &IngestionStatus{
		SessionID:          session.ID,
		SectionID:          session.SectionID,
		PlaceholderBlockID: session.PlaceholderBlockID,
		Status:             session.Status,
		Progress:           session.Progress,
		Message:            session.Message,
	}

	switch session.Status {
	case domain.ParsingSessionStatusCompleted:
		status.ResultBlocks = session.ResultBlocks
	case domain.ParsingSessionStatusFailed:
		status.Error = session.ErrorMessage
	}
	return status
}
