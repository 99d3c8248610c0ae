package events

import (
	"context"
	"log/slog"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
)

// LoggingHandler writes every session transition to the structured log. The
// composition root registers it so that session lifecycles are observable
// without any extra infrastructure: failed transitions at WARN, everything
// else at INFO.
type LoggingHandler struct {
	logger *slog.Logger
}

// NewLoggingHandler creates a LoggingHandler writing through the given logger.
func NewLoggingHandler(logger *slog.Logger) *LoggingHandler {
	return &LoggingHandler{
		logger: logger.With("component", "session_event_log"),
	}
}

// HandleEvent implements the EventHandler interface.
func (h *LoggingHandler) HandleEvent(ctx context.Context, event *SessionEvent) error {
	attrs := []any{
		"session_id", event.SessionID,
		"status", event.Status,
		"progress", event.Progress,
		"message", event.Message,
	}

	switch {
	case event.Status == domain.ParsingSessionStatusFailed:
		h.logger.WarnContext(ctx, "session failed", attrs...)
	case event.IsTerminal():
		h.logger.InfoContext(ctx, "session completed", attrs...)
	default:
		h.logger.InfoContext(ctx, "session progressed", attrs...)
	}
	return nil
}

// Ensure LoggingHandler implements EventHandler.
var _ EventHandler = (*LoggingHandler)(nil)
