package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
)

// SessionEvent represents one observed transition of a parsing session. The
// ingestion task emits an event on every transition it writes; handlers
// consume them for logging and any future notification fan-out.
type SessionEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// SessionID identifies the parsing session that transitioned
	SessionID uuid.UUID `json:"session_id"`

	// Status is the session status after the transition
	Status domain.ParsingSessionStatus `json:"status"`

	// Progress is the session progress after the transition, 0-100
	Progress int `json:"progress"`

	// Message is the human-readable progress or error message
	Message string `json:"message"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// NewSessionEvent creates a SessionEvent for the given transition.
func NewSessionEvent(
	sessionID uuid.UUID,
	status domain.ParsingSessionStatus,
	progress int,
	message string,
) *SessionEvent {
	return &SessionEvent{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Status:     status,
		Progress:   progress,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}

// IsTerminal reports whether the event describes a terminal transition.
func (e *SessionEvent) IsTerminal() bool {
	return e.Status == domain.ParsingSessionStatusCompleted ||
		e.Status == domain.ParsingSessionStatusFailed
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *SessionEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the ingestion task to publish transitions without direct
// knowledge of handlers. Emission is synchronous and best-effort: an emit
// error never affects session state.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *SessionEvent) error
}
