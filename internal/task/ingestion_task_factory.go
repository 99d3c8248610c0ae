package task

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/events"
)

// IngestionTaskFactory creates IngestionTask instances bound to one
// deployment's stores, structurer, and splice engine.
type IngestionTaskFactory struct {
	sessions   SessionStore
	sections   SectionReader
	structurer Structurer
	splicer    Splicer
	emitter    events.EventEmitter
	logger     *slog.Logger
}

// NewIngestionTaskFactory creates a new factory for IngestionTasks
func NewIngestionTaskFactory(
	sessions SessionStore,
	sections SectionReader,
	structurer Structurer,
	splicer Splicer,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *IngestionTaskFactory {
	return &IngestionTaskFactory{
		sessions:   sessions,
		sections:   sections,
		structurer: structurer,
		splicer:    splicer,
		emitter:    emitter,
		logger:     logger.With("component", "ingestion_task_factory"),
	}
}

// NewTask creates a new IngestionTask for the specified session
func (f *IngestionTaskFactory) NewTask(sessionID uuid.UUID) (Task, error) {
	t, err := NewIngestionTask(
		sessionID,
		f.sessions,
		f.sections,
		f.structurer,
		f.splicer,
		f.emitter,
		f.logger,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}
