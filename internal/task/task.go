package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status represents the state of a task while the executor tracks it.
// Terminal tasks are not tracked: once Execute returns, the task leaves the
// registry, so a restart always starts from an empty registry.
type Status string

// Possible task status values
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
)

// Task type constants
const (
	// TaskTypeTextIngestion represents the task type for converting free text
	// into content blocks and splicing them into a section
	TaskTypeTextIngestion = "text_ingestion"
)

// Task represents a unit of background work to be processed.
//
// A task's ID doubles as its deduplication key: submitting a second task
// carrying an ID that is already pending or running is a no-op.
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic. The context is cancelled by executor
	// Cancel and by shutdown; the task must drive its own durable state to a
	// terminal value even then.
	Execute(ctx context.Context) error
}

// Snapshot is a point-in-time view of a tracked task, as returned by
// Executor.Get.
type Snapshot struct {
	// Status is pending until a worker picks the task up, then running.
	Status Status

	// EnqueuedAt is when Submit accepted the task.
	EnqueuedAt time.Time

	// StartedAt is when a worker began executing; zero while pending.
	StartedAt time.Time
}
