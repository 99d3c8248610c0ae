package store

import (
	"context"

	"github.com/google/uuid"
)

// StructuringFailureStore is the side channel for malformed model output.
// When a model reply cannot be parsed as a block array, the verbatim reply
// is recorded here for postmortem analysis and the attempt fails terminally.
//
// The channel is write-only from the application's point of view; operators
// read it with SQL. Recording is best-effort and must never mask the
// structuring error that triggered it.
type StructuringFailureStore interface {
	// Record persists one failure with the verbatim raw model response.
	Record(ctx context.Context, sessionID uuid.UUID, rawResponse, reason string) error
}
