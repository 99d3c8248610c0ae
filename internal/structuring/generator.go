package structuring

import (
	"context"
	"errors"
)

// Common errors returned by the structuring package and its providers
var (
	// ErrMalformedOutput is returned when the model reply cannot be parsed as
	// a JSON array of block elements. The attempt is never retried; the raw
	// reply is persisted through the FailureSink for postmortem.
	ErrMalformedOutput = errors.New("model output is not a JSON block array")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrEmptyReply is returned when the model produces no usable candidate text
	ErrEmptyReply = errors.New("language model returned an empty reply")

	// ErrGenerationUnavailable is returned for transport-level failures that
	// would resolve on a later attempt. Classification is informational; no
	// layer retries a structuring call.
	ErrGenerationUnavailable = errors.New("language model service unavailable")

	// ErrInvalidConfig is returned when a provider configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")
)

// TextGenerator is the boundary between the structuring pipeline and an
// external language model service. Implementations are stateless adapters
// that send one prompt and return the reply text.
type TextGenerator interface {
	// GenerateText sends the prompt and returns the model's reply text.
	// Errors are classified against the sentinels above where possible.
	GenerateText(ctx context.Context, prompt string) (string, error)
}
