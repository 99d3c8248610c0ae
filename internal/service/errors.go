package service

import (
	"errors"
	"fmt"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/store"
	"github.com/SugrSertraline/neu-ink-sub000/internal/task"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check these with errors.Is(); the API layer maps them to status
// codes.
var (
	// ErrSessionNotFound indicates the requested parsing session does not
	// exist. API layer should map this to HTTP 404 Not Found.
	ErrSessionNotFound = errors.New("parsing session not found")

	// ErrSectionNotFound indicates the target section does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrSectionNotFound = errors.New("section not found")
)

// IngestionServiceError wraps errors from the ingestion service with context.
type IngestionServiceError struct {
	// Operation is the operation that failed (e.g., "start_ingestion", "get_status")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for IngestionServiceError.
func (e *IngestionServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingestion service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("ingestion service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *IngestionServiceError) Unwrap() error {
	return e.Err
}

// NewIngestionServiceError creates a new IngestionServiceError.
// Sentinels the API layer maps directly (not-found, invalid input, queue
// full) pass through unwrapped.
func NewIngestionServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	// Service-level sentinels pass through directly
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSectionNotFound) {
		return err
	}

	// Input rejections and queue saturation keep their identity so the API
	// layer can map them without unwrapping service context
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, task.ErrQueueFull) {
		return err
	}

	// Store-level not-found errors map to service-level ones
	if errors.Is(err, store.ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	if errors.Is(err, store.ErrSectionNotFound) {
		return ErrSectionNotFound
	}

	return &IngestionServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
