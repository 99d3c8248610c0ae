package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/service"
	"github.com/SugrSertraline/neu-ink-sub000/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Caller mistakes rejected before any work happened
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	// Not found errors
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSectionNotFound):
		return http.StatusNotFound

	// Backpressure: the executor queue is full
	case errors.Is(err, task.ErrQueueFull):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns the client-visible message for an error.
// Invalid-input errors carry their own text back to the caller: that text is
// authored by the service's validation layer and names what to fix. Every
// other class gets a fixed message.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return err.Error()

	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrValidation):
		return "Invalid request"

	case errors.Is(err, service.ErrSessionNotFound):
		return "Parsing session not found"

	case errors.Is(err, service.ErrSectionNotFound):
		return "Section not found"

	case errors.Is(err, task.ErrQueueFull):
		return "Ingestion queue is full, retry later"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validator error into a user-friendly
// message without echoing struct internals.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	if strings.Contains(errMsg, "Field validation") {
		// Example: "Key: 'StartIngestionRequest.SectionID' Error:Field
		// validation for 'SectionID' failed on the 'uuid' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required", "required_without":
		return "required field"
	case "uuid":
		return "must be a UUID"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
