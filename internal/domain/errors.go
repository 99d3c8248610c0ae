// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidInput marks caller mistakes rejected before any session or
	// placeholder exists. The API layer maps it to a 400 response.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrStructuringFailed classifies ingestion failures in the structuring
	// step: generation failures and malformed model output. The session is
	// failed and its placeholder is marked failed but kept in place.
	ErrStructuringFailed = errors.New("structuring failed")

	// ErrSpliceFailed classifies ingestion failures while writing result
	// blocks into the section. The session is failed and the placeholder is
	// retained at its position.
	ErrSpliceFailed = errors.New("splice failed")

	// ErrTaskLost marks a session whose background task vanished in a
	// process restart. Its text is written verbatim into the session error
	// message by the resume coordinator.
	ErrTaskLost = errors.New("task lost during process restart")
)
