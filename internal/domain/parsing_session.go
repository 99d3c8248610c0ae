package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ParsingSessionStatus represents the processing state of a parsing session.
type ParsingSessionStatus string

// Possible parsing session status values. Transitions are monotonic:
// pending → processing → completed or failed, and a terminal status is
// never overwritten.
const (
	ParsingSessionStatusPending    ParsingSessionStatus = "pending"
	ParsingSessionStatusProcessing ParsingSessionStatus = "processing"
	ParsingSessionStatusCompleted  ParsingSessionStatus = "completed"
	ParsingSessionStatusFailed     ParsingSessionStatus = "failed"
)

// Common validation errors for ParsingSession
var (
	ErrEmptySessionID         = errors.New("session ID cannot be empty")
	ErrEmptySessionOwnerID    = errors.New("session owner ID cannot be empty")
	ErrEmptySessionDocument   = errors.New("session document ID cannot be empty")
	ErrEmptySessionSection    = errors.New("session section ID cannot be empty")
	ErrEmptySessionText       = errors.New("session source text cannot be empty")
	ErrInvalidSessionStatus   = errors.New("invalid session status")
	ErrInvalidProgress        = errors.New("progress must be between 0 and 100")
	ErrMissingResultBlocks    = errors.New("completed session must carry result blocks")
	ErrMissingErrorMessage    = errors.New("failed session must carry an error message")
	ErrSessionStatusRegress   = errors.New("session status cannot move backwards")
	ErrSessionAlreadyTerminal = errors.New("session is already in a terminal state")
)

// ParsingSession is the durable record of one text ingestion: the submitted
// text, the target position, the placeholder occupying it, and the
// progress/status state that callers poll and the resume coordinator
// inspects after restarts.
type ParsingSession struct {
	ID                 uuid.UUID            `json:"id"`
	OwnerID            uuid.UUID            `json:"owner_id"`
	DocumentID         uuid.UUID            `json:"document_id"`
	SectionID          uuid.UUID            `json:"section_id"`
	SourceText         string               `json:"source_text"`
	InsertAfterBlockID *string              `json:"insert_after_block_id,omitempty"`
	PlaceholderBlockID string               `json:"placeholder_block_id"`
	InsertIndex        int                  `json:"insert_index"`
	Status             ParsingSessionStatus `json:"status"`
	Progress           int                  `json:"progress"`
	Message            string               `json:"message"`
	ResultBlocks       BlockList            `json:"result_blocks,omitempty"`
	ErrorMessage       *string              `json:"error_message,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// NewParsingSession creates a pending session for the given owner, document,
// section, and source text. The placeholder fields are filled in once the
// splice engine has inserted the placeholder.
func NewParsingSession(
	ownerID, documentID, sectionID uuid.UUID,
	sourceText string,
	insertAfterBlockID *string,
) (*ParsingSession, error) {
	now := time.Now().UTC()
	session := &ParsingSession{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		DocumentID:         documentID,
		SectionID:          sectionID,
		SourceText:         sourceText,
		InsertAfterBlockID: insertAfterBlockID,
		Status:             ParsingSessionStatusPending,
		Progress:           0,
		Message:            "queued",
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// Validate checks the session's field and status invariants.
func (s *ParsingSession) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySessionID
	}
	if s.OwnerID == uuid.Nil {
		return ErrEmptySessionOwnerID
	}
	if s.DocumentID == uuid.Nil {
		return ErrEmptySessionDocument
	}
	if s.SectionID == uuid.Nil {
		return ErrEmptySessionSection
	}
	if s.SourceText == "" {
		return ErrEmptySessionText
	}
	if !isValidSessionStatus(s.Status) {
		return ErrInvalidSessionStatus
	}
	if s.Progress < 0 || s.Progress > 100 {
		return ErrInvalidProgress
	}
	if s.Status == ParsingSessionStatusCompleted && s.ResultBlocks == nil {
		return ErrMissingResultBlocks
	}
	if s.Status == ParsingSessionStatusFailed && s.ErrorMessage == nil {
		return ErrMissingErrorMessage
	}
	return nil
}

// IsTerminal reports whether the session has reached a final state.
func (s *ParsingSession) IsTerminal() bool {
	return s.Status == ParsingSessionStatusCompleted || s.Status == ParsingSessionStatusFailed
}

// UpdateProgress applies an intermediate (non-terminal) transition. It
// refuses to touch a terminal session and refuses a return to pending.
func (s *ParsingSession) UpdateProgress(status ParsingSessionStatus, progress int, message string) error {
	if s.IsTerminal() {
		return ErrSessionAlreadyTerminal
	}
	if status != ParsingSessionStatusPending && status != ParsingSessionStatusProcessing {
		return ErrInvalidSessionStatus
	}
	if s.Status == ParsingSessionStatusProcessing && status == ParsingSessionStatusPending {
		return ErrSessionStatusRegress
	}
	if progress < 0 || progress > 100 {
		return ErrInvalidProgress
	}

	s.Status = status
	s.Progress = progress
	s.Message = message
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkCompleted moves the session to its successful terminal state. An empty
// result list is a valid success and is stored as an empty, non-nil list.
func (s *ParsingSession) MarkCompleted(resultBlocks BlockList) error {
	if s.IsTerminal() {
		return ErrSessionAlreadyTerminal
	}
	if resultBlocks == nil {
		resultBlocks = BlockList{}
	}

	s.Status = ParsingSessionStatusCompleted
	s.Progress = 100
	s.Message = "completed"
	s.ResultBlocks = resultBlocks
	s.ErrorMessage = nil
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed moves the session to its failed terminal state.
func (s *ParsingSession) MarkFailed(errMsg string) error {
	if s.IsTerminal() {
		return ErrSessionAlreadyTerminal
	}
	if errMsg == "" {
		return ErrMissingErrorMessage
	}

	s.Status = ParsingSessionStatusFailed
	s.Progress = 0
	s.Message = "failed"
	s.ErrorMessage = &errMsg
	s.ResultBlocks = nil
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidSessionStatus checks if the given status is a valid ParsingSessionStatus.
func isValidSessionStatus(status ParsingSessionStatus) bool {
	switch status {
	case ParsingSessionStatusPending, ParsingSessionStatusProcessing,
		ParsingSessionStatusCompleted, ParsingSessionStatusFailed:
		return true
	default:
		return false
	}
}
