package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Section
var (
	ErrEmptySectionID       = errors.New("section ID cannot be empty")
	ErrEmptySectionDocument = errors.New("section document ID cannot be empty")
)

// Section is one ordered run of content blocks inside a document. Its block
// array is the shared resource ingestion splices into, concurrently with
// interactive editing elsewhere in the platform, which is why every mutation
// is an id-addressed single-element operation at the store layer.
type Section struct {
	ID         uuid.UUID     `json:"id"`
	DocumentID uuid.UUID     `json:"document_id"`
	Title      BilingualText `json:"title"`
	Blocks     BlockList     `json:"blocks"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// NewSection creates an empty section in the given document.
func NewSection(documentID uuid.UUID, title BilingualText) (*Section, error) {
	now := time.Now().UTC()
	section := &Section{
		ID:         uuid.New(),
		DocumentID: documentID,
		Title:      title,
		Blocks:     BlockList{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := section.Validate(); err != nil {
		return nil, err
	}

	return section, nil
}

// Validate checks if the Section has valid data.
func (s *Section) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySectionID
	}
	if s.DocumentID == uuid.Nil {
		return ErrEmptySectionDocument
	}
	for _, b := range s.Blocks {
		if err := ValidateBlock(b); err != nil {
			return err
		}
	}
	return nil
}
