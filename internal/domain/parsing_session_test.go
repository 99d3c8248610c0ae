package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewParsingSession(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	documentID := uuid.New()
	sectionID := uuid.New()
	text := "Maxwell's equations describe classical electromagnetism."

	session, err := NewParsingSession(ownerID, documentID, sectionID, text, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if session.ID == uuid.Nil {
		t.Error("Expected non-nil session UUID")
	}
	if session.Status != ParsingSessionStatusPending {
		t.Errorf("Expected status %s, got %s", ParsingSessionStatusPending, session.Status)
	}
	if session.Progress != 0 {
		t.Errorf("Expected progress 0, got %d", session.Progress)
	}
	if session.IsTerminal() {
		t.Error("New session must not be terminal")
	}
	if session.CreatedAt.IsZero() || session.UpdatedAt.IsZero() {
		t.Error("Expected non-zero timestamps")
	}

	// Missing owner
	if _, err := NewParsingSession(uuid.Nil, documentID, sectionID, text, nil); !errors.Is(err, ErrEmptySessionOwnerID) {
		t.Errorf("Expected %v, got %v", ErrEmptySessionOwnerID, err)
	}

	// Empty text
	if _, err := NewParsingSession(ownerID, documentID, sectionID, "", nil); !errors.Is(err, ErrEmptySessionText) {
		t.Errorf("Expected %v, got %v", ErrEmptySessionText, err)
	}
}

func TestParsingSessionTransitions(t *testing.T) {
	t.Parallel()

	newSession := func(t *testing.T) *ParsingSession {
		t.Helper()
		s, err := NewParsingSession(uuid.New(), uuid.New(), uuid.New(), "text", nil)
		if err != nil {
			t.Fatalf("NewParsingSession: %v", err)
		}
		return s
	}

	t.Run("pending to processing", func(t *testing.T) {
		t.Parallel()
		s := newSession(t)

		if err := s.UpdateProgress(ParsingSessionStatusProcessing, 10, "structuring source text"); err != nil {
			t.Fatalf("UpdateProgress: %v", err)
		}
		if s.Status != ParsingSessionStatusProcessing || s.Progress != 10 {
			t.Errorf("Expected processing/10, got %s/%d", s.Status, s.Progress)
		}
	})

	t.Run("processing cannot regress to pending", func(t *testing.T) {
		t.Parallel()
		s := newSession(t)

		if err := s.UpdateProgress(ParsingSessionStatusProcessing, 10, ""); err != nil {
			t.Fatalf("UpdateProgress: %v", err)
		}
		if err := s.UpdateProgress(ParsingSessionStatusPending, 0, ""); !errors.Is(err, ErrSessionStatusRegress) {
			t.Errorf("Expected %v, got %v", ErrSessionStatusRegress, err)
		}
	})

	t.Run("UpdateProgress rejects terminal statuses", func(t *testing.T) {
		t.Parallel()
		s := newSession(t)

		if err := s.UpdateProgress(ParsingSessionStatusCompleted, 100, ""); !errors.Is(err, ErrInvalidSessionStatus) {
			t.Errorf("Expected %v, got %v", ErrInvalidSessionStatus, err)
		}
	})

	t.Run("UpdateProgress rejects out-of-range progress", func(t *testing.T) {
		t.Parallel()
		s := newSession(t)

		if err := s.UpdateProgress(ParsingSessionStatusProcessing, 101, ""); !errors.Is(err, ErrInvalidProgress) {
			t.Errorf("Expected %v, got %v", ErrInvalidProgress, err)
		}
	})

	t.Run("completed session is sealed", func(t *testing.T) {
		t.Parallel()
		s := newSession(t)

		if err := s.MarkCompleted(BlockList{}); err != nil {
			t.Fatalf("MarkCompleted: %v", err)
		}
		if s.Progress != 100 {
			t.Errorf("Completed session must have progress 100, got %d", s.Progress)
		}
		if s.ResultBlocks == nil {
			t.Error("Completed session must carry non-nil result blocks")
		}
		if err := s.MarkFailed("late failure"); !errors.Is(err, ErrSessionAlreadyTerminal) {
			t.Errorf("Expected %v, got %v", ErrSessionAlreadyTerminal, err)
		}
		if err := s.UpdateProgress(ParsingSessionStatusProcessing, 50, ""); !errors.Is(err, ErrSessionAlreadyTerminal) {
			t.Errorf("Expected %v, got %v", ErrSessionAlreadyTerminal, err)
		}
	})

	t.Run("failed session carries error and zero progress", func(t *testing.T) {
		t.Parallel()
		s := newSession(t)

		if err := s.UpdateProgress(ParsingSessionStatusProcessing, 70, "splicing"); err != nil {
			t.Fatalf("UpdateProgress: %v", err)
		}
		if err := s.MarkFailed("model returned prose instead of JSON"); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
		if s.Progress != 0 {
			t.Errorf("Failed session must have progress 0, got %d", s.Progress)
		}
		if s.ErrorMessage == nil || *s.ErrorMessage == "" {
			t.Error("Failed session must carry an error message")
		}
		if err := s.MarkCompleted(BlockList{}); !errors.Is(err, ErrSessionAlreadyTerminal) {
			t.Errorf("Expected %v, got %v", ErrSessionAlreadyTerminal, err)
		}
	})

	t.Run("MarkFailed requires a message", func(t *testing.T) {
		t.Parallel()
		s := newSession(t)

		if err := s.MarkFailed(""); !errors.Is(err, ErrMissingErrorMessage) {
			t.Errorf("Expected %v, got %v", ErrMissingErrorMessage, err)
		}
	})
}

func TestParsingSessionValidate(t *testing.T) {
	t.Parallel()

	valid := func() *ParsingSession {
		s, _ := NewParsingSession(uuid.New(), uuid.New(), uuid.New(), "text", nil)
		return s
	}

	t.Run("completed without result blocks", func(t *testing.T) {
		t.Parallel()
		s := valid()
		s.Status = ParsingSessionStatusCompleted
		s.Progress = 100

		if err := s.Validate(); !errors.Is(err, ErrMissingResultBlocks) {
			t.Errorf("Expected %v, got %v", ErrMissingResultBlocks, err)
		}
	})

	t.Run("failed without error message", func(t *testing.T) {
		t.Parallel()
		s := valid()
		s.Status = ParsingSessionStatusFailed

		if err := s.Validate(); !errors.Is(err, ErrMissingErrorMessage) {
			t.Errorf("Expected %v, got %v", ErrMissingErrorMessage, err)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		t.Parallel()
		s := valid()
		s.Status = "archived"

		if err := s.Validate(); !errors.Is(err, ErrInvalidSessionStatus) {
			t.Errorf("Expected %v, got %v", ErrInvalidSessionStatus, err)
		}
	})
}
