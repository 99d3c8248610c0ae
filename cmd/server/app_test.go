package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SugrSertraline/neu-ink-sub000/internal/config"
	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/splice"
	"github.com/SugrSertraline/neu-ink-sub000/internal/store"
)

func TestNewTextGenerator(t *testing.T) {
	t.Parallel()

	baseCfg := func(provider string) config.LLMConfig {
		return config.LLMConfig{
			Provider:              provider,
			APIKey:                "test-key",
			ModelName:             "test-model",
			MaxOutputTokens:       1024,
			RequestTimeoutSeconds: 30,
		}
	}

	t.Run("gemini", func(t *testing.T) {
		t.Parallel()

		gen, err := newTextGenerator(context.Background(), baseCfg("gemini"), setupTestLogger())
		require.NoError(t, err)
		assert.NotNil(t, gen)
	})

	t.Run("openai", func(t *testing.T) {
		t.Parallel()

		gen, err := newTextGenerator(context.Background(), baseCfg("openai"), setupTestLogger())
		require.NoError(t, err)
		assert.NotNil(t, gen)
	})

	t.Run("unknown_provider", func(t *testing.T) {
		t.Parallel()

		gen, err := newTextGenerator(context.Background(), baseCfg("anthropic"), setupTestLogger())
		require.Error(t, err)
		assert.Nil(t, gen)
		assert.Contains(t, err.Error(), "unknown LLM provider")
	})
}

// stubFailedTask stands in for the ingestion task inside the error handler;
// only its ID matters there.
type stubFailedTask struct{ id uuid.UUID }

func (t *stubFailedTask) ID() uuid.UUID                 { return t.id }
func (t *stubFailedTask) Type() string                  { return "text_ingestion" }
func (t *stubFailedTask) Execute(context.Context) error { return nil }

func newFailureHandlerApp(t *testing.T, sessions *sessionStoreStub) *application {
	t.Helper()

	db := openStubDB(t)

	cache := splice.NewResultCache(time.Minute, 0, setupTestLogger())
	t.Cleanup(cache.Stop)

	engine, err := splice.NewEngine(db, &sectionStoreStub{}, cache, setupTestLogger())
	require.NoError(t, err)

	return &application{
		config:       testServerConfig(),
		logger:       setupTestLogger(),
		db:           db,
		sessionStore: sessions,
		spliceEngine: engine,
	}
}

func TestHandleTaskFailure(t *testing.T) {
	t.Parallel()

	newSession := func(t *testing.T) *domain.ParsingSession {
		t.Helper()
		session, err := domain.NewParsingSession(
			uuid.New(), uuid.New(), uuid.New(), "some text", nil,
		)
		require.NoError(t, err)
		session.PlaceholderBlockID = uuid.NewString()
		return session
	}

	t.Run("session_already_terminal_is_left_alone", func(t *testing.T) {
		t.Parallel()

		sessions := &sessionStoreStub{
			MarkFailedFn: func(context.Context, uuid.UUID, string) error {
				return store.ErrSessionTerminal
			},
		}
		app := newFailureHandlerApp(t, sessions)

		taskID := uuid.New()
		app.handleTaskFailure(&stubFailedTask{id: taskID}, errors.New("task panicked: boom"))

		require.Len(t, sessions.markFailedCalls, 1)
		assert.Equal(t, taskID, sessions.markFailedCalls[0].id)
		assert.Empty(t, sessions.getCalls,
			"a terminal session needs no placeholder repair")
	})

	t.Run("forces_session_failed_with_task_error", func(t *testing.T) {
		t.Parallel()

		session := newSession(t)
		sessions := &sessionStoreStub{
			GetByIDFn: func(context.Context, uuid.UUID) (*domain.ParsingSession, error) {
				return session, nil
			},
		}
		app := newFailureHandlerApp(t, sessions)

		app.handleTaskFailure(&stubFailedTask{id: session.ID}, errors.New("task panicked: boom"))

		require.Len(t, sessions.markFailedCalls, 1)
		assert.Equal(t, session.ID, sessions.markFailedCalls[0].id)
		assert.Equal(t, "task panicked: boom", sessions.markFailedCalls[0].errMsg)
		assert.Equal(t, []uuid.UUID{session.ID}, sessions.getCalls,
			"the handler loads the session to locate its placeholder")
	})

	t.Run("mark_failed_write_error_stops_repair", func(t *testing.T) {
		t.Parallel()

		sessions := &sessionStoreStub{
			MarkFailedFn: func(context.Context, uuid.UUID, string) error {
				return errors.New("write timeout")
			},
		}
		app := newFailureHandlerApp(t, sessions)

		app.handleTaskFailure(&stubFailedTask{id: uuid.New()}, errors.New("boom"))

		assert.Empty(t, sessions.getCalls)
	})

	t.Run("session_vanished_after_mark", func(t *testing.T) {
		t.Parallel()

		sessions := &sessionStoreStub{}
		app := newFailureHandlerApp(t, sessions)

		// GetByID answers ErrSessionNotFound by default; the handler just
		// gives up on the placeholder.
		app.handleTaskFailure(&stubFailedTask{id: uuid.New()}, errors.New("boom"))

		require.Len(t, sessions.markFailedCalls, 1)
		assert.Len(t, sessions.getCalls, 1)
	})
}
