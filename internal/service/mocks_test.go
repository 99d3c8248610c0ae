package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/splice"
	"github.com/SugrSertraline/neu-ink-sub000/internal/store"
	"github.com/SugrSertraline/neu-ink-sub000/internal/task"
)

// mockSessionStore is an in-memory store.ParsingSessionStore. Defaults apply
// the domain transition rules to a backing map; Fn fields override single
// operations per test.
type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.ParsingSession

	CreateFn     func(ctx context.Context, session *domain.ParsingSession) error
	GetByIDFn    func(ctx context.Context, id uuid.UUID) (*domain.ParsingSession, error)
	MarkFailedFn func(ctx context.Context, id uuid.UUID, errMsg string) error

	createCalls     int
	markFailedCalls []markFailedCall
}

type markFailedCall struct {
	id     uuid.UUID
	errMsg string
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[uuid.UUID]*domain.ParsingSession)}
}

func (m *mockSessionStore) put(session *domain.ParsingSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
}

func (m *mockSessionStore) Create(ctx context.Context, session *domain.ParsingSession) error {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()

	if m.CreateFn != nil {
		return m.CreateFn(ctx, session)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *mockSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ParsingSession, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *mockSessionStore) UpdateProgress(
	ctx context.Context,
	id uuid.UUID,
	status domain.ParsingSessionStatus,
	progress int,
	message string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return store.ErrSessionNotFound
	}
	if session.IsTerminal() {
		return store.ErrSessionTerminal
	}
	return session.UpdateProgress(status, progress, message)
}

func (m *mockSessionStore) MarkCompleted(
	ctx context.Context,
	id uuid.UUID,
	resultBlocks domain.BlockList,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return store.ErrSessionNotFound
	}
	if session.IsTerminal() {
		return store.ErrSessionTerminal
	}
	return session.MarkCompleted(resultBlocks)
}

func (m *mockSessionStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	m.mu.Lock()
	m.markFailedCalls = append(m.markFailedCalls, markFailedCall{id: id, errMsg: errMsg})
	m.mu.Unlock()

	if m.MarkFailedFn != nil {
		return m.MarkFailedFn(ctx, id, errMsg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return store.ErrSessionNotFound
	}
	if session.IsTerminal() {
		return store.ErrSessionTerminal
	}
	return session.MarkFailed(errMsg)
}

func (m *mockSessionStore) ListActiveByOwner(
	ctx context.Context,
	ownerID uuid.UUID,
) ([]*domain.ParsingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make([]*domain.ParsingSession, 0)
	for _, session := range m.sessions {
		if session.OwnerID != ownerID || session.IsTerminal() {
			continue
		}
		copied := *session
		active = append(active, &copied)
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

func (m *mockSessionStore) WithTx(_ *sql.Tx) store.ParsingSessionStore {
	return m
}

// mockSectionReader answers section lookups from fixed values.
type mockSectionReader struct {
	GetByIDFn    func(ctx context.Context, id uuid.UUID) (*domain.Section, error)
	BlockIndexFn func(ctx context.Context, sectionID uuid.UUID, blockID string) (int, error)
}

func (m *mockSectionReader) GetByID(ctx context.Context, id uuid.UUID) (*domain.Section, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, store.ErrSectionNotFound
}

func (m *mockSectionReader) BlockIndex(
	ctx context.Context,
	sectionID uuid.UUID,
	blockID string,
) (int, error) {
	if m.BlockIndexFn != nil {
		return m.BlockIndexFn(ctx, sectionID, blockID)
	}
	return 0, store.ErrBlockNotFound
}

// mockSplicer records placeholder operations.
type mockSplicer struct {
	mu sync.Mutex

	InsertPlaceholderFn func(
		ctx context.Context,
		sectionID uuid.UUID,
		afterBlockID *string,
		sessionID uuid.UUID,
	) (*domain.PlaceholderBlock, int, error)
	AdvancePlaceholderFn func(
		ctx context.Context,
		sectionID uuid.UUID,
		placeholderID string,
		stage domain.PlaceholderStage,
		resultIDs []string,
	) error
	RemovePlaceholderFn func(ctx context.Context, sectionID uuid.UUID, placeholderID string) error
	CachedResultFn      func(placeholderID string) (splice.ResultEntry, bool)

	insertCalls int
	advances    []advanceCall
	removedIDs  []string
}

type advanceCall struct {
	placeholderID string
	stage         domain.PlaceholderStage
}

func (m *mockSplicer) InsertPlaceholder(
	ctx context.Context,
	sectionID uuid.UUID,
	afterBlockID *string,
	sessionID uuid.UUID,
) (*domain.PlaceholderBlock, int, error) {
	m.mu.Lock()
	m.insertCalls++
	m.mu.Unlock()

	if m.InsertPlaceholderFn != nil {
		return m.InsertPlaceholderFn(ctx, sectionID, afterBlockID, sessionID)
	}
	return domain.NewPlaceholderBlock(sessionID), 0, nil
}

func (m *mockSplicer) AdvancePlaceholder(
	ctx context.Context,
	sectionID uuid.UUID,
	placeholderID string,
	stage domain.PlaceholderStage,
	resultIDs []string,
) error {
	m.mu.Lock()
	m.advances = append(m.advances, advanceCall{placeholderID: placeholderID, stage: stage})
	m.mu.Unlock()

	if m.AdvancePlaceholderFn != nil {
		return m.AdvancePlaceholderFn(ctx, sectionID, placeholderID, stage, resultIDs)
	}
	return nil
}

func (m *mockSplicer) RemovePlaceholder(
	ctx context.Context,
	sectionID uuid.UUID,
	placeholderID string,
) error {
	m.mu.Lock()
	m.removedIDs = append(m.removedIDs, placeholderID)
	m.mu.Unlock()

	if m.RemovePlaceholderFn != nil {
		return m.RemovePlaceholderFn(ctx, sectionID, placeholderID)
	}
	return nil
}

func (m *mockSplicer) CachedResult(placeholderID string) (splice.ResultEntry, bool) {
	if m.CachedResultFn != nil {
		return m.CachedResultFn(placeholderID)
	}
	return splice.ResultEntry{}, false
}

// mockExecutor records submissions and answers registry probes.
type mockExecutor struct {
	mu sync.Mutex

	SubmitFn func(ctx context.Context, t task.Task) (bool, error)
	GetFn    func(taskID uuid.UUID) (task.Snapshot, bool)
	CancelFn func(taskID uuid.UUID) bool

	submitted    []task.Task
	getCalls     int
	cancelledIDs []uuid.UUID
}

func (m *mockExecutor) Submit(ctx context.Context, t task.Task) (bool, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, t)
	m.mu.Unlock()

	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, t)
	}
	return true, nil
}

func (m *mockExecutor) Get(taskID uuid.UUID) (task.Snapshot, bool) {
	m.mu.Lock()
	m.getCalls++
	m.mu.Unlock()

	if m.GetFn != nil {
		return m.GetFn(taskID)
	}
	return task.Snapshot{}, false
}

func (m *mockExecutor) Cancel(taskID uuid.UUID) bool {
	m.mu.Lock()
	m.cancelledIDs = append(m.cancelledIDs, taskID)
	m.mu.Unlock()

	if m.CancelFn != nil {
		return m.CancelFn(taskID)
	}
	return true
}

// mockTaskFactory builds mock tasks carrying the session id.
type mockTaskFactory struct {
	NewTaskFn func(sessionID uuid.UUID) (task.Task, error)
}

func (m *mockTaskFactory) NewTask(sessionID uuid.UUID) (task.Task, error) {
	if m.NewTaskFn != nil {
		return m.NewTaskFn(sessionID)
	}
	return task.NewMockTask(sessionID), nil
}
