package main

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/SugrSertraline/neu-ink-sub000/internal/config"
	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/service"
	"github.com/SugrSertraline/neu-ink-sub000/internal/store"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubDriver backs *sql.DB values in tests that never reach a real
// database. Pings answer with pingErr; everything else fails.
type stubDriver struct {
	mu      sync.Mutex
	pingErr error
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return &stubConn{d: d}, nil }

func (d *stubDriver) setPingErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pingErr = err
}

type stubConn struct{ d *stubDriver }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func (c *stubConn) Ping(context.Context) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return c.d.pingErr
}

var testDBDriver = &stubDriver{}

func init() {
	sql.Register("stubdb", testDBDriver)
}

func openStubDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("stubdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// stubIngestionService fakes the ingestion service behind the router. Unset
// functions answer with zero values so wiring tests only fill in what they
// assert on.
type stubIngestionService struct {
	StartIngestionFn     func(ctx context.Context, ownerID uuid.UUID, req service.StartIngestionRequest) (*service.StartIngestionResult, error)
	GetStatusFn          func(ctx context.Context, sessionID uuid.UUID) (*service.IngestionStatus, error)
	CancelIngestionFn    func(ctx context.Context, sessionID uuid.UUID) error
	ListActiveSessionsFn func(ctx context.Context, ownerID uuid.UUID) ([]*domain.ParsingSession, error)
	LookupSpliceResultFn func(ctx context.Context, sectionID uuid.UUID, placeholderID string) (*service.SpliceLookup, error)
}

func (s *stubIngestionService) StartIngestion(
	ctx context.Context,
	ownerID uuid.UUID,
	req service.StartIngestionRequest,
) (*service.StartIngestionResult, error) {
	if s.StartIngestionFn != nil {
		return s.StartIngestionFn(ctx, ownerID, req)
	}
	return &service.StartIngestionResult{SessionID: uuid.New()}, nil
}

func (s *stubIngestionService) GetStatus(
	ctx context.Context,
	sessionID uuid.UUID,
) (*service.IngestionStatus, error) {
	if s.GetStatusFn != nil {
		return s.GetStatusFn(ctx, sessionID)
	}
	return &service.IngestionStatus{SessionID: sessionID}, nil
}

func (s *stubIngestionService) CancelIngestion(ctx context.Context, sessionID uuid.UUID) error {
	if s.CancelIngestionFn != nil {
		return s.CancelIngestionFn(ctx, sessionID)
	}
	return nil
}

func (s *stubIngestionService) ListActiveSessions(
	ctx context.Context,
	ownerID uuid.UUID,
) ([]*domain.ParsingSession, error) {
	if s.ListActiveSessionsFn != nil {
		return s.ListActiveSessionsFn(ctx, ownerID)
	}
	return []*domain.ParsingSession{}, nil
}

func (s *stubIngestionService) LookupSpliceResult(
	ctx context.Context,
	sectionID uuid.UUID,
	placeholderID string,
) (*service.SpliceLookup, error) {
	if s.LookupSpliceResultFn != nil {
		return s.LookupSpliceResultFn(ctx, sectionID, placeholderID)
	}
	return &service.SpliceLookup{BlockIDs: []string{}}, nil
}

// sessionStoreStub satisfies store.ParsingSessionStore for the task failure
// handler tests.
type sessionStoreStub struct {
	GetByIDFn    func(ctx context.Context, id uuid.UUID) (*domain.ParsingSession, error)
	MarkFailedFn func(ctx context.Context, id uuid.UUID, errMsg string) error

	getCalls        []uuid.UUID
	markFailedCalls []markFailedCall
}

type markFailedCall struct {
	id     uuid.UUID
	errMsg string
}

func (s *sessionStoreStub) Create(context.Context, *domain.ParsingSession) error {
	return errors.New("not supported")
}

func (s *sessionStoreStub) GetByID(ctx context.Context, id uuid.UUID) (*domain.ParsingSession, error) {
	s.getCalls = append(s.getCalls, id)
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	return nil, store.ErrSessionNotFound
}

func (s *sessionStoreStub) UpdateProgress(
	context.Context,
	uuid.UUID,
	domain.ParsingSessionStatus,
	int,
	string,
) error {
	return errors.New("not supported")
}

func (s *sessionStoreStub) MarkCompleted(context.Context, uuid.UUID, domain.BlockList) error {
	return errors.New("not supported")
}

func (s *sessionStoreStub) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.markFailedCalls = append(s.markFailedCalls, markFailedCall{id: id, errMsg: errMsg})
	if s.MarkFailedFn != nil {
		return s.MarkFailedFn(ctx, id, errMsg)
	}
	return nil
}

func (s *sessionStoreStub) ListActiveByOwner(
	context.Context,
	uuid.UUID,
) ([]*domain.ParsingSession, error) {
	return []*domain.ParsingSession{}, nil
}

func (s *sessionStoreStub) WithTx(*sql.Tx) store.ParsingSessionStore { return s }

// sectionStoreStub satisfies store.SectionStore where only the type matters;
// every operation fails.
type sectionStoreStub struct{}

func (s *sectionStoreStub) Create(context.Context, *domain.Section) error {
	return errors.New("not supported")
}

func (s *sectionStoreStub) GetByID(context.Context, uuid.UUID) (*domain.Section, error) {
	return nil, store.ErrSectionNotFound
}

func (s *sectionStoreStub) BlockIDs(context.Context, uuid.UUID) ([]string, error) {
	return nil, errors.New("not supported")
}

func (s *sectionStoreStub) BlockIndex(context.Context, uuid.UUID, string) (int, error) {
	return 0, errors.New("not supported")
}

func (s *sectionStoreStub) GetBlock(context.Context, uuid.UUID, string) (domain.Block, error) {
	return nil, errors.New("not supported")
}

func (s *sectionStoreStub) InsertBlockAt(context.Context, uuid.UUID, int, domain.Block) error {
	return errors.New("not supported")
}

func (s *sectionStoreStub) UpdateBlock(context.Context, uuid.UUID, string, domain.Block) error {
	return errors.New("not supported")
}

func (s *sectionStoreStub) RemoveBlock(context.Context, uuid.UUID, string) error {
	return errors.New("not supported")
}

func (s *sectionStoreStub) WithTx(*sql.Tx) store.SectionStore { return s }

func testServerConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "info"},
	}
}
