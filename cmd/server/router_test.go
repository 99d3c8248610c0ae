package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apimw "github.com/SugrSertraline/neu-ink-sub000/internal/api/middleware"
	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/service"
)

func newRouterTestApp(t *testing.T, svc service.IngestionService) *application {
	t.Helper()

	return &application{
		config:           testServerConfig(),
		logger:           setupTestLogger(),
		db:               openStubDB(t),
		ingestionService: svc,
	}
}

func TestRouterRequiresIdentity(t *testing.T) {
	t.Parallel()

	app := newRouterTestApp(t, &stubIngestionService{})
	router := app.setupRouter()

	sessionID := uuid.New()
	routes := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/ingestions"},
		{http.MethodGet, "/api/ingestions"},
		{http.MethodGet, "/api/ingestions/" + sessionID.String()},
		{http.MethodPost, "/api/ingestions/" + sessionID.String() + "/cancel"},
		{http.MethodGet, fmt.Sprintf("/api/sections/%s/splices/%s", uuid.New(), uuid.NewString())},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.target, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.target, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code,
				"routes under /api must reject anonymous callers")
		})
	}
}

func TestRouterRouteWiring(t *testing.T) {
	t.Parallel()

	callerID := uuid.New()
	sessionID := uuid.New()
	sectionID := uuid.New()
	documentID := uuid.New()
	placeholderID := uuid.NewString()

	var startOwner uuid.UUID
	svc := &stubIngestionService{
		StartIngestionFn: func(_ context.Context, ownerID uuid.UUID, req service.StartIngestionRequest) (*service.StartIngestionResult, error) {
			startOwner = ownerID
			return &service.StartIngestionResult{
				SessionID:          sessionID,
				PlaceholderBlockID: placeholderID,
			}, nil
		},
		GetStatusFn: func(_ context.Context, id uuid.UUID) (*service.IngestionStatus, error) {
			return &service.IngestionStatus{
				SessionID:          id,
				SectionID:          sectionID,
				PlaceholderBlockID: placeholderID,
				Status:             domain.ParsingSessionStatusProcessing,
				Progress:           40,
				Message:            "structuring",
			}, nil
		},
		LookupSpliceResultFn: func(_ context.Context, _ uuid.UUID, _ string) (*service.SpliceLookup, error) {
			return &service.SpliceLookup{Pending: true}, nil
		},
	}

	app := newRouterTestApp(t, svc)
	router := app.setupRouter()

	do := func(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
		t.Helper()

		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(apimw.IdentityHeader, callerID.String())
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("start_ingestion_accepted", func(t *testing.T) {
		body := fmt.Sprintf(
			`{"document_id": %q, "section_id": %q, "text": "Light carries momentum."}`,
			documentID, sectionID,
		)
		w := do(t, http.MethodPost, "/api/ingestions", body)

		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, callerID, startOwner, "identity header must reach the service as the owner")

		var resp struct {
			SessionID string `json:"session_id"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, sessionID.String(), resp.SessionID)
	})

	t.Run("get_status", func(t *testing.T) {
		w := do(t, http.MethodGet, "/api/ingestions/"+sessionID.String(), "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"processing"`)
	})

	t.Run("cancel", func(t *testing.T) {
		w := do(t, http.MethodPost, "/api/ingestions/"+sessionID.String()+"/cancel", "")
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("list_active", func(t *testing.T) {
		w := do(t, http.MethodGet, "/api/ingestions", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"sessions":[]`)
	})

	t.Run("splice_lookup", func(t *testing.T) {
		target := fmt.Sprintf("/api/sections/%s/splices/%s", sectionID, placeholderID)
		w := do(t, http.MethodGet, target, "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"pending":true`)
	})

	t.Run("unknown_route", func(t *testing.T) {
		w := do(t, http.MethodGet, "/api/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealthz(t *testing.T) {
	app := newRouterTestApp(t, &stubIngestionService{})
	router := app.setupRouter()

	probe := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("healthy", func(t *testing.T) {
		testDBDriver.setPingErr(nil)

		w := probe()
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	})

	t.Run("database_unreachable", func(t *testing.T) {
		testDBDriver.setPingErr(errors.New("connection refused"))
		t.Cleanup(func() { testDBDriver.setPingErr(nil) })

		w := probe()
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("no_identity_required", func(t *testing.T) {
		testDBDriver.setPingErr(nil)

		// The probe carries no identity header and must still be answered.
		w := probe()
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
