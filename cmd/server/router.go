package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/SugrSertraline/neu-ink-sub000/internal/api"
	apiMiddleware "github.com/SugrSertraline/neu-ink-sub000/internal/api/middleware"
	"github.com/SugrSertraline/neu-ink-sub000/internal/redact"
)

// setupRouter creates and configures the application router with all routes
// and middleware. Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware) // Add trace IDs for improved error handling

	ingestionHandler := api.NewIngestionHandler(app.ingestionService, app.logger)

	// Register routes. Everything under /api requires the caller identity
	// forwarded by the platform gateway.
	r.Route("/api", func(r chi.Router) {
		r.Use(apiMiddleware.RequireIdentity)

		// Ingestion lifecycle endpoints
		r.Post("/ingestions", ingestionHandler.StartIngestion)
		r.Get("/ingestions", ingestionHandler.ListActiveIngestions)
		r.Get("/ingestions/{sessionID}", ingestionHandler.GetIngestionStatus)
		r.Post("/ingestions/{sessionID}/cancel", ingestionHandler.CancelIngestion)

		// Splice result fallback for polls that outlive the placeholder
		r.Get("/sections/{sectionID}/splices/{placeholderID}", ingestionHandler.LookupSpliceResult)
	})

	// Health check endpoint, outside the identity wall so the platform
	// load balancer can probe it
	r.Get("/healthz", app.handleHealthz)

	return r
}

// handleHealthz reports liveness plus database reachability. An instance
// that lost its database answers 503 so the load balancer stops routing to
// it.
func (app *application) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := app.db.PingContext(ctx); err != nil {
		app.logger.Warn("health check failed, database unreachable",
			"error", redact.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, writeErr := w.Write([]byte("database unreachable")); writeErr != nil {
			app.logger.Error("Failed to write health check response", "error", writeErr)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		app.logger.Error("Failed to write health check response", "error", err)
	}
}
