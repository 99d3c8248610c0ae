package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/SugrSertraline/neu-ink-sub000/internal/api/shared"
	"github.com/SugrSertraline/neu-ink-sub000/internal/domain"
	"github.com/SugrSertraline/neu-ink-sub000/internal/platform/logger"
	"github.com/SugrSertraline/neu-ink-sub000/internal/service"
)

// StartIngestionRequest is the body of POST /api/ingestions. With
// resume_session_id set, every other field is ignored and the existing
// session is resolved instead.
type StartIngestionRequest struct {
	DocumentID      string  `json:"document_id"                 validate:"omitempty,uuid"`
	SectionID       string  `json:"section_id"                  validate:"omitempty,uuid"`
	Text            string  `json:"text"`
	AfterBlockID    *string `json:"after_block_id,omitempty"`
	ResumeSessionID *string `json:"resume_session_id,omitempty" validate:"omitempty,uuid"`
}

// StartIngestionResponse reports the accepted (202) or resumed (200)
// session.
type StartIngestionResponse struct {
	SessionID          string                   `json:"session_id"`
	PlaceholderBlockID string                   `json:"placeholder_block_id"`
	Resumed            bool                     `json:"resumed"`
	Status             *IngestionStatusResponse `json:"status,omitempty"`
}

// IngestionStatusResponse is the caller-facing state of one session.
type IngestionStatusResponse struct {
	SessionID          string           `json:"session_id"`
	SectionID          string           `json:"section_id"`
	PlaceholderBlockID string           `json:"placeholder_block_id"`
	Status             string           `json:"status"`
	Progress           int              `json:"progress"`
	Message            string           `json:"message"`
	ResultBlocks       domain.BlockList `json:"result_blocks,omitempty"`
	Error              *string          `json:"error,omitempty"`
}

// SessionSummaryResponse is one row of the active-sessions listing.
type SessionSummaryResponse struct {
	SessionID          string    `json:"session_id"`
	DocumentID         string    `json:"document_id"`
	SectionID          string    `json:"section_id"`
	PlaceholderBlockID string    `json:"placeholder_block_id"`
	Status             string    `json:"status"`
	Progress           int       `json:"progress"`
	Message            string    `json:"message"`
	CreatedAt          time.Time `json:"created_at"`
}

// ActiveSessionsResponse wraps the active-sessions listing.
type ActiveSessionsResponse struct {
	Sessions []SessionSummaryResponse `json:"sessions"`
}

// CancelIngestionResponse acknowledges a cancellation request.
type CancelIngestionResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// SpliceLookupResponse answers the splice fallback read. Pending means the
// placeholder is still in the section; block_ids carries the replacement
// when the cache still remembers it; both empty means nothing is known.
type SpliceLookupResponse struct {
	Pending  bool     `json:"pending"`
	BlockIDs []string `json:"block_ids"`
}

// IngestionHandler handles ingestion-related HTTP requests
type IngestionHandler struct {
	ingestionService service.IngestionService
	validator        *validator.Validate
	logger           *slog.Logger
}

// NewIngestionHandler creates a new IngestionHandler
func NewIngestionHandler(
	ingestionService service.IngestionService,
	logger *slog.Logger,
) *IngestionHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for IngestionHandler")
	}

	return &IngestionHandler{
		ingestionService: ingestionService,
		validator:        validator.New(),
		logger:           logger.With(slog.String("component", "ingestion_handler")),
	}
}

// StartIngestion handles POST /api/ingestions requests. It accepts new text
// for ingestion (202) or, with resume_session_id, resolves an existing
// session (200).
func (h *IngestionHandler) StartIngestion(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		log.Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	var req StartIngestionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	svcReq, err := toServiceStartRequest(req)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	result, err := h.ingestionService.StartIngestion(r.Context(), userID, svcReq)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to start ingestion")
		return
	}

	status := http.StatusAccepted
	if result.Resumed {
		status = http.StatusOK
	}

	log.Debug("ingestion request accepted",
		slog.String("session_id", result.SessionID.String()),
		slog.Bool("resumed", result.Resumed))
	shared.RespondWithJSON(w, r, status, startResultToResponse(result))
}

// GetIngestionStatus handles GET /api/ingestions/{sessionID} requests.
// Reading status runs the resume decision, so a session orphaned by a
// process restart resolves to failed here.
func (h *IngestionHandler) GetIngestionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	status, err := h.ingestionService.GetStatus(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to get ingestion status")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, statusToResponse(status))
}

// CancelIngestion handles POST /api/ingestions/{sessionID}/cancel requests.
// Cancellation is best-effort; 202 acknowledges the request, not the
// outcome.
func (h *IngestionHandler) CancelIngestion(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	if err := h.ingestionService.CancelIngestion(r.Context(), sessionID); err != nil {
		h.respondServiceError(w, r, err, "Failed to cancel ingestion")
		return
	}

	log.Debug("ingestion cancellation requested",
		slog.String("session_id", sessionID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, CancelIngestionResponse{
		SessionID: sessionID.String(),
		Message:   "cancellation requested",
	})
}

// ListActiveIngestions handles GET /api/ingestions requests. It lists the
// caller's own pending and processing sessions, newest first.
func (h *IngestionHandler) ListActiveIngestions(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		log.Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	sessions, err := h.ingestionService.ListActiveSessions(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to list active ingestions")
		return
	}

	response := ActiveSessionsResponse{
		Sessions: make([]SessionSummaryResponse, 0, len(sessions)),
	}
	for _, session := range sessions {
		response.Sessions = append(response.Sessions, sessionToSummaryResponse(session))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// LookupSpliceResult handles
// GET /api/sections/{sectionID}/splices/{placeholderID} requests. The answer
// is always 200: pending, the replacement block ids, or empty when neither
// the section nor the cache knows the placeholder.
func (h *IngestionHandler) LookupSpliceResult(w http.ResponseWriter, r *http.Request) {
	sectionID, err := uuid.Parse(chi.URLParam(r, "sectionID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid section ID format")
		return
	}
	placeholderID := chi.URLParam(r, "placeholderID")

	lookup, err := h.ingestionService.LookupSpliceResult(r.Context(), sectionID, placeholderID)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to resolve splice result")
		return
	}

	response := SpliceLookupResponse{
		Pending:  lookup.Pending,
		BlockIDs: lookup.BlockIDs,
	}
	if response.BlockIDs == nil {
		response.BlockIDs = []string{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// respondServiceError maps a service error to its status code and sends the
// sanitized message; unexpected errors get the handler's fallback message.
func (h *IngestionHandler) respondServiceError(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	fallbackMessage string,
) {
	statusCode := MapErrorToStatusCode(err)
	safeMessage := GetSafeErrorMessage(err)
	if statusCode == http.StatusInternalServerError {
		safeMessage = fallbackMessage
	}
	shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
}

// toServiceStartRequest parses the DTO's string ids into the service
// request. The validator has already checked formats; parse errors here
// would mean a gap between the two.
func toServiceStartRequest(req StartIngestionRequest) (service.StartIngestionRequest, error) {
	svcReq := service.StartIngestionRequest{
		Text:         req.Text,
		AfterBlockID: req.AfterBlockID,
	}

	if req.DocumentID != "" {
		documentID, err := uuid.Parse(req.DocumentID)
		if err != nil {
			return service.StartIngestionRequest{}, err
		}
		svcReq.DocumentID = documentID
	}
	if req.SectionID != "" {
		sectionID, err := uuid.Parse(req.SectionID)
		if err != nil {
			return service.StartIngestionRequest{}, err
		}
		svcReq.SectionID = sectionID
	}
	if req.ResumeSessionID != nil && *req.ResumeSessionID != "" {
		resumeID, err := uuid.Parse(*req.ResumeSessionID)
		if err != nil {
			return service.StartIngestionRequest{}, err
		}
		svcReq.ResumeSessionID = &resumeID
	}

	return svcReq, nil
}

func startResultToResponse(result *service.StartIngestionResult) StartIngestionResponse {
	response := StartIngestionResponse{
		SessionID:          result.SessionID.String(),
		PlaceholderBlockID: result.PlaceholderBlockID,
		Resumed:            result.Resumed,
	}
	if result.Status != nil {
		statusResponse := statusToResponse(result.Status)
		response.Status = &statusResponse
	}
	return response
}

func statusToResponse(status *service.IngestionStatus) IngestionStatusResponse {
	return IngestionStatusResponse{
		SessionID:          status.SessionID.String(),
		SectionID:          status.SectionID.String(),
		PlaceholderBlockID: status.PlaceholderBlockID,
		Status:             string(status.Status),
		Progress:           status.Progress,
		Message:            status.Message,
		ResultBlocks:       status.ResultBlocks,
		Error:              status.Error,
	}
}

func sessionToSummaryResponse(session *domain.ParsingSession) SessionSummaryResponse {
	return SessionSummaryResponse{
		SessionID:          session.ID.String(),
		DocumentID:         session.DocumentID.String(),
		SectionID:          session.SectionID.String(),
		PlaceholderBlockID: session.PlaceholderBlockID,
		Status:             string(session.Status),
		Progress:           session.Progress,
		Message:            session.Message,
		CreatedAt:          session.CreatedAt,
	}
}
