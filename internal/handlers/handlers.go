package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/telhawk-systems/announcer/internal/debounce"
	"github.com/telhawk-systems/announcer/internal/extractor"
	"github.com/telhawk-systems/announcer/internal/httputil"
	"github.com/telhawk-systems/announcer/internal/ical"
	"github.com/telhawk-systems/announcer/internal/logging"
	"github.com/telhawk-systems/announcer/internal/models"
	"github.com/telhawk-systems/announcer/internal/repository"
	"github.com/telhawk-systems/announcer/internal/service"
	"github.com/telhawk-systems/announcer/internal/temporal"
	"github.com/telhawk-systems/announcer/internal/validator"
)

const kindInvalidRequest = "invalid_request"

type Handler struct {
	service   *service.Service
	debouncer *debounce.Debouncer
	feed      ical.FeedOptions
	logger    *logging.Logger
}

func NewHandler(svc *service.Service, debouncer *debounce.Debouncer, feed ical.FeedOptions, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:   svc,
		debouncer: debouncer,
		feed:      feed,
		logger:    logger,
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// CreateExtraction handles POST /api/v1/extractions
func (h *Handler) CreateExtraction(w http.ResponseWriter, r *http.Request) {
	var req models.ExtractionRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}

	refDate := h.service.ReferenceDate()
	if req.ReferenceDate != "" {
		d, err := temporal.ParseDate(req.ReferenceDate, h.service.Location())
		if err != nil {
			h.badRequest(w, "reference_date must be YYYY-MM-DD")
			return
		}
		refDate = d
	}

	resp, err := h.service.BeginExtraction(r.Context(), req.Text, refDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// ListUpcoming handles GET /api/v1/events/upcoming
func (h *Handler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), 0)
	if limit < 0 {
		h.badRequest(w, "limit must not be negative")
		return
	}

	resp, err := h.service.ListUpcoming(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ListEvents handles GET /api/v1/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := models.SortedQuery{
		Columns:   httputil.ParseListParam(query.Get("columns")),
		SortBy:    query.Get("sort"),
		Ascending: true,
		Limit:     httputil.ParseIntParam(query.Get("limit"), 0),
		Page:      httputil.ParseIntParam(query.Get("page"), 0),
	}
	if q.Page > repository.MaxPage {
		h.badRequest(w, fmt.Sprintf("page must not exceed %d", repository.MaxPage))
		return
	}
	switch strings.ToLower(query.Get("order")) {
	case "", "asc":
	case "desc":
		q.Ascending = false
	default:
		h.badRequest(w, "order must be asc or desc")
		return
	}

	resp, err := h.service.ListSorted(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// GetEvent handles GET /api/v1/events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(w, "event id must be a positive integer")
		return
	}

	event, err := h.service.GetEvent(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

// DeleteEvents handles DELETE /api/v1/events
func (h *Handler) DeleteEvents(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAll(r.Context()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CalendarFeed handles GET /api/v1/events.ics
func (h *Handler) CalendarFeed(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), repository.MaxLimit)

	events, err := repository.Collect(h.service.UpcomingEvents(r.Context(), limit))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := ical.Write(w, events, h.feed); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write calendar feed", logging.Error(err))
	}
}

// PostConversationMessage handles POST /api/v1/conversations/{id}/messages
func (h *Handler) PostConversationMessage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.badRequest(w, "conversation id is required")
		return
	}

	var req models.MessageRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeServiceError(w, r, extractor.ErrEmptyAnnouncement)
		return
	}

	state := h.debouncer.Add(id, req.Text)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"conversation_id": id,
		"state":           state.String(),
	})
}

// CancelConversation handles POST /api/v1/conversations/{id}/cancel
func (h *Handler) CancelConversation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.badRequest(w, "conversation id is required")
		return
	}

	cancelled := h.debouncer.Cancel(id)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"cancelled":       cancelled,
		"text":            "Cancelled.",
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	httputil.WriteErrorResponse(w, http.StatusBadRequest, httputil.ErrorResponse{
		Error: message,
		Kind:  kindInvalidRequest,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.ErrorKind(err)
	status := StatusForKind(kind)

	resp := httputil.ErrorResponse{Error: service.UserMessage(err), Kind: kind}
	var schemaErr *validator.SchemaError
	if errors.As(err, &schemaErr) {
		resp.Fields = schemaErr.Fields()
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.Kind(kind),
			logging.Error(err),
		)
	}
	httputil.WriteErrorResponse(w, status, resp)
}

// StatusForKind maps a service error kind to an HTTP status.
func StatusForKind(kind string) int {
	switch kind {
	case service.KindEmpty, service.KindInvalidSort:
		return http.StatusBadRequest
	case service.KindSchema, service.KindTemporal:
		return http.StatusUnprocessableEntity
	case service.KindExtraction:
		return http.StatusBadGateway
	case service.KindOracleUnavailable, service.KindPersistFailed, service.KindStorage:
		return http.StatusServiceUnavailable
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindCancelled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}
