package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/announcer/internal/handlers"
	"github.com/telhawk-systems/announcer/internal/middleware"
)

// NewRouter constructs a ServeMux with announcer API routes registered.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	// Extraction
	mux.HandleFunc("POST /api/v1/extractions", h.CreateExtraction)

	// Event store
	mux.HandleFunc("GET /api/v1/events", h.ListEvents)
	mux.HandleFunc("DELETE /api/v1/events", h.DeleteEvents)
	mux.HandleFunc("GET /api/v1/events/upcoming", h.ListUpcoming)
	mux.HandleFunc("GET /api/v1/events/{id}", h.GetEvent)
	mux.HandleFunc("GET /api/v1/events.ics", h.CalendarFeed)

	// Buffered conversations
	mux.HandleFunc("POST /api/v1/conversations/{id}/messages", h.PostConversationMessage)
	mux.HandleFunc("POST /api/v1/conversations/{id}/cancel", h.CancelConversation)

	// Health check
	mux.HandleFunc("GET /healthz", h.HealthCheck)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
