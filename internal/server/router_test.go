package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/announcer/internal/debounce"
	"github.com/telhawk-systems/announcer/internal/extractor"
	"github.com/telhawk-systems/announcer/internal/format"
	"github.com/telhawk-systems/announcer/internal/handlers"
	"github.com/telhawk-systems/announcer/internal/ical"
	"github.com/telhawk-systems/announcer/internal/logging"
	"github.com/telhawk-systems/announcer/internal/oracle"
	"github.com/telhawk-systems/announcer/internal/repository"
	"github.com/telhawk-systems/announcer/internal/service"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	o := oracle.Func(func(ctx context.Context, req oracle.Request) ([]byte, error) {
		return []byte(`{"title":"Standup","start":"2099-01-05T09:00:00Z"}`), nil
	})
	ex := extractor.New(o, extractor.Config{}, logging.Discard())
	svc := service.NewService(ex, repository.NewMemoryRepository(), format.New(time.UTC), service.Config{}, logging.Discard())
	deb := debounce.New(debounce.Config{Window: time.Second, MaxWait: time.Second}, svc.HandleConversation, logging.Discard())
	t.Cleanup(deb.Close)

	return NewRouter(handlers.NewHandler(svc, deb, ical.FeedOptions{}, logging.Discard()))
}

func TestNewRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"create extraction", http.MethodPost, "/api/v1/extractions", `{"text":"standup monday 9"}`, http.StatusCreated},
		{"upcoming", http.MethodGet, "/api/v1/events/upcoming", "", http.StatusOK},
		{"sorted", http.MethodGet, "/api/v1/events", "", http.StatusOK},
		{"get event", http.MethodGet, "/api/v1/events/1", "", http.StatusOK},
		{"calendar", http.MethodGet, "/api/v1/events.ics", "", http.StatusOK},
		{"conversation message", http.MethodPost, "/api/v1/conversations/c1/messages", `{"text":"hi"}`, http.StatusAccepted},
		{"conversation cancel", http.MethodPost, "/api/v1/conversations/c1/cancel", "", http.StatusOK},
		{"delete all", http.MethodDelete, "/api/v1/events", "", http.StatusNoContent},
		{"wrong method", http.MethodPut, "/api/v1/events", "", http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}

	// Subtests share the router and run in order.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestNewRouter_RequestID(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}
