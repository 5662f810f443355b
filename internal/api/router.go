// Package api exposes a small read-only HTTP status surface next to the
// chat listener, for health checks and operator curiosity.
package api

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/croftja/parley/internal/api/response"
	"github.com/croftja/parley/internal/dependencies/clock"
	"github.com/croftja/parley/internal/middleware"
)

// SessionDirectory is the view of the live session registry the status
// API reads from.
type SessionDirectory interface {
	AuthenticatedNames() []string
	Count() int
}

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Sessions    SessionDirectory
	Clock       clock.Clock
	MaxSessions int
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	h := &statusHandler{
		sessions:    cfg.Sessions,
		clock:       cfg.Clock,
		maxSessions: cfg.MaxSessions,
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/status", h.Status).Methods(http.MethodGet)

	return r
}

type statusHandler struct {
	sessions    SessionDirectory
	clock       clock.Clock
	maxSessions int
}

func (h *statusHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

func (h *statusHandler) Status(w http.ResponseWriter, r *http.Request) {
	names := h.sessions.AuthenticatedNames()
	sort.Strings(names)

	response.JSON(w, http.StatusOK, response.Status{
		Online:         names,
		OnlineCount:    len(names),
		ConnectedCount: h.sessions.Count(),
		MaxSessions:    h.maxSessions,
		ServerTime:     h.clock.Now(),
	})
}
