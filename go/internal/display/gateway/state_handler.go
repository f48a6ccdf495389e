package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liftdisplay/go/internal/display/session"
)

// StateHandler serves platform state and display connection details over HTTP
type StateHandler struct {
	state             *PlatformStateManager
	connectionManager *ConnectionManager
	store             LocationStore
}

// NewStateHandler creates a new state handler
func NewStateHandler(state *PlatformStateManager, cm *ConnectionManager, store LocationStore) *StateHandler {
	return &StateHandler{
		state:             state,
		connectionManager: cm,
		store:             store,
	}
}

// HandleListPlatforms handles GET /api/platforms
func (h *StateHandler) HandleListPlatforms(w http.ResponseWriter, r *http.Request) {
	names := h.state.Platforms()
	out := make([]PlatformState, 0, len(names))
	for _, name := range names {
		if st, ok := h.state.GetState(name); ok {
			out = append(out, st)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetPlatformState handles GET /api/platforms/{platform}/state
func (h *StateHandler) HandleGetPlatformState(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	st, ok := h.state.GetState(platform)
	if !ok {
		http.Error(w, "platform not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleGetConnection handles GET /api/connections/{id}
func (h *StateHandler) HandleGetConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.connectionManager.Connection(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "connection not found", http.StatusNotFound)
		return
	}

	view, err := conn.Session.View(r.Context())
	if errors.Is(err, session.ErrDetached) {
		http.Error(w, "connection not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to get session view")
		http.Error(w, "failed to get connection", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleGetLocation handles GET /api/connections/{id}/location
func (h *StateHandler) HandleGetLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	location, err := h.store.Load(r.Context(), id, session.PageURLKey)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "location not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("connection_id", id).Msg("failed to load location")
		http.Error(w, "failed to load location", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{session.PageURLKey: location})
}

// HandleConnectionStats handles GET /ws/stats
func (h *StateHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/platforms", h.HandleListPlatforms)
	r.Get("/api/platforms/{platform}/state", h.HandleGetPlatformState)
	r.Get("/api/connections/{id}", h.HandleGetConnection)
	r.Get("/api/connections/{id}/location", h.HandleGetLocation)
	r.Get("/ws/stats", h.HandleConnectionStats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
