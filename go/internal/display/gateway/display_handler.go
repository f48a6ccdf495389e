package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liftdisplay/go/internal/display/events"
	"github.com/mcdev12/liftdisplay/go/internal/display/params"
)

// DisplayHandler upgrades display requests into WebSocket sessions
type DisplayHandler struct {
	connectionManager *ConnectionManager
	state             *PlatformStateManager
	config            Config
}

// NewDisplayHandler creates a new display handler
func NewDisplayHandler(cm *ConnectionManager, state *PlatformStateManager, config Config) *DisplayHandler {
	return &DisplayHandler{
		connectionManager: cm,
		state:             state,
		config:            config,
	}
}

// HandleDisplay handles GET /ws/displays/{kind} and /ws/displays/{kind}/{route}.
// The query string is the display's configuration.
func (h *DisplayHandler) HandleDisplay(w http.ResponseWriter, r *http.Request) {
	kindName := chi.URLParam(r, "kind")
	kind, ok := h.config.Kind(kindName)
	if !ok {
		http.Error(w, "unknown display kind", http.StatusNotFound)
		return
	}

	route := chi.URLParam(r, "route")
	path := "/displays/" + kindName
	if route != "" {
		path += "/" + route
	}

	config := params.Normalize(params.Navigation{
		Path:           path,
		RouteParameter: route,
		Query:          r.URL.Query(),
	}, kind.Defaults)

	platform := config.Settings().Platform
	if platform == "" {
		platform = h.config.DefaultPlatform
	}

	_, err := h.connectionManager.Attach(w, r, AttachRequest{
		Kind:            kindName,
		Platform:        platform,
		Config:          config,
		OverlayOnRender: kind.OverlayOnRender,
		BaseURL:         baseURL(r),
		Sync:            func() []events.Event { return h.state.SyncEvents(platform) },
	})
	if err != nil {
		// the upgrader has already replied to the client
		log.Error().
			Err(err).
			Str("kind", kindName).
			Str("platform", platform).
			Msg("failed to attach display")
		return
	}
}

// baseURL is the scheme and host the display was served from.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host
}

// RegisterRoutes registers the display WebSocket routes
func (h *DisplayHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/displays/{kind}", h.HandleDisplay)
	r.Get("/ws/displays/{kind}/{route}", h.HandleDisplay)
}
