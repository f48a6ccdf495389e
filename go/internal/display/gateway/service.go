package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liftdisplay/go/internal/display/events"
	"github.com/mcdev12/liftdisplay/go/internal/display/schedule"
)

// Service is the display gateway: it consumes the competition feed and keeps
// every connected display in sync with it
type Service struct {
	config            Config
	state             *PlatformStateManager
	store             LocationStore
	connectionManager *ConnectionManager
	displayHandler    *DisplayHandler
	stateHandler      *StateHandler
	eventConsumer     *EventConsumer
}

// NewService creates the gateway and connects it to the event feed
func NewService(config Config, store LocationStore) (*Service, error) {
	s := newService(config, store, clockwork.NewRealClock())

	eventConsumer, err := NewEventConsumer(s.connectionManager, s.state, config.JetStream)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}
	s.eventConsumer = eventConsumer
	return s, nil
}

// newService wires everything except the feed connection.
func newService(config Config, store LocationStore, clock schedule.Clock) *Service {
	state := NewPlatformStateManager()
	connectionManager := NewConnectionManager(config.Connection, store, clock, config.TimerCadence)

	return &Service{
		config:            config,
		state:             state,
		store:             store,
		connectionManager: connectionManager,
		displayHandler:    NewDisplayHandler(connectionManager, state, config),
		stateHandler:      NewStateHandler(state, connectionManager, store),
	}
}

// Start runs the gateway until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting display gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("display gateway service shutting down")
	return s.Stop()
}

// Stop releases the feed connection and the location store
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	s.store.Close()

	log.Info().Msg("display gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and REST routes
func (s *Service) RegisterRoutes(r chi.Router) {
	s.displayHandler.RegisterRoutes(r)
	s.stateHandler.RegisterRoutes(r)
	log.Info().Msg("display gateway routes registered")
}

// Routes returns a router with every gateway route and a health check.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	s.RegisterRoutes(r)
	return r
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "display_gateway"
	stats["platforms"] = s.state.Platforms()
	return stats
}

// Publish feeds an event into the gateway as if it came from the feed.
func (s *Service) Publish(env events.Envelope, event events.Event) {
	s.state.ProcessEvent(env, event)
	s.connectionManager.BroadcastToPlatform(event.Platform(), event)
}
