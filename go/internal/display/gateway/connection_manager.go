package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liftdisplay/go/internal/display/events"
	"github.com/mcdev12/liftdisplay/go/internal/display/params"
	"github.com/mcdev12/liftdisplay/go/internal/display/schedule"
	"github.com/mcdev12/liftdisplay/go/internal/display/session"
)

const forgetTimeout = 2 * time.Second

// ConnectionManager manages display WebSocket connections and fans feed
// events out to their sessions.
type ConnectionManager struct {
	// Connection pools organized by platform
	platformConnections map[string]map[*Connection]bool
	connectionsByID     map[string]*Connection
	mu                  sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	store    LocationStore
	clock    schedule.Clock
	cadence  time.Duration

	broadcastCh chan BroadcastMessage

	// sessions live until the manager shuts down
	ctx    context.Context
	cancel context.CancelFunc
}

// Connection represents a WebSocket connection to one display
type Connection struct {
	ID       string
	Kind     string
	Platform string
	Conn     *websocket.Conn
	Session  *session.Session
	Manager  *ConnectionManager

	ConnectedAt time.Time
	lastPong    atomic.Int64
}

// LastPong returns when the display last answered a ping.
func (c *Connection) LastPong() time.Time {
	return time.Unix(0, c.lastPong.Load())
}

// BroadcastMessage represents an event to fan out to one platform
type BroadcastMessage struct {
	Platform string
	Event    events.Event
}

// AttachRequest describes a display about to be upgraded.
type AttachRequest struct {
	Kind            string
	Platform        string
	Config          *params.Config
	OverlayOnRender bool
	BaseURL         string
	// Sync returns the events that bring the new session up to the current
	// phase. It runs under the manager lock so no broadcast can overtake it.
	Sync func() []events.Event
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, store LocationStore, clock schedule.Clock, cadence time.Duration) *ConnectionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnectionManager{
		platformConnections: make(map[string]map[*Connection]bool),
		connectionsByID:     make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		store:       store,
		clock:       clock,
		cadence:     cadence,
		broadcastCh: make(chan BroadcastMessage, 1000), // Buffer for high throughput
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start processes broadcast messages until ctx is cancelled, then ends
// every session.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.cancel()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Attach upgrades the request and starts a display session for it.
func (cm *ConnectionManager) Attach(w http.ResponseWriter, r *http.Request, req AttachRequest) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	id := uuid.New().String()
	connection := &Connection{
		ID:          id,
		Kind:        req.Kind,
		Platform:    req.Platform,
		Conn:        conn,
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	connection.lastPong.Store(connection.ConnectedAt.UnixNano())
	connection.Session = session.New(cm.ctx, session.Options{
		ID:              id,
		Platform:        req.Platform,
		Config:          req.Config,
		BaseURL:         req.BaseURL,
		Clock:           cm.clock,
		TimerCadence:    cm.cadence,
		OverlayOnRender: req.OverlayOnRender,
		OutboxSize:      cm.config.OutboxSize,
		Recorder:        cm.store,
	})

	cm.registerConnection(connection, req.Sync)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", id).
		Str("kind", req.Kind).
		Str("platform", req.Platform).
		Msg("display connection established")

	return connection, nil
}

// registerConnection adds a connection to the manager and queues its sync
// events ahead of any broadcast for the platform
func (cm *ConnectionManager) registerConnection(conn *Connection, sync func() []events.Event) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if sync != nil {
		for _, ev := range sync() {
			conn.Session.Deliver(ev)
		}
	}

	if cm.platformConnections[conn.Platform] == nil {
		cm.platformConnections[conn.Platform] = make(map[*Connection]bool)
	}
	cm.platformConnections[conn.Platform][conn] = true
	cm.connectionsByID[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Str("platform", conn.Platform).
		Int("total_connections", len(cm.platformConnections[conn.Platform])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager and ends its session
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	connections, exists := cm.platformConnections[conn.Platform]
	if !exists || !connections[conn] {
		cm.mu.Unlock()
		return
	}
	delete(connections, conn)
	delete(cm.connectionsByID, conn.ID)
	// Clean up empty platform connection pools
	if len(connections) == 0 {
		delete(cm.platformConnections, conn.Platform)
	}
	cm.mu.Unlock()

	conn.Session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), forgetTimeout)
	defer cancel()
	if err := cm.store.Forget(ctx, conn.ID); err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to forget display location")
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("platform", conn.Platform).
		Msg("connection unregistered")
}

// Connection returns the live connection with the given ID.
func (cm *ConnectionManager) Connection(id string) (*Connection, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	conn, ok := cm.connectionsByID[id]
	return conn, ok
}

// BroadcastToPlatform queues an event for every display of a platform
func (cm *ConnectionManager) BroadcastToPlatform(platform string, event events.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{Platform: platform, Event: event}:
	default:
		log.Warn().Str("platform", platform).Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast delivers a broadcast message to each session of the platform
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.platformConnections[message.Platform]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Create a snapshot of connections to avoid holding lock during broadcast
	targetConnections := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targetConnections = append(targetConnections, conn)
	}
	cm.mu.RUnlock()

	delivered := 0
	for _, conn := range targetConnections {
		if conn.Session.Deliver(message.Event) {
			delivered++
		}
	}

	log.Debug().
		Str("platform", message.Platform).
		Int("connections", len(targetConnections)).
		Int("delivered", delivered).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	totalConnections := 0
	platformCounts := make(map[string]int)

	for platform, connections := range cm.platformConnections {
		count := len(connections)
		totalConnections += count
		platformCounts[platform] = count
	}

	return map[string]interface{}{
		"total_connections":    totalConnections,
		"active_platforms":     len(cm.platformConnections),
		"platform_connections": platformCounts,
	}
}

// writePump drains the session's frames into the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	outbox := c.Session.Outbox()
	for {
		select {
		case frame, ok := <-outbox:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Session ended
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			message, err := json.Marshal(frame)
			if err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal frame")
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump forwards display commands to the session
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.lastPong.Store(time.Now().UnixNano())
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes messages received from the display
func (c *Connection) handleClientMessage(message []byte) {
	var cmd session.ClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("ignoring malformed client message")
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("type", cmd.Type).
		Msg("received client message")

	if err := c.Session.Send(session.FromClient{Cmd: cmd}); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("client message after detach")
	}
}
