package gateway

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/liftdisplay/go/internal/dbconfig"
	"github.com/mcdev12/liftdisplay/go/internal/display/breaktimer"
	"github.com/mcdev12/liftdisplay/go/internal/display/params"
)

// Store backends for display locations.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds configuration for the display gateway service
type Config struct {
	Port            string                  `yaml:"port"`
	DefaultPlatform string                  `yaml:"default_platform"`
	TimerCadence    time.Duration           `yaml:"timer_cadence"`
	Displays        map[string]DisplayKind  `yaml:"displays"`
	Connection      ConnectionConfig        `yaml:"connection"`
	JetStream       JetStreamConsumerConfig `yaml:"jetstream"`
	Store           StoreConfig             `yaml:"store"`
}

// DisplayKind describes one family of displays, e.g. a scoreboard.
type DisplayKind struct {
	Defaults params.Defaults `yaml:"defaults"`
	// OverlayOnRender opens the overlay whenever the title changes.
	OverlayOnRender bool `yaml:"overlay_on_render"`
}

// StoreConfig selects where switchable display locations are kept.
type StoreConfig struct {
	Backend  string          `yaml:"backend"`
	Postgres dbconfig.Config `yaml:"postgres"`
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration              `yaml:"write_timeout"`
	ReadTimeout     time.Duration              `yaml:"read_timeout"`
	PingInterval    time.Duration              `yaml:"ping_interval"`
	MaxMessageSize  int64                      `yaml:"max_message_size"`
	ReadBufferSize  int                        `yaml:"read_buffer_size"`
	WriteBufferSize int                        `yaml:"write_buffer_size"`
	OutboxSize      int                        `yaml:"outbox_size"`
	CheckOrigin     func(r *http.Request) bool `yaml:"-"`
}

// JetStreamConsumerConfig holds configuration for the JetStream consumer
type JetStreamConsumerConfig struct {
	URL           string        `yaml:"url"`
	StreamName    string        `yaml:"stream"`
	ConsumerName  string        `yaml:"consumer"`
	SubjectFilter string        `yaml:"subject_filter"` // e.g., "competition.events.>"
	MaxDeliver    int           `yaml:"max_deliver"`    // Max delivery attempts
	AckWait       time.Duration `yaml:"ack_wait"`       // How long to wait for ack
	MaxAckPending int           `yaml:"max_ack_pending"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// DefaultConfig returns default configuration for the display gateway
func DefaultConfig() Config {
	return Config{
		Port:            "8081",
		DefaultPlatform: "A",
		TimerCadence:    breaktimer.DefaultCadence,
		Displays:        DefaultDisplayKinds(),
		Connection:      DefaultConnectionConfig(),
		JetStream:       DefaultJetStreamConsumerConfig(),
		Store: StoreConfig{
			Backend:  StoreMemory,
			Postgres: dbconfig.NewConfigFromEnv(),
		},
	}
}

// DefaultDisplayKinds returns the built-in display kinds.
func DefaultDisplayKinds() map[string]DisplayKind {
	return map[string]DisplayKind{
		"scoreboard":    {Defaults: params.Defaults{Records: true, Leaders: true}},
		"attempt-board": {},
		"decision":      {},
		"results":       {Defaults: params.Defaults{Records: true, Leaders: true}},
		"monitor":       {OverlayOnRender: true},
	}
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024, // 1KB max message size
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		OutboxSize:      64,
		CheckOrigin: func(r *http.Request) bool {
			// displays are served from arbitrary hosts in the venue network
			return true
		},
	}
}

// DefaultJetStreamConsumerConfig returns default JetStream consumer configuration
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "COMPETITION_EVENTS",
		ConsumerName:  "display-gateway",
		SubjectFilter: "competition.events.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if config.Connection.CheckOrigin == nil {
		config.Connection.CheckOrigin = DefaultConnectionConfig().CheckOrigin
	}
	return config, nil
}

// ApplyEnv overrides file settings with environment variables.
func (c *Config) ApplyEnv() {
	c.Port = getEnv("GATEWAY_PORT", c.Port)
	c.DefaultPlatform = getEnv("DEFAULT_PLATFORM", c.DefaultPlatform)
	c.JetStream.URL = getEnv("NATS_URL", c.JetStream.URL)
	c.Store.Backend = getEnv("LOCATION_STORE", c.Store.Backend)
	c.Connection.OutboxSize = getEnvAsInt("DISPLAY_OUTBOX_SIZE", c.Connection.OutboxSize)
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Store.Postgres.URL = url
	}
}

// Kind returns the display kind configured under name.
func (c Config) Kind(name string) (DisplayKind, bool) {
	kind, ok := c.Displays[name]
	return kind, ok
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
