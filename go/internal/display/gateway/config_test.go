package gateway

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "8081", config.Port)
	assert.Equal(t, StoreMemory, config.Store.Backend)
	assert.NotNil(t, config.Connection.CheckOrigin)

	kind, ok := config.Kind("scoreboard")
	require.True(t, ok)
	assert.True(t, kind.Defaults.Records)
	assert.True(t, kind.Defaults.Leaders)

	_, ok = config.Kind("teleprompter")
	assert.False(t, ok)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
default_platform: B
timer_cadence: 500ms
displays:
  lobby:
    defaults:
      leaders: true
    overlay_on_render: true
connection:
  ping_interval: 15s
jetstream:
  stream: MEET
store:
  backend: postgres
  postgres:
    table: locations
`), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", config.Port)
	assert.Equal(t, "B", config.DefaultPlatform)
	assert.Equal(t, 500*time.Millisecond, config.TimerCadence)
	assert.Equal(t, 15*time.Second, config.Connection.PingInterval)
	assert.Equal(t, 10*time.Second, config.Connection.WriteTimeout, "unset keys keep their defaults")
	assert.NotNil(t, config.Connection.CheckOrigin)
	assert.Equal(t, "MEET", config.JetStream.StreamName)
	assert.Equal(t, "display-gateway", config.JetStream.ConsumerName)
	assert.Equal(t, StorePostgres, config.Store.Backend)
	assert.Equal(t, "locations", config.Store.Postgres.Table)

	lobby, ok := config.Kind("lobby")
	require.True(t, ok)
	assert.True(t, lobby.OverlayOnRender)
	assert.True(t, lobby.Defaults.Leaders)
	assert.False(t, lobby.Defaults.Records)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "7000")
	t.Setenv("DEFAULT_PLATFORM", "C")
	t.Setenv("NATS_URL", "nats://feed:4222")
	t.Setenv("LOCATION_STORE", StorePostgres)
	t.Setenv("DISPLAY_OUTBOX_SIZE", "not-a-number")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/liftdisplay")

	config := DefaultConfig()
	config.ApplyEnv()

	assert.Equal(t, "7000", config.Port)
	assert.Equal(t, "C", config.DefaultPlatform)
	assert.Equal(t, "nats://feed:4222", config.JetStream.URL)
	assert.Equal(t, StorePostgres, config.Store.Backend)
	assert.Equal(t, DefaultConnectionConfig().OutboxSize, config.Connection.OutboxSize)
	assert.Equal(t, "postgres://u:p@db/liftdisplay", config.Store.Postgres.DSN())
}
