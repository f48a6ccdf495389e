package dbconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DSN(t *testing.T) {
	c := Config{
		Host:     "db",
		Port:     5433,
		User:     "display",
		Password: "s3cret",
		Database: "liftdisplay",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://display:s3cret@db:5433/liftdisplay?sslmode=disable", c.DSN())
	assert.Equal(t, "postgres://display:xxxxx@db:5433/liftdisplay?sslmode=disable", c.Redacted())

	c.URL = "postgres://other@elsewhere/db"
	assert.Equal(t, "postgres://other@elsewhere/db", c.DSN())
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_PORT", "bogus")
	t.Setenv("DB_NAME", "")

	c := NewConfigFromEnv()
	assert.Equal(t, "pg", c.Host)
	assert.Equal(t, 5432, c.Port)
	assert.Equal(t, "liftdisplay", c.Database)
	assert.Equal(t, "display_locations", c.Table)
	assert.Empty(t, c.URL)
}
