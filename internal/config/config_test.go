package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ZAHTEVKI_DB", "")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("ZAHTEVKI_TOKEN_TTL", "-1h")

	cfg := Load()

	assert.Equal(t, "", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ZAHTEVKI_ADDR", ":9090")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("ZAHTEVKI_TOKEN_TTL", "12h")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
}
