package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomName(t *testing.T) {
	assert.Equal(t, "team-alpha", roomName("team alpha"))
	assert.Equal(t, "a-b", roomName("a.b"))
	assert.Equal(t, "default", roomName("***"))
	assert.Equal(t, "sprint_12", roomName("  sprint_12 "))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("POKER_CONFIG", "")
	t.Setenv("GATEWAY_PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("SOURCE_TIMEOUT", "")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 15*time.Second, cfg.SourceTimeout)
	assert.Equal(t, "default", cfg.Gateway.CoordinatorConfig.Room)
	assert.Equal(t, 100, cfg.Gateway.CoordinatorConfig.Guard.MaxMessages)
	assert.Equal(t, int64(16*1024), cfg.Gateway.ConnectionConfig.MaxMessageSize)
	assert.NotNil(t, cfg.Gateway.ConnectionConfig.CheckOrigin)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
room: Team Alpha
guard:
  max_messages: 20
  idle_timeout: 10m
connection:
  max_message_size: 4096
tickets:
  - id: PP-1
    title: Login page
    priority: High
  - id: PP-2
    title: Password reset
`), 0o600))

	t.Setenv("POKER_CONFIG", path)
	t.Setenv("SOURCE_TIMEOUT", "5s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.io, https://b.io")
	t.Setenv("NATS_MAX_RECONNECTS", "3")

	cfg, err := loadConfig()
	require.NoError(t, err)

	coord := cfg.Gateway.CoordinatorConfig
	assert.Equal(t, "Team-Alpha", coord.Room)
	assert.Equal(t, 20, coord.Guard.MaxMessages)
	assert.Equal(t, 10*time.Minute, coord.Guard.IdleTimeout)
	assert.Equal(t, 60*time.Second, coord.Guard.RateWindow)
	assert.Equal(t, 5*time.Second, coord.SourceTimeout)
	assert.Equal(t, int64(4096), cfg.Gateway.ConnectionConfig.MaxMessageSize)
	assert.Equal(t, []string{"https://a.io", "https://b.io"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.NATSMaxReconnects)

	require.Len(t, coord.SeedTickets, 2)
	assert.Equal(t, "PP-1", coord.SeedTickets[0].ID)
	assert.Equal(t, "High", coord.SeedTickets[0].Priority)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("POKER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := loadConfig()
	assert.Error(t, err)
}
