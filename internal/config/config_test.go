package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "ws://127.0.0.1:8080", cfg.MultiplayerServer)
	assert.Equal(t, time.Second, cfg.PresenceQuietPeriod)
	assert.Equal(t, 200*time.Millisecond, cfg.ReadyDelay)
	assert.False(t, cfg.Debug)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MULTIPLAYER_SERVER", "wss://sync.example.com")
	t.Setenv("PRESENCE_QUIET_PERIOD", "2s")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "wss://sync.example.com", cfg.MultiplayerServer)
	assert.Equal(t, 2*time.Second, cfg.PresenceQuietPeriod)
	assert.True(t, cfg.Debug)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			MultiplayerServer:   "ws://localhost:8080",
			JWTSecret:           "s",
			PresenceQuietPeriod: time.Second,
			ReadyDelay:          time.Millisecond,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"zero quiet period", func(c *Config) { c.PresenceQuietPeriod = 0 }, "PRESENCE_QUIET_PERIOD must be positive"},
		{"negative ready delay", func(c *Config) { c.ReadyDelay = -time.Second }, "READY_DELAY must be positive"},
		{"bad scheme", func(c *Config) { c.MultiplayerServer = "ftp://x" }, `MULTIPLAYER_SERVER has unsupported scheme "ftp"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())
}
