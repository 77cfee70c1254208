package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "innings.updates", cfg.Redis.ChangeStream)
	assert.Equal(t, 24*time.Hour, cfg.Redis.ArchivedTTL)
	assert.False(t, cfg.Archive.Enabled())
	assert.Equal(t, 8, cfg.Engine.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Engine.BackoffBase)
	assert.Equal(t, []string{"wide", "noBall"}, cfg.Engine.BowlerExtras)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ARCHIVE_DSN", "postgres://localhost/archive")
	t.Setenv("ENGINE_MAX_ATTEMPTS", "3")
	t.Setenv("ENGINE_BOWLER_EXTRAS", "wide")
	t.Setenv("SUBMIT_RATE_LIMIT", "0.5")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Archive.Enabled())
	assert.Equal(t, 3, cfg.Engine.MaxAttempts)
	assert.Equal(t, []string{"wide"}, cfg.Engine.BowlerExtras)
	assert.Equal(t, 0.5, cfg.Server.SubmitRateLimit)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "zero attempts", key: "ENGINE_MAX_ATTEMPTS", val: "0"},
		{name: "backoff inverted", key: "ENGINE_BACKOFF_MAX", val: "1ms"},
		{name: "unknown level", key: "LOG_LEVEL", val: "loud"},
		{name: "unknown format", key: "LOG_FORMAT", val: "xml"},
		{name: "zero burst", key: "SUBMIT_RATE_BURST", val: "0"},
		{name: "unknown bowler extra", key: "ENGINE_BOWLER_EXTRAS", val: "wide,overthrow"},
		{name: "not a number", key: "ENGINE_RECENT_OVERS", val: "many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	LogConfig{Level: "warn", Format: "json"}.newLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	LogConfig{Level: "debug", Format: "text"}.newLogger(&buf).Debug("shown", "k", "v")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "k=v")
}
