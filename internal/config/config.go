package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/aggregator"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string        `env:"SERVER_ADDR" envDefault:":8080"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	SubmitRateLimit float64       `env:"SUBMIT_RATE_LIMIT" envDefault:"5"`
	SubmitRateBurst int           `env:"SUBMIT_RATE_BURST" envDefault:"10"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URL                string        `env:"REDIS_URL" envDefault:"redis://localhost:6380"`
	Password           string        `env:"REDIS_PASSWORD"`
	ChangeStream       string        `env:"CHANGE_STREAM" envDefault:"innings.updates"`
	ChangeStreamMaxLen int64         `env:"CHANGE_STREAM_MAXLEN" envDefault:"10000"`
	ArchivedTTL        time.Duration `env:"ARCHIVED_TTL" envDefault:"24h"`
}

// ArchiveConfig holds the Postgres archive configuration. An empty DSN
// disables archiving.
type ArchiveConfig struct {
	DSN string `env:"ARCHIVE_DSN"`
}

// Enabled reports whether an archive database is configured
func (c ArchiveConfig) Enabled() bool {
	return c.DSN != ""
}

// EngineConfig tunes the recalculation engine
type EngineConfig struct {
	MaxAttempts  int           `env:"ENGINE_MAX_ATTEMPTS" envDefault:"8"`
	BackoffBase  time.Duration `env:"ENGINE_BACKOFF_BASE" envDefault:"10ms"`
	BackoffMax   time.Duration `env:"ENGINE_BACKOFF_MAX" envDefault:"500ms"`
	RecentOvers  int           `env:"ENGINE_RECENT_OVERS" envDefault:"12"`
	BowlerExtras []string      `env:"ENGINE_BOWLER_EXTRAS" envDefault:"wide,noBall" envSeparator:","`
}

// Rules returns the bowler extras table named by BowlerExtras
func (c EngineConfig) Rules() (aggregator.Rules, error) {
	rules, err := aggregator.ParseRules(c.BowlerExtras)
	if err != nil {
		return aggregator.Rules{}, fmt.Errorf("ENGINE_BOWLER_EXTRAS: %w", err)
	}
	return rules, nil
}

// HubConfig tunes live delivery to websocket clients
type HubConfig struct {
	ClientBuffer int `env:"HUB_CLIENT_BUFFER" envDefault:"256"`
}

// LogConfig selects the log level and handler
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Archive ArchiveConfig
	Engine  EngineConfig
	Hub     HubConfig
	Log     LogConfig
}

// Load parses the configuration from environment variables and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("SERVER_ADDR must not be empty"))
	}
	if c.Server.SubmitRateLimit < 0 {
		errs = append(errs, errors.New("SUBMIT_RATE_LIMIT must not be negative"))
	}
	if c.Server.SubmitRateBurst < 1 {
		errs = append(errs, errors.New("SUBMIT_RATE_BURST must be at least 1"))
	}
	if c.Redis.ChangeStream == "" {
		errs = append(errs, errors.New("CHANGE_STREAM must not be empty"))
	}
	if c.Engine.MaxAttempts < 1 {
		errs = append(errs, errors.New("ENGINE_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Engine.BackoffBase < 0 || c.Engine.BackoffMax < c.Engine.BackoffBase {
		errs = append(errs, errors.New("ENGINE_BACKOFF_MAX must not be below ENGINE_BACKOFF_BASE"))
	}
	if c.Engine.RecentOvers < 0 {
		errs = append(errs, errors.New("ENGINE_RECENT_OVERS must not be negative"))
	}
	if _, err := c.Engine.Rules(); err != nil {
		errs = append(errs, err)
	}
	if c.Hub.ClientBuffer < 1 {
		errs = append(errs, errors.New("HUB_CLIENT_BUFFER must be at least 1"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be json or text", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// NewLogger builds the process logger writing to stderr
func (c LogConfig) NewLogger() *slog.Logger {
	return c.newLogger(os.Stderr)
}

func (c LogConfig) newLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
