package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	Server ServerConfig
	Log    LogConfig
	Trends TrendsConfig
	Retry  RetryConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level string
}

type TrendsConfig struct {
	BaseURL   string
	HL        string
	TZ        int
	Geo       string
	Timeframe string
}

type RetryConfig struct {
	// RetryAfter is the hint, in seconds, returned to rate-limited callers.
	RetryAfter int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
		},
		Trends: TrendsConfig{
			BaseURL:   "https://trends.google.com",
			HL:        "en-US",
			TZ:        0,
			Timeframe: "today 1-m",
		},
		Retry: RetryConfig{
			RetryAfter: 60,
		},
	}
}

// Addr returns the host:port the HTTP server binds to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RetryAfter returns the rate-limit hint as a duration.
func (c Config) RetryAfter() time.Duration {
	return time.Duration(c.Retry.RetryAfter) * time.Second
}

// SlogLevel maps Log.Level to a slog level; unknown names map to Info.
func (c Config) SlogLevel() slog.Level {
	return ParseLevel(c.Log.Level)
}

// ParseLevel maps a level name to a slog level; unknown names map to Info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads configuration from the YAML config file and environment
// variables.
//
// The file lives at $XDG_CONFIG_HOME/trendproxy/config.yaml (falling back
// to ~/.config). A missing file is not an error.
//
// Environment variables (TRENDPROXY_*) override file values.
func Load() (Config, error) {
	return loadWith(newFileBackend(FilePath()))
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (Config, error) {
	return loadWith(newFileBackend(path))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range 1-65535", cfg.Server.Port)
	}
	if cfg.Trends.Timeframe == "" {
		return fmt.Errorf("invalid config: trends.timeframe must not be empty")
	}
	if cfg.Retry.RetryAfter < 1 {
		return fmt.Errorf("invalid config: retry.retry_after must be at least 1 second")
	}
	return nil
}
