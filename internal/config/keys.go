package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "TRENDPROXY_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "TRENDPROXY_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "log.level", typ: kString, env: "TRENDPROXY_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "trends.base_url", typ: kString, env: "TRENDPROXY_TRENDS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Trends.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Trends.BaseURL },
	},
	{
		key: "trends.hl", typ: kString, env: "TRENDPROXY_TRENDS_HL",
		apply:   func(cfg *Config, v any) { cfg.Trends.HL = v.(string) },
		extract: func(cfg Config) any { return cfg.Trends.HL },
	},
	{
		key: "trends.tz", typ: kInt, env: "TRENDPROXY_TRENDS_TZ",
		apply:   func(cfg *Config, v any) { cfg.Trends.TZ = v.(int) },
		extract: func(cfg Config) any { return cfg.Trends.TZ },
	},
	{
		key: "trends.geo", typ: kString, env: "TRENDPROXY_TRENDS_GEO",
		apply:   func(cfg *Config, v any) { cfg.Trends.Geo = v.(string) },
		extract: func(cfg Config) any { return cfg.Trends.Geo },
	},
	{
		key: "trends.timeframe", typ: kString, env: "TRENDPROXY_TRENDS_TIMEFRAME",
		apply:   func(cfg *Config, v any) { cfg.Trends.Timeframe = v.(string) },
		extract: func(cfg Config) any { return cfg.Trends.Timeframe },
	},
	{
		key: "retry.retry_after", typ: kInt, env: "TRENDPROXY_RETRY_AFTER",
		apply:   func(cfg *Config, v any) { cfg.Retry.RetryAfter = v.(int) },
		extract: func(cfg Config) any { return cfg.Retry.RetryAfter },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
