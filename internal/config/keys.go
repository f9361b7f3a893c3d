package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
	kList
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // secret store account for secret keys
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PEERFUSE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.allowed_origins", typ: kList, env: "PEERFUSE_SERVER_ALLOWED_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.AllowedOrigins = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Server.AllowedOrigins, ",") },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PEERFUSE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "PEERFUSE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "engine.provider", typ: kString, env: "PEERFUSE_ENGINE_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Engine.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Provider },
	},
	{
		key: "ollama.base_url", typ: kString, env: "PEERFUSE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "PEERFUSE_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "gemini.model", typ: kString, env: "PEERFUSE_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Model },
	},
	{
		key: "gemini.api_key", typ: kString, env: "PEERFUSE_GEMINI_API_KEY",
		secret: true, account: "gemini_api_key",
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "redis.url", typ: kString, env: "PEERFUSE_REDIS_URL",
		apply:   func(cfg *Config, v any) { cfg.Redis.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.URL },
	},
	{
		key: "auth.jwt_secret", typ: kString, env: "PEERFUSE_AUTH_JWT_SECRET",
		secret: true, account: "jwt_secret",
		apply:   func(cfg *Config, v any) { cfg.Auth.JWTSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.JWTSecret },
	},
	{
		key: "auth.token_ttl", typ: kDuration, env: "PEERFUSE_AUTH_TOKEN_TTL",
		apply:   func(cfg *Config, v any) { cfg.Auth.TokenTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Auth.TokenTTL },
	},
	{
		key: "matching.top_n", typ: kInt, env: "PEERFUSE_MATCHING_TOP_N",
		apply:   func(cfg *Config, v any) { cfg.Matching.TopN = v.(int) },
		extract: func(cfg Config) any { return cfg.Matching.TopN },
	},
	{
		key: "matching.snapshot_ttl", typ: kDuration, env: "PEERFUSE_MATCHING_SNAPSHOT_TTL",
		apply:   func(cfg *Config, v any) { cfg.Matching.SnapshotTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Matching.SnapshotTTL },
	},
	{
		key: "assist.cache_ttl", typ: kDuration, env: "PEERFUSE_ASSIST_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Assist.CacheTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Assist.CacheTTL },
	},
	{
		key: "assist.timeout", typ: kDuration, env: "PEERFUSE_ASSIST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Assist.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Assist.Timeout },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parse converts a textual value to the key's Go type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(strings.TrimSpace(raw))
	case kBool:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case kDuration:
		return time.ParseDuration(strings.TrimSpace(raw))
	case kList:
		var out []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}
		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			slog.Warn("could not parse config value, using default", "key", s.key, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
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
		v, err := s.parse(raw)
		if err != nil {
			slog.Warn("could not parse environment variable, using default", "env", s.env, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
