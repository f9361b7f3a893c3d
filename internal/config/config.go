// Package config loads peerfuse settings from defaults, the platform config
// backend, .env files, PEERFUSE_* environment variables and the secret
// store, in that order of increasing precedence.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// secretService names the secret store entry holding peerfuse secrets.
const secretService = "peerfuse"

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
	Engine   EngineConfig
	Ollama   OllamaConfig
	Gemini   GeminiConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Matching MatchingConfig
	Assist   AssistConfig
}

type ServerConfig struct {
	Port           int
	AllowedOrigins []string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type EngineConfig struct {
	// Provider is "ollama", "gemini" or empty for automatic selection.
	Provider string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type GeminiConfig struct {
	Model  string
	APIKey string
}

type RedisConfig struct {
	// URL of the shared realtime store. Empty disables it.
	URL string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type MatchingConfig struct {
	TopN        int
	SnapshotTTL time.Duration
}

type AssistConfig struct {
	CacheTTL time.Duration
	Timeout  time.Duration
}

// Model returns the model name for the configured provider.
func (c Config) Model() string {
	if strings.EqualFold(c.Engine.Provider, "gemini") || (c.Engine.Provider == "" && c.Gemini.APIKey != "") {
		return c.Gemini.Model
	}
	return c.Ollama.Model
}

// DBPath returns the SQLite database file path.
func (c Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, "peerfuse.db")
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           4100,
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Log:     LogConfig{Level: "info"},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
		},
		Gemini: GeminiConfig{Model: "gemini-1.5-flash"},
		Auth:   AuthConfig{TokenTTL: 30 * 24 * time.Hour},
		Matching: MatchingConfig{
			TopN:        3,
			SnapshotTTL: 30 * time.Second,
		},
		Assist: AssistConfig{
			CacheTTL: 30 * time.Minute,
			Timeout:  60 * time.Second,
		},
	}
}

// Load reads configuration from the platform-native backend, .env files in
// the working directory and the config directory, environment variables,
// and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: app.peerfuse) and secrets
// live in the Keychain. Elsewhere the backend is a JSON file at
// $XDG_CONFIG_HOME/peerfuse/config.json and secrets a 0600 JSON file under
// $XDG_DATA_HOME/peerfuse.
//
// When no JWT signing secret exists one is generated and stored.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{}, ".env", filepath.Join(configDir(), ".env"))
}

// keychain abstracts secret storage for testing.
type keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b ConfigBackend, kc keychain, dotenv ...string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(dotenv...); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	for _, s := range specs {
		if !s.secret || s.extract(cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(secretService, s.account); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	if cfg.Auth.JWTSecret == "" {
		secret, err := generateSecret()
		if err != nil {
			return Config{}, fmt.Errorf("generating jwt secret: %w", err)
		}
		if err := kc.Set(secretService, "jwt_secret", secret); err != nil {
			slog.Warn("could not persist generated jwt secret; issued tokens will not survive a restart", "error", err)
		}
		cfg.Auth.JWTSecret = secret
	}

	if cfg.Matching.TopN <= 0 {
		return Config{}, fmt.Errorf("matching.top_n must be positive, got %d", cfg.Matching.TopN)
	}
	return cfg, nil
}

// loadDotEnv loads each existing file into the process environment without
// overriding variables that are already set.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
		slog.Debug("loaded env file", "path", p)
	}
	return nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// keychainReader reads and writes the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (keychainReader) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}
