package engine

import (
	"fmt"
	"strings"
)

// Provider names accepted by Detect.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Provider      string
	OllamaBaseURL string
	GeminiAPIKey  string
	GeminiBaseURL string
}

// Detect returns the backend named by cfg.Provider. An empty provider picks
// Gemini when an API key is configured and Ollama otherwise.
func Detect(cfg DetectConfig) (Engine, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOllama
		if cfg.GeminiAPIKey != "" {
			provider = ProviderGemini
		}
	}

	switch provider {
	case ProviderOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider selected but no API key configured (set gemini.api_key)")
		}
		return NewGeminiEngine(cfg.GeminiAPIKey, cfg.GeminiBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown engine provider %q (want %q or %q)", cfg.Provider, ProviderOllama, ProviderGemini)
	}
}
