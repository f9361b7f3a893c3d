package engine

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DetectConfig
		want    string
		wantErr bool
	}{
		{name: "default is ollama", cfg: DetectConfig{OllamaBaseURL: "http://localhost:11434"}, want: "ollama"},
		{name: "api key implies gemini", cfg: DetectConfig{GeminiAPIKey: "k"}, want: "gemini"},
		{name: "explicit ollama wins over key", cfg: DetectConfig{Provider: "Ollama", GeminiAPIKey: "k"}, want: "ollama"},
		{name: "explicit gemini", cfg: DetectConfig{Provider: "gemini", GeminiAPIKey: "k"}, want: "gemini"},
		{name: "gemini without key", cfg: DetectConfig{Provider: "gemini"}, wantErr: true},
		{name: "unknown provider", cfg: DetectConfig{Provider: "mlx"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Detect(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Detect returned %T, want error", e)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			var got string
			switch e.(type) {
			case *OllamaEngine:
				got = "ollama"
			case *GeminiEngine:
				got = "gemini"
			}
			if got != tt.want {
				t.Errorf("Detect returned %T, want %s", e, tt.want)
			}
		})
	}
}
