package engine

import (
	"context"
	"time"

	"github.com/kalambet/peerfuse/internal/gemini"
)

// GeminiEngine adapts the hosted Gemini API to the Engine interface.
type GeminiEngine struct {
	client *gemini.Client
}

// NewGeminiEngine creates a GeminiEngine. An empty baseURL uses the public endpoint.
func NewGeminiEngine(apiKey, baseURL string) *GeminiEngine {
	if baseURL == "" {
		return &GeminiEngine{client: gemini.NewClient(apiKey)}
	}
	return &GeminiEngine{client: gemini.NewClientWithBaseURL(apiKey, baseURL)}
}

func (e *GeminiEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	msgs := make([]gemini.Message, len(messages))
	for i, m := range messages {
		msgs[i] = gemini.Message{Role: m.Role, Content: m.Content}
	}
	return e.client.Generate(ctx, model, msgs, toGeminiSchema(jsonSchema))
}

func toGeminiSchema(s *Schema) *gemini.Schema {
	if s == nil {
		return nil
	}
	out := &gemini.Schema{
		Type:        s.Type,
		Description: s.Description,
		Items:       toGeminiSchema(s.Items),
		Required:    s.Required,
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*gemini.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toGeminiSchema(v)
		}
	}
	return out
}

// IsRunning reports whether the API answers a model listing with the
// configured key.
func (e *GeminiEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.client.ListModels(ctx)
	return err == nil
}

func (e *GeminiEngine) ListModels(ctx context.Context) ([]string, error) {
	return e.client.ListModels(ctx)
}

func (e *GeminiEngine) HasModel(ctx context.Context, name string) bool {
	models, err := e.client.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		if m == name {
			return true
		}
	}
	return false
}

func (e *GeminiEngine) PullModel(_ context.Context, _ string, _ func(PullProgress)) error {
	return ErrPullUnsupported
}
