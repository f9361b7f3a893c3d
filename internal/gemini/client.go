// Package gemini is a minimal client for the Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 60 * time.Second
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// Message is one conversation turn. Role is "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Schema constrains a JSON response.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

// ErrBlocked is returned when the prompt or every candidate was blocked.
var ErrBlocked = errors.New("gemini: response blocked")

// Client calls the Gemini REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	backoff    time.Duration
}

// NewClient creates a client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		backoff:    initialBackoff,
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema  `json:"responseSchema,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate sends messages to model and returns the concatenated text of the
// first candidate. When schema is non-nil the response is JSON matching it.
// Rate limits and server errors are retried with backoff.
func (c *Client) Generate(ctx context.Context, model string, messages []Message, schema *Schema) (string, error) {
	body, err := json.Marshal(buildRequest(messages, schema))
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, strings.TrimPrefix(model, "models/"))

	raw, err := retry.DoWithData(
		func() ([]byte, error) {
			return c.post(ctx, url, body)
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.Delay(c.backoff),
		retry.MaxJitter(c.backoff/2),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying gemini request", "attempt", n+1, "model", model, "error", err)
		}),
	)
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates returned")
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == "SAFETY" || cand.FinishReason == "BLOCKLIST" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, cand.FinishReason)
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func buildRequest(messages []Message, schema *Schema) generateRequest {
	var req generateRequest
	var system []part
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, part{Text: m.Content})
		case "assistant", "model":
			req.Contents = append(req.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: system}
	}
	if schema != nil {
		zero := 0.0
		req.GenerationConfig = &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   upperTypes(schema),
			Temperature:      &zero,
		}
	}
	return req
}

// upperTypes returns a copy of s with OpenAPI type names in the upper-case
// form the API expects.
func upperTypes(s *Schema) *Schema {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Type = strings.ToUpper(s.Type)
	cp.Items = upperTypes(s.Items)
	if s.Properties != nil {
		cp.Properties = make(map[string]*Schema, len(s.Properties))
		for k, v := range s.Properties {
			cp.Properties[k] = upperTypes(v)
		}
	}
	return &cp
}

func (c *Client) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
	}
	return data, nil
}

type modelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the model IDs available to the API key, without the
// "models/" prefix.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting model list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var mr modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	names := make([]string, len(mr.Models))
	for i, m := range mr.Models {
		names[i] = strings.TrimPrefix(m.Name, "models/")
	}
	return names, nil
}

// isRetryable reports whether err is a transient failure. Client errors
// other than 429 are permanent.
func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
