package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	c := NewClientWithBaseURL("test-key", url)
	c.backoff = time.Millisecond
	return c
}

const okBody = `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"there"}]},"finishReason":"STOP"}]}`

func TestGenerate_Text(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-flash:generateContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, okBody)
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Generate(context.Background(), "models/gemini-1.5-flash", []Message{
		{Role: "system", Content: "Be brief."},
		{Role: "user", Content: "Say hi"},
		{Role: "assistant", Content: "Hi"},
		{Role: "user", Content: "Again"},
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Hello there" {
		t.Errorf("out = %q, want concatenated parts", out)
	}

	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "Be brief." {
		t.Errorf("systemInstruction = %+v", gotReq.SystemInstruction)
	}
	roles := make([]string, len(gotReq.Contents))
	for i, c := range gotReq.Contents {
		roles[i] = c.Role
	}
	if strings.Join(roles, ",") != "user,model,user" {
		t.Errorf("roles = %v", roles)
	}
	if gotReq.GenerationConfig != nil {
		t.Errorf("generationConfig = %+v, want none for plain text", gotReq.GenerationConfig)
	}
}

func TestGenerate_JSONSchema(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"{\"cards\":[]}"}]}}]}`)
	}))
	defer srv.Close()

	schema := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"cards": {Type: "array", Items: &Schema{Type: "string"}},
		},
	}
	out, err := newTestClient(srv.URL).Generate(context.Background(), "gemini-1.5-flash", []Message{{Role: "user", Content: "x"}}, schema)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"cards":[]}` {
		t.Errorf("out = %q", out)
	}

	cfg, _ := raw["generationConfig"].(map[string]any)
	if cfg["responseMimeType"] != "application/json" {
		t.Errorf("responseMimeType = %v", cfg["responseMimeType"])
	}
	rs, _ := cfg["responseSchema"].(map[string]any)
	if rs["type"] != "OBJECT" {
		t.Errorf("schema type = %v, want OBJECT", rs["type"])
	}
	cards := rs["properties"].(map[string]any)["cards"].(map[string]any)
	if cards["items"].(map[string]any)["type"] != "STRING" {
		t.Errorf("nested item type = %v, want STRING", cards["items"])
	}
	if schema.Type != "object" {
		t.Error("caller schema was mutated")
	}
}

func TestGenerate_RetriesRateLimit(t *testing.T) {
	var attempt atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, okBody)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Generate(context.Background(), "m", []Message{{Role: "user", Content: "x"}}, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := attempt.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestGenerate_RetriesExhausted(t *testing.T) {
	var attempt atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "m", []Message{{Role: "user", Content: "x"}}, nil)
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %q, want status in message", err)
	}
	if got := attempt.Load(); got != maxAttempts {
		t.Errorf("attempts = %d, want %d", got, maxAttempts)
	}
}

func TestGenerate_ClientErrorNotRetried(t *testing.T) {
	var attempt atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		http.Error(w, `{"error":{"message":"API key not valid"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "m", []Message{{Role: "user", Content: "x"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("err = %v, want upstream message", err)
	}
	if got := attempt.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestGenerate_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "m", []Message{{Role: "user", Content: "x"}}, nil)
	if !errors.Is(err, ErrBlocked) {
		t.Errorf("err = %v, want ErrBlocked", err)
	}
}

func TestGenerate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Generate(context.Background(), "m", []Message{{Role: "user", Content: "x"}}, nil); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestGenerate_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := newTestClient(srv.URL).Generate(ctx, "m", []Message{{Role: "user", Content: "x"}}, nil); err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Generate took %v after cancellation", elapsed)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"models":[{"name":"models/gemini-1.5-flash"},{"name":"models/gemini-1.5-pro"}]}`)
	}))
	defer srv.Close()

	models, err := newTestClient(srv.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if strings.Join(models, ",") != "gemini-1.5-flash,gemini-1.5-pro" {
		t.Errorf("models = %v", models)
	}
}

func TestListModels_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListModels(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusForbidden {
		t.Errorf("err = %v, want StatusError 403", err)
	}
}
