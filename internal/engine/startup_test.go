package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type mockEngine struct {
	isRunning bool
	models    map[string]bool
	pullErr   error
	chatErr   error
	pulled    []string
	chats     int
}

func (m *mockEngine) Chat(_ context.Context, _ string, _ []Message, _ *Schema) (string, error) {
	m.chats++
	return "pong", m.chatErr
}
func (m *mockEngine) IsRunning(_ context.Context) bool { return m.isRunning }
func (m *mockEngine) ListModels(_ context.Context) ([]string, error) {
	var names []string
	for n := range m.models {
		names = append(names, n)
	}
	return names, nil
}
func (m *mockEngine) HasModel(_ context.Context, name string) bool { return m.models[name] }
func (m *mockEngine) PullModel(_ context.Context, name string, cb func(PullProgress)) error {
	if m.pullErr != nil {
		return m.pullErr
	}
	m.pulled = append(m.pulled, name)
	if cb != nil {
		cb(PullProgress{Status: "success"})
	}
	return nil
}

func TestEnsureReady_ModelPresent(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{"llama3.2": true}}
	if err := EnsureReady(context.Background(), m, "llama3.2", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 0 {
		t.Errorf("expected no pulls, got %v", m.pulled)
	}
	if m.chats != 1 {
		t.Errorf("warm-up chats = %d, want 1", m.chats)
	}
}

func TestEnsureReady_PullsMissing(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{}}
	var out bytes.Buffer
	if err := EnsureReady(context.Background(), m, "llama3.2", &out); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "llama3.2" {
		t.Errorf("expected pull of llama3.2, got %v", m.pulled)
	}
	if !strings.Contains(out.String(), "pulling") {
		t.Errorf("output = %q, want pull progress", out.String())
	}
}

func TestEnsureReady_PullUnsupported(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{}, pullErr: ErrPullUnsupported}
	err := EnsureReady(context.Background(), m, "gemini-9", io.Discard)
	if err == nil || !strings.Contains(err.Error(), "not available") {
		t.Errorf("err = %v, want model not available", err)
	}
}

func TestEnsureReady_WarmupFailureNonFatal(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{"llama3.2": true}, chatErr: errors.New("boom")}
	var out bytes.Buffer
	if err := EnsureReady(context.Background(), m, "llama3.2", &out); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if !strings.Contains(out.String(), "warm-up failed") {
		t.Errorf("output = %q, want warm-up failure note", out.String())
	}
}

func TestEnsureReady_EngineDown(t *testing.T) {
	m := &mockEngine{isRunning: false, models: map[string]bool{}}
	if err := EnsureReady(context.Background(), m, "llama3.2", io.Discard); err == nil {
		t.Fatal("expected error when engine is down")
	}
}
