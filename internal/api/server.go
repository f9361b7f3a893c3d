// Package api exposes the directory, matching, sessions, feedback and study
// tools over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/peerfuse/internal/assist"
	"github.com/kalambet/peerfuse/internal/identity"
	"github.com/kalambet/peerfuse/internal/matching"
	"github.com/kalambet/peerfuse/internal/profile"
	"github.com/kalambet/peerfuse/internal/realtime"
	"github.com/kalambet/peerfuse/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds everything the handlers need.
type Deps struct {
	Store     *storage.Store
	Directory *profile.Manager
	Remote    *realtime.Store // optional shared store for feedback
	Identity  *identity.Service
	Assistant *assist.Assistant
	Weights   matching.Weights
	TopN      int
	Origins   []string
	Logger    *slog.Logger
	Now       func() time.Time
}

func (d *Deps) defaults() {
	if d.Weights == (matching.Weights{}) {
		d.Weights = matching.DefaultWeights
	}
	if d.TopN <= 0 {
		d.TopN = matching.DefaultTopN
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Assistant == nil {
		d.Assistant = assist.New(nil, assist.Options{})
	}
}

// NewHandler returns the peerfuse REST API.
func NewHandler(deps Deps) http.Handler {
	deps.defaults()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(deps.Origins) > 0 {
		r.Use(corsHandler(deps.Origins))
	}
	r.Use(Identify(deps.Identity))

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/profile", handleGetProfile(deps))
		r.Put("/profile", handlePutProfile(deps))
		r.Patch("/profile", handlePatchProfile(deps))
		r.Get("/matches/{name}/score", handleScore(deps))
	})
	r.Get("/profiles/{name}", handleGetNamedProfile(deps))

	r.Post("/users", handleAddUser(deps))
	r.Get("/users", handleListUsers(deps))
	r.Post("/matches", handleMatches(deps))

	r.Post("/sessions", handleStartSession(deps))
	r.Post("/sessions/{id}/end", handleEndSession(deps))
	r.Get("/sessions", handleListSessions(deps))

	r.Post("/feedback", handleGiveFeedback(deps))
	r.Get("/feedback", handleListFeedback(deps))

	r.Route("/study", func(r chi.Router) {
		r.Post("/explain", handleExplain(deps))
		r.Post("/notes", handleNotes(deps))
		r.Post("/flashcards", handleFlashcards(deps))
		r.Post("/quiz", handleQuiz(deps))
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"status": "ok", "assistant": deps.Assistant.Available()}
		if deps.Remote != nil {
			status["remote"] = "ok"
			if err := deps.Remote.Ping(r.Context()); err != nil {
				status["remote"] = "unreachable"
			}
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
