package api

import (
	"errors"
	"math/rand/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/peerfuse/internal/storage"
)

const meetCodeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

type startSessionRequest struct {
	Peer string `json:"peer" validate:"required,max=200"`
	User string `json:"user" validate:"max=200"`
}

func handleStartSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startSessionRequest
		if !decodeBody(w, r, &req, false) || !validateRequest(w, req) {
			return
		}
		sess, err := deps.Store.StartSession(r.Context(), storage.Session{
			UserName:  requester(r, req.User),
			Peer:      req.Peer,
			MeetLink:  newMeetLink(),
			StartedAt: deps.Now(),
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to start session: %v", err)
			return
		}
		deps.Logger.Info("study session started", "id", sess.ID, "user", sess.UserName, "peer", sess.Peer)
		writeJSON(w, http.StatusCreated, sess)
	}
}

func handleEndSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, err := deps.Store.EndSession(r.Context(), id, deps.Now())
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to end session: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := requester(r, r.URL.Query().Get("user"))
		sessions, err := deps.Store.ListSessions(r.Context(), user, parseIntParam(r, "limit", 20, 100))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list sessions: %v", err)
			return
		}
		if sessions == nil {
			sessions = []storage.Session{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
	}
}

// newMeetLink returns a meeting link with a random 7-character code.
func newMeetLink() string {
	code := make([]byte, 7)
	for i := range code {
		code[i] = meetCodeAlphabet[rand.IntN(len(meetCodeAlphabet))]
	}
	return "https://meet.google.com/" + string(code)
}
