package api

import (
	"errors"
	"net/http"

	"github.com/kalambet/peerfuse/internal/assist"
	"github.com/kalambet/peerfuse/internal/profile"
)

type explainRequest struct {
	Peer    string      `json:"peer" validate:"required"`
	Profile profile.Raw `json:"profile"`
}

type topicRequest struct {
	Topic string `json:"topic" validate:"required,max=20000"`
}

func handleExplain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req explainRequest
		if !decodeBody(w, r, &req, false) || !validateRequest(w, req) {
			return
		}
		target, ok := targetProfile(w, r, deps, req.Profile)
		if !ok {
			return
		}
		peer, found, err := findCandidate(r.Context(), deps.Directory, req.Peer)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load users: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "no user named %s", req.Peer)
			return
		}
		text, err := deps.Assistant.ExplainMatch(r.Context(), target, peer)
		if err != nil {
			assistError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"explanation": text})
	}
}

func handleNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req topicRequest
		if !decodeBody(w, r, &req, false) || !validateRequest(w, req) {
			return
		}
		notes, err := deps.Assistant.Notes(r.Context(), req.Topic)
		if err != nil {
			assistError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
	}
}

func handleFlashcards(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req topicRequest
		if !decodeBody(w, r, &req, false) || !validateRequest(w, req) {
			return
		}
		cards, err := deps.Assistant.Flashcards(r.Context(), req.Topic)
		if err != nil {
			assistError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
	}
}

func handleQuiz(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req topicRequest
		if !decodeBody(w, r, &req, false) || !validateRequest(w, req) {
			return
		}
		questions, err := deps.Assistant.Quiz(r.Context(), req.Topic)
		if err != nil {
			assistError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
	}
}

// assistError reports a study tool failure as plain text in the error
// message.
func assistError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assist.ErrUnavailable):
		httpError(w, http.StatusServiceUnavailable, "unavailable", "%v", err)
	case errors.Is(err, assist.ErrEmptyTopic):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
	}
}
