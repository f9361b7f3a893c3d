package api

import (
	"net/http"
	"strings"

	"github.com/kalambet/peerfuse/internal/storage"
)

type feedbackRequest struct {
	Peer     string `json:"peer" validate:"required,max=200"`
	Rating   int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comments string `json:"comments" validate:"max=2000"`
	GivenBy  string `json:"givenBy" validate:"max=200"`
}

func handleGiveFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if !decodeBody(w, r, &req, false) || !validateRequest(w, req) {
			return
		}
		fb, err := deps.Store.SaveFeedback(r.Context(), storage.Feedback{
			Peer:      strings.TrimSpace(req.Peer),
			GivenBy:   requester(r, req.GivenBy),
			Rating:    req.Rating,
			Comments:  strings.TrimSpace(req.Comments),
			CreatedAt: deps.Now(),
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save feedback: %v", err)
			return
		}
		if deps.Remote != nil {
			if _, err := deps.Remote.SaveFeedback(r.Context(), map[string]any{
				"peer":     fb.Peer,
				"givenBy":  fb.GivenBy,
				"rating":   fb.Rating,
				"comments": fb.Comments,
				"at":       fb.CreatedAt.UnixMilli(),
			}); err != nil {
				deps.Logger.Warn("remote feedback save failed", "peer", fb.Peer, "error", err)
			}
		}
		writeJSON(w, http.StatusCreated, fb)
	}
}

func handleListFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peer := r.URL.Query().Get("peer")
		items, err := deps.Store.ListFeedback(r.Context(), peer, parseIntParam(r, "limit", 50, 500))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list feedback: %v", err)
			return
		}
		if items == nil {
			items = []storage.Feedback{}
		}
		resp := map[string]any{"feedback": items}
		if peer != "" {
			avg, n, err := deps.Store.AverageRating(r.Context(), peer)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to compute rating: %v", err)
				return
			}
			resp["average"] = avg
			resp["ratings"] = n
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
