package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/peerfuse/internal/matching"
	"github.com/kalambet/peerfuse/internal/profile"
)

const (
	msgNoCandidates = "No other users available to match against."
	msgNoGoodMatch  = "No good match found yet."

	maxMatchLimit = 100
)

// MatchResponse is the result of a match request.
type MatchResponse struct {
	Target     profile.Profile   `json:"target"`
	Candidates int               `json:"candidates"`
	Matches    []matching.Result `json:"matches"`
	Ranking    []matching.Result `json:"ranking,omitempty"`
	Current    *CycledMatch      `json:"current,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// CycledMatch is one entry of the full ranking selected by a cursor.
// Position is 1-based.
type CycledMatch struct {
	matching.Result
	Position int `json:"position"`
	Of       int `json:"of"`
}

func handleMatches(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw profile.Raw
		if !decodeBody(w, r, &raw, true) {
			return
		}
		target, ok := targetProfile(w, r, deps, raw)
		if !ok {
			return
		}

		candidates, err := deps.Directory.Snapshot(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load users: %v", err)
			return
		}

		ranked := deps.Weights.Rank(target, candidates)
		limit := parseIntParam(r, "limit", deps.TopN, maxMatchLimit)
		resp := MatchResponse{
			Target:     target,
			Candidates: len(ranked),
			Matches:    matching.Top(ranked, limit),
		}
		if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
			resp.Ranking = ranked
		}
		if s := r.URL.Query().Get("next"); s != "" {
			idx, err := strconv.Atoi(s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "next must be an integer")
				return
			}
			if res, pos, ok := matching.Cycle(ranked, idx); ok {
				resp.Current = &CycledMatch{Result: res, Position: pos + 1, Of: len(ranked)}
			}
		}

		switch {
		case len(ranked) == 0:
			resp.Message = msgNoCandidates
		case len(resp.Matches) == 0:
			resp.Message = msgNoGoodMatch
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleScore returns the score breakdown of the signed-in user against
// one named candidate.
func handleScore(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := targetProfile(w, r, deps, nil)
		if !ok {
			return
		}
		name := chi.URLParam(r, "name")
		candidate, found, err := findCandidate(r.Context(), deps.Directory, name)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load users: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "no user named %s", name)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"target":    target.Name,
			"candidate": candidate,
			"details":   deps.Weights.ScoreDetails(target, candidate),
		})
	}
}

func findCandidate(ctx context.Context, dir *profile.Manager, name string) (profile.Profile, bool, error) {
	users, err := dir.Snapshot(ctx)
	if err != nil {
		return profile.Profile{}, false, err
	}
	for _, u := range users {
		if u.Name == name {
			return u, true, nil
		}
	}
	return profile.Profile{}, false, nil
}
