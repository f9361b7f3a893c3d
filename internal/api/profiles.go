package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/peerfuse/internal/identity"
	"github.com/kalambet/peerfuse/internal/profile"
)

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := identity.User(r.Context())
		p, found, err := deps.Directory.Load(r.Context(), user)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load profile: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "no profile saved for %s", user)
			return
		}
		p.Name = user
		writeJSON(w, http.StatusOK, p)
	}
}

// handlePutProfile replaces the signed-in user's profile.
func handlePutProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw profile.Raw
		if !decodeBody(w, r, &raw, false) {
			return
		}
		user := identity.User(r.Context())
		p := profile.Normalize(raw, user)
		p.Name = user
		if err := deps.Directory.Save(r.Context(), p); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// handlePatchProfile updates the given fields of the signed-in user's
// profile and leaves the rest unchanged.
func handlePatchProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields profile.Raw
		if !decodeBody(w, r, &fields, false) {
			return
		}
		user := identity.User(r.Context())
		p, err := patchProfile(r.Context(), deps.Directory, user, fields)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func patchProfile(ctx context.Context, dir *profile.Manager, user string, fields profile.Raw) (profile.Profile, error) {
	current, _, err := dir.Load(ctx, user)
	if err != nil {
		return profile.Profile{}, err
	}
	merged := current.Raw()
	for k, v := range fields {
		if canon, ok := profile.CanonicalKey(k); ok {
			k = canon
		}
		merged[k] = v
	}
	p := profile.Normalize(merged, user)
	p.Name = user
	if err := dir.Save(ctx, p); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

func handleGetNamedProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		p, found, err := deps.Directory.Load(r.Context(), name)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load profile: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "no profile for %s", name)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// handleAddUser appends a matching entry. A signed-in caller's entry is
// named after them and also saved as their profile.
func handleAddUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw profile.Raw
		if !decodeBody(w, r, &raw, false) {
			return
		}
		user := identity.User(r.Context())
		p := profile.Normalize(raw, guestName(deps))
		if user != "" {
			p.Name = user
			if err := deps.Directory.Save(r.Context(), p); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to save profile: %v", err)
				return
			}
		}
		if err := deps.Directory.AddUser(r.Context(), p, user); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add user: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleListUsers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := deps.Directory.Snapshot(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list users: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
	}
}

// targetProfile resolves whom to match for: the signed-in user's supplied
// or stored profile, or the guest profile in raw. It writes the error
// response and returns false when there is none.
func targetProfile(w http.ResponseWriter, r *http.Request, deps Deps, raw profile.Raw) (profile.Profile, bool) {
	user := identity.User(r.Context())
	if user == "" {
		if len(raw) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "a profile is required to match as a guest")
			return profile.Profile{}, false
		}
		return profile.Normalize(raw, guestName(deps)), true
	}

	if len(raw) > 0 {
		p := profile.Normalize(raw, user)
		p.Name = user
		return p, true
	}
	p, found, err := deps.Directory.Load(r.Context(), user)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to load profile: %v", err)
		return profile.Profile{}, false
	}
	if !found {
		httpError(w, http.StatusNotFound, "not_found", "no profile saved for %s", user)
		return profile.Profile{}, false
	}
	p.Name = user
	return p, true
}

// guestName names a profile submitted without a name or an identity.
func guestName(deps Deps) string {
	return fmt.Sprintf("visitor-%d", deps.Now().UnixMilli())
}

// requester names the caller for records that need an author: the
// signed-in user, else the supplied name, else "anonymous".
func requester(r *http.Request, supplied string) string {
	if user := identity.User(r.Context()); user != "" {
		return user
	}
	if s := strings.TrimSpace(supplied); s != "" {
		return s
	}
	return "anonymous"
}
