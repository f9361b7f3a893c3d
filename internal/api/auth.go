package api

import (
	"net/http"
	"strings"

	"github.com/kalambet/peerfuse/internal/identity"
)

// Identify resolves the bearer token, if any, into the request context.
// A request without credentials proceeds as a guest; a token that fails
// verification is rejected.
func Identify(svc *identity.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || svc == nil {
				next.ServeHTTP(w, r)
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "authorization header must be a bearer token")
				return
			}
			user, err := svc.Verify(strings.TrimSpace(auth[len(prefix):]))
			if err != nil {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), user)))
		})
	}
}

// RequireUser rejects guest requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity.User(r.Context()) == "" {
			httpError(w, http.StatusUnauthorized, "authentication_error", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
