package config

import (
	"fmt"
	"os"
	"strings"
)

const sessionAccount = "session_token"

// SessionToken returns the sign-in token saved by `peerfuse token issue`.
// PEERFUSE_TOKEN takes precedence. An empty result means the CLI acts as
// a guest.
func SessionToken() string {
	return sessionTokenWith(keychainReader{})
}

func sessionTokenWith(kc keychain) string {
	if v := strings.TrimSpace(os.Getenv("PEERFUSE_TOKEN")); v != "" {
		return v
	}
	v, err := kc.Get(secretService, sessionAccount)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// SaveSessionToken stores token for later CLI calls. An empty token signs
// out.
func SaveSessionToken(token string) error {
	return saveSessionTokenWith(keychainReader{}, token)
}

func saveSessionTokenWith(kc keychain, token string) error {
	if err := kc.Set(secretService, sessionAccount, strings.TrimSpace(token)); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}
	return nil
}
