package config

import (
	"fmt"
	"time"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
// Secret values are reported as set or unset only.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		val := fmt.Sprintf("%v", s.extract(cfg))
		if s.secret {
			if val == "" {
				val = "(unset)"
			} else {
				val = "(set)"
			}
		}
		result = append(result, KeyInfo{Key: s.key, EnvVar: s.env, Value: val})
	}
	return result
}

// SetKey writes a config key to the platform backend, or to the secret
// store for secret keys.
func SetKey(key, value string) error {
	return setKeyWith(newPlatformBackend(), keychainReader{}, key, value)
}

func setKeyWith(b ConfigBackend, kc keychain, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	v, err := s.parse(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if s.secret {
		return kc.Set(secretService, s.account, value)
	}
	switch s.typ {
	case kInt:
		return b.SetInt(key, v.(int))
	case kDuration:
		return b.SetString(key, v.(time.Duration).String())
	default:
		return b.SetString(key, value)
	}
}

// ValidKeys returns the list of valid config key names.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		keys = append(keys, s.key)
	}
	return keys
}
