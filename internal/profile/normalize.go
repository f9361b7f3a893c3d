package profile

import (
	"fmt"
	"strings"
)

const unknownName = "unknown"

// categoricalField binds a canonical key and its ordered aliases to the
// Profile field it populates.
type categoricalField struct {
	key     string
	aliases []string
	ptr     func(*Profile) *string
}

// categoricalFields is the alias-resolution table. For each field the
// canonical key is tried first, then the aliases in order; the first
// non-empty string wins.
var categoricalFields = []categoricalField{
	{KeyPreferredMode, []string{"mode"}, func(p *Profile) *string { return &p.PreferredMode }},
	{KeyPrimaryGoal, nil, func(p *Profile) *string { return &p.PrimaryGoal }},
	{KeyPreferredFrequency, nil, func(p *Profile) *string { return &p.PreferredFrequency }},
	{KeyPartnerPreference, nil, func(p *Profile) *string { return &p.PartnerPreference }},
	{KeySessionLength, nil, func(p *Profile) *string { return &p.SessionLength }},
	{KeyTimeZone, nil, func(p *Profile) *string { return &p.TimeZone }},
	{KeyStudyPersonality, nil, func(p *Profile) *string { return &p.StudyPersonality }},
	{KeyAvailability, nil, func(p *Profile) *string { return &p.Availability }},
}

// nameKeys lists the identity keys in resolution order.
var nameKeys = []string{KeyUsername, KeyName}

// Normalize coerces an arbitrarily-shaped record into a Profile. It never
// fails: missing or malformed fields fall back to empty values and the name
// falls back to fallbackKey, then to "unknown".
func Normalize(raw Raw, fallbackKey string) Profile {
	p := Profile{
		Name:       firstString(raw, nameKeys...),
		Strengths:  tokenList(raw[KeyStrengths]),
		Weaknesses: tokenList(raw[KeyWeaknesses]),
	}
	if p.Name == "" && strings.TrimSpace(fallbackKey) != "" {
		p.Name = fallbackKey
	}
	if p.Name == "" {
		p.Name = unknownName
	}
	for _, f := range categoricalFields {
		keys := append([]string{f.key}, f.aliases...)
		*f.ptr(&p) = firstString(raw, keys...)
	}
	return p
}

// NormalizeAll normalizes every entry, using each entry's key as fallback.
func NormalizeAll(entries []Entry) []Profile {
	out := make([]Profile, 0, len(entries))
	for _, e := range entries {
		out = append(out, Normalize(e.Data, e.Key))
	}
	return out
}

// firstString returns the first key whose value is a non-empty string.
// Values are returned as stored; only emptiness is judged after trimming.
func firstString(raw Raw, keys ...string) string {
	for _, k := range keys {
		s, ok := raw[k].(string)
		if ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// tokenList materializes a strengths/weaknesses value as trimmed,
// non-empty tokens. Lists are kept in order; strings are split on commas.
func tokenList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			out = appendToken(out, s)
		}
	case []any:
		for _, item := range t {
			switch s := item.(type) {
			case string:
				out = appendToken(out, s)
			case nil:
			default:
				out = appendToken(out, fmt.Sprint(s))
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			out = appendToken(out, s)
		}
	}
	return out
}

func appendToken(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

// SplitTokens splits a comma-separated string into trimmed, non-empty tokens.
func SplitTokens(s string) []string {
	return tokenList(s)
}

// CanonicalKey maps a field key or one of its aliases to the canonical key.
// It reports false for keys that are not profile attributes.
func CanonicalKey(key string) (string, bool) {
	switch key {
	case KeyStrengths, KeyWeaknesses:
		return key, true
	case KeyName, KeyUsername:
		return KeyName, true
	}
	for _, f := range categoricalFields {
		if key == f.key {
			return f.key, true
		}
		for _, a := range f.aliases {
			if key == a {
				return f.key, true
			}
		}
	}
	return "", false
}
