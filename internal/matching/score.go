// Package matching scores study-partner compatibility between profiles and
// ranks candidates against a target. Every function here is pure.
package matching

import (
	"fmt"
	"strings"

	"github.com/kalambet/peerfuse/internal/profile"
)

// Weights is the points table applied by ScoreDetails.
type Weights struct {
	Availability       int
	CompPerMatch       int
	PreferredMode      int
	PrimaryGoal        int
	PreferredFrequency int
	PartnerPreference  int
	SessionLength      int
	TimeZone           int
	StudyPersonality   int
}

// DefaultWeights puts availability first, then complementary skills, then
// the remaining preferences.
var DefaultWeights = Weights{
	Availability:       100,
	CompPerMatch:       30,
	PreferredMode:      8,
	PrimaryGoal:        6,
	PreferredFrequency: 6,
	PartnerPreference:  4,
	SessionLength:      4,
	TimeZone:           3,
	StudyPersonality:   3,
}

// Reason is one contribution to a score.
type Reason struct {
	Reason string `json:"reason"`
	Points int    `json:"points"`
}

// Details is a score with its itemized contributions.
type Details struct {
	Score   int      `json:"score"`
	Reasons []Reason `json:"reasons"`
}

// preferenceRule is a single-valued attribute compared by fold-equality.
type preferenceRule struct {
	reason string
	points func(Weights) int
	value  func(profile.Profile) string
}

var preferenceRules = []preferenceRule{
	{"Same preferred mode", func(w Weights) int { return w.PreferredMode }, func(p profile.Profile) string { return p.PreferredMode }},
	{"Same primary goal", func(w Weights) int { return w.PrimaryGoal }, func(p profile.Profile) string { return p.PrimaryGoal }},
	{"Same preferred frequency", func(w Weights) int { return w.PreferredFrequency }, func(p profile.Profile) string { return p.PreferredFrequency }},
	{"Same partner preference", func(w Weights) int { return w.PartnerPreference }, func(p profile.Profile) string { return p.PartnerPreference }},
	{"Same session length", func(w Weights) int { return w.SessionLength }, func(p profile.Profile) string { return p.SessionLength }},
	{"Same time zone", func(w Weights) int { return w.TimeZone }, func(p profile.Profile) string { return p.TimeZone }},
	{"Similar study personality", func(w Weights) int { return w.StudyPersonality }, func(p profile.Profile) string { return p.StudyPersonality }},
}

// ScoreDetails scores candidate against target with DefaultWeights.
func ScoreDetails(target, candidate profile.Profile) Details {
	return DefaultWeights.ScoreDetails(target, candidate)
}

// Score returns only the total of ScoreDetails.
func Score(target, candidate profile.Profile) int {
	return ScoreDetails(target, candidate).Score
}

// ScoreDetails evaluates the rules in fixed order: availability,
// complementary skills, then each preference. Reasons follow that order.
func (w Weights) ScoreDetails(target, candidate profile.Profile) Details {
	d := Details{Reasons: []Reason{}}
	add := func(reason string, points int) {
		d.Score += points
		d.Reasons = append(d.Reasons, Reason{Reason: reason, Points: points})
	}

	if foldEqual(target.Availability, candidate.Availability) {
		add("Same availability", w.Availability)
	}

	if n := complementaryCount(target, candidate); n > 0 {
		add(complementaryReason(n), w.CompPerMatch*n)
	}

	for _, r := range preferenceRules {
		if foldEqual(r.value(target), r.value(candidate)) {
			add(r.reason, r.points(w))
		}
	}
	return d
}

// complementaryCount counts target weaknesses found among candidate
// strengths plus candidate weaknesses found among target strengths.
// Repeated tokens count once per occurrence.
func complementaryCount(target, candidate profile.Profile) int {
	return overlap(target.Weaknesses, candidate.Strengths) +
		overlap(candidate.Weaknesses, target.Strengths)
}

func overlap(weaknesses, strengths []string) int {
	if len(weaknesses) == 0 || len(strengths) == 0 {
		return 0
	}
	have := make(map[string]struct{}, len(strengths))
	for _, s := range strengths {
		have[fold(s)] = struct{}{}
	}
	n := 0
	for _, w := range weaknesses {
		if _, ok := have[fold(w)]; ok {
			n++
		}
	}
	return n
}

func complementaryReason(n int) string {
	suffix := ""
	if n > 1 {
		suffix = "es"
	}
	return fmt.Sprintf("%d complementary strength/weakness match%s", n, suffix)
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// foldEqual reports whether a is non-empty and equal to b after folding.
func foldEqual(a, b string) bool {
	fa := fold(a)
	return fa != "" && fa == fold(b)
}
