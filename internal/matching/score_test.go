package matching

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/peerfuse/internal/profile"
)

func p(raw profile.Raw) profile.Profile {
	return profile.Normalize(raw, "")
}

func TestScoreDetails_ComplementaryExample(t *testing.T) {
	target := p(profile.Raw{"name": "a", "availability": "Evenings", "strengths": []string{"Math"}, "weaknesses": []string{"Physics"}})
	candidate := p(profile.Raw{"name": "b", "availability": "Evenings", "strengths": []string{"Physics"}, "weaknesses": []string{"Math"}})

	got := ScoreDetails(target, candidate)
	want := Details{
		Score: 160,
		Reasons: []Reason{
			{Reason: "Same availability", Points: 100},
			{Reason: "2 complementary strength/weakness matches", Points: 60},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ScoreDetails mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreDetails_NothingShared(t *testing.T) {
	got := ScoreDetails(p(profile.Raw{"name": "a"}), p(profile.Raw{"name": "b"}))
	if got.Score != 0 {
		t.Errorf("Score = %d, want 0", got.Score)
	}
	if got.Reasons == nil || len(got.Reasons) != 0 {
		t.Errorf("Reasons = %#v, want empty non-nil", got.Reasons)
	}
}

func TestScoreDetails_EmptyNeverMatchesEmpty(t *testing.T) {
	a := p(profile.Raw{"availability": "  ", "timeZone": ""})
	b := p(profile.Raw{"availability": "", "timeZone": "   "})
	if s := Score(a, b); s != 0 {
		t.Errorf("Score = %d, want 0 for blank fields", s)
	}
}

func TestScoreDetails_FoldEquality(t *testing.T) {
	a := p(profile.Raw{"availability": " EVENINGS ", "mode": "online", "strengths": "  MATH "})
	b := p(profile.Raw{"availability": "evenings", "preferredMode": "Online ", "weaknesses": "math"})
	got := ScoreDetails(a, b)
	want := Details{
		Score: 100 + 30 + 8,
		Reasons: []Reason{
			{Reason: "Same availability", Points: 100},
			{Reason: "1 complementary strength/weakness match", Points: 30},
			{Reason: "Same preferred mode", Points: 8},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ScoreDetails mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreDetails_AllRulesInOrder(t *testing.T) {
	shared := profile.Raw{
		"availability":       "Weekends",
		"preferredMode":      "Online",
		"primaryGoal":        "Exam prep",
		"preferredFrequency": "Weekly",
		"partnerPreference":  "Same level",
		"sessionLength":      "2h",
		"timeZone":           "UTC+5",
		"studyPersonality":   "Quiet",
	}
	a := p(shared)
	b := p(shared)
	a.Strengths, a.Weaknesses = []string{"Go"}, []string{"Rust"}
	b.Strengths, b.Weaknesses = []string{"Rust"}, []string{"Go"}

	got := ScoreDetails(a, b)
	want := Details{
		Score: 100 + 60 + 8 + 6 + 6 + 4 + 4 + 3 + 3,
		Reasons: []Reason{
			{"Same availability", 100},
			{"2 complementary strength/weakness matches", 60},
			{"Same preferred mode", 8},
			{"Same primary goal", 6},
			{"Same preferred frequency", 6},
			{"Same partner preference", 4},
			{"Same session length", 4},
			{"Same time zone", 3},
			{"Similar study personality", 3},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ScoreDetails mismatch (-want +got):\n%s", diff)
	}
}

// Tokens are not deduplicated: a repeated weakness, or a token listed as
// both strength and weakness, counts every time it matches.
func TestScoreDetails_RepeatedTokensCountEachOccurrence(t *testing.T) {
	a := p(profile.Raw{"strengths": "Math", "weaknesses": "Physics, physics"})
	b := p(profile.Raw{"strengths": "Physics, Physics", "weaknesses": "Math"})
	if got := ScoreDetails(a, b); got.Score != 90 || got.Reasons[0].Reason != "3 complementary strength/weakness matches" {
		t.Errorf("ScoreDetails = %+v, want 3 matches for 90 points", got)
	}

	self := p(profile.Raw{"strengths": "Math", "weaknesses": "Math"})
	other := p(profile.Raw{"strengths": "Math", "weaknesses": "Math"})
	if got := Score(self, other); got != 60 {
		t.Errorf("Score = %d, want 60 for a token on both sides of both profiles", got)
	}
}

func TestScoreDetails_Symmetric(t *testing.T) {
	profiles := []profile.Profile{
		p(profile.Raw{"availability": "Evenings", "strengths": "Math, Art", "weaknesses": "Physics", "timeZone": "UTC"}),
		p(profile.Raw{"availability": "evenings", "strengths": "Physics", "weaknesses": "Math, Art, art", "mode": "Online"}),
		p(profile.Raw{"availability": "", "strengths": "Physics", "preferredMode": "online", "timeZone": "utc"}),
		p(profile.Raw{}),
		p(profile.Raw{"strengths": "Math", "weaknesses": "Math", "studyPersonality": "Chatty"}),
	}
	for i, a := range profiles {
		for j, b := range profiles {
			if ab, ba := Score(a, b), Score(b, a); ab != ba {
				t.Errorf("Score(%d,%d)=%d != Score(%d,%d)=%d", i, j, ab, j, i, ba)
			}
		}
	}
}

func TestScoreDetails_Deterministic(t *testing.T) {
	a := p(profile.Raw{"availability": "Evenings", "strengths": "Math, Art", "weaknesses": "Physics", "primaryGoal": "Pass"})
	b := p(profile.Raw{"availability": "Evenings", "strengths": "Physics", "weaknesses": "Art", "primaryGoal": "pass"})
	first := ScoreDetails(a, b)
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, ScoreDetails(a, b)); diff != "" {
			t.Fatalf("run %d differs (-first +now):\n%s", i, diff)
		}
	}
}

func TestScoreDetails_GranularityAndSign(t *testing.T) {
	a := p(profile.Raw{"availability": "Evenings", "weaknesses": "Math", "sessionLength": "1h"})
	b := p(profile.Raw{"strengths": "Math", "sessionLength": "1H"})
	d := ScoreDetails(a, b)
	if d.Score < 0 {
		t.Fatalf("negative score %d", d.Score)
	}
	sum := 0
	for _, r := range d.Reasons {
		sum += r.Points
	}
	if sum != d.Score {
		t.Errorf("reasons sum to %d, score is %d", sum, d.Score)
	}
	if d.Score != 34 {
		t.Errorf("Score = %d, want 34", d.Score)
	}
}

func TestWeights_Custom(t *testing.T) {
	w := DefaultWeights
	w.Availability = 1
	a := p(profile.Raw{"availability": "x"})
	if got := w.ScoreDetails(a, a).Score; got != 1 {
		t.Errorf("Score = %d, want custom weight 1", got)
	}
}
