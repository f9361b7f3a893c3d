package matching

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/peerfuse/internal/profile"
)

func names(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Candidate.Name
	}
	return out
}

func TestRank_ExcludesSelf(t *testing.T) {
	target := p(profile.Raw{"name": "alice", "availability": "Evenings"})
	candidates := []profile.Profile{
		p(profile.Raw{"name": "alice", "availability": "Evenings"}),
		p(profile.Raw{"name": "bob", "availability": "Evenings"}),
		p(profile.Raw{"name": "alice"}),
	}
	got := Rank(target, candidates)
	if diff := cmp.Diff([]string{"bob"}, names(got)); diff != "" {
		t.Errorf("Rank mismatch (-want +got):\n%s", diff)
	}
}

func TestRank_SortsDescendingAndStable(t *testing.T) {
	target := p(profile.Raw{"name": "t", "availability": "Evenings", "weaknesses": "Math", "timeZone": "UTC"})
	candidates := []profile.Profile{
		p(profile.Raw{"name": "tz1", "timeZone": "UTC"}),
		p(profile.Raw{"name": "zero1"}),
		p(profile.Raw{"name": "avail", "availability": "evenings"}),
		p(profile.Raw{"name": "tz2", "timeZone": "utc"}),
		p(profile.Raw{"name": "both", "availability": "Evenings", "strengths": "math"}),
		p(profile.Raw{"name": "zero2"}),
	}
	got := Rank(target, candidates)

	want := []string{"both", "avail", "tz1", "tz2", "zero1", "zero2"}
	if diff := cmp.Diff(want, names(got)); diff != "" {
		t.Errorf("Rank order mismatch (-want +got):\n%s", diff)
	}
	wantScores := []int{130, 100, 3, 3, 0, 0}
	for i, r := range got {
		if r.Score != wantScores[i] {
			t.Errorf("result %d (%s) score = %d, want %d", i, r.Candidate.Name, r.Score, wantScores[i])
		}
	}
}

func TestRank_FiveCandidatesTwoPositive(t *testing.T) {
	target := p(profile.Raw{"name": "t", "availability": "Mornings", "strengths": "Chemistry"})
	candidates := []profile.Profile{
		p(profile.Raw{"name": "c1"}),
		p(profile.Raw{"name": "c2", "weaknesses": "chemistry"}),
		p(profile.Raw{"name": "c3", "availability": "Evenings"}),
		p(profile.Raw{"name": "c4", "availability": "Mornings"}),
		p(profile.Raw{"name": "c5", "strengths": "Chemistry"}),
	}

	ranked := Rank(target, candidates)
	if len(ranked) != 5 {
		t.Fatalf("Rank returned %d results, want all 5", len(ranked))
	}
	if diff := cmp.Diff([]string{"c4", "c2", "c1", "c3", "c5"}, names(ranked)); diff != "" {
		t.Errorf("Rank order mismatch (-want +got):\n%s", diff)
	}

	top := Top(ranked, DefaultTopN)
	if diff := cmp.Diff([]string{"c4", "c2"}, names(top)); diff != "" {
		t.Errorf("Top mismatch (-want +got):\n%s", diff)
	}
}

func TestRank_Empty(t *testing.T) {
	got := Rank(p(profile.Raw{"name": "t"}), nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Rank(nil) = %#v, want empty non-nil", got)
	}
	if top := Top(got, 3); len(top) != 0 {
		t.Errorf("Top(empty) = %v", top)
	}
}

func TestTop_Bounds(t *testing.T) {
	ranked := []Result{
		{Candidate: p(profile.Raw{"name": "a"}), Score: 50},
		{Candidate: p(profile.Raw{"name": "b"}), Score: 40},
		{Candidate: p(profile.Raw{"name": "c"}), Score: 30},
		{Candidate: p(profile.Raw{"name": "d"}), Score: 20},
	}
	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"default", 0, []string{"a", "b", "c"}},
		{"negative uses default", -1, []string{"a", "b", "c"}},
		{"one", 1, []string{"a"}},
		{"more than available", 10, []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, names(Top(ranked, tt.n))); diff != "" {
				t.Errorf("Top(%d) mismatch (-want +got):\n%s", tt.n, diff)
			}
		})
	}
}

// Zero-score results are dropped after the bound is applied, so a bound of
// three never reaches past a zero into lower positions.
func TestTop_FiltersZeroWithinBound(t *testing.T) {
	ranked := []Result{
		{Candidate: p(profile.Raw{"name": "a"}), Score: 10},
		{Candidate: p(profile.Raw{"name": "b"}), Score: 0},
		{Candidate: p(profile.Raw{"name": "c"}), Score: 0},
	}
	if diff := cmp.Diff([]string{"a"}, names(Top(ranked, 2))); diff != "" {
		t.Errorf("Top mismatch (-want +got):\n%s", diff)
	}
}

func TestBest(t *testing.T) {
	target := p(profile.Raw{"name": "t", "availability": "x"})
	if _, ok := Best(target, []profile.Profile{target}); ok {
		t.Error("Best with only self should report false")
	}
	res, ok := Best(target, []profile.Profile{
		p(profile.Raw{"name": "zero"}),
		p(profile.Raw{"name": "first", "availability": "x"}),
		p(profile.Raw{"name": "second", "availability": "X"}),
	})
	if !ok || res.Candidate.Name != "first" {
		t.Errorf("Best = %+v, %v; want first", res.Candidate.Name, ok)
	}
}

func TestCycle(t *testing.T) {
	ranked := []Result{
		{Candidate: p(profile.Raw{"name": "a"})},
		{Candidate: p(profile.Raw{"name": "b"})},
	}
	for idx, want := range map[int]string{0: "a", 1: "b", 2: "a", 5: "b", -1: "b"} {
		r, _, ok := Cycle(ranked, idx)
		if !ok || r.Candidate.Name != want {
			t.Errorf("Cycle(%d) = %q, want %q", idx, r.Candidate.Name, want)
		}
	}
	if _, _, ok := Cycle(nil, 0); ok {
		t.Error("Cycle on empty ranking should report false")
	}
}

func TestRank_ConcurrentUse(t *testing.T) {
	target := p(profile.Raw{"name": "t", "availability": "Evenings", "weaknesses": "Math"})
	candidates := []profile.Profile{
		p(profile.Raw{"name": "a", "availability": "Evenings"}),
		p(profile.Raw{"name": "b", "strengths": "Math"}),
	}
	want := Rank(target, candidates)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if diff := cmp.Diff(want, Rank(target, candidates)); diff != "" {
				t.Errorf("concurrent Rank differs (-want +got):\n%s", diff)
			}
		}()
	}
	wg.Wait()
}
