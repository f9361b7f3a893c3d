package matching

import (
	"sort"

	"github.com/kalambet/peerfuse/internal/profile"
)

// DefaultTopN is how many matches are presented when no limit is given.
const DefaultTopN = 3

// Result is one scored candidate.
type Result struct {
	Candidate profile.Profile `json:"candidate"`
	Score     int             `json:"score"`
	Reasons   []Reason        `json:"reasons"`
}

// Rank scores every candidate except the target itself and orders them by
// descending score. Ties keep their input order.
func Rank(target profile.Profile, candidates []profile.Profile) []Result {
	return DefaultWeights.Rank(target, candidates)
}

// Rank is Rank using w.
func (w Weights) Rank(target profile.Profile, candidates []profile.Profile) []Result {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if c.Name == target.Name {
			continue
		}
		d := w.ScoreDetails(target, c)
		results = append(results, Result{Candidate: c, Score: d.Score, Reasons: d.Reasons})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// Top returns at most n of the ranked results, dropping any that scored
// zero. n <= 0 means DefaultTopN.
func Top(ranked []Result, n int) []Result {
	if n <= 0 {
		n = DefaultTopN
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]Result, 0, n)
	for _, r := range ranked[:n] {
		if r.Score > 0 {
			out = append(out, r)
		}
	}
	return out
}

// Best returns the first highest-scoring candidate other than the target.
// It reports false only when there is no other candidate.
func Best(target profile.Profile, candidates []profile.Profile) (Result, bool) {
	ranked := Rank(target, candidates)
	if len(ranked) == 0 {
		return Result{}, false
	}
	return ranked[0], true
}

// Cycle returns the ranked result at index, wrapping around the end. The
// caller owns the cursor; pass the returned position+1 to advance.
func Cycle(ranked []Result, index int) (Result, int, bool) {
	if len(ranked) == 0 {
		return Result{}, 0, false
	}
	i := index % len(ranked)
	if i < 0 {
		i += len(ranked)
	}
	return ranked[i], i, true
}
