package realtime

import (
	"sort"
	"testing"
	"time"
)

func TestPushKey_SortsChronologically(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	var keys []string
	for i := 0; i < 5; i++ {
		keys = append(keys, pushKey(base.Add(time.Duration(i)*time.Millisecond)))
	}
	// An earlier epoch with fewer digits must still sort first.
	keys = append(keys, pushKey(time.Unix(1, 0)))

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	if sorted[0] != keys[5] {
		t.Errorf("oldest key sorted to %q, want %q", sorted[0], keys[5])
	}
	for i := 0; i < 5; i++ {
		if sorted[i+1] != keys[i] {
			t.Errorf("sorted[%d] = %q, want %q", i+1, sorted[i+1], keys[i])
		}
	}
}

func TestPushKey_Unique(t *testing.T) {
	now := time.Now()
	if pushKey(now) == pushKey(now) {
		t.Error("two keys for the same instant collided")
	}
}

func TestNew_DefaultPrefix(t *testing.T) {
	s := New(nil, "")
	if got := s.key(collUsers); got != "peerfuse:users" {
		t.Errorf("key = %q, want peerfuse:users", got)
	}
	if got := New(nil, "test").key(collProfiles); got != "test:profiles" {
		t.Errorf("key = %q, want test:profiles", got)
	}
}
