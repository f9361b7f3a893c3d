package profile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMerge_DedupesByNameKeepingFirstOrder(t *testing.T) {
	users := []Profile{
		Normalize(Raw{"name": "bob", "availability": "Mornings", "strengths": "Math"}, ""),
		Normalize(Raw{"name": "alice", "availability": "Evenings"}, ""),
	}
	profiles := []Profile{
		Normalize(Raw{"username": "alice", "timeZone": "UTC"}, "alice"),
		Normalize(Raw{"username": "bob", "availability": "Weekends"}, "bob"),
		Normalize(Raw{"username": "carol"}, "carol"),
	}

	got := Merge(users, profiles)

	names := make([]string, len(got))
	for i, p := range got {
		names[i] = p.Name
	}
	if diff := cmp.Diff([]string{"bob", "alice", "carol"}, names); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	if got[0].Availability != "Weekends" {
		t.Errorf("bob availability = %q, want profile value to override", got[0].Availability)
	}
	if diff := cmp.Diff([]string{"Math"}, got[0].Strengths); diff != "" {
		t.Errorf("bob strengths should survive an empty profile list (-want +got):\n%s", diff)
	}
	if got[1].Availability != "Evenings" || got[1].TimeZone != "UTC" {
		t.Errorf("alice = %+v, want fields from both records", got[1])
	}
}

func TestMerge_Empty(t *testing.T) {
	got := Merge()
	if got == nil || len(got) != 0 {
		t.Errorf("Merge() = %v, want empty non-nil slice", got)
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	a := []Profile{Normalize(Raw{"name": "x", "strengths": "Math"}, "")}
	b := []Profile{Normalize(Raw{"name": "x", "strengths": "Art"}, "")}
	got := Merge(a, b)
	got[0].Strengths[0] = "changed"
	if a[0].Strengths[0] != "Math" || b[0].Strengths[0] != "Art" {
		t.Error("Merge result shares slices with its inputs")
	}
}
