package storage

import (
	"context"
	"testing"
	"time"

	"github.com/kalambet/peerfuse/internal/profile"
)

func TestProfileSource_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	src := NewProfileSource(s)
	ctx := context.Background()

	if err := src.SaveProfile(ctx, "alice", profile.Raw{"username": "alice", "strengths": []string{"Math"}}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	raw, err := src.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	p := profile.Normalize(raw, "alice")
	if p.Name != "alice" || len(p.Strengths) != 1 || p.Strengths[0] != "Math" {
		t.Errorf("normalized = %+v", p)
	}

	missing, err := src.Profile(ctx, "ghost")
	if err != nil || missing != nil {
		t.Errorf("Profile(ghost) = %v, %v; want nil, nil", missing, err)
	}
}

func TestProfileSource_AddUserKeepsMetadata(t *testing.T) {
	s := openTestStore(t)
	src := NewProfileSource(s)
	ctx := context.Background()

	created := time.UnixMilli(1735689600000)
	err := src.AddUser(ctx, profile.Raw{"name": "bob", "addedBy": "alice", "createdAt": created.UnixMilli()})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("got %d users", len(users))
	}
	u := users[0]
	if u.Name != "bob" || u.AddedBy != "alice" || !u.CreatedAt.Equal(created) {
		t.Errorf("entry = %+v", u)
	}

	entries, err := src.Users(ctx)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if entries[0].Key != u.ID || entries[0].Data["addedBy"] != "alice" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestProfileSource_CorruptPayloadNormalizesToDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.db.Exec(`INSERT INTO profiles (key, payload, created_at, updated_at) VALUES ('bad', '{not json', '2025-01-01T00:00:00.000000000Z', '2025-01-01T00:00:00.000000000Z')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	entries, err := NewProfileSource(s).Profiles(ctx)
	if err != nil {
		t.Fatalf("Profiles: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	p := profile.Normalize(entries[0].Data, entries[0].Key)
	if p.Name != "bad" || p.Strengths == nil {
		t.Errorf("normalized = %+v", p)
	}
}

func TestProfileSource_WithManager(t *testing.T) {
	s := openTestStore(t)
	mgr := profile.NewManager(NewProfileSource(s), nil)
	ctx := context.Background()

	if err := mgr.Save(ctx, profile.Normalize(profile.Raw{"availability": "Evenings", "weaknesses": "Physics"}, "alice")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mgr.AddUser(ctx, profile.Normalize(profile.Raw{"name": "bob", "strengths": "Physics", "availability": "evenings"}, ""), "alice"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	snap, err := mgr.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 2 || snap[0].Name != "bob" || snap[1].Name != "alice" {
		t.Errorf("snapshot = %+v", snap)
	}
}
