package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	svc, err := NewService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	tok, err := svc.Issue(" alice ")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	user, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user != "alice" {
		t.Errorf("user = %q, want alice", user)
	}
}

func TestVerify_Expired(t *testing.T) {
	svc, _ := NewService(testSecret, time.Minute)
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }
	tok, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	a, _ := NewService(testSecret, 0)
	b, _ := NewService("ffffffffffffffffffffffffffffffff", 0)
	tok, _ := a.Issue("alice")
	if _, err := b.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	svc, _ := NewService(testSecret, 0)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) err = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestNewService_ShortSecret(t *testing.T) {
	if _, err := NewService("short", 0); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestIssue_EmptyUser(t *testing.T) {
	svc, _ := NewService(testSecret, 0)
	if _, err := svc.Issue("  "); err == nil {
		t.Error("expected error for empty user")
	}
}

func TestContextUser(t *testing.T) {
	ctx := context.Background()
	if u := User(ctx); u != "" {
		t.Errorf("guest user = %q, want empty", u)
	}
	if u := User(WithUser(ctx, "bob")); u != "bob" {
		t.Errorf("user = %q, want bob", u)
	}
}
