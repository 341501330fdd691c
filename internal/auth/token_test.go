package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokensIssueAndParse(t *testing.T) {
	clock := newFixedClock()
	tokens := NewTokens("secret", time.Hour).WithClock(clock.Now)

	token, err := tokens.Issue(Session{UID: "u1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := tokens.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s := claims.Session(); s.UID != "u1" || s.Email != "a@b.com" {
		t.Fatalf("session = %+v", s)
	}

	if _, err := NewTokens("other", time.Hour).WithClock(clock.Now).Parse(token); err == nil {
		t.Fatal("token signed with another secret should be rejected")
	}

	clock.Advance(2 * time.Hour)
	if _, err := tokens.Parse(token); err == nil {
		t.Fatal("expired token should be rejected")
	}
}

func TestTokensRejectGarbage(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	for _, tok := range []string{"", "abc", "a.b.c"} {
		if _, err := tokens.Parse(tok); err == nil {
			t.Fatalf("Parse(%q) should fail", tok)
		}
	}
}

type cutoffs map[string]time.Time

func (c cutoffs) SessionsValidAfter(_ context.Context, uid string) (time.Time, error) {
	return c[uid], nil
}

func TestTokensVerifyRejectsRevoked(t *testing.T) {
	ctx := context.Background()
	clock := newFixedClock()
	revoked := cutoffs{}
	tokens := NewTokens("secret", time.Hour).WithClock(clock.Now).WithRevocations(revoked)

	before, err := tokens.Issue(Session{UID: "u1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tokens.Verify(ctx, before); err != nil {
		t.Fatalf("verify before logout: %v", err)
	}

	revoked["u1"] = clock.Now().Add(time.Second)
	if _, err := tokens.Verify(ctx, before); !errors.Is(err, ErrRevoked) {
		t.Fatalf("verify after logout = %v, want ErrRevoked", err)
	}

	clock.Advance(time.Minute)
	after, err := tokens.Issue(Session{UID: "u1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tokens.Verify(ctx, after); err != nil {
		t.Fatalf("credential issued after logout: %v", err)
	}

	other, _ := tokens.Issue(Session{UID: "u2", Email: "c@d.com"})
	if _, err := tokens.Verify(ctx, other); err != nil {
		t.Fatalf("other user: %v", err)
	}
}
