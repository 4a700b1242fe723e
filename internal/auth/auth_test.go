package auth

import (
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatalf("hash equals plaintext")
	}
	if !CheckPassword("correct horse battery staple", hash) {
		t.Fatalf("valid password rejected")
	}
	if CheckPassword("wrong password", hash) {
		t.Fatalf("wrong password accepted")
	}
}

func TestSessionsIssueAndVerify(t *testing.T) {
	sessions, err := NewSessions("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	token, err := sessions.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := sessions.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != "user-1" {
		t.Fatalf("subject = %q, want user-1", got)
	}
}

func TestSessionsRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewSessions("secret-a", time.Hour)
	verifier, _ := NewSessions("secret-b", time.Hour)
	token, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("token signed with another secret was accepted")
	}
}

func TestSessionsRejectsExpiredToken(t *testing.T) {
	sessions, _ := NewSessions("test-secret", time.Hour)
	sessions.ttl = -2 * time.Minute
	token, err := sessions.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := sessions.Verify(token); err == nil {
		t.Fatalf("expired token was accepted")
	}
}

func TestSessionsRequiresSecret(t *testing.T) {
	if _, err := NewSessions("  ", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestSessionsRejectsGarbage(t *testing.T) {
	sessions, _ := NewSessions("test-secret", time.Hour)
	if _, err := sessions.Verify("not-a-jwt"); err == nil {
		t.Fatalf("garbage token was accepted")
	}
}
