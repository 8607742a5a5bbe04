package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the password")
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Error("expected wrong password to fail")
	}
}

func TestTokenManager_Session(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, 30*time.Minute)

	tok, err := m.IssueSession(42)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}
	id, err := m.ParseSession(tok)
	if err != nil || id != 42 {
		t.Fatalf("ParseSession() = %d, %v", id, err)
	}

	tests := map[string]string{
		"garbage":      "not.a.token",
		"empty":        "",
		"other secret": mustSign(t, NewTokenManager("other", time.Hour, time.Hour), 42),
	}
	for name, bad := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := m.ParseSession(bad); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func mustSign(t *testing.T, m *TokenManager, id int64) string {
	t.Helper()
	tok, err := m.IssueSession(id)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestTokenManager_Expiry(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, 30*time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := m.IssueSession(1)
	if err != nil {
		t.Fatal(err)
	}
	m.now = time.Now
	if _, err := m.ParseSession(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected expired token to be rejected, got %v", err)
	}
}

func TestTokenManager_PurposeIsChecked(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, 30*time.Minute)

	reset, err := m.IssueReset(7, "hash-v1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ParseSession(reset); !errors.Is(err, ErrInvalidToken) {
		t.Error("reset token must not work as a session")
	}

	session, _ := m.IssueSession(7)
	if _, err := m.ParseReset(session); !errors.Is(err, ErrInvalidToken) {
		t.Error("session token must not work as a reset token")
	}
}

func TestTokenManager_ResetBoundToPassword(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, 30*time.Minute)

	tok, err := m.IssueReset(7, "hash-v1")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.ParseReset(tok)
	if err != nil {
		t.Fatalf("ParseReset() error = %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 7 {
		t.Fatalf("UserID() = %d, %v", id, err)
	}
	if claims.PasswordTag != PasswordTag("hash-v1") {
		t.Error("tag should match the hash it was issued for")
	}
	if claims.PasswordTag == PasswordTag("hash-v2") {
		t.Error("tag should not match a changed hash")
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
}
