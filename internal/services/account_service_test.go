package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"budgetmail/internal/auth"
	"budgetmail/internal/core"
	"budgetmail/internal/storage"
)

func newTestAccounts(t *testing.T) (*AccountService, *storage.Repository, *fakeSender) {
	t.Helper()
	repo := openRepo(t)
	sender := &fakeSender{}
	tokens := auth.NewTokenManager("test-secret", time.Hour, 30*time.Minute)
	return NewAccountService(repo, tokens, sender, "ExpenserFX", "http://localhost:8081/"), repo, sender
}

func TestAccountService_SignupAndLogin(t *testing.T) {
	svc, _, _ := newTestAccounts(t)
	ctx := context.Background()

	u, err := svc.Signup(ctx, " asha ", "asha@example.com", "password123")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if u.Username != "asha" {
		t.Errorf("username not trimmed: %q", u.Username)
	}

	if _, err := svc.Signup(ctx, "asha", "other@example.com", "password123"); !errors.Is(err, storage.ErrDuplicateUser) {
		t.Errorf("duplicate signup error = %v", err)
	}
	if _, err := svc.Signup(ctx, "bob", "not-an-email", "password123"); !errors.Is(err, core.ErrInvalidEmail) {
		t.Errorf("bad email error = %v", err)
	}

	got, token, err := svc.Login(ctx, "asha@example.com", "password123")
	if err != nil || got.ID != u.ID || token == "" {
		t.Fatalf("Login() = %+v, %q, %v", got, token, err)
	}
	if _, _, err := svc.Login(ctx, "asha@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v", err)
	}
}

func TestAccountService_SetBudget(t *testing.T) {
	svc, repo, _ := newTestAccounts(t)
	ctx := context.Background()
	u, err := svc.Signup(ctx, "asha", "asha@example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		budget  string
		email   string
		wantErr error
	}{
		{"non-numeric", "lots", "", core.ErrInvalidAmount},
		{"negative", "-5", "", core.ErrInvalidAmount},
		{"bad email", "100", "not-an-email", core.ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SetBudget(ctx, u, tt.budget, tt.email); !errors.Is(err, tt.wantErr) {
				t.Errorf("SetBudget() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	settings, err := svc.SetBudget(ctx, u, "200", "")
	if err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	if settings.ReportEmail != "asha@example.com" || settings.MonthlyBudget.Cents != 20000 {
		t.Errorf("unexpected settings: %+v", settings)
	}

	first, _ := repo.GetUserByID(ctx, u.ID)
	if _, err := svc.SetBudget(ctx, u, "200", ""); err != nil {
		t.Fatal(err)
	}
	second, _ := repo.GetUserByID(ctx, u.ID)
	if first != second {
		t.Errorf("repeating the same budget changed state: %+v vs %+v", first, second)
	}
	if !second.BudgetSet {
		t.Error("expected BudgetSet after saving")
	}
}

var resetLink = regexp.MustCompile(`/reset-password/([A-Za-z0-9_.\-]+)`)

func TestAccountService_PasswordReset(t *testing.T) {
	svc, _, sender := newTestAccounts(t)
	ctx := context.Background()
	if _, err := svc.Signup(ctx, "asha", "asha@example.com", "password123"); err != nil {
		t.Fatal(err)
	}

	if err := svc.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown address should succeed silently, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("no mail should go to unknown addresses")
	}

	if err := svc.RequestPasswordReset(ctx, "asha@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one reset mail, got %d", len(sender.sent))
	}
	body := sender.sent[0].HTML
	if !strings.Contains(body, "http://localhost:8081/reset-password/") {
		t.Errorf("reset link missing from body: %s", body)
	}
	m := resetLink.FindStringSubmatch(body)
	if m == nil {
		t.Fatal("no token in reset mail")
	}
	token := m[1]

	if err := svc.ResetPassword(ctx, token, "short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("short password error = %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "new-password-1"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if _, _, err := svc.Login(ctx, "asha@example.com", "new-password-1"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}

	// The hash changed, so the same link no longer works.
	if err := svc.ResetPassword(ctx, token, "another-password"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("reused token error = %v", err)
	}
	if _, err := svc.CheckResetToken(ctx, "garbage"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("garbage token error = %v", err)
	}
}
