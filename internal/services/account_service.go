package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"budgetmail/internal/auth"
	"budgetmail/internal/core"
	applog "budgetmail/internal/log"
	"budgetmail/internal/mailer"
	"budgetmail/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = core.ErrWeakPassword
)

// AccountStore is the user storage the account flows need.
type AccountStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error)
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	SaveBudget(ctx context.Context, userID int64, settings core.BudgetSettings) error
}

// AccountService handles signup, login, budget settings and password reset.
type AccountService struct {
	store   AccountStore
	tokens  *auth.TokenManager
	sender  mailer.Sender
	appName string
	baseURL string
}

func NewAccountService(store AccountStore, tokens *auth.TokenManager, sender mailer.Sender, appName, baseURL string) *AccountService {
	return &AccountService{
		store:   store,
		tokens:  tokens,
		sender:  sender,
		appName: appName,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Signup validates and creates an account.
func (s *AccountService) Signup(ctx context.Context, username, email, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := core.ValidateSignup(username, email, password); err != nil {
		return core.User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	return s.store.CreateUser(ctx, username, email, hash)
}

// Login checks credentials and returns the user and a session token.
func (s *AccountService) Login(ctx context.Context, email, password string) (core.User, string, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, "", err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return core.User{}, "", ErrInvalidCredentials
	}
	token, err := s.tokens.IssueSession(u.ID)
	if err != nil {
		return core.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return u, token, nil
}

// SetBudget parses and stores the budget form for u. An empty report email
// falls back to the account email. Invalid amounts return core.ErrInvalidAmount,
// malformed addresses core.ErrInvalidEmail.
func (s *AccountService) SetBudget(ctx context.Context, u core.User, rawBudget, rawEmail string) (core.BudgetSettings, error) {
	budget, err := core.ParseAmount(rawBudget)
	if err != nil {
		return core.BudgetSettings{}, err
	}
	email := strings.TrimSpace(rawEmail)
	if email == "" {
		email = u.Email
	}
	settings := core.BudgetSettings{MonthlyBudget: budget, ReportEmail: email}
	if err := settings.Validate(); err != nil {
		return core.BudgetSettings{}, err
	}
	if err := s.store.SaveBudget(ctx, u.ID, settings); err != nil {
		return core.BudgetSettings{}, err
	}
	return settings, nil
}

var resetMailTmpl = template.Must(template.New("reset").Parse(
	`<p>Hello {{.Username}},</p>
<p>To reset your {{.AppName}} password, follow this link:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>If you did not ask for a reset you can ignore this email.</p>`))

// RequestPasswordReset mails a reset link when email belongs to an account.
// Unknown addresses succeed silently so callers can show one message for both.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, storage.ErrNotFound) {
		slog.InfoContext(ctx, "Password reset requested for unknown address",
			applog.FieldComponent, applog.ComponentAuth)
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.tokens.IssueReset(u.ID, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	var body strings.Builder
	if err := resetMailTmpl.Execute(&body, map[string]string{
		"Username": u.Username,
		"AppName":  s.appName,
		"Link":     s.baseURL + "/reset-password/" + token,
	}); err != nil {
		return fmt.Errorf("render reset mail: %w", err)
	}

	if err := s.sender.Send(ctx, mailer.Message{
		To:      u.Email,
		Subject: s.appName + " Password Reset",
		HTML:    body.String(),
	}); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}

	slog.InfoContext(ctx, "Password reset mail sent",
		applog.FieldComponent, applog.ComponentAuth,
		applog.FieldUserID, u.ID)
	return nil
}

// CheckResetToken returns the user a reset token belongs to. Tokens issued
// before the last password change are rejected.
func (s *AccountService) CheckResetToken(ctx context.Context, token string) (core.User, error) {
	claims, err := s.tokens.ParseReset(token)
	if err != nil {
		return core.User{}, err
	}
	id, err := claims.UserID()
	if err != nil {
		return core.User{}, err
	}
	u, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, auth.ErrInvalidToken
	}
	if err != nil {
		return core.User{}, err
	}
	if claims.PasswordTag != auth.PasswordTag(u.PasswordHash) {
		return core.User{}, auth.ErrInvalidToken
	}
	return u, nil
}

// ResetPassword sets a new password using a reset token.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	u, err := s.CheckResetToken(ctx, token)
	if err != nil {
		return err
	}
	if len(password) < 8 {
		return ErrWeakPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Password reset",
		applog.FieldComponent, applog.ComponentAuth,
		applog.FieldUserID, u.ID)
	return nil
}
