package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

const (
	Debit  TransactionType = "debit"
	Credit TransactionType = "credit"
)

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	User struct {
		ID            int64
		Username      string
		Email         string
		PasswordHash  string
		MonthlyBudget Money
		ReportEmail   string
		BudgetSet     bool
		CreatedAt     time.Time
	}

	Transaction struct {
		ID       int64
		UserID   int64
		Merchant string
		Amount   Money
		Type     TransactionType
		Time     time.Time
	}

	// BudgetSettings is what the budget form persists for a user.
	BudgetSettings struct {
		MonthlyBudget Money
		ReportEmail   string
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrEmptyMerchant   = errors.New("empty merchant")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrEmptyUsername   = errors.New("empty username")
	ErrUsernameTooLong = errors.New("username too long (max 20 characters)")
	ErrWeakPassword    = errors.New("password must be at least 8 characters")
)

// IsValid reports whether t is one of the known transaction types.
func (t TransactionType) IsValid() bool {
	return t == Debit || t == Credit
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Merchant) == "" {
		return ErrEmptyMerchant
	}
	if len(t.Merchant) > 100 {
		return errors.New("merchant too long (max 100 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if t.Time.IsZero() {
		return errors.New("transaction time cannot be zero")
	}
	return nil
}

func (b BudgetSettings) Validate() error {
	if err := b.MonthlyBudget.Validate(); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(b.ReportEmail); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateSignup checks the fields a new account needs.
func ValidateSignup(username, email, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}
	if len(username) > 20 {
		return ErrUsernameTooLong
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// ReportAddress is where the monthly report goes: the configured report
// email, or the account email when none was given.
func (u User) ReportAddress() string {
	if strings.TrimSpace(u.ReportEmail) != "" {
		return u.ReportEmail
	}
	return u.Email
}
