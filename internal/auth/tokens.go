// Package auth issues and verifies session and password-reset tokens and
// hashes passwords.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	PurposeSession = "session"
	PurposeReset   = "reset"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	Purpose string `json:"pur"`
	// PasswordTag pins a reset token to the password it was issued against,
	// so a used token stops working once the password changes.
	PasswordTag string `json:"pwt,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject of the token.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}

type TokenManager struct {
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

func NewTokenManager(secret string, sessionTTL, resetTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		now:        time.Now,
	}
}

func (m *TokenManager) SessionTTL() time.Duration { return m.sessionTTL }

func (m *TokenManager) sign(userID int64, purpose, pwTag string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		Purpose:     purpose,
		PasswordTag: pwTag,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return s, nil
}

func (m *TokenManager) parse(tokenStr, purpose string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// IssueSession returns a signed session token for userID.
func (m *TokenManager) IssueSession(userID int64) (string, error) {
	return m.sign(userID, PurposeSession, "", m.sessionTTL)
}

// ParseSession validates a session token and returns its user ID.
func (m *TokenManager) ParseSession(tokenStr string) (int64, error) {
	c, err := m.parse(tokenStr, PurposeSession)
	if err != nil {
		return 0, err
	}
	return c.UserID()
}

// IssueReset returns a password-reset token bound to the user's current
// password hash.
func (m *TokenManager) IssueReset(userID int64, passwordHash string) (string, error) {
	return m.sign(userID, PurposeReset, PasswordTag(passwordHash), m.resetTTL)
}

// ParseReset validates a reset token. Callers must compare the returned
// claims' PasswordTag with PasswordTag of the stored hash.
func (m *TokenManager) ParseReset(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, PurposeReset)
}

// PasswordTag is a short fingerprint of a password hash.
func PasswordTag(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}
