// Package token issues, validates and revokes signed access and refresh tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/miniintern/bizboard/internal/authz"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Validation failures. Callers classify with errors.Is before collapsing them
// into a user-facing message.
var (
	ErrExpired     = errors.New("token: expired")
	ErrMalformed   = errors.New("token: malformed")
	ErrWrongKind   = errors.New("token: wrong kind")
	ErrBlacklisted = errors.New("token: blacklisted")
)

// Claims is the signed payload of both token kinds.
type Claims struct {
	Role authz.Role `json:"role"`
	Kind Kind       `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: subject %q", ErrMalformed, c.Subject)
	}
	return id, nil
}

// ExpiresAtTime returns the expiry or the zero time.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Pair is the result of a successful login.
type Pair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Blacklist records revoked token identifiers until the token would have
// expired anyway.
type Blacklist interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	Contains(ctx context.Context, jti string) (bool, error)
}
