package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/miniintern/bizboard/internal/accounts"
	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/token"
)

// CredentialFinder loads a credential by username.
type CredentialFinder interface {
	FindByUsername(ctx context.Context, username string) (*accounts.User, error)
}

// TokenIssuer is the subset of the token service used by login flows.
type TokenIssuer interface {
	Issue(userID int64, role authz.Role) (token.Pair, error)
	Refresh(ctx context.Context, raw string) (string, time.Time, error)
	Revoke(ctx context.Context, raw string) error
}

// dummyHash is compared against when the username is unknown so a miss costs
// the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("bizboard-dummy-password"), bcrypt.DefaultCost)

// Service wraps authentication business rules.
type Service struct {
	users  CredentialFinder
	tokens TokenIssuer
}

// NewService constructs a new Service.
func NewService(users CredentialFinder, tokens TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// Authenticate validates username/password credentials. Every failure yields
// shared.ErrInvalidCredentials so callers cannot tell which part was wrong.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*accounts.User, error) {
	user, err := s.users.FindByUsername(ctx, accounts.NormalizeUsername(username))
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("auth: find user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a token pair.
func (s *Service) Login(ctx context.Context, username, password string) (*accounts.User, token.Pair, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, token.Pair{}, err
	}
	pair, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, token.Pair{}, err
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new access token. Any token problem,
// expiry included, is reported as shared.ErrAuthenticationFailed: the client
// has to log in again.
func (s *Service) Refresh(ctx context.Context, raw string) (string, time.Time, error) {
	access, expiresAt, err := s.tokens.Refresh(ctx, raw)
	if err != nil {
		if isTokenError(err) {
			return "", time.Time{}, fmt.Errorf("refresh: %s: %w", reason(err), shared.ErrAuthenticationFailed)
		}
		return "", time.Time{}, err
	}
	return access, expiresAt, nil
}

// Logout revokes the refresh token and, when offered, the access token.
// Both revocations are attempted; the errors are joined.
func (s *Service) Logout(ctx context.Context, refresh, access string) error {
	var errs []error
	for _, raw := range []string{refresh, access} {
		if raw == "" {
			continue
		}
		if err := s.tokens.Revoke(ctx, raw); err != nil {
			if isTokenError(err) {
				err = fmt.Errorf("revoke: %s: %w", reason(err), shared.ErrAuthenticationFailed)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isTokenError(err error) bool {
	return errors.Is(err, token.ErrExpired) || errors.Is(err, token.ErrMalformed) ||
		errors.Is(err, token.ErrWrongKind) || errors.Is(err, token.ErrBlacklisted)
}
