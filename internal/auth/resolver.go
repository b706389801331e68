package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/miniintern/bizboard/internal/accounts"
	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/observability"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/token"
)

// TokenValidator validates signed tokens.
type TokenValidator interface {
	Validate(ctx context.Context, raw string, expected token.Kind) (*token.Claims, error)
}

// CredentialLookup loads a stored credential by id.
type CredentialLookup interface {
	Get(ctx context.Context, id int64) (*accounts.User, error)
}

// EventRecorder counts authentication events.
type EventRecorder interface {
	RecordAuth(outcome string)
}

// Resolver derives the request identity from the access token cookie. It is
// called explicitly by handlers and never stores anything on the request.
type Resolver struct {
	cookies *CookieTransport
	tokens  TokenValidator
	users   CredentialLookup
	logger  *slog.Logger
	events  EventRecorder
}

// NewResolver constructs a Resolver.
func NewResolver(cookies *CookieTransport, tokens TokenValidator, users CredentialLookup, logger *slog.Logger, events EventRecorder) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cookies: cookies, tokens: tokens, users: users, logger: logger, events: events}
}

// Resolve returns the caller identity. No access cookie yields a nil identity
// and no error. An offered but unusable token always fails: expiry with
// shared.ErrTokenExpired, anything else with shared.ErrAuthenticationFailed.
func (r *Resolver) Resolve(req *http.Request) (*authz.Identity, error) {
	raw, ok := r.cookies.Access(req)
	if !ok {
		return nil, nil
	}
	ctx := req.Context()
	claims, err := r.tokens.Validate(ctx, raw, token.KindAccess)
	if err != nil {
		return nil, r.classify(req, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, r.classify(req, err)
	}
	user, err := r.users.Get(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && !user.IsActive) {
		r.record(observability.AuthTokenInvalid)
		r.logger.WarnContext(ctx, "token subject unknown or inactive", slog.Int64("user_id", userID), slog.String("path", req.URL.Path))
		return nil, fmt.Errorf("inactive or unknown user: %w", shared.ErrAuthenticationFailed)
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load credential: %w", err)
	}
	return user.Identity(), nil
}

func (r *Resolver) classify(req *http.Request, err error) error {
	ctx := req.Context()
	switch {
	case errors.Is(err, token.ErrExpired):
		r.record(observability.AuthTokenExpired)
		r.logger.InfoContext(ctx, "access token expired", slog.String("path", req.URL.Path))
		return shared.ErrTokenExpired
	case errors.Is(err, token.ErrMalformed), errors.Is(err, token.ErrWrongKind), errors.Is(err, token.ErrBlacklisted):
		r.record(observability.AuthTokenInvalid)
		r.logger.WarnContext(ctx, "access token rejected", slog.String("reason", reason(err)), slog.String("path", req.URL.Path))
		return shared.ErrAuthenticationFailed
	}
	return fmt.Errorf("auth: validate token: %w", err)
}

func (r *Resolver) record(outcome string) {
	if r.events != nil {
		r.events.RecordAuth(outcome)
	}
}

// reason names the failure class for logs without echoing token contents.
func reason(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, token.ErrWrongKind):
		return "wrong_kind"
	case errors.Is(err, token.ErrBlacklisted):
		return "blacklisted"
	case errors.Is(err, token.ErrMalformed):
		return "malformed"
	}
	return "unknown"
}
