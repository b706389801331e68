package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/miniintern/bizboard/internal/authz"
)

// Config holds signing parameters.
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service signs and verifies tokens.
type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
	now        func() time.Time
}

// NewService constructs a Service. The access lifetime must be shorter than
// the refresh lifetime.
func NewService(cfg Config, blacklist Blacklist) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token: secret must be provided")
	}
	if blacklist == nil {
		return nil, errors.New("token: blacklist must be provided")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, fmt.Errorf("token: access ttl %s must be positive and shorter than refresh ttl %s", cfg.AccessTTL, cfg.RefreshTTL)
	}
	return &Service{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		blacklist:  blacklist,
		now:        time.Now,
	}, nil
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AccessTTL exposes the access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL exposes the refresh token lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue signs a new access and refresh token for the user.
func (s *Service) Issue(userID int64, role authz.Role) (Pair, error) {
	access, accessExp, err := s.sign(userID, role, KindAccess, s.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := s.sign(userID, role, KindRefresh, s.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh, AccessExpiresAt: accessExp, RefreshExpiresAt: refreshExp}, nil
}

// Validate verifies signature, expiry, kind and revocation status.
func (s *Service) Validate(ctx context.Context, raw string, expected Kind) (*Claims, error) {
	claims, err := s.parse(raw, true)
	if err != nil {
		return nil, err
	}
	if claims.Kind != expected {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrWrongKind, expected, claims.Kind)
	}
	revoked, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("token: blacklist lookup: %w", err)
	}
	if revoked {
		return nil, ErrBlacklisted
	}
	return claims, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, raw string) (string, time.Time, error) {
	claims, err := s.Validate(ctx, raw, KindRefresh)
	if err != nil {
		return "", time.Time{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", time.Time{}, err
	}
	return s.sign(userID, claims.Role, KindAccess, s.accessTTL)
}

// Revoke blacklists the token until its natural expiry. Revoking a token that
// is already revoked or already expired is a no-op.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	claims, err := s.parse(raw, false)
	if err != nil {
		return err
	}
	expiresAt := claims.ExpiresAtTime()
	if !expiresAt.After(s.now()) {
		return nil
	}
	if err := s.blacklist.Add(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("token: blacklist add: %w", err)
	}
	return nil
}

func (s *Service) sign(userID int64, role authz.Role, kind Kind, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *Service) parse(raw string, validateClaims bool) (*Claims, error) {
	if raw == "" {
		return nil, ErrMalformed
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if !validateClaims {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if claims.ID == "" || (claims.Kind != KindAccess && claims.Kind != KindRefresh) {
		return nil, ErrMalformed
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}
