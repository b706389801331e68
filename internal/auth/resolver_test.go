package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniintern/bizboard/internal/accounts"
	"github.com/miniintern/bizboard/internal/auth"
	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/testing/memstore"
	"github.com/miniintern/bizboard/internal/token"
)

type nopBlacklist struct{ revoked map[string]bool }

func (n *nopBlacklist) Add(_ context.Context, jti string, _ time.Time) error {
	n.revoked[jti] = true
	return nil
}

func (n *nopBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	return n.revoked[jti], nil
}

func newResolver(t *testing.T) (*auth.Resolver, *token.Service, *memstore.Accounts, *time.Time) {
	t.Helper()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	tokens, err := token.NewService(token.Config{Secret: "k", AccessTTL: time.Minute, RefreshTTL: time.Hour},
		&nopBlacklist{revoked: map[string]bool{}})
	require.NoError(t, err)
	tokens.WithClock(func() time.Time { return now })

	users := memstore.NewAccounts()
	business := int64(4)
	_, err = users.Create(context.Background(), accounts.NewUser{Username: "carol", PasswordHash: "x", Role: authz.RoleAdmin, BusinessID: &business})
	require.NoError(t, err)

	svc := accounts.NewService(users, nil)
	return auth.NewResolver(auth.NewCookieTransport(false), tokens, svc, nil, nil), tokens, users, &now
}

func requestWith(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	if value != "" {
		req.AddCookie(&http.Cookie{Name: auth.AccessCookie, Value: value})
	}
	return req
}

func TestResolveWithoutCookieIsAnonymous(t *testing.T) {
	resolver, _, _, _ := newResolver(t)
	id, err := resolver.Resolve(requestWith(""))
	require.NoError(t, err)
	assert.True(t, id.Anonymous())
}

func TestResolveReturnsIdentity(t *testing.T) {
	resolver, tokens, _, _ := newResolver(t)
	pair, err := tokens.Issue(1, authz.RoleAdmin)
	require.NoError(t, err)

	id, err := resolver.Resolve(requestWith(pair.Access))
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(1), id.UserID)
	assert.Equal(t, "carol", id.Username)
	assert.True(t, id.InBusiness(4))
}

func TestResolveClassifiesBadTokens(t *testing.T) {
	resolver, tokens, users, now := newResolver(t)
	pair, err := tokens.Issue(1, authz.RoleAdmin)
	require.NoError(t, err)

	_, err = resolver.Resolve(requestWith("garbage"))
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)

	_, err = resolver.Resolve(requestWith(pair.Refresh))
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)

	ghost, err := tokens.Issue(99, authz.RoleMember)
	require.NoError(t, err)
	_, err = resolver.Resolve(requestWith(ghost.Access))
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)

	users.SetActive(1, false)
	_, err = resolver.Resolve(requestWith(pair.Access))
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)
	users.SetActive(1, true)

	require.NoError(t, tokens.Revoke(context.Background(), pair.Access))
	_, err = resolver.Resolve(requestWith(pair.Access))
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)

	fresh, err := tokens.Issue(1, authz.RoleAdmin)
	require.NoError(t, err)
	*now = now.Add(2 * time.Minute)
	_, err = resolver.Resolve(requestWith(fresh.Access))
	assert.ErrorIs(t, err, shared.ErrTokenExpired)
	assert.NotErrorIs(t, err, shared.ErrAuthenticationFailed)
}
