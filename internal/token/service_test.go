package token_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/token"
)

type memBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newMemBlacklist() *memBlacklist {
	return &memBlacklist{entries: map[string]time.Time{}}
}

func (m *memBlacklist) Add(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[jti]; !ok {
		m.entries[jti] = expiresAt
	}
	return nil
}

func (m *memBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[jti]
	return ok, nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newService(t *testing.T, bl token.Blacklist) (*token.Service, *clock) {
	t.Helper()
	svc, err := token.NewService(token.Config{
		Secret:     "test-secret",
		Issuer:     "bizboard",
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, bl)
	require.NoError(t, err)
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc.WithClock(c.Now)
	return svc, c
}

func TestNewServiceRejectsInvertedLifetimes(t *testing.T) {
	_, err := token.NewService(token.Config{Secret: "s", AccessTTL: time.Hour, RefreshTTL: time.Minute}, newMemBlacklist())
	require.Error(t, err)

	_, err = token.NewService(token.Config{AccessTTL: time.Minute, RefreshTTL: time.Hour}, newMemBlacklist())
	require.Error(t, err)
}

func TestIssueAndValidate(t *testing.T) {
	svc, _ := newService(t, newMemBlacklist())
	ctx := context.Background()

	pair, err := svc.Issue(42, authz.RoleAdmin)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Access, pair.Refresh)
	assert.True(t, pair.AccessExpiresAt.Before(pair.RefreshExpiresAt))

	claims, err := svc.Validate(ctx, pair.Access, token.KindAccess)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, authz.RoleAdmin, claims.Role)

	_, err = svc.Validate(ctx, pair.Refresh, token.KindRefresh)
	require.NoError(t, err)
}

func TestValidateClassifiesFailures(t *testing.T) {
	svc, c := newService(t, newMemBlacklist())
	ctx := context.Background()

	pair, err := svc.Issue(7, authz.RoleMember)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, pair.Access, token.KindRefresh)
	assert.ErrorIs(t, err, token.ErrWrongKind)

	_, err = svc.Validate(ctx, "not-a-token", token.KindAccess)
	assert.ErrorIs(t, err, token.ErrMalformed)

	_, err = svc.Validate(ctx, "", token.KindAccess)
	assert.ErrorIs(t, err, token.ErrMalformed)

	parts := strings.Split(pair.Access, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = svc.Validate(ctx, tampered, token.KindAccess)
	assert.ErrorIs(t, err, token.ErrMalformed)

	other, err := token.NewService(token.Config{Secret: "other", Issuer: "bizboard", AccessTTL: time.Minute, RefreshTTL: time.Hour}, newMemBlacklist())
	require.NoError(t, err)
	_, err = other.Validate(ctx, pair.Access, token.KindAccess)
	assert.ErrorIs(t, err, token.ErrMalformed)

	c.Advance(6 * time.Minute)
	_, err = svc.Validate(ctx, pair.Access, token.KindAccess)
	assert.ErrorIs(t, err, token.ErrExpired)
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	svc, c := newService(t, newMemBlacklist())
	ctx := context.Background()

	pair, err := svc.Issue(9, authz.RoleMember)
	require.NoError(t, err)

	c.Advance(10 * time.Minute)
	_, err = svc.Validate(ctx, pair.Access, token.KindAccess)
	require.ErrorIs(t, err, token.ErrExpired)

	access, expiresAt, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, c.Now().Add(5*time.Minute), expiresAt)

	claims, err := svc.Validate(ctx, access, token.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "9", claims.Subject)

	_, _, err = svc.Refresh(ctx, pair.Access)
	assert.ErrorIs(t, err, token.ErrWrongKind)
}

func TestRevokeIsIdempotent(t *testing.T) {
	bl := newMemBlacklist()
	svc, c := newService(t, bl)
	ctx := context.Background()

	pair, err := svc.Issue(3, authz.RoleMember)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.Refresh))
	require.NoError(t, svc.Revoke(ctx, pair.Refresh))
	assert.Len(t, bl.entries, 1)

	_, err = svc.Validate(ctx, pair.Refresh, token.KindRefresh)
	assert.ErrorIs(t, err, token.ErrBlacklisted)
	_, _, err = svc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, token.ErrBlacklisted)

	second, err := svc.Issue(3, authz.RoleMember)
	require.NoError(t, err)
	c.Advance(25 * time.Hour)
	require.NoError(t, svc.Revoke(ctx, second.Refresh))
	assert.Len(t, bl.entries, 1)

	assert.ErrorIs(t, svc.Revoke(ctx, "garbage"), token.ErrMalformed)
}

func TestRedisBlacklist(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bl := token.NewRedisBlacklist(client)
	ctx := context.Background()

	require.NoError(t, bl.Add(ctx, "abc", time.Now().Add(time.Minute)))
	require.NoError(t, bl.Add(ctx, "abc", time.Now().Add(time.Minute)))
	ok, err := bl.Contains(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = bl.Contains(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, bl.Add(ctx, "stale", time.Now().Add(-time.Minute)))
	ok, err = bl.Contains(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = bl.Contains(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeWithRedisBlacklist(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc, err := token.NewService(token.Config{Secret: "s", AccessTTL: time.Minute, RefreshTTL: time.Hour}, token.NewRedisBlacklist(client))
	require.NoError(t, err)
	ctx := context.Background()

	pair, err := svc.Issue(1, authz.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, pair.Refresh))

	_, err = svc.Validate(ctx, pair.Refresh, token.KindRefresh)
	assert.ErrorIs(t, err, token.ErrBlacklisted)
	_, err = svc.Validate(ctx, pair.Access, token.KindAccess)
	assert.NoError(t, err)
}
