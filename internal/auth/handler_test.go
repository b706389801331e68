package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/miniintern/bizboard/internal/accounts"
	"github.com/miniintern/bizboard/internal/auth"
	"github.com/miniintern/bizboard/internal/observability"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/testing/memstore"
	"github.com/miniintern/bizboard/internal/token"
	_ "github.com/miniintern/bizboard/testing"
)

type businessSet map[int64]bool

func (b businessSet) Exists(_ context.Context, id int64) (bool, error) { return b[id], nil }

type auditSpy struct{ entries []shared.AuditLog }

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

type fixture struct {
	router   http.Handler
	users    *memstore.Accounts
	tokens   *token.Service
	resolver *auth.Resolver
	audit    *auditSpy
	redis    *miniredis.Miniredis
}

func newFixture(t *testing.T, cfg auth.HandlerConfig) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tokens, err := token.NewService(token.Config{
		Secret:     "handler-secret",
		Issuer:     "bizboard",
		AccessTTL:  5 * time.Minute,
		RefreshTTL: time.Hour,
	}, token.NewRedisBlacklist(client))
	require.NoError(t, err)

	users := memstore.NewAccounts()
	registrar := accounts.NewService(users, businessSet{1: true}).WithHashCost(bcrypt.MinCost)
	cookies := auth.NewCookieTransport(true)
	metrics := observability.NewMetrics()
	resolver := auth.NewResolver(cookies, tokens, registrar, nil, metrics)
	audit := &auditSpy{}
	handler := auth.NewHandler(nil, auth.NewService(users, tokens), registrar, cookies, resolver, audit, metrics, cfg)

	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)
	return &fixture{router: r, users: users, tokens: tokens, resolver: resolver, audit: audit, redis: mr}
}

func (f *fixture) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func cookieMap(rr *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rr.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

const aliceJSON = `{"username":"alice","password":"Secr3t!1","password2":"Secr3t!1","role":"member","business":1}`

func TestRegisterLoginRefreshLogout(t *testing.T) {
	f := newFixture(t, auth.HandlerConfig{})

	rr := f.do(t, http.MethodPost, "/api/auth/register", aliceJSON)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
		Business int64  `json:"business"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, int64(1), created.Business)
	assert.NotEqual(t, "Secr3t!1", f.users.PasswordHash(created.ID))

	rr = f.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"Secr3t!1"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"detail":"Login successful"}`, rr.Body.String())
	cookies := cookieMap(rr)
	access, refresh := cookies[auth.AccessCookie], cookies[auth.RefreshCookie]
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	for _, c := range []*http.Cookie{access, refresh} {
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.NotContains(t, rr.Body.String(), c.Value)
	}

	rr = f.do(t, http.MethodPost, "/api/auth/refresh", "", refresh)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotNil(t, cookieMap(rr)[auth.AccessCookie])

	rr = f.do(t, http.MethodPost, "/api/auth/logout", "", access, refresh)
	require.Equal(t, http.StatusOK, rr.Code)
	cleared := cookieMap(rr)
	assert.Equal(t, "", cleared[auth.AccessCookie].Value)
	assert.True(t, cleared[auth.AccessCookie].MaxAge < 0)
	assert.Equal(t, "", cleared[auth.RefreshCookie].Value)

	rr = f.do(t, http.MethodPost, "/api/auth/refresh", "", refresh)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"token_invalid"`)

	actions := make([]string, 0, len(f.audit.entries))
	for _, e := range f.audit.entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{shared.AuditRegister, shared.AuditLogin, shared.AuditLogout}, actions)
	for _, e := range f.audit.entries {
		assert.Equal(t, "user", e.Entity)
		assert.Equal(t, strconv.FormatInt(created.ID, 10), e.EntityID, e.Action)
	}
}

func TestRegisterValidationErrors(t *testing.T) {
	f := newFixture(t, auth.HandlerConfig{})

	rr := f.do(t, http.MethodPost, "/api/auth/register",
		`{"username":"bob","password":"Secr3t!1","password2":"nope","role":"owner","business":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var problem struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Equal(t, "Password fields didn't match.", problem.Errors["password"])
	assert.Contains(t, problem.Errors, "role")

	rr = f.do(t, http.MethodPost, "/api/auth/register", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	f := newFixture(t, auth.HandlerConfig{})
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/auth/register", aliceJSON).Code)

	wrong := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong-pass"}`)
	unknown := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"nobody","password":"wrong-pass"}`)
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Contains(t, wrong.Body.String(), "No active account found with the given credentials")
	assert.Empty(t, cookieMap(wrong))

	f.users.SetActive(1, false)
	inactive := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"Secr3t!1"}`)
	assert.Equal(t, wrong.Body.String(), inactive.Body.String())

	missing := f.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, missing.Code)
	assert.Contains(t, missing.Body.String(), `"password"`)
}

func TestLoginRateLimit(t *testing.T) {
	f := newFixture(t, auth.HandlerConfig{LoginRateLimit: 2})
	body := `{"username":"alice","password":"wrong-pass"}`
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/auth/login", body).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/auth/login", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/api/auth/login", body).Code)
}

func TestRefreshAndLogoutRequireCookies(t *testing.T) {
	f := newFixture(t, auth.HandlerConfig{})
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/auth/refresh", `{"refresh":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/auth/logout", "").Code)
}

func TestLogoutSwallowsRevokeFailuresUnlessStrict(t *testing.T) {
	junk := &http.Cookie{Name: auth.RefreshCookie, Value: "not-a-jwt"}

	lenient := newFixture(t, auth.HandlerConfig{})
	rr := lenient.do(t, http.MethodPost, "/api/auth/logout", "", junk)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "", cookieMap(rr)[auth.RefreshCookie].Value)

	strict := newFixture(t, auth.HandlerConfig{LogoutStrict: true})
	rr = strict.do(t, http.MethodPost, "/api/auth/logout", "", junk)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "", cookieMap(rr)[auth.RefreshCookie].Value)
}

func TestLogoutTwiceIsHarmless(t *testing.T) {
	f := newFixture(t, auth.HandlerConfig{LogoutStrict: true})
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/auth/register", aliceJSON).Code)
	login := cookieMap(f.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"Secr3t!1"}`))

	refresh := login[auth.RefreshCookie]
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/auth/logout", "", refresh).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/auth/logout", "", refresh).Code)
}
