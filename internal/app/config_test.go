package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniintern/bizboard/internal/authz"
)

func validConfig() Config {
	return Config{
		AppEnv:            "development",
		JWTSecret:         "secret",
		AccessTokenTTL:    5 * time.Minute,
		RefreshTokenTTL:   24 * time.Hour,
		BlacklistBackend:  BlacklistPostgres,
		AdminListScope:    "business",
		PageSize:          20,
		AdminReadsDeleted: true,
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("ADMIN_LIST_SCOPE", "global")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, BlacklistPostgres, cfg.BlacklistBackend)
	assert.Equal(t, 20, cfg.PageSize)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, authz.ListScopeGlobal, cfg.Policy().AdminListScope)
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"missing secret":        func(c *Config) { c.JWTSecret = "" },
		"short prod secret":     func(c *Config) { c.AppEnv = "production" },
		"access outlives":       func(c *Config) { c.AccessTokenTTL = 48 * time.Hour },
		"unknown blacklist":     func(c *Config) { c.BlacklistBackend = "memcached" },
		"unknown list scope":    func(c *Config) { c.AdminListScope = "tenant" },
		"non-positive pagesize": func(c *Config) { c.PageSize = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	policy := cfg.Policy()
	assert.True(t, policy.AdminReadsDeleted)
	assert.False(t, policy.OwnerReadsDeleted)
	assert.Equal(t, authz.ListScopeBusiness, policy.AdminListScope)
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := validConfig()
	cfg.LogFormat = "json"
	newLogger(&cfg, &buf).Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "bizboard", line["service"])
	assert.Equal(t, "development", line["env"])

	buf.Reset()
	cfg.AppEnv = "production"
	newLogger(&cfg, &buf).Debug("quiet")
	assert.Zero(t, buf.Len())
}

func TestTestModeFromEnv(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
