package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "postgres://localhost/inspector")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 60*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.JWTRefreshTTL)
	assert.Equal(t, 10, cfg.AuthRateLimitRPM)
	assert.Equal(t, "@every 1h", cfg.TokenCleanupSchedule)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "postgres://localhost/inspector")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.10/32"),
	}, cfg.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/33")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "postgres://localhost/inspector")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("LOGIN_MAX_FAILED_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 5, cfg.MaxFailedLogins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ServerPort:      "8080",
			RequestTimeout:  time.Second,
			DatabaseURL:     "postgres://localhost/inspector",
			DBMaxConns:      4,
			DBMinConns:      1,
			JWTSecret:       testSecret,
			JWTAccessTTL:    time.Minute,
			JWTRefreshTTL:   time.Hour,
			MaxFailedLogins: 5,
			BcryptCost:      10,
			LogFormat:       "json",
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"short secret":          func(c *Config) { c.JWTSecret = "short" },
		"missing database":      func(c *Config) { c.DatabaseURL = "" },
		"refresh not longer":    func(c *Config) { c.JWTRefreshTTL = c.JWTAccessTTL },
		"admin email only":      func(c *Config) { c.AdminEmail = "admin@example.com" },
		"mailgun key only":      func(c *Config) { c.MailgunAPIKey = "key" },
		"unknown log format":    func(c *Config) { c.LogFormat = "xml" },
		"min conns above max":   func(c *Config) { c.DBMinConns = 10 },
		"bcrypt cost too small": func(c *Config) { c.BcryptCost = 2 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
