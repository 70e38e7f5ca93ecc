package authcore_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ac "github.com/panyam/authcore"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "config-test-secret-0123456789")

	cfg, err := ac.LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":26000", cfg.Addr)
	assert.Equal(t, 168*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, ac.DefaultHashCost, cfg.PasswordCost)
	assert.Equal(t, "fs", cfg.Store)
	assert.Empty(t, cfg.AllowedCORSOrigins)

	caps := cfg.Capabilities()
	assert.False(t, caps.Google())
	assert.False(t, caps.Apple())
	assert.Equal(t, []ac.Provider{ac.ProviderLocal}, caps.Providers())

	tc := cfg.TokenConfig()
	assert.Equal(t, []byte("config-test-secret-0123456789"), tc.Secret)
	assert.Equal(t, cfg.AccessTokenTTL, tc.Lifetime)
}

func TestLoadConfigFromDotenv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "AUTH_JWT_SECRET=dotenv-secret-0123456789\n" +
		"APPLE_CLIENT_ID=com.example.app\n" +
		"AUTH_ACCESS_TOKEN_TTL=1h\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0600))

	// godotenv never overrides the real environment
	t.Setenv("AUTH_ACCESS_TOKEN_TTL", "2h")
	t.Setenv("AUTH_JWT_SECRET", "")
	os.Unsetenv("AUTH_JWT_SECRET")
	t.Setenv("APPLE_CLIENT_ID", "")
	os.Unsetenv("APPLE_CLIENT_ID")

	cfg, err := ac.LoadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret-0123456789", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.AccessTokenTTL)
	assert.True(t, cfg.Capabilities().Apple())
	assert.Equal(t, []ac.Provider{ac.ProviderLocal, ac.ProviderApple}, cfg.Capabilities().Providers())
}

func TestLoadConfigCORSOrigins(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "config-test-secret-0123456789")
	t.Setenv("AUTH_ALLOWED_CORS_ORIGINS", "https://app.example.com,http://localhost:*")

	cfg, err := ac.LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com", "http://localhost:*"}, cfg.AllowedCORSOrigins)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *ac.Config {
		return &ac.Config{
			JWTSecret:      "validate-secret-0123456789",
			AccessTokenTTL: time.Hour,
			PasswordCost:   10,
			Store:          "fs",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*ac.Config)
	}{
		{"short secret", func(c *ac.Config) { c.JWTSecret = "short" }},
		{"zero ttl", func(c *ac.Config) { c.AccessTokenTTL = 0 }},
		{"cost too low", func(c *ac.Config) { c.PasswordCost = 2 }},
		{"cost too high", func(c *ac.Config) { c.PasswordCost = 40 }},
		{"unknown store", func(c *ac.Config) { c.Store = "redis" }},
		{"datastore without project", func(c *ac.Config) { c.Store = "datastore" }},
		{"google without callback", func(c *ac.Config) { c.GoogleClientID = "id"; c.GoogleClientSecret = "secret" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigMissingSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	os.Unsetenv("AUTH_JWT_SECRET")
	_, err := ac.LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestCapabilities(t *testing.T) {
	caps := ac.NewCapabilities(true, false)
	assert.True(t, caps.Enabled(ac.ProviderLocal))
	assert.True(t, caps.Enabled(ac.ProviderGoogle))
	assert.False(t, caps.Enabled(ac.ProviderApple))
	assert.False(t, caps.Enabled(ac.Provider("github")))
	assert.Equal(t, []ac.Provider{ac.ProviderLocal, ac.ProviderGoogle}, caps.Providers())
}
