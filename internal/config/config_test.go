package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, 8, cfg.Auth.CodeLength)
	assert.Equal(t, MailModeLog, cfg.Mail.Mode)
	assert.Equal(t, 10, cfg.API.DefaultPageSize)
	assert.Equal(t, 100, cfg.API.MaxPageSize)
	assert.Equal(t, []string{"*"}, cfg.Security.CORSOrigins)
}

func TestLoad_DefaultsInDevelopment(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UsingDevSecret)
	assert.GreaterOrEqual(t, len(cfg.Auth.JWTSecret), minJWTSecretLength)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("REVIEW_SERVICE_DATABASE_URL", "postgres://u:p@db:5432/reviews")
	t.Setenv("JWT_SECRET_KEY", strings.Repeat("k", 40))
	t.Setenv("JWT_ACCESS_TTL", "15m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://u:p@db:5432/reviews", cfg.Database.URL)
	assert.Equal(t, strings.Repeat("k", 40), cfg.Auth.JWTSecret)
	assert.False(t, cfg.UsingDevSecret)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	yaml := `
server:
  port: 7070
api:
  default_page_size: 25
  max_page_size: 50
mail:
  from: reviews@example.com
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("API_MAX_PAGE_SIZE", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 25, cfg.API.DefaultPageSize)
	assert.Equal(t, 60, cfg.API.MaxPageSize, "env wins over file")
	assert.Equal(t, "reviews@example.com", cfg.Mail.From)
}

func TestValidate_Production(t *testing.T) {
	cfg := defaultConfig()
	cfg.Environment = EnvProduction
	cfg.Database.URL = "postgres://u:p@db/reviews"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")

	cfg.Auth.JWTSecret = "short"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least")

	cfg.Auth.JWTSecret = strings.Repeat("s", 32)
	require.NoError(t, cfg.Validate())

	cfg.Database.URL = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad environment", func(c *Config) { c.Environment = "staging" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"zero timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"refresh shorter than access", func(c *Config) { c.Auth.RefreshTTL = time.Minute }},
		{"short code", func(c *Config) { c.Auth.CodeLength = 4 }},
		{"unknown mail mode", func(c *Config) { c.Mail.Mode = "pigeon" }},
		{"smtp without host", func(c *Config) { c.Mail.Mode = MailModeSMTP }},
		{"page size", func(c *Config) { c.API.MaxPageSize = 5 }},
		{"rate limit", func(c *Config) { c.Security.AuthRateLimitRequests = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_RateLimitDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.RateLimitDisabled = true
	cfg.Security.AuthRateLimitRequests = 0
	assert.NoError(t, cfg.Validate())
}

func TestEnvTransformFunc(t *testing.T) {
	assert.Equal(t, "database.url", envTransformFunc("DATABASE_URL"))
	assert.Equal(t, "auth.jwt_secret", envTransformFunc("JWT_SECRET"))
	assert.Equal(t, "", envTransformFunc("HOME"))
}
