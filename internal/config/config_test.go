package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybercongress/cyberauth/core"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "cyber", cfg.Auth.HRP)
	assert.Equal(t, 10*time.Minute, cfg.Auth.ChallengeTTL)
	assert.False(t, cfg.Auth.RejectHighS)
	assert.Equal(t, time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "supabase", cfg.JWT.Issuer)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)

	err = cfg.Validate()
	assert.ErrorIs(t, err, core.ErrConfig, "missing jwt secret")
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CYBERAUTH_JWT_SECRET", "s3cret")
	t.Setenv("CYBERAUTH_AUTH_CHALLENGE_TTL", "2m")
	t.Setenv("CYBERAUTH_AUTH_REJECT_HIGH_S", "true")
	t.Setenv("CYBERAUTH_STORE_BACKEND", "redis")
	t.Setenv("CYBERAUTH_REDIS_URL", "redis://cache:6379/1")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 2*time.Minute, cfg.Auth.ChallengeTTL)
	assert.True(t, cfg.Auth.RejectHighS)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cyberauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jwt:
  secret: from-file
  expiry: 30m
store:
  backend: sqlite
sqlite:
  path: /tmp/challenges.db
auth:
  hrp: bostrom
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiry)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "bostrom", cfg.Auth.HRP)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Auth:  AuthConfig{HRP: "cyber", ChallengeTTL: time.Minute, Identity: IdentityStatic},
			JWT:   JWTConfig{Secret: "s", Expiry: time.Hour},
			Store: StoreConfig{Backend: BackendMemory},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no secret", func(c *Config) { c.JWT.Secret = "" }},
		{"zero ttl", func(c *Config) { c.Auth.ChallengeTTL = 0 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = BackendPostgres }},
		{"postgrest without keys", func(c *Config) { c.Store.Backend = BackendPostgREST }},
		{"supabase identity without service key", func(c *Config) {
			c.Auth.Identity = IdentitySupabase
			c.Supabase.URL = "https://x.supabase.co"
		}},
		{"events without redis", func(c *Config) { c.Events.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), core.ErrConfig)
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
