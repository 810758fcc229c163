// Package config provides configuration loading for the cyberauth service.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cybercongress/cyberauth/core"
)

// EnvPrefix prefixes every environment override, e.g. CYBERAUTH_JWT_SECRET
const EnvPrefix = "CYBERAUTH"

// Store backends
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendPostgREST = "postgrest"
)

// Identity resolvers
const (
	IdentityStatic   = "static"
	IdentitySupabase = "supabase"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Store    StoreConfig    `mapstructure:"store"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Events   EventsConfig   `mapstructure:"events"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AuthConfig holds challenge and identity settings.
type AuthConfig struct {
	HRP             string        `mapstructure:"hrp"`
	ChallengeTTL    time.Duration `mapstructure:"challenge_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RejectHighS     bool          `mapstructure:"reject_high_s"`
	Identity        string        `mapstructure:"identity"`
	EmailDomain     string        `mapstructure:"email_domain"`
	ServiceKey      string        `mapstructure:"service_key"`
}

// JWTConfig holds session token settings.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Expiry   time.Duration `mapstructure:"expiry"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	Role     string        `mapstructure:"role"`
}

// StoreConfig selects the challenge store.
type StoreConfig struct {
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// SQLiteConfig holds SQLite configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// SupabaseConfig holds the Supabase project endpoints and keys.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	AnonKey    string `mapstructure:"anon_key"`
	ServiceKey string `mapstructure:"service_key"`
}

// EventsConfig controls publishing of authentication events to a Redis stream.
type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file and environment variables.
// An empty path searches for config.yaml in the usual locations.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/cyberauth")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all settings.
// Every key needs a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":9000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("auth.hrp", "cyber")
	v.SetDefault("auth.challenge_ttl", "10m")
	v.SetDefault("auth.cleanup_interval", "5m")
	v.SetDefault("auth.reject_high_s", false)
	v.SetDefault("auth.identity", IdentityStatic)
	v.SetDefault("auth.email_domain", "wallet.cyberauth.local")
	v.SetDefault("auth.service_key", "")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "1h")
	v.SetDefault("jwt.issuer", "supabase")
	v.SetDefault("jwt.audience", "authenticated")
	v.SetDefault("jwt.role", "authenticated")

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.timeout", "5s")

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("sqlite.path", "cyberauth.db")

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.anon_key", "")
	v.SetDefault("supabase.service_key", "")

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.topic", "cyberauth.wallet.authenticated")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks the configuration is complete. Every failure wraps core.ErrConfig.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.JWT.Expiry <= 0 {
		errs = append(errs, errors.New("jwt.expiry must be positive"))
	}
	if c.Auth.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("auth.challenge_ttl must be positive"))
	}
	if c.Auth.HRP == "" {
		errs = append(errs, errors.New("auth.hrp is required"))
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis backend"))
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres backend"))
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite.path is required for the sqlite backend"))
		}
	case BackendPostgREST:
		if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
			errs = append(errs, errors.New("supabase.url and supabase.anon_key are required for the postgrest backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}

	switch c.Auth.Identity {
	case IdentityStatic:
	case IdentitySupabase:
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
			errs = append(errs, errors.New("supabase.url and supabase.service_key are required for supabase identity"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth.identity %q", c.Auth.Identity))
	}

	if c.Events.Enabled && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required when events are enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrConfig, errors.Join(errs...))
	}
	return nil
}
