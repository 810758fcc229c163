// Package app wires configuration into a running authentication service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cybercongress/cyberauth/adapters/events"
	"github.com/cybercongress/cyberauth/adapters/identity"
	"github.com/cybercongress/cyberauth/adapters/store"
	"github.com/cybercongress/cyberauth/adapters/tokenizer"
	"github.com/cybercongress/cyberauth/internal/config"
	"github.com/cybercongress/cyberauth/internal/cosmos"
	"github.com/cybercongress/cyberauth/internal/database"
	"github.com/cybercongress/cyberauth/internal/supabase"
	"github.com/cybercongress/cyberauth/ports"
	"github.com/cybercongress/cyberauth/service"
	transport "github.com/cybercongress/cyberauth/transport/http"
)

// App holds the wired service graph and the resources it owns
type App struct {
	Config     *config.Config
	Challenges *service.ChallengeService
	Auth       *service.AuthService
	Sweeper    *service.Sweeper

	logger  *slog.Logger
	closers []func() error
	redis   *redis.Client
	ready   func(ctx context.Context) error
}

// New builds every component selected by cfg. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, logger: logger}

	challengeStore, err := a.newStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	tok, err := tokenizer.NewJWTTokenizer(tokenizer.Config{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Role:     cfg.JWT.Role,
		Expiry:   cfg.JWT.Expiry,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	eventPub, err := a.newEventPublisher()
	if err != nil {
		a.Close()
		return nil, err
	}

	verifier := cosmos.NewVerifier(cfg.Auth.HRP, cosmos.WithRejectHighS(cfg.Auth.RejectHighS))

	a.Challenges = service.NewChallengeService(challengeStore, verifier, service.ChallengeConfig{
		TTL:          cfg.Auth.ChallengeTTL,
		StoreTimeout: cfg.Store.Timeout,
		Logger:       logger,
	})
	a.Auth = service.NewAuthService(a.Challenges, a.newResolver(), tok, eventPub, logger)
	a.Sweeper = service.NewSweeper(a.Challenges, cfg.Auth.CleanupInterval, logger)

	logger.Info("service wired",
		"store", cfg.Store.Backend,
		"identity", cfg.Auth.Identity,
		"hrp", cfg.Auth.HRP,
		"events", cfg.Events.Enabled,
	)
	return a, nil
}

// Router returns the HTTP handler for the service
func (a *App) Router() *gin.Engine {
	return transport.SetupRouter(a.Auth, transport.RouterConfig{
		ServiceKey: a.Config.Auth.ServiceKey,
		Ready:      a.ready,
	})
}

// Server returns an http.Server bound to the configured address
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      a.Router(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) redisClient() (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}

	opts, err := redis.ParseURL(a.Config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	a.redis = redis.NewClient(opts)
	a.closers = append(a.closers, a.redis.Close)
	return a.redis, nil
}

func (a *App) newStore(ctx context.Context) (ports.ChallengeStore, error) {
	cfg := a.Config

	switch cfg.Store.Backend {
	case config.BackendRedis:
		client, err := a.redisClient()
		if err != nil {
			return nil, err
		}
		a.ready = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		// Native expiry is only a backstop; freshness is decided by the age filter
		return store.NewRedisStore(client, cfg.Auth.ChallengeTTL*2), nil

	case config.BackendPostgres:
		if cfg.Postgres.Migrate {
			if err := database.RunMigrations(cfg.Postgres.DSN); err != nil {
				return nil, err
			}
		}
		pg, err := database.NewPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		a.ready = pg.Ping
		return store.NewPostgresStore(pg.Pool()), nil

	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		a.ready = s.Ping
		return s, nil

	case config.BackendPostgREST:
		return store.NewPostgRESTStore(supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey)), nil

	default:
		return store.NewMemoryStore(), nil
	}
}

func (a *App) newResolver() ports.IdentityResolver {
	cfg := a.Config
	if cfg.Auth.Identity == config.IdentitySupabase {
		client := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
		return identity.NewSupabaseResolver(client, cfg.Auth.EmailDomain, a.logger)
	}
	return identity.NewStaticResolver(uuid.Nil, cfg.Auth.EmailDomain)
}

func (a *App) newEventPublisher() (ports.EventPublisher, error) {
	if !a.Config.Events.Enabled {
		return events.NopPublisher{}, nil
	}

	client, err := a.redisClient()
	if err != nil {
		return nil, err
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}
	a.closers = append(a.closers, publisher.Close)

	return events.NewWatermillPublisher(publisher, a.Config.Events.Topic), nil
}
