// Package app wires configuration, storage, services and the HTTP router
// into one handler shared by the server binary and the serverless entry.
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/wadjakorntonsri/linkshort/pkg/adapters/handler"
	"github.com/wadjakorntonsri/linkshort/pkg/adapters/ratelimit"
	"github.com/wadjakorntonsri/linkshort/pkg/adapters/repository"
	"github.com/wadjakorntonsri/linkshort/pkg/config"
	"github.com/wadjakorntonsri/linkshort/pkg/core/services"
	"github.com/wadjakorntonsri/linkshort/pkg/logging"
	"github.com/wadjakorntonsri/linkshort/pkg/metrics"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

type App struct {
	Handler http.Handler
	Store   ports.Store
	Links   *services.LinkService
	Admin   *services.AdminService
	Auth    *services.AuthService
	Metrics *metrics.Recorder

	redis *redis.Client
}

// New opens the store named by cfg.DatabaseURL and, when REDIS_URL is set,
// the rate limiter. A Redis that cannot be reached disables rate limiting
// rather than failing startup.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	store, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "store ready", "kind", repository.Kind(cfg.DatabaseURL))

	a := &App{Store: store, Metrics: metrics.New()}

	var limiter ports.RateLimiter
	if cfg.RedisURL != "" {
		client, err := ratelimit.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn(ctx, "rate limiting disabled", "error", err)
		} else {
			a.redis = client
			limiter = ratelimit.NewRedisLimiter(client)
		}
	}

	a.Links = services.NewLinkService(store, services.LinkOptions{
		BaseURL:        cfg.BaseURL,
		CodeLength:     cfg.ShortCodeLength,
		MaxAttempts:    cfg.MaxAllocationAttempts,
		BlockedDomains: cfg.BlockedDomains,
	}, logger, a.Metrics)
	a.Admin = services.NewAdminService(store, cfg.BaseURL, logger)
	a.Auth = services.NewAuthService(store, cfg.JWTSecret, cfg.JWTExpiresIn, logger)

	a.Handler = handler.NewRouter(handler.Deps{
		Config:  cfg,
		Links:   a.Links,
		Admin:   a.Admin,
		Auth:    a.Auth,
		Limiter: limiter,
		Metrics: a.Metrics,
		Logger:  logger,
	})
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
