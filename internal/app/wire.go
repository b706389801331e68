package app

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/miniintern/bizboard/internal/accounts"
	"github.com/miniintern/bizboard/internal/auth"
	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/board"
	"github.com/miniintern/bizboard/internal/businesses"
	"github.com/miniintern/bizboard/internal/observability"
	"github.com/miniintern/bizboard/internal/platform/cache"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/token"
	"github.com/miniintern/bizboard/jobs"
)

// BusinessCacheNamespace prefixes the business directory cache keys.
const BusinessCacheNamespace = "bizboard:businesses"

// Stores are the persistence backends the application is assembled from.
type Stores struct {
	Accounts   accounts.Repository
	Businesses businesses.Repository
	Board      board.Repository
	Blacklist  token.Blacklist
	Audit      shared.AuditRecorder
	// Redis backs the business directory cache. Nil disables caching.
	Redis redis.UniversalClient
}

// Components is the assembled application.
type Components struct {
	Engine     *authz.Engine
	Tokens     *token.Service
	Accounts   *accounts.Service
	Businesses *businesses.Service
	Board      *board.Service
	Resolver   *auth.Resolver
	Router     RouterParams
}

// Build wires services and handlers over the given stores.
func Build(cfg *Config, logger *slog.Logger, stores Stores, metrics *observability.Metrics, jobHandler *jobs.Handler) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	tokens, err := token.NewService(token.Config{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, stores.Blacklist)
	if err != nil {
		return nil, err
	}

	engine := authz.NewEngine(cfg.Policy())
	directory := businesses.NewService(stores.Businesses, engine,
		cache.NewVersioned(stores.Redis, BusinessCacheNamespace, cfg.BusinessCacheTTL),
		cfg.PageSize, stores.Audit, logger)
	registrar := accounts.NewService(stores.Accounts, directory)
	boardService := board.NewService(stores.Board, engine, cfg.PageSize, stores.Audit, logger)

	cookies := auth.NewCookieTransport(cfg.CookieSecure)
	resolver := auth.NewResolver(cookies, tokens, registrar, logger, metrics)
	authHandler := auth.NewHandler(logger, auth.NewService(stores.Accounts, tokens), registrar, cookies, resolver,
		stores.Audit, metrics, auth.HandlerConfig{LogoutStrict: cfg.LogoutStrict, LoginRateLimit: cfg.LoginRateLimit})

	return &Components{
		Engine:     engine,
		Tokens:     tokens,
		Accounts:   registrar,
		Businesses: directory,
		Board:      boardService,
		Resolver:   resolver,
		Router: RouterParams{
			Logger:            logger,
			Config:            cfg,
			AuthHandler:       authHandler,
			BusinessesHandler: businesses.NewHandler(logger, directory, resolver),
			BoardHandler:      board.NewHandler(logger, boardService, resolver),
			JobHandler:        jobHandler,
			Metrics:           metrics,
		},
	}, nil
}
