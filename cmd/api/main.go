package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/access-control/internal/api/http"
	"github.com/spec-kit/access-control/internal/api/http/handlers"
	"github.com/spec-kit/access-control/internal/auth"
	"github.com/spec-kit/access-control/internal/config"
	"github.com/spec-kit/access-control/internal/events"
	"github.com/spec-kit/access-control/internal/observability"
	"github.com/spec-kit/access-control/internal/persistence"
	"github.com/spec-kit/access-control/internal/repository"
	"github.com/spec-kit/access-control/internal/service"
	"github.com/spec-kit/access-control/internal/session"
	"github.com/spec-kit/access-control/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.IsProduction())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := map[string]handlers.Pinger{}

	userRepo, closeStore := openUserStore(ctx, cfg, logger, deps)
	defer closeStore()

	cache, closeCache := openSessionCache(ctx, cfg, logger, deps)
	defer closeCache()

	tokens, err := auth.NewTokenIssuer(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		auth.WithTTLs(cfg.Auth.AccessTokenTTL(), cfg.Auth.RefreshTokenTTL()),
	)
	if err != nil {
		logger.Fatal("failed to init token issuer", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	authService := service.NewAuthService(service.AuthDependencies{
		Users:      userRepo,
		Sessions:   cache,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	userService := service.NewUserService(userRepo, dispatcher, cfg.Auth.BcryptCost, logger)

	if cfg.Seed.Enabled() {
		created, err := userService.EnsureAdmin(ctx, cfg.Seed.AdminUsername, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword)
		if err != nil {
			logger.Fatal("failed to seed admin", zap.Error(err))
		}
		logger.Info("admin seed checked", zap.String("username", cfg.Seed.AdminUsername), zap.Bool("created", created))
	}

	app := httptransport.NewApp(cfg.App)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Auth:           handlers.NewAuthHandler(authService, logger, nil),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func openUserStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, deps map[string]handlers.Pinger) (repository.UserRepository, func()) {
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		deps["postgres"] = pg
		return repository.NewUserRepository(pg.Pool), pg.Close
	case "mongo":
		mg, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			logger.Fatal("failed to connect mongo", zap.Error(err))
		}
		if err := repository.EnsureUserIndexes(ctx, mg.DB); err != nil {
			logger.Fatal("failed to create mongo indexes", zap.Error(err))
		}
		deps["mongo"] = mg
		return repository.NewMongoUserRepository(mg.DB), func() { mg.Close(context.Background()) }
	default:
		logger.Warn("using in-memory user store; accounts are lost on restart")
		return repository.NewMemoryUserRepository(), func() {}
	}
}

func openSessionCache(ctx context.Context, cfg *config.Config, logger *zap.Logger, deps map[string]handlers.Pinger) (session.Cache, func()) {
	if cfg.Session.CacheDriver == "redis" {
		rd, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		deps["redis"] = rd
		return session.NewRedisCache(rd.Client, cfg.Session.KeyPrefix), rd.Close
	}

	cache := session.NewMemoryCache(nil)
	sweepCtx, stop := context.WithCancel(ctx)
	go sweepSessions(sweepCtx, cache, logger)
	return cache, stop
}

// sweepSessions evicts expired in-memory sessions that are never read again.
func sweepSessions(ctx context.Context, cache *session.MemoryCache, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := cache.Sweep(); n > 0 {
				logger.Debug("expired sessions swept", zap.Int("count", n), zap.Int("live", cache.Len()))
			}
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
