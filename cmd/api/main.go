// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Gatekeeper HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool) and Redis.
//  4. Run database migrations (idempotent).
//  5. Seed the bootstrap administrator when configured.
//  6. Wire HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/gatekeeper/internal/api"
	"github.com/taibuivan/gatekeeper/internal/platform/config"
	"github.com/taibuivan/gatekeeper/internal/platform/constants"
	"github.com/taibuivan/gatekeeper/internal/platform/metrics"
	"github.com/taibuivan/gatekeeper/internal/platform/middleware"
	"github.com/taibuivan/gatekeeper/internal/platform/migration"
	pgstore "github.com/taibuivan/gatekeeper/internal/platform/postgres"
	redisstore "github.com/taibuivan/gatekeeper/internal/platform/redis"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/users/account"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
	"github.com/taibuivan/gatekeeper/internal/users/role"
)

func main() {
	// 1. Logger
	log := newLogger(slog.LevelInfo)
	log.Info("service_initializing")

	// 2. Configuration
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Background workers (rate limiter sweepers) live until shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	// 3. Storage
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, pgstore.DefaultPoolSettings, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// 4. Migrations
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// 5. Domain wiring
	tokens, err := sec.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	must(log, err, "initialize token service")

	registry := metrics.New()
	cachedRoles := auth.NewCachedRoleRepository(auth.NewRoleRepository(pool), rdb, cfg.RoleCacheTTL)

	authService := auth.NewService(auth.NewUserRepository(pool), cachedRoles, tokens, auth.WithObserver(registry))
	accountService := account.NewService(account.NewAccountRepository(pool), cachedRoles)
	roleService := role.NewService(role.NewRoleRepository(pool), cachedRoles)

	if cfg.HasBootstrapAdmin() {
		created, err := accountService.EnsureAdmin(startupCtx, account.AdminSeed{
			Username: cfg.AdminUsername,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		must(log, err, "seed bootstrap admin")
		log.Info("bootstrap_admin_checked", slog.Bool("created", created))
	}

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckCache: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		},
	})

	signInLimiter := middleware.PerMinute(rootCtx, cfg.SignInRatePerMinute)

	// 6. HTTP Server
	server := api.NewServer(rootCtx, cfg, log, tokens, registry, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, signInLimiter.Middleware),
		Accounts:  account.NewHandler(accountService),
		Roles:     role.NewHandler(roleService),
	})

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	log.Info("server_shutting_down", slog.Duration("timeout", constants.ShutdownTimeout))

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("server_shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped")
}

// newLogger builds the JSON logger and installs it as the slog default.
func newLogger(level slog.Level) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName), slog.String("version", constants.AppVersion))
	slog.SetDefault(log)
	return log
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// Only used during startup wiring.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
