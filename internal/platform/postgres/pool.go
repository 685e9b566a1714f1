// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package postgres opens the PostgreSQL pool that backs the account and role
// stores.
//
// # Architecture
//
// Only connection management lives here; SQL stays in the domain packages'
// store_postgres.go files, which receive the [*pgxpool.Pool] by constructor.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/gatekeeper/internal/platform/constants"
)

// PoolSettings tunes the connection pool. The zero value is replaced by
// [DefaultPoolSettings] field by field.
type PoolSettings struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolSettings is sized for an auth service: many short queries, few writes.
var DefaultPoolSettings = PoolSettings{
	MaxConns:        20,
	MinConns:        2,
	MaxConnLifetime: time.Hour,
	MaxConnIdleTime: 10 * time.Minute,
	ConnectTimeout:  5 * time.Second,
}

const (
	healthCheckPeriod = time.Minute
	pingTimeout       = 2 * time.Second
)

func (settings PoolSettings) withDefaults() PoolSettings {
	if settings.MaxConns <= 0 {
		settings.MaxConns = DefaultPoolSettings.MaxConns
	}
	if settings.MinConns <= 0 {
		settings.MinConns = DefaultPoolSettings.MinConns
	}
	if settings.MaxConnLifetime <= 0 {
		settings.MaxConnLifetime = DefaultPoolSettings.MaxConnLifetime
	}
	if settings.MaxConnIdleTime <= 0 {
		settings.MaxConnIdleTime = DefaultPoolSettings.MaxConnIdleTime
	}
	if settings.ConnectTimeout <= 0 {
		settings.ConnectTimeout = DefaultPoolSettings.ConnectTimeout
	}
	return settings
}

// ParseConfig turns a DSN and settings into a pool config without dialing.
func ParseConfig(dsn string, settings PoolSettings) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}

	settings = settings.withDefaults()
	poolConfig.MaxConns = settings.MaxConns
	poolConfig.MinConns = settings.MinConns
	poolConfig.MaxConnLifetime = settings.MaxConnLifetime
	poolConfig.MaxConnIdleTime = settings.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = healthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = settings.ConnectTimeout

	// Every physical connection gets a statement timeout matching the request deadline.
	poolConfig.AfterConnect = func(ctx context.Context, connection *pgx.Conn) error {
		timeoutQuery := fmt.Sprintf("SET statement_timeout = '%ds'", int(constants.GlobalRequestTimeout.Seconds()))
		_, err := connection.Exec(ctx, timeoutQuery)
		return err
	}

	return poolConfig, nil
}

// NewPool creates and validates a new PostgreSQL connection pool.
func NewPool(ctx context.Context, dsn string, settings PoolSettings, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := ParseConfig(dsn, settings)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, poolConfig.ConnConfig.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	if err := Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres_pool_connected",
		slog.String("host", poolConfig.ConnConfig.Host),
		slog.Int("max_conns", int(poolConfig.MaxConns)),
	)

	return pool, nil
}

// Ping verifies that the PostgreSQL connection pool is healthy.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}

	return nil
}
