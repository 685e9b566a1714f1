// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A local '.env' file is
honoured when present (via 'joho/godotenv'); real environment variables always win.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, TokenService) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// minSecretLength is the shortest accepted HS256 signing secret, in bytes.
const minSecretLength = 32

// # Configuration Schema

// Config holds all runtime configuration for the Gatekeeper API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL     string        `env:"REDIS_URL,required"`
	RoleCacheTTL time.Duration `env:"ROLE_CACHE_TTL" envDefault:"5m"`

	// Token signing. The same secret signs access and refresh tokens.
	JWTSecret string `env:"JWT_SECRET,required"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"gatekeeper"`

	// Cross-Origin Resource Sharing
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	// SignInRatePerMinute caps sign-in attempts per client IP.
	SignInRatePerMinute int `env:"SIGNIN_RATE_PER_MINUTE" envDefault:"5"`

	// TrustProxyHeaders takes the client IP from X-Real-IP / X-Forwarded-For.
	// Enable only behind a reverse proxy that overwrites those headers;
	// otherwise callers pick their own rate-limit bucket.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Optional first-run administrator account.
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// # Configuration Loading

// Load reads an optional .env file and parses environment variables into a [Config].
func Load() (*Config, error) {

	// A missing .env file is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes", minSecretLength)
	}

	if c.SignInRatePerMinute < 1 {
		return errors.New("config: SIGNIN_RATE_PER_MINUTE must be positive")
	}

	// The bootstrap admin is all-or-nothing.
	adminFields := []string{c.AdminUsername, c.AdminEmail, c.AdminPassword}
	set := slices.IndexFunc(adminFields, func(v string) bool { return v != "" }) >= 0
	if set && slices.Contains(adminFields, "") {
		return errors.New("config: ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	return nil
}

// HasBootstrapAdmin reports whether a first-run administrator is configured.
func (c *Config) HasBootstrapAdmin() bool {
	return c.AdminEmail != ""
}

// OriginAllowed reports whether origin is on the CORS allow-list.
func (c *Config) OriginAllowed(origin string) bool {
	for _, allowed := range c.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}
