// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/gatekeeper/internal/platform/constants"
	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

// CachedRoleRepository is a read-through Redis cache in front of a [RoleRepository].
//
// # Consistency
//
// Entries expire after the configured TTL. Role writes call [CachedRoleRepository.Invalidate]
// so a refresh right after an edit already sees the new permission set.
// Redis outages degrade to direct reads; they never fail a sign-in.
type CachedRoleRepository struct {
	next   RoleRepository
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCachedRoleRepository wraps next with a Redis cache.
func NewCachedRoleRepository(next RoleRepository, client redis.UniversalClient, ttl time.Duration) *CachedRoleRepository {
	return &CachedRoleRepository{next: next, client: client, ttl: ttl}
}

func roleKey(name sec.RoleName) string {
	return constants.RedisPrefixRole + string(name)
}

/*
FindByName returns the cached role or loads it from the wrapped repository.

Parameters:
  - ctx: context.Context
  - name: sec.RoleName

Returns:
  - *Role: The role, from cache or storage
  - error: Errors of the wrapped repository (cache errors are logged only)
*/
func (repository *CachedRoleRepository) FindByName(ctx context.Context, name sec.RoleName) (*Role, error) {
	logger := ctxutil.GetLogger(ctx)
	key := roleKey(name)

	// 1. Cache hit
	payload, err := repository.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		role := &Role{}
		if jsonErr := json.Unmarshal(payload, role); jsonErr == nil {
			return role, nil
		}
		logger.WarnContext(ctx, "role_cache_corrupt_entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		logger.WarnContext(ctx, "role_cache_get_failed", slog.String("key", key), slog.Any("error", err))
	}

	// 2. Miss: load and populate
	role, err := repository.next.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(role); err == nil {
		if err := repository.client.Set(ctx, key, payload, repository.ttl).Err(); err != nil {
			logger.WarnContext(ctx, "role_cache_set_failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	return role, nil
}

// Invalidate drops the cached entries for names.
func (repository *CachedRoleRepository) Invalidate(ctx context.Context, names ...sec.RoleName) error {
	if len(names) == 0 {
		return nil
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = roleKey(name)
	}

	if err := repository.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis_role_cache_invalidate_failed: %w", err)
	}
	return nil
}
