// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeeper/internal/platform/dberr"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
)

type countingRoles struct {
	fakeRoles
	calls int
}

func (c *countingRoles) FindByName(ctx context.Context, name sec.RoleName) (*auth.Role, error) {
	c.calls++
	return c.fakeRoles.FindByName(ctx, name)
}

func newCache(t *testing.T) (*auth.CachedRoleRepository, *countingRoles, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := &countingRoles{fakeRoles: fakeRoles{roles: map[sec.RoleName]*auth.Role{
		sec.RoleAdmin: {ID: "r1", Name: sec.RoleAdmin, Permissions: []sec.Permission{sec.PermRead}, IsActive: true},
	}}}

	return auth.NewCachedRoleRepository(backing, client, time.Minute), backing, server
}

/*
TestCachedRoleRepository_ReadThrough serves the second read from Redis.
*/
func TestCachedRoleRepository_ReadThrough(t *testing.T) {
	cache, backing, server := newCache(t)
	ctx := context.Background()

	first, err := cache.FindByName(ctx, sec.RoleAdmin)
	require.NoError(t, err)
	second, err := cache.FindByName(ctx, sec.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, 1, backing.calls)
	assert.Equal(t, first.Permissions, second.Permissions)
	assert.True(t, server.Exists("auth:role:admin"))
	assert.Equal(t, time.Minute, server.TTL("auth:role:admin"))
}

/*
TestCachedRoleRepository_Invalidate makes the next read observe the new permissions.
*/
func TestCachedRoleRepository_Invalidate(t *testing.T) {
	cache, backing, server := newCache(t)
	ctx := context.Background()

	_, err := cache.FindByName(ctx, sec.RoleAdmin)
	require.NoError(t, err)

	backing.roles[sec.RoleAdmin] = &auth.Role{
		ID: "r1", Name: sec.RoleAdmin, IsActive: true,
		Permissions: []sec.Permission{sec.PermRead, sec.PermDelete},
	}
	require.NoError(t, cache.Invalidate(ctx, sec.RoleAdmin, sec.RoleUser))
	assert.False(t, server.Exists("auth:role:admin"))

	role, err := cache.FindByName(ctx, sec.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, []sec.Permission{sec.PermRead, sec.PermDelete}, role.Permissions)
	assert.Equal(t, 2, backing.calls)
}

func TestCachedRoleRepository_ExpiresAfterTTL(t *testing.T) {
	cache, backing, server := newCache(t)
	ctx := context.Background()

	_, err := cache.FindByName(ctx, sec.RoleAdmin)
	require.NoError(t, err)

	server.FastForward(2 * time.Minute)

	_, err = cache.FindByName(ctx, sec.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.calls)
}

func TestCachedRoleRepository_MissIsNotCached(t *testing.T) {
	cache, backing, server := newCache(t)

	_, err := cache.FindByName(context.Background(), sec.RoleGuest)

	assert.ErrorIs(t, err, dberr.ErrNotFound)
	assert.Equal(t, 1, backing.calls)
	assert.False(t, server.Exists("auth:role:guest"))
}

/*
TestCachedRoleRepository_RedisDown falls back to the backing store.
*/
func TestCachedRoleRepository_RedisDown(t *testing.T) {
	cache, backing, server := newCache(t)
	server.Close()

	role, err := cache.FindByName(context.Background(), sec.RoleAdmin)

	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, role.Name)
	assert.Equal(t, 1, backing.calls)
}
