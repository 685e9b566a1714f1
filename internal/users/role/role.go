// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package role administers the role registry: the named permission sets that
accounts reference and that sign-in embeds into tokens.

# Consistency

Tokens carry a snapshot of the role taken at issuance, so an edit here only
reaches a principal on their next refresh. Every successful write drops the
affected names from the role cache so that refresh sees it immediately.
*/
package role

import (
	"context"

	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
)

// # Inputs

// CreateInput is the payload for a new role.
type CreateInput struct {
	Name        sec.RoleName
	Permissions []string
}

// RolePatch describes a partial update. Nil fields are left untouched; at
// least one must be set.
type RolePatch struct {
	Name        *sec.RoleName
	Permissions []string
	IsActive    *bool
}

// Changes is the column-level diff written by [Repository.Update].
type Changes struct {
	Name        *sec.RoleName
	Permissions []sec.Permission // nil means untouched
	IsActive    *bool
}

// Empty reports whether there is nothing to write.
func (c Changes) Empty() bool {
	return c.Name == nil && c.Permissions == nil && c.IsActive == nil
}

// # Contracts

// Repository defines the persistence contract for the role registry.
type Repository interface {
	// List returns every registered role, active or not.
	List(ctx context.Context) ([]*auth.Role, error)

	// FindByID returns dberr.ErrNotFound when id is unknown.
	FindByID(ctx context.Context, id string) (*auth.Role, error)

	// Create returns apperr.Conflict when the name is taken.
	Create(ctx context.Context, role *auth.Role) error

	// Update writes changes and returns the stored role.
	Update(ctx context.Context, id string, changes Changes) (*auth.Role, error)
}

// CacheInvalidator drops cached role snapshots. auth.CachedRoleRepository
// implements it.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, names ...sec.RoleName) error
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, ...sec.RoleName) error { return nil }
