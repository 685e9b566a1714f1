// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account manages Gatekeeper principals on behalf of administrators.

It lists, creates, edits and soft-deletes accounts, reports population
statistics and seeds the bootstrap administrator at startup.

# Architecture

  - Entities: auth.User is reused; this package only adds inputs and filters.
  - Updates: callers describe a change with [UserPatch]; the service reduces
    it to the columns that actually differ ([Changes]) before writing.
  - Security: every route is gated by middleware.Authorize.
*/
package account

import (
	"context"

	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
	"github.com/taibuivan/gatekeeper/pkg/pagination"
)

// # Inputs

// ListFilter narrows an account listing.
type ListFilter struct {
	// Search matches username or email, case-insensitively.
	Search string

	// Roles restricts to the given roles; empty means any.
	Roles []sec.RoleName

	// IsActive restricts to active or inactive accounts; nil means both.
	IsActive *bool

	Page pagination.Params
}

// CreateInput is the payload for a new account.
type CreateInput struct {
	Username string
	Email    string
	Password string
	Role     sec.RoleName // Defaults to [sec.RoleUser].
	IsActive *bool        // Defaults to true.
}

// UserPatch describes a partial update. A nil field is left untouched.
type UserPatch struct {
	Username *string
	Email    *string
	Password *string
	Role     *sec.RoleName
	IsActive *bool
}

// Changes is the column-level diff written by [Repository.Update].
// Only non-nil fields are persisted.
type Changes struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Role         *sec.RoleName
	IsActive     *bool
}

// Empty reports whether there is nothing to write.
func (c Changes) Empty() bool {
	return c.Username == nil && c.Email == nil && c.PasswordHash == nil && c.Role == nil && c.IsActive == nil
}

// AdminSeed is the bootstrap administrator read from configuration.
type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// # Reporting

// Stats summarises the account and role population.
type Stats struct {
	TotalUsers    int                  `json:"totalUsers"`
	ActiveUsers   int                  `json:"activeUsers"`
	InactiveUsers int                  `json:"inactiveUsers"`
	UsersByRole   map[sec.RoleName]int `json:"usersByRole"`
	TotalRoles    int                  `json:"totalRoles"`
	ActiveRoles   int                  `json:"activeRoles"`
}

// # Repository Contracts

// Repository defines the persistence contract for account management.
// Soft-deleted accounts are invisible to every method.
type Repository interface {
	/*
		List returns one page of accounts, newest first, and the total match count.

		Parameters:
		  - ctx: context.Context
		  - filter: ListFilter

		Returns:
		  - []*auth.User: The page
		  - int: Total matching accounts across all pages
		  - error: Storage failures
	*/
	List(ctx context.Context, filter ListFilter) ([]*auth.User, int, error)

	// FindByID returns dberr.ErrNotFound when no live account has id.
	FindByID(ctx context.Context, id string) (*auth.User, error)

	// FindByEmail returns dberr.ErrNotFound when no live account has email.
	FindByEmail(ctx context.Context, email string) (*auth.User, error)

	/*
		Create inserts a fully populated account.

		Returns:
		  - error: apperr.Conflict on a duplicate username or email
	*/
	Create(ctx context.Context, user *auth.User) error

	/*
		Update writes changes and returns the stored account.

		Returns:
		  - *auth.User: The account after the write
		  - error: dberr.ErrNotFound, apperr.Conflict or storage failures
	*/
	Update(ctx context.Context, id string, changes Changes) (*auth.User, error)

	// SoftDelete returns dberr.ErrNotFound when no live account has id.
	SoftDelete(ctx context.Context, id string) error

	// Stats aggregates the population counters.
	Stats(ctx context.Context) (*Stats, error)
}

