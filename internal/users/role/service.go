// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package role

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/dberr"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/platform/validate"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
	"github.com/taibuivan/gatekeeper/pkg/uuid"
)

// Service manages the role registry.
type Service struct {
	roleRepository Repository
	cache          CacheInvalidator
	now            func() time.Time
}

// NewService constructs a new [Service]. cache may be nil when no role cache
// is deployed.
func NewService(roles Repository, cache CacheInvalidator) *Service {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &Service{roleRepository: roles, cache: cache, now: time.Now}
}

// List returns all roles.
func (service *Service) List(ctx context.Context) ([]*auth.Role, error) {
	roles, err := service.roleRepository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("role_service_list_failed: %w", err)
	}
	if roles == nil {
		roles = []*auth.Role{}
	}
	return roles, nil
}

/*
Create registers a role.

Parameters:
  - ctx: context.Context
  - input: CreateInput

Returns:
  - *auth.Role: The stored role, permissions deduplicated in request order
  - error: VALIDATION_ERROR, CONFLICT (name taken) or storage failures
*/
func (service *Service) Create(ctx context.Context, input CreateInput) (*auth.Role, error) {
	validator := &validate.Validator{}
	checkName(validator, input.Name)
	permissions := checkPermissions(validator, input.Permissions)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	id, err := uuid.New()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("role_service_id_failed: %w", err))
	}

	now := service.now().UTC()
	role := &auth.Role{
		ID:          id,
		Name:        input.Name,
		Permissions: permissions,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := service.roleRepository.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("role_service_create_failed: %w", err)
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "role_created",
		slog.String("role", string(role.Name)),
		slog.String("permissions", strings.Join(sec.Strings(role.Permissions), ",")),
	)

	return role, nil
}

/*
Update edits a role's name, permissions or status.

Description: Only differing fields are written. After a successful write the
cache entries for both the old and the new name are dropped.

Returns:
  - *auth.Role: The role after the update
  - error: VALIDATION_ERROR, NOT_FOUND, CONFLICT or storage failures
*/
func (service *Service) Update(ctx context.Context, id string, patch RolePatch) (*auth.Role, error) {
	if !uuid.Valid(id) {
		return nil, apperr.NotFound("Role")
	}

	// 1. Validate
	validator := &validate.Validator{}
	validator.Custom("role", patch.Name == nil && patch.Permissions == nil && patch.IsActive == nil,
		"Either name, permissions or isActive must be provided")

	var permissions []sec.Permission
	if patch.Name != nil {
		checkName(validator, *patch.Name)
	}
	if patch.Permissions != nil {
		permissions = checkPermissions(validator, patch.Permissions)
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// 2. Diff
	current, err := service.roleRepository.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError("role_service_update_lookup_failed", err)
	}

	var changes Changes
	if patch.Name != nil && *patch.Name != current.Name {
		changes.Name = patch.Name
	}
	if patch.Permissions != nil && !slices.Equal(permissions, current.Permissions) {
		changes.Permissions = permissions
	}
	if patch.IsActive != nil && *patch.IsActive != current.IsActive {
		changes.IsActive = patch.IsActive
	}
	if changes.Empty() {
		return current, nil
	}

	// 3. Persist, then drop stale snapshots
	updated, err := service.roleRepository.Update(ctx, id, changes)
	if err != nil {
		return nil, lookupError("role_service_update_failed", err)
	}

	service.invalidate(ctx, current.Name, updated.Name)

	ctxutil.GetLogger(ctx).InfoContext(ctx, "role_updated",
		slog.String("role_id", id),
		slog.String("role", string(updated.Name)),
	)

	return updated, nil
}

// invalidate logs cache failures; entries still expire on their own TTL.
func (service *Service) invalidate(ctx context.Context, names ...sec.RoleName) {
	if err := service.cache.Invalidate(ctx, names...); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "role_cache_invalidate_failed", slog.Any("error", err))
	}
}

func lookupError(action string, err error) error {
	if dberr.IsNotFound(err) {
		return apperr.NotFound("Role")
	}
	return fmt.Errorf("%s: %w", action, err)
}

func checkName(validator *validate.Validator, name sec.RoleName) {
	validator.OneOf("name", string(name), sec.RoleNameStrings()...)
}

func checkPermissions(validator *validate.Validator, raw []string) []sec.Permission {
	permissions, unknown := sec.NormalizePermissions(raw)
	validator.Custom("permissions", len(raw) == 0, "At least one permission is required")
	validator.Custom("permissions", len(unknown) > 0, "Unknown permission: "+strings.Join(unknown, ", "))
	return permissions
}
