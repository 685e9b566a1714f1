// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/dberr"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/platform/validate"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
	"github.com/taibuivan/gatekeeper/pkg/ident"
	"github.com/taibuivan/gatekeeper/pkg/pointer"
	"github.com/taibuivan/gatekeeper/pkg/uuid"
)

// Account field limits.
const (
	UsernameMinLen = 3
	UsernameMaxLen = 20
	PasswordMinLen = 6
	PasswordMaxLen = 72 // bcrypt limit, in bytes.
)

// # Service Layer

// Service orchestrates account management.
//
// It normalises identifiers the same way sign-in does, so an account created
// here can always sign in with the identifier it was created with.
type Service struct {
	accountRepository Repository
	roleRepository    auth.RoleRepository
	now               func() time.Time
}

// NewService constructs a new [Service] with its repository dependencies.
func NewService(accounts Repository, roles auth.RoleRepository) *Service {
	return &Service{
		accountRepository: accounts,
		roleRepository:    roles,
		now:               time.Now,
	}
}

// # Queries

/*
List returns a page of accounts matching filter.

Returns:
  - []*auth.User: Accounts on the requested page (never nil)
  - int: Total matches
  - error: Storage failures
*/
func (service *Service) List(ctx context.Context, filter ListFilter) ([]*auth.User, int, error) {
	validator := &validate.Validator{}
	for _, role := range filter.Roles {
		validator.OneOf("role", string(role), sec.RoleNameStrings()...)
	}
	if err := validator.Err(); err != nil {
		return nil, 0, err
	}

	users, total, err := service.accountRepository.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("account_service_list_failed: %w", err)
	}
	if users == nil {
		users = []*auth.User{}
	}

	return users, total, nil
}

// Get returns a single live account.
func (service *Service) Get(ctx context.Context, id string) (*auth.User, error) {
	if !uuid.Valid(id) {
		return nil, apperr.NotFound("User")
	}

	user, err := service.accountRepository.FindByID(ctx, id)
	if err != nil {
		return nil, service.lookupError("account_service_get_failed", err)
	}
	return user, nil
}

// Stats returns the population summary for the admin dashboard.
func (service *Service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := service.accountRepository.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("account_service_stats_failed: %w", err)
	}
	return stats, nil
}

// # Commands

/*
Create registers a new account.

Description: The username and email are normalised before validation, the
password is hashed with bcrypt and the role must exist in the registry.

Parameters:
  - ctx: context.Context
  - input: CreateInput

Returns:
  - *auth.User: The stored account
  - error: VALIDATION_ERROR, NOT_FOUND (role), CONFLICT (duplicate) or storage failures
*/
func (service *Service) Create(ctx context.Context, input CreateInput) (*auth.User, error) {
	username := ident.Username(input.Username)
	email := ident.Email(input.Email)
	role := input.Role
	if role == "" {
		role = sec.RoleUser
	}

	// 1. Validate
	validator := &validate.Validator{}
	checkUsername(validator, username)
	checkEmail(validator, email)
	checkPassword(validator, input.Password)
	validator.OneOf("role", string(role), sec.RoleNameStrings()...)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// 2. Role must be registered
	if err := service.requireRole(ctx, role); err != nil {
		return nil, err
	}

	// 3. Build the entity
	hash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("account_service_hash_failed: %w", err))
	}

	id, err := uuid.New()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("account_service_id_failed: %w", err))
	}

	now := service.now().UTC()
	user := &auth.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		RoleName:     role,
		IsActive:     pointer.Fallback(input.IsActive, true),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 4. Persist
	if err := service.accountRepository.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("account_service_create_failed: %w", err)
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "account_created",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.RoleName)),
	)

	return user, nil
}

/*
Update applies patch to an existing account.

Description: Only the fields whose value differs from the stored account are
written. A patch that changes nothing returns the account without a write.

Returns:
  - *auth.User: The account after the update
  - error: VALIDATION_ERROR, NOT_FOUND (user or role), CONFLICT or storage failures
*/
func (service *Service) Update(ctx context.Context, id string, patch UserPatch) (*auth.User, error) {
	if !uuid.Valid(id) {
		return nil, apperr.NotFound("User")
	}

	// 1. Normalise and validate what was supplied
	if patch.Username != nil {
		patch.Username = pointer.To(ident.Username(*patch.Username))
	}
	if patch.Email != nil {
		patch.Email = pointer.To(ident.Email(*patch.Email))
	}

	validator := &validate.Validator{}
	if patch.Username != nil {
		checkUsername(validator, *patch.Username)
	}
	if patch.Email != nil {
		checkEmail(validator, *patch.Email)
	}
	if patch.Password != nil {
		checkPassword(validator, *patch.Password)
	}
	if patch.Role != nil {
		validator.OneOf("role", string(*patch.Role), sec.RoleNameStrings()...)
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// 2. Diff against the stored account
	current, err := service.accountRepository.FindByID(ctx, id)
	if err != nil {
		return nil, service.lookupError("account_service_update_lookup_failed", err)
	}

	changes, err := service.diff(ctx, current, patch)
	if err != nil {
		return nil, err
	}
	if changes.Empty() {
		return current, nil
	}

	// 3. Persist
	updated, err := service.accountRepository.Update(ctx, id, changes)
	if err != nil {
		return nil, service.lookupError("account_service_update_failed", err)
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "account_updated", slog.String("user_id", id))

	return updated, nil
}

// Delete soft-deletes an account. Tokens already issued stay valid until
// they expire, but refresh stops working immediately.
func (service *Service) Delete(ctx context.Context, id string) error {
	if !uuid.Valid(id) {
		return apperr.NotFound("User")
	}

	if err := service.accountRepository.SoftDelete(ctx, id); err != nil {
		return service.lookupError("account_service_delete_failed", err)
	}

	ctxutil.GetLogger(ctx).WarnContext(ctx, "account_deleted", slog.String("user_id", id))
	return nil
}

/*
EnsureAdmin creates the bootstrap administrator unless an account with its
email already exists.

Returns:
  - bool: true if an account was created
  - error: Validation or storage failures
*/
func (service *Service) EnsureAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	existing, err := service.accountRepository.FindByEmail(ctx, ident.Email(seed.Email))
	switch {
	case err == nil:
		if existing.RoleName != sec.RoleAdmin {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "bootstrap_admin_email_taken",
				slog.String("user_id", existing.ID),
				slog.String("role", string(existing.RoleName)),
			)
		}
		return false, nil
	case !dberr.IsNotFound(err):
		return false, fmt.Errorf("account_service_bootstrap_lookup_failed: %w", err)
	}

	if _, err := service.Create(ctx, CreateInput{
		Username: seed.Username,
		Email:    seed.Email,
		Password: seed.Password,
		Role:     sec.RoleAdmin,
	}); err != nil {
		return false, fmt.Errorf("account_service_bootstrap_failed: %w", err)
	}

	return true, nil
}

// # Helpers

func (service *Service) diff(ctx context.Context, current *auth.User, patch UserPatch) (Changes, error) {
	var changes Changes

	if patch.Username != nil && *patch.Username != current.Username {
		changes.Username = patch.Username
	}
	if patch.Email != nil && *patch.Email != current.Email {
		changes.Email = patch.Email
	}
	if patch.Role != nil && *patch.Role != current.RoleName {
		if err := service.requireRole(ctx, *patch.Role); err != nil {
			return Changes{}, err
		}
		changes.Role = patch.Role
	}
	if patch.IsActive != nil && *patch.IsActive != current.IsActive {
		changes.IsActive = patch.IsActive
	}
	if patch.Password != nil {
		hash, err := sec.HashPassword(*patch.Password)
		if err != nil {
			return Changes{}, apperr.Internal(fmt.Errorf("account_service_hash_failed: %w", err))
		}
		changes.PasswordHash = &hash
	}

	return changes, nil
}

func (service *Service) requireRole(ctx context.Context, name sec.RoleName) error {
	if _, err := service.roleRepository.FindByName(ctx, name); err != nil {
		if dberr.IsNotFound(err) {
			return apperr.NotFound("Role")
		}
		return fmt.Errorf("account_service_role_lookup_failed: %w", err)
	}
	return nil
}

// lookupError turns the shared not-found sentinel into a user-facing 404.
func (service *Service) lookupError(action string, err error) error {
	if dberr.IsNotFound(err) {
		return apperr.NotFound("User")
	}
	return fmt.Errorf("%s: %w", action, err)
}

func checkUsername(validator *validate.Validator, username string) {
	validator.Required("username", username)
	if username != "" {
		validator.MinLen("username", username, UsernameMinLen).
			MaxLen("username", username, UsernameMaxLen).
			Username("username", username)
	}
}

func checkEmail(validator *validate.Validator, email string) {
	validator.Required("email", email)
	if email != "" {
		validator.Email("email", email)
	}
}

func checkPassword(validator *validate.Validator, password string) {
	validator.Required("password", password)
	if password != "" {
		validator.MinLen("password", password, PasswordMinLen).
			Custom("password", len(password) > PasswordMaxLen, fmt.Sprintf("Maximum %d bytes", PasswordMaxLen))
	}
}
