// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/dberr"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/platform/validate"
	"github.com/taibuivan/gatekeeper/pkg/ident"
)

// # Contracts & Types

// Service implements the sign-in and refresh use cases.
//
// # Review Process
//
// This service decides who receives a credential. Changes to the order of
// checks or to the error collapsing must keep the generic 401 for every
// principal-level failure.
type Service struct {
	userRepository UserRepository
	roleRepository RoleRepository
	tokens         TokenCodec
	observer       Observer
}

// ServiceOption customizes a [Service].
type ServiceOption func(*Service)

// WithObserver reports attempt outcomes, e.g. to Prometheus.
func WithObserver(observer Observer) ServiceOption {
	return func(service *Service) {
		service.observer = observer
	}
}

// NewService constructs a new [Service] with its collaborators.
func NewService(users UserRepository, roles RoleRepository, tokens TokenCodec, opts ...ServiceOption) *Service {
	service := &Service{
		userRepository: users,
		roleRepository: roles,
		tokens:         tokens,
		observer:       noopObserver{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// # Sign-in Flow

// SignInInput holds the credentials of one sign-in attempt. Either Username
// or Email identifies the principal.
type SignInInput struct {
	Username string
	Email    string
	Password string
}

// SignInResult is the credential pair issued on success.
type SignInResult struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

/*
SignIn verifies a password and issues an access and a refresh token.

Description: Looks the principal up by username or email, refuses inactive
accounts before comparing the password, resolves the role and mints both
tokens from the same claims.

Parameters:
  - ctx: context.Context
  - input: SignInInput

Returns:
  - *SignInResult: Both tokens and the principal
  - error: ValidationError, Unauthorized (collapsed) or Internal
*/
func (service *Service) SignIn(ctx context.Context, input SignInInput) (*SignInResult, error) {
	username := ident.Username(input.Username)
	email := ident.Email(input.Email)

	// 1. Shape check, before any store access
	validator := &validate.Validator{}
	validator.
		Custom(FieldIdentifier, username == "" && email == "", "Username or email is required").
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		service.observer.ObserveAuth(OperationSignIn, OutcomeBadRequest)
		return nil, err
	}

	// 2. Principal lookup
	user, err := service.userRepository.FindByIdentifier(ctx, username, email)
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, service.reject(ctx, OperationSignIn, ErrUserNotFound)
		}
		return nil, service.fail(OperationSignIn, fmt.Errorf("auth_service_find_user_failed: %w", err))
	}

	// 3. Inactive accounts are refused before the password is compared
	if !user.IsActive {
		return nil, service.reject(ctx, OperationSignIn, ErrUserInactive)
	}

	// 4. Password
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, service.reject(ctx, OperationSignIn, ErrInvalidCredentials)
	}

	// 5. Role resolution and issuance
	claims, err := service.claimsFor(ctx, user)
	if err != nil {
		return nil, service.fail(OperationSignIn, err)
	}

	accessToken, err := service.issue(claims, sec.TokenAccess, AccessTokenTTL)
	if err != nil {
		return nil, service.fail(OperationSignIn, err)
	}

	refreshToken, err := service.issue(claims, sec.TokenRefresh, RefreshTokenTTL)
	if err != nil {
		return nil, service.fail(OperationSignIn, err)
	}

	service.observer.ObserveAuth(OperationSignIn, OutcomeSuccess)
	ctxutil.GetLogger(ctx).InfoContext(ctx, "sign_in_succeeded",
		slog.String("user_id", user.ID),
		slog.String("role", string(claims.Role.Name)),
	)

	return &SignInResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// # Refresh Flow

// RefreshResult carries the newly minted access token.
type RefreshResult struct {
	AccessToken string
}

/*
Refresh exchanges a refresh token for a new access token.

Description: Verifies the refresh token, re-reads the principal and its role
so the new access token reflects current state, and mints it. The refresh
token itself is not rotated.

Parameters:
  - ctx: context.Context
  - refreshToken: string

Returns:
  - *RefreshResult: The new access token
  - error: Unauthorized or Internal
*/
func (service *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		service.observer.ObserveAuth(OperationRefresh, OutcomeInvalidToken)
		return nil, apperr.Unauthorized("Refresh token is required")
	}

	// 1. Token verification (signature, expiry, kind)
	presented, err := service.tokens.Verify(refreshToken)
	if err == nil && presented.Kind != sec.TokenRefresh {
		err = ErrWrongTokenKind
	}
	if err != nil {
		service.observer.ObserveAuth(OperationRefresh, OutcomeInvalidToken)
		ctxutil.GetLogger(ctx).WarnContext(ctx, "refresh_rejected", slog.String("reason", err.Error()))
		return nil, apperr.Unauthorized("Invalid or expired refresh token").WithCause(err)
	}

	// 2. Current principal state
	user, err := service.userRepository.FindByEmail(ctx, presented.Email)
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, service.reject(ctx, OperationRefresh, ErrUserNotFound)
		}
		return nil, service.fail(OperationRefresh, fmt.Errorf("auth_service_refresh_lookup_failed: %w", err))
	}

	if !user.IsActive {
		return nil, service.reject(ctx, OperationRefresh, ErrUserInactive)
	}

	// 3. Fresh role snapshot
	claims, err := service.claimsFor(ctx, user)
	if err != nil {
		return nil, service.fail(OperationRefresh, err)
	}

	accessToken, err := service.issue(claims, sec.TokenAccess, AccessTokenTTL)
	if err != nil {
		return nil, service.fail(OperationRefresh, err)
	}

	service.observer.ObserveAuth(OperationRefresh, OutcomeSuccess)
	ctxutil.GetLogger(ctx).InfoContext(ctx, "token_refreshed", slog.String("user_id", user.ID))

	return &RefreshResult{AccessToken: accessToken}, nil
}

// # Helpers

// claimsFor builds the canonical claim set from the principal and its current role.
func (service *Service) claimsFor(ctx context.Context, user *User) (sec.AuthClaims, error) {
	role, err := service.roleRepository.FindByName(ctx, user.RoleName)
	if err != nil {
		return sec.AuthClaims{}, fmt.Errorf("auth_service_role_lookup_failed: role %q: %w", user.RoleName, err)
	}

	claims := sec.AuthClaims{
		Username: user.Username,
		Email:    user.Email,
		Role:     role.Claim(),
	}
	claims.Subject = user.ID

	return claims, nil
}

func (service *Service) issue(claims sec.AuthClaims, kind sec.TokenKind, timeToLive time.Duration) (string, error) {
	claims.Kind = kind

	token, err := service.tokens.Sign(claims, timeToLive)
	if err != nil {
		return "", fmt.Errorf("auth_service_sign_%s_failed: %w", kind, err)
	}
	return token, nil
}

// reject collapses every principal-level failure into one generic 401.
func (service *Service) reject(ctx context.Context, operation string, cause error) error {
	service.observer.ObserveAuth(operation, outcomeOf(cause))

	ctxutil.GetLogger(ctx).WarnContext(ctx, operation+"_rejected",
		slog.String("reason", cause.Error()),
	)

	return apperr.Unauthorized("Invalid login credentials").WithCause(cause)
}

func (service *Service) fail(operation string, cause error) error {
	service.observer.ObserveAuth(operation, OutcomeError)
	return apperr.Internal(cause)
}

func outcomeOf(cause error) string {
	switch {
	case errors.Is(cause, ErrUserNotFound):
		return OutcomeUserNotFound
	case errors.Is(cause, ErrUserInactive):
		return OutcomeUserInactive
	case errors.Is(cause, ErrInvalidCredentials):
		return OutcomeInvalidCredentials
	default:
		return OutcomeError
	}
}
