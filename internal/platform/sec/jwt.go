// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, JWT signing and the
// permission decision) from the domain logic. The [TokenService] is injected
// into the auth service and the middleware chain; nothing here reads global
// state, so each test can run with its own secret and clock.
package sec

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// # Token Errors

var (
	// ErrTokenExpired is returned for a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenMalformed is returned for a token that cannot be parsed, carries a
	// bad signature, uses an unexpected algorithm or lacks required claims.
	ErrTokenMalformed = errors.New("sec: token malformed")
)

// # Claims

// TokenKind distinguishes the two credential token variants.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// RoleClaim is the role snapshot embedded at issuance time.
type RoleClaim struct {
	Name        RoleName     `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// AuthClaims represents the payload embedded inside both access and refresh
// tokens. The shape is the same for every issuance path.
//
// The role snapshot lets [AuthClaims.Permits] decide without a database
// round-trip. It reflects the role as it was when the token was minted.
type AuthClaims struct {
	jwt.RegisteredClaims

	Kind     TokenKind `json:"typ"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     RoleClaim `json:"role"`
}

// Permits reports whether the claims satisfy a route requirement.
//
// Both conditions must hold: the role name is one of roles AND perm is in the
// role's permission set. Unknown role names or permissions, on either side,
// always deny.
func (claims *AuthClaims) Permits(roles []RoleName, perm Permission) bool {
	if claims == nil || !claims.Role.Name.Valid() || !perm.Valid() {
		return false
	}

	hasRole := slices.Contains(roles, claims.Role.Name)
	hasPermission := slices.Contains(claims.Role.Permissions, perm)

	return hasRole && hasPermission
}

// # Token Service

// TokenOption customizes a [TokenService].
type TokenOption func(*TokenService)

// WithClock overrides the wall clock used for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(service *TokenService) {
		service.now = now
	}
}

// TokenService signs and verifies HS256 tokens with a single shared secret.
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenService creates a new TokenService.
func NewTokenService(secret []byte, issuer string, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("sec: signing secret is required")
	}

	service := &TokenService{
		secret: slices.Clone(secret),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Sign stamps issuer, issued-at and expiry onto claims and returns the signed
// token string. The output is deterministic for identical claims, clock and
// secret.
func (service *TokenService) Sign(claims AuthClaims, timeToLive time.Duration) (string, error) {
	currentTime := service.now()

	claims.Issuer = service.issuer
	claims.IssuedAt = jwt.NewNumericDate(currentTime)
	claims.ExpiresAt = jwt.NewNumericDate(currentTime.Add(timeToLive))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature first and the expiry second.
//
// # Returns
//   - The embedded claims when both checks pass.
//   - [ErrTokenExpired] when the signature is valid but the token has expired.
//   - [ErrTokenMalformed] for every other failure.
func (service *TokenService) Verify(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		return service.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(service.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.Email == "" || claims.Role.Name == "" {
		return nil, fmt.Errorf("%w: missing identity claims", ErrTokenMalformed)
	}

	if claims.Kind != TokenAccess && claims.Kind != TokenRefresh {
		return nil, fmt.Errorf("%w: unknown token kind %q", ErrTokenMalformed, claims.Kind)
	}

	return claims, nil
}

// VerifyToken satisfies the middleware's verifier contract.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	return service.Verify(tokenString)
}
