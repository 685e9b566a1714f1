// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

// # User Data Access

// UserRepository is the principal lookup the sign-in and refresh flows use.
//
// Implementations return [dberr.ErrNotFound] when no live principal matches.
type UserRepository interface {

	/*
		FindByIdentifier returns the principal whose username equals username
		or whose email equals email. Empty arguments never match. When both
		match different principals, the username match wins.

		Parameters:
		  - ctx: context.Context
		  - username: string (normalised)
		  - email: string (normalised)

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound or storage failures
	*/
	FindByIdentifier(ctx context.Context, username, email string) (*User, error)

	// FindByEmail returns the principal with the given email.
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// # Role Data Access

// RoleRepository resolves a role name to its current permission set.
type RoleRepository interface {
	FindByName(ctx context.Context, name sec.RoleName) (*Role, error)
}

// # Token Codec

// TokenCodec signs and verifies credential tokens. [sec.TokenService]
// implements it.
type TokenCodec interface {
	Sign(claims sec.AuthClaims, timeToLive time.Duration) (string, error)
	Verify(tokenString string) (*sec.AuthClaims, error)
}

// Observer receives one event per sign-in or refresh attempt.
type Observer interface {
	ObserveAuth(operation, outcome string)
}

type noopObserver struct{}

func (noopObserver) ObserveAuth(string, string) {}
