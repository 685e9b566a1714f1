// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements sign-in and token refresh for Gatekeeper principals.

It defines the identity entities (User, Role), the lookups the flows depend on,
and the service that turns a verified password into a pair of signed tokens.

# Architecture

The auth core only reads principals and roles; creating, editing and
deactivating them belongs to the account and role packages, which reuse the
entities and scanners defined here.
*/
package auth

import (
	"errors"
	"time"

	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

// # Domain Entities

// User is a principal that can sign in.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Never serialised.
	RoleName     sec.RoleName `json:"role"`
	IsActive     bool         `json:"isActive"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Role is a named permission set. Exactly one role is assigned to each user.
type Role struct {
	ID          string           `json:"id"`
	Name        sec.RoleName     `json:"name"`
	Permissions []sec.Permission `json:"permissions"`
	IsActive    bool             `json:"isActive"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Claim returns the snapshot embedded into tokens. An inactive role keeps its
// name but grants nothing.
func (role *Role) Claim() sec.RoleClaim {
	permissions := []sec.Permission{}
	if role.IsActive {
		permissions = append(permissions, role.Permissions...)
	}
	return sec.RoleClaim{Name: role.Name, Permissions: permissions}
}

// # Sign-in Failures

// The precise reasons a credential check failed. Clients only ever see one
// generic 401; these travel as the error cause for logs and [errors.Is].
var (
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrUserInactive       = errors.New("auth: user inactive")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrWrongTokenKind     = errors.New("auth: wrong token kind")
)
