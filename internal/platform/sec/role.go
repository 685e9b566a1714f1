// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "slices"

// # Role Names

// RoleName identifies a permission bundle. The set of names is closed.
type RoleName string

const (
	// Unrestricted system access
	RoleAdmin RoleName = "admin"

	// Manages accounts but cannot reconfigure roles
	RoleManager RoleName = "manager"

	// Technical accounts used by integrators
	RoleDeveloper RoleName = "developer"

	// Default role for standard registered accounts
	RoleUser RoleName = "user"

	// Read-only visitor accounts
	RoleGuest RoleName = "guest"
)

// RoleNames lists every known role name in declaration order.
var RoleNames = []RoleName{RoleAdmin, RoleManager, RoleDeveloper, RoleUser, RoleGuest}

// Valid reports whether r is one of the known role names.
func (r RoleName) Valid() bool {
	return slices.Contains(RoleNames, r)
}

// # Permissions

// Permission is an operation capability carried by a role.
type Permission string

const (
	PermCreate Permission = "create"
	PermRead   Permission = "read"
	PermUpdate Permission = "update"
	PermDelete Permission = "delete"
)

// Permissions lists every known permission in declaration order.
var Permissions = []Permission{PermCreate, PermRead, PermUpdate, PermDelete}

// Valid reports whether p is one of the known permissions.
func (p Permission) Valid() bool {
	return slices.Contains(Permissions, p)
}

// NormalizePermissions returns the distinct values of raw in first-seen order.
//
// The second return value lists every entry that is not a known permission.
// Callers at the request boundary must reject input when it is non-empty.
func NormalizePermissions(raw []string) ([]Permission, []string) {
	result := make([]Permission, 0, len(raw))
	var unknown []string

	for _, value := range raw {
		permission := Permission(value)
		if !permission.Valid() {
			unknown = append(unknown, value)
			continue
		}
		if !slices.Contains(result, permission) {
			result = append(result, permission)
		}
	}

	return result, unknown
}

// Strings converts permissions back to plain strings for storage.
func Strings(permissions []Permission) []string {
	result := make([]string, len(permissions))
	for i, permission := range permissions {
		result[i] = string(permission)
	}
	return result
}

// RoleNameStrings returns the known role names as plain strings, e.g. for
// [validate.Validator.OneOf].
func RoleNameStrings() []string {
	result := make([]string, len(RoleNames))
	for i, name := range RoleNames {
		result[i] = string(name)
	}
	return result
}
