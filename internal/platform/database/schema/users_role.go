// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

import "github.com/taibuivan/gatekeeper/internal/platform/constants"

// UserRoleTable represents the 'users.role' table
type UserRoleTable struct {
	Table       string
	ID          string
	Name        string
	Permissions string
	IsActive    string
	CreatedAt   string
	UpdatedAt   string
}

// UserRole is the schema definition for users.role
var UserRole = UserRoleTable{
	Table:       constants.SchemaUsers + ".role",
	ID:          "id",
	Name:        "name",
	Permissions: "permissions",
	IsActive:    "isactive",
	CreatedAt:   "createdat",
	UpdatedAt:   "updatedat",
}

// Columns returns the columns scanned into a role, in scan order.
func (t UserRoleTable) Columns() []string {
	return []string{t.ID, t.Name, t.Permissions, t.IsActive, t.CreatedAt, t.UpdatedAt}
}
