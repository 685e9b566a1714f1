// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/gatekeeper/internal/platform/database/schema"
	"github.com/taibuivan/gatekeeper/internal/platform/dberr"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

// # Row Scanning

// UserColumns is the SELECT list matching [ScanUser].
var UserColumns = strings.Join(schema.UserAccount.Columns(), ", ")

// RoleColumns is the SELECT list matching [ScanRole].
var RoleColumns = strings.Join(schema.UserRole.Columns(), ", ")

// ScanUser hydrates a [User] from a row selected with [UserColumns].
func ScanUser(row pgx.Row) (*User, error) {
	user := &User{}
	var roleName string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&roleName,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.RoleName = sec.RoleName(roleName)
	return user, nil
}

// ScanRole hydrates a [Role] from a row selected with [RoleColumns].
// Stored permissions outside the known set are dropped.
func ScanRole(row pgx.Row) (*Role, error) {
	role := &Role{}
	var name string
	var permissions []string

	err := row.Scan(
		&role.ID,
		&name,
		&permissions,
		&role.IsActive,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	role.Name = sec.RoleName(name)
	role.Permissions, _ = sec.NormalizePermissions(permissions)
	return role, nil
}

// # User Repository

// PostgresUserRepository implements [UserRepository] using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

/*
FindByIdentifier retrieves a live principal by username or email.

Description: A single query matches either column; ordering on the username
predicate makes the username match win when two principals qualify.

Parameters:
  - ctx: context.Context
  - username: string
  - email: string

Returns:
  - *User: Hydrated entity
  - error: dberr.ErrNotFound or database errors
*/
func (repository *PostgresUserRepository) FindByIdentifier(ctx context.Context, username, email string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s IS NULL
		  AND ((%s = $1 AND $1 <> '') OR (%s = $2 AND $2 <> ''))
		ORDER BY (%s = $1) DESC
		LIMIT 1`,
		UserColumns,
		schema.UserAccount.Table,
		schema.UserAccount.DeletedAt,
		schema.UserAccount.Username, schema.UserAccount.Email,
		schema.UserAccount.Username,
	)

	user, err := ScanUser(repository.pool.QueryRow(ctx, query, username, email))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_repo_find_by_identifier_failed")
	}

	return user, nil
}

// FindByEmail retrieves a live principal by email.
func (repository *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		UserColumns,
		schema.UserAccount.Table,
		schema.UserAccount.Email, schema.UserAccount.DeletedAt,
	)

	user, err := ScanUser(repository.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_repo_find_by_email_failed")
	}

	return user, nil
}

// # Role Repository

// PostgresRoleRepository implements [RoleRepository] using pgx.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new PostgreSQL implementation of the RoleRepository.
func NewRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

// FindByName retrieves a role by its unique name.
func (repository *PostgresRoleRepository) FindByName(ctx context.Context, name sec.RoleName) (*Role, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		RoleColumns, schema.UserRole.Table, schema.UserRole.Name)

	role, err := ScanRole(repository.pool.QueryRow(ctx, query, string(name)))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_role_repo_find_by_name_failed")
	}

	return role, nil
}
