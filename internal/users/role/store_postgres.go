// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package role

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/database/schema"
	"github.com/taibuivan/gatekeeper/internal/platform/dberr"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
)

// PostgresRoleRepository implements [Repository] on users.role.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new Postgres implementation of the role registry.
func NewRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

// List retrieves every role in creation order.
func (repository *PostgresRoleRepository) List(ctx context.Context) ([]*auth.Role, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s, %s`,
		auth.RoleColumns, schema.UserRole.Table, schema.UserRole.CreatedAt, schema.UserRole.ID)

	rows, err := repository.pool.Query(ctx, query)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_role_repo_list_failed")
	}
	defer rows.Close()

	var roles []*auth.Role
	for rows.Next() {
		role, err := auth.ScanRole(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "postgres_role_repo_list_scan_failed")
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "postgres_role_repo_list_failed")
	}

	return roles, nil
}

// FindByID retrieves a role by its ID.
func (repository *PostgresRoleRepository) FindByID(ctx context.Context, id string) (*auth.Role, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		auth.RoleColumns, schema.UserRole.Table, schema.UserRole.ID)

	role, err := auth.ScanRole(repository.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_role_repo_find_by_id_failed")
	}
	return role, nil
}

// Create inserts a new role.
func (repository *PostgresRoleRepository) Create(ctx context.Context, role *auth.Role) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6)`,
		schema.UserRole.Table, auth.RoleColumns)

	_, err := repository.pool.Exec(ctx, query,
		role.ID,
		string(role.Name),
		sec.Strings(role.Permissions),
		role.IsActive,
		role.CreatedAt,
		role.UpdatedAt,
	)
	if err != nil {
		return writeError(err, "postgres_role_repo_create_failed")
	}
	return nil
}

/*
Update writes the non-nil fields of changes.

Description: A rename cascades to users.account through the foreign key, so
accounts keep pointing at the same role.

Returns:
  - *auth.Role: The row after the update
  - error: dberr.ErrNotFound, apperr.Conflict or storage failures
*/
func (repository *PostgresRoleRepository) Update(ctx context.Context, id string, changes Changes) (*auth.Role, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(fmt.Sprintf("UPDATE %s SET %s = NOW()", schema.UserRole.Table, schema.UserRole.UpdatedAt))

	var args []any
	argID := 1

	if changes.Name != nil {
		queryBuilder.WriteString(fmt.Sprintf(", %s = $%d", schema.UserRole.Name, argID))
		args = append(args, string(*changes.Name))
		argID++
	}

	if changes.Permissions != nil {
		queryBuilder.WriteString(fmt.Sprintf(", %s = $%d", schema.UserRole.Permissions, argID))
		args = append(args, sec.Strings(changes.Permissions))
		argID++
	}

	if changes.IsActive != nil {
		queryBuilder.WriteString(fmt.Sprintf(", %s = $%d", schema.UserRole.IsActive, argID))
		args = append(args, *changes.IsActive)
		argID++
	}

	queryBuilder.WriteString(fmt.Sprintf(" WHERE %s = $%d RETURNING %s", schema.UserRole.ID, argID, auth.RoleColumns))
	args = append(args, id)

	role, err := auth.ScanRole(repository.pool.QueryRow(ctx, queryBuilder.String(), args...))
	if err != nil {
		return nil, writeError(err, "postgres_role_repo_update_failed")
	}
	return role, nil
}

// writeError reports a taken role name as a conflict; everything else goes
// through dberr.Wrap.
func writeError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return apperr.Conflict("Role name already exists").WithCause(err)
	}
	return dberr.Wrap(err, action)
}
