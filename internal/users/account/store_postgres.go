// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account (Postgres) implements the storage layer for account management.

# Schema Table Mapping
  - users.account: principals, soft-deleted through deletedat.
  - users.role: read for the statistics summary only.

# Query Notes
  - Window Functions: List computes the total with COUNT(*) OVER() in the same
    query, and counts separately only when the page is past the last row.
  - Uniqueness: enforced by partial unique indexes on live rows; violations
    surface as apperr.Conflict naming the clashing field.
*/
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/database/schema"
	"github.com/taibuivan/gatekeeper/internal/platform/dberr"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
	"github.com/taibuivan/gatekeeper/pkg/ident"
	"github.com/taibuivan/gatekeeper/pkg/pagination"
	"github.com/taibuivan/gatekeeper/pkg/slice"
)

// Unique index names from data/migrations.
const (
	usernameIndex = "account_username_live_uq"
	emailIndex    = "account_email_live_uq"
)

// PostgresAccountRepository implements [Repository] using pgx.
//
// Lookups by email are shared with the sign-in path through the embedded
// auth repository.
type PostgresAccountRepository struct {
	*auth.PostgresUserRepository
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new Postgres implementation for account management.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{
		PostgresUserRepository: auth.NewUserRepository(pool),
		pool:                   pool,
	}
}

// listQuery holds the WHERE block shared by the page query and the count
// fallback, with its positional arguments.
type listQuery struct {
	where strings.Builder
	args  []any
}

// buildListQuery appends optional predicates only when the filter sets them.
// The search term is escaped by ident.Search and matched with ILIKE against
// username and email.
func buildListQuery(filter ListFilter) *listQuery {
	query := &listQuery{}
	argID := 1

	query.where.WriteString(fmt.Sprintf("%s IS NULL", schema.UserAccount.DeletedAt))

	// Search
	if pattern := ident.Search(filter.Search); pattern != "" {
		query.where.WriteString(fmt.Sprintf(` AND (%s ILIKE $%d ESCAPE '\' OR %s ILIKE $%d ESCAPE '\')`,
			schema.UserAccount.Username, argID, schema.UserAccount.Email, argID))
		query.args = append(query.args, pattern)
		argID++
	}

	// Roles
	if len(filter.Roles) > 0 {
		query.where.WriteString(fmt.Sprintf(" AND %s = ANY($%d)", schema.UserAccount.RoleName, argID))
		query.args = append(query.args, slice.Map(filter.Roles, func(role sec.RoleName) string { return string(role) }))
		argID++
	}

	// Status
	if filter.IsActive != nil {
		query.where.WriteString(fmt.Sprintf(" AND %s = $%d", schema.UserAccount.IsActive, argID))
		query.args = append(query.args, *filter.IsActive)
	}

	return query
}

// pageSQL selects one page with the window total; it takes args plus limit and offset.
func (query *listQuery) pageSQL() string {
	next := len(query.args) + 1
	return fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM %s
		WHERE %s
		ORDER BY %s DESC, %s DESC
		LIMIT $%d OFFSET $%d`,
		auth.UserColumns,
		schema.UserAccount.Table,
		query.where.String(),
		schema.UserAccount.CreatedAt, schema.UserAccount.ID,
		next, next+1,
	)
}

// countSQL counts every match; it takes args only.
func (query *listQuery) countSQL() string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, schema.UserAccount.Table, query.where.String())
}

// needsCount reports whether the window total is unavailable: a page past the
// last row returns no rows, so COUNT(*) OVER() never reaches the client.
func needsCount(rowsOnPage int, page pagination.Params) bool {
	return rowsOnPage == 0 && page.Offset() > 0
}

/*
List retrieves one page of live accounts.

Description: The total comes from COUNT(*) OVER() on the page itself. A page
beyond the last row falls back to a plain COUNT(*) with the same predicates.

Parameters:
  - ctx: context.Context
  - filter: ListFilter

Returns:
  - []*auth.User: The page, newest first
  - int: Total matches across all pages
  - error: Storage failures
*/
func (repository *PostgresAccountRepository) List(ctx context.Context, filter ListFilter) ([]*auth.User, int, error) {
	query := buildListQuery(filter)
	args := append(append([]any{}, query.args...), filter.Page.Limit, filter.Page.Offset())

	rows, err := repository.pool.Query(ctx, query.pageSQL(), args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "postgres_account_repo_list_failed")
	}
	defer rows.Close()

	var users []*auth.User
	var totalCount int

	for rows.Next() {
		user, err := auth.ScanUser(totalCountRow{row: rows, total: &totalCount})
		if err != nil {
			return nil, 0, dberr.Wrap(err, "postgres_account_repo_list_scan_failed")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "postgres_account_repo_list_failed")
	}

	if needsCount(len(users), filter.Page) {
		if err := repository.pool.QueryRow(ctx, query.countSQL(), query.args...).Scan(&totalCount); err != nil {
			return nil, 0, dberr.Wrap(err, "postgres_account_repo_list_count_failed")
		}
	}

	return users, totalCount, nil
}

// FindByID retrieves a live account by its ID.
func (repository *PostgresAccountRepository) FindByID(ctx context.Context, id string) (*auth.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s IS NULL`,
		auth.UserColumns, schema.UserAccount.Table, schema.UserAccount.ID, schema.UserAccount.DeletedAt)

	user, err := auth.ScanUser(repository.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_account_repo_find_by_id_failed")
	}
	return user, nil
}

// Create inserts a new account row.
func (repository *PostgresAccountRepository) Create(ctx context.Context, user *auth.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		schema.UserAccount.Table, auth.UserColumns,
	)

	_, err := repository.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.RoleName),
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return writeError(err, "postgres_account_repo_create_failed")
	}
	return nil
}

/*
Update writes the non-nil fields of changes and bumps updatedat.

Description: The SET block is built from the diff only, so concurrent edits of
different fields do not overwrite each other.

Returns:
  - *auth.User: The row after the update (via RETURNING)
  - error: dberr.ErrNotFound, apperr.Conflict or storage failures
*/
func (repository *PostgresAccountRepository) Update(ctx context.Context, id string, changes Changes) (*auth.User, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(fmt.Sprintf("UPDATE %s SET %s = NOW()", schema.UserAccount.Table, schema.UserAccount.UpdatedAt))

	var args []any
	argID := 1

	set := func(column string, value any) {
		queryBuilder.WriteString(fmt.Sprintf(", %s = $%d", column, argID))
		args = append(args, value)
		argID++
	}

	if changes.Username != nil {
		set(schema.UserAccount.Username, *changes.Username)
	}
	if changes.Email != nil {
		set(schema.UserAccount.Email, *changes.Email)
	}
	if changes.PasswordHash != nil {
		set(schema.UserAccount.PasswordHash, *changes.PasswordHash)
	}
	if changes.Role != nil {
		set(schema.UserAccount.RoleName, string(*changes.Role))
	}
	if changes.IsActive != nil {
		set(schema.UserAccount.IsActive, *changes.IsActive)
	}

	queryBuilder.WriteString(fmt.Sprintf(" WHERE %s = $%d AND %s IS NULL RETURNING %s",
		schema.UserAccount.ID, argID, schema.UserAccount.DeletedAt, auth.UserColumns))
	args = append(args, id)

	user, err := auth.ScanUser(repository.pool.QueryRow(ctx, queryBuilder.String(), args...))
	if err != nil {
		return nil, writeError(err, "postgres_account_repo_update_failed")
	}
	return user, nil
}

// SoftDelete flags a live account as deleted.
func (repository *PostgresAccountRepository) SoftDelete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = NOW(), %s = NOW() WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.Table, schema.UserAccount.DeletedAt, schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt)

	tag, err := repository.pool.Exec(ctx, query, id)
	if err != nil {
		return dberr.Wrap(err, "postgres_account_repo_soft_delete_failed")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
Stats aggregates account and role counters.

Description: Three small queries run in one read-only transaction so the
numbers are consistent with each other.
*/
func (repository *PostgresAccountRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{UsersByRole: map[sec.RoleName]int{}}

	err := pgx.BeginTxFunc(ctx, repository.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		// 1. Account totals
		totals := fmt.Sprintf(`
			SELECT COUNT(*), COUNT(*) FILTER (WHERE %s), COUNT(*) FILTER (WHERE NOT %s)
			FROM %s WHERE %s IS NULL`,
			schema.UserAccount.IsActive, schema.UserAccount.IsActive,
			schema.UserAccount.Table, schema.UserAccount.DeletedAt)
		if err := tx.QueryRow(ctx, totals).Scan(&stats.TotalUsers, &stats.ActiveUsers, &stats.InactiveUsers); err != nil {
			return err
		}

		// 2. Accounts per role
		perRole := fmt.Sprintf(`
			SELECT %s, COUNT(*) FROM %s WHERE %s IS NULL GROUP BY %s`,
			schema.UserAccount.RoleName, schema.UserAccount.Table,
			schema.UserAccount.DeletedAt, schema.UserAccount.RoleName)
		rows, err := tx.Query(ctx, perRole)
		if err != nil {
			return err
		}
		var name string
		var count int
		if _, err := pgx.ForEachRow(rows, []any{&name, &count}, func() error {
			stats.UsersByRole[sec.RoleName(name)] = count
			return nil
		}); err != nil {
			return err
		}

		// 3. Role totals
		roles := fmt.Sprintf(`SELECT COUNT(*), COUNT(*) FILTER (WHERE %s) FROM %s`,
			schema.UserRole.IsActive, schema.UserRole.Table)
		return tx.QueryRow(ctx, roles).Scan(&stats.TotalRoles, &stats.ActiveRoles)
	})
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_account_repo_stats_failed")
	}

	return stats, nil
}

// # Helpers

// totalCountRow appends the window-function total to the user scan targets.
type totalCountRow struct {
	row   pgx.Row
	total *int
}

func (r totalCountRow) Scan(dest ...any) error {
	return r.row.Scan(append(dest, r.total)...)
}

// writeError names the clashing field on unique violations and defers the
// rest to dberr.Wrap.
func writeError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case usernameIndex:
			return apperr.Conflict("Username is already in use").WithCause(err)
		case emailIndex:
			return apperr.Conflict("Email is already in use").WithCause(err)
		}
	}
	return dberr.Wrap(err, action)
}
