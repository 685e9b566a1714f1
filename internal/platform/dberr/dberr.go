// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
)

var (
	// ErrNotFound is the shared error returned when a queried row doesn't exist.
	// Services compare against it with [errors.Is].
	ErrNotFound = apperr.NotFound("Resource")
)

// Wrap inspects a database error and classifies it into an [apperr.AppError].
//
// # Mapping
//   - pgx.ErrNoRows            → [ErrNotFound]
//   - SQLSTATE 23505 (unique)   → Conflict naming the violated constraint
//   - SQLSTATE 23503 (foreign)  → NotFound for the referenced row
//   - anything else             → Internal, with action recorded in the cause
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	// 2. Constraint violations
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return apperr.Conflict(fmt.Sprintf("Duplicate value violates %s", pgErr.ConstraintName)).WithCause(err)
		case pgerrcode.ForeignKeyViolation:
			return apperr.NotFound("Referenced record").WithCause(err)
		}
	}

	// 3. Unknown query errors become Internal Server Errors
	return apperr.Internal(fmt.Errorf("%s: %w", action, err))
}

// IsNotFound reports whether err is (or wraps) [ErrNotFound].
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
