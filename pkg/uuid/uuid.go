// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package uuid provides time-ordered identifiers for accounts and roles.

Version 7 values sort by creation time, which keeps the primary-key B-tree
append-mostly in PostgreSQL.
*/
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// New generates a new UUIDv7 string.
func New() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("uuid: failed to generate v7: %w", err)
	}
	return id.String(), nil
}

// Must generates a new UUIDv7 or panics. Entropy failure is unrecoverable.
func Must() string {
	id, err := New()
	if err != nil {
		panic(err)
	}
	return id
}

// Valid reports whether s parses as a UUID of any version.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}
