// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ident normalises login identifiers before they are stored or compared.
//
// # Usage
//
// Usernames and emails are matched exactly in SQL, so every write path and
// every lookup must pass through the same normalisation:
//
//	user.Username = ident.Username(input.Username)
//	user.Email = ident.Email(input.Email)
package ident

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// fold is safe for concurrent use; cases.Caser is not, so one is created per call.
func fold(s string) string {
	composed := norm.NFC.String(strings.TrimSpace(s))
	return cases.Lower(language.Und).String(composed)
}

// Username returns the canonical form of a username: trimmed, NFC, lowercase.
func Username(s string) string {
	return fold(s)
}

// Email returns the canonical form of an email address: trimmed, NFC, lowercase.
func Email(s string) string {
	return fold(s)
}

// Search prepares a free-text filter for a case-insensitive LIKE match.
// LIKE wildcards in the input are escaped.
func Search(s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(fold(s))
	if escaped == "" {
		return ""
	}
	return "%" + escaped + "%"
}
