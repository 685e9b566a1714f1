// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Token Lifetimes

const (
	// AccessTokenTTL is the duration an access token remains valid.
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the duration a refresh token remains valid. The
	// refresh cookie's Max-Age is derived from it.
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// # Metric Labels

const (
	OperationSignIn  = "signin"
	OperationRefresh = "refresh"

	OutcomeSuccess            = "success"
	OutcomeBadRequest         = "bad_request"
	OutcomeUserNotFound       = "user_not_found"
	OutcomeUserInactive       = "user_inactive"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeError              = "error"
)

// # Field Identifiers

const (
	FieldIdentifier = "identifier"
	FieldPassword   = "password"
)
