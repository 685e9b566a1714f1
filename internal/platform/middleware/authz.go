// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/constants"
	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify tokens in middleware.
//
// [sec.TokenService] satisfies it; tests inject stubs.
type TokenVerifier interface {
	VerifyToken(tokenStr string) (*sec.AuthClaims, error)
}

// Authenticate requires a valid access token in the Authorization header.
//
// # Flow
//  1. Read 'Authorization: Bearer <token>'. Missing or malformed → 401.
//  2. Verify the token. Expired → 401 TOKEN_EXPIRED, anything else → 401.
//  3. Reject refresh tokens presented as access tokens.
//  4. Attach the claims and a username-tagged logger to the request context.
//
// Mount it only on protected route groups; the sign-in and refresh endpoints
// must stay reachable without an access token.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// 1. Header extraction
			tokenStr, ok := bearerToken(request)
			if !ok {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// 2. Verification
			claims, err := verifier.VerifyToken(tokenStr)
			if err != nil {
				if errors.Is(err, sec.ErrTokenExpired) {
					respond.Error(writer, request, apperr.TokenExpired())
					return
				}
				respond.Error(writer, request, apperr.Unauthorized("Invalid token"))
				return
			}

			// 3. Token kind
			if claims.Kind != sec.TokenAccess {
				respond.Error(writer, request, apperr.Unauthorized("Invalid token"))
				return
			}

			// 4. Context injection
			ctx := ctxutil.WithAuthUser(request.Context(), claims)
			logger := ctxutil.GetLogger(ctx).With(
				slog.String("username", claims.Username),
				slog.String("role", string(claims.Role.Name)),
			)
			ctx = ctxutil.WithLogger(ctx, logger)

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// Authorize gates a route on a role allow-list AND a required permission.
//
// # Usage
//
// Register it AFTER [Authenticate]:
//
//	r.With(middleware.Authorize([]sec.RoleName{sec.RoleAdmin}, sec.PermDelete)).Delete("/{id}", h.Delete)
//
// Requests without claims are rejected with 401; claims that fail
// [sec.AuthClaims.Permits] are rejected with 403.
func Authorize(roles []sec.RoleName, perm sec.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := ctxutil.GetAuthUser(request.Context())

			if claims == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			if !claims.Permits(roles, perm) {
				ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "authorization_denied",
					slog.String("required_permission", string(perm)),
				)
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// bearerToken extracts the credential from an 'Authorization: Bearer' header.
func bearerToken(request *http.Request) (string, bool) {
	header := request.Header.Get(constants.HeaderAuthorization)
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, constants.BearerScheme) {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}
