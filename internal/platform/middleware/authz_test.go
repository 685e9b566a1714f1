// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/middleware"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

const testSecret = "middleware-test-secret-0123456789abcdef"

func newTokens(t *testing.T, now func() time.Time) *sec.TokenService {
	t.Helper()
	service, err := sec.NewTokenService([]byte(testSecret), "gatekeeper", sec.WithClock(now))
	require.NoError(t, err)
	return service
}

func signFor(t *testing.T, tokens *sec.TokenService, kind sec.TokenKind, role sec.RoleName, perms ...sec.Permission) string {
	t.Helper()
	token, err := tokens.Sign(sec.AuthClaims{
		Kind:     kind,
		Username: "alice",
		Email:    "a@x.com",
		Role:     sec.RoleClaim{Name: role, Permissions: perms},
	}, time.Hour)
	require.NoError(t, err)
	return token
}

// protected builds Authenticate → Authorize → 200 handler.
func protected(verifier middleware.TokenVerifier, roles []sec.RoleName, perm sec.Permission) http.Handler {
	final := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		claims := ctxutil.GetAuthUser(request.Context())
		respond.OK(writer, map[string]string{"username": claims.Username})
	})
	return middleware.Authenticate(verifier)(middleware.Authorize(roles, perm)(final))
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) respond.ErrorEnvelope {
	t.Helper()
	var body respond.ErrorEnvelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
	return body
}

/*
TestAuthenticate_Outcomes covers the header and verification branches.
*/
func TestAuthenticate_Outcomes(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens := newTokens(t, func() time.Time { return now })
	handler := protected(tokens, []sec.RoleName{sec.RoleAdmin}, sec.PermRead)

	valid := signFor(t, tokens, sec.TokenAccess, sec.RoleAdmin, sec.PermRead)
	refresh := signFor(t, tokens, sec.TokenRefresh, sec.RoleAdmin, sec.PermRead)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing_header", "", http.StatusUnauthorized, apperr.CodeUnauthorized},
		{"wrong_scheme", "Basic " + valid, http.StatusUnauthorized, apperr.CodeUnauthorized},
		{"garbage_token", "Bearer not.a.token", http.StatusUnauthorized, apperr.CodeUnauthorized},
		{"refresh_as_access", "Bearer " + refresh, http.StatusUnauthorized, apperr.CodeUnauthorized},
		{"lowercase_scheme", "bearer " + valid, http.StatusOK, ""},
		{"valid", "Bearer " + valid, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.status, recorder.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, recorder).Code)
			}
		})
	}
}

/*
TestAuthenticate_Expired maps an expired access token to TOKEN_EXPIRED.
*/
func TestAuthenticate_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens := newTokens(t, func() time.Time { return now })
	token := signFor(t, tokens, sec.TokenAccess, sec.RoleAdmin, sec.PermRead)

	later := newTokens(t, func() time.Time { return now.Add(2 * time.Hour) })
	handler := protected(later, []sec.RoleName{sec.RoleAdmin}, sec.PermRead)

	request := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, apperr.CodeTokenExpired, decodeError(t, recorder).Code)
}

/*
TestAuthorize_Gate exercises the role AND permission decision through HTTP.
*/
func TestAuthorize_Gate(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens := newTokens(t, func() time.Time { return now })

	tests := []struct {
		name   string
		role   sec.RoleName
		perms  []sec.Permission
		status int
	}{
		{"admin_with_delete", sec.RoleAdmin, []sec.Permission{sec.PermRead, sec.PermDelete}, http.StatusOK},
		{"admin_without_delete", sec.RoleAdmin, []sec.Permission{sec.PermRead}, http.StatusForbidden},
		{"user_with_delete", sec.RoleUser, []sec.Permission{sec.PermDelete}, http.StatusForbidden},
	}

	handler := protected(tokens, []sec.RoleName{sec.RoleAdmin, sec.RoleManager}, sec.PermDelete)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodDelete, "/api/users/1", nil)
			request.Header.Set("Authorization", "Bearer "+signFor(t, tokens, sec.TokenAccess, tt.role, tt.perms...))
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.status, recorder.Code)
		})
	}
}

/*
TestAuthorize_WithoutAuthenticate fails closed when no claims are attached.
*/
func TestAuthorize_WithoutAuthenticate(t *testing.T) {
	handler := middleware.Authorize([]sec.RoleName{sec.RoleAdmin}, sec.PermRead)(
		http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			t.Fatal("handler must not run")
		}),
	)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
