// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/middleware"
)

var okHandler = http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
	writer.WriteHeader(http.StatusOK)
})

func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seen = ctxutil.GetRequestID(request.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, recorder.Header().Get("X-Request-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set("X-Request-ID", "req-7")
		handler.ServeHTTP(httptest.NewRecorder(), request)

		assert.Equal(t, "req-7", seen)
	})
}

/*
TestRateLimiter_PerMinute allows the burst then rejects with Retry-After.
*/
func TestRateLimiter_PerMinute(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.PerMinute(ctx, 5).Middleware(okHandler)

	for i := range 5 {
		request := httptest.NewRequest(http.MethodPost, "/api/auth", nil)
		request.RemoteAddr = "10.0.0.1:5000"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		require.Equal(t, http.StatusOK, recorder.Code, "attempt %d", i+1)
	}

	request := httptest.NewRequest(http.MethodPost, "/api/auth", nil)
	request.RemoteAddr = "10.0.0.1:5000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	retryAfter, err := strconv.Atoi(recorder.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retryAfter)

	// A different client has its own bucket.
	other := httptest.NewRequest(http.MethodPost, "/api/auth", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, other)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestPanicRecovery(t *testing.T) {
	handler := middleware.PanicRecovery()(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		panic("boom")
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request = request.WithContext(ctxutil.WithLogger(request.Context(), slog.New(slog.NewTextHandler(io.Discard, nil))))
	recorder := httptest.NewRecorder()

	assert.NotPanics(t, func() { handler.ServeHTTP(recorder, request) })
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

type originList []string

func (list originList) OriginAllowed(origin string) bool {
	for _, allowed := range list {
		if allowed == origin {
			return true
		}
	}
	return false
}

func TestCORS(t *testing.T) {
	handler := middleware.CORS(originList{"http://localhost:3000"})(okHandler)

	t.Run("allowed_preflight", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodOptions, "/api/auth", nil)
		request.Header.Set("Origin", "http://localhost:3000")
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusNoContent, recorder.Code)
		assert.Equal(t, "http://localhost:3000", recorder.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", recorder.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("foreign_origin", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		request.Header.Set("Origin", "https://evil.example.com")
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRealIP(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", middleware.RealIP(request))

	// Client-supplied headers alone do not move the caller to another IP.
	request.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	request.Header.Set("X-Real-IP", "198.51.100.9")
	assert.Equal(t, "192.0.2.1", middleware.RealIP(request))

	// Behind a trusted proxy, chi's RealIP rewrites RemoteAddr first.
	var seen string
	chimw.RealIP(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seen = middleware.RealIP(request)
	})).ServeHTTP(httptest.NewRecorder(), request)
	assert.Equal(t, "198.51.100.9", seen)
}

func TestRateLimiter_IgnoresSpoofedForwardedFor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := middleware.PerMinute(ctx, 1).Middleware(okHandler)

	codes := make([]int, 0, 3)
	for _, forwarded := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		request := httptest.NewRequest(http.MethodPost, "/api/auth", nil)
		request.RemoteAddr = "10.0.0.7:5000"
		request.Header.Set("X-Forwarded-For", forwarded)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		codes = append(codes, recorder.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}
