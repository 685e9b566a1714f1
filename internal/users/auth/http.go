// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/gatekeeper/internal/platform/constants"
	requestutil "github.com/taibuivan/gatekeeper/internal/platform/request"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
)

// # Definitions & Constructors

// Handler exposes sign-in and refresh over HTTP.
//
// # Scope
//
// Both endpoints are public. The handler owns the refresh cookie: it is set
// on sign-in and read on refresh, and never appears in a response body.
type Handler struct {
	authService   *Service
	signInLimiter func(http.Handler) http.Handler
}

// NewHandler constructs a new [Handler]. signInLimiter guards the sign-in
// endpoint only; pass nil to disable it.
func NewHandler(service *Service, signInLimiter func(http.Handler) http.Handler) *Handler {
	if signInLimiter == nil {
		signInLimiter = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{authService: service, signInLimiter: signInLimiter}
}

// Routes returns a [chi.Router] with the authentication routes.
//
// # Endpoints
//   - POST /        : Sign in, returns the access token and sets the refresh cookie.
//   - POST /refresh : Exchanges the refresh cookie for a new access token.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.With(handler.signInLimiter).Post("/", handler.signIn)
	router.Post("/refresh", handler.refresh)

	return router
}

// # Payloads

type signInRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

/*
signIn authenticates a principal.

POST /api/auth

Request:
  - Body: signInRequest (Username or Email, Password)

Response:
  - 200: signInResponse + Set-Cookie refreshToken
  - 400: VALIDATION_ERROR: No identifier or no password
  - 401: UNAUTHORIZED: Invalid login credentials
  - 429: RATE_LIMITED: Too many attempts from this IP
*/
func (handler *Handler) signIn(writer http.ResponseWriter, request *http.Request) {
	var input signInRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.SignIn(request.Context(), SignInInput(input))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, refreshCookie(result.RefreshToken))

	respond.OK(writer, signInResponse{
		AccessToken: result.AccessToken,
		User:        result.User,
	})
}

/*
refresh mints a new access token from the refresh cookie.

POST /api/auth/refresh

Response:
  - 200: refreshResponse
  - 401: UNAUTHORIZED: Missing, invalid or expired refresh token, or the
    principal is gone or inactive
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var token string
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		token = cookie.Value
	}

	result, err := handler.authService.Refresh(request.Context(), token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, refreshResponse{AccessToken: result.AccessToken})
}

// refreshCookie builds the cross-site refresh cookie. SameSite=None requires Secure.
func refreshCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    token,
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   int(RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}
