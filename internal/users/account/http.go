// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/gatekeeper/internal/platform/middleware"
	requestutil "github.com/taibuivan/gatekeeper/internal/platform/request"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/platform/validate"
	"github.com/taibuivan/gatekeeper/pkg/pagination"
	"github.com/taibuivan/gatekeeper/pkg/query"
	"github.com/taibuivan/gatekeeper/pkg/slice"
)

var (
	// Roles allowed to browse accounts.
	readerRoles = []sec.RoleName{sec.RoleAdmin, sec.RoleManager}

	// Roles allowed to change accounts and view statistics.
	adminRoles = []sec.RoleName{sec.RoleAdmin}
)

// Handler implements the HTTP layer for account management.
//
// # Security
//
// Routes expect middleware.Authenticate to run first; each route then
// declares its own role and permission gate.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns the /api/users endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.With(middleware.Authorize(readerRoles, sec.PermRead)).Get("/", handler.list)
	router.With(middleware.Authorize(readerRoles, sec.PermRead)).Get("/{id}", handler.get)
	router.With(middleware.Authorize(adminRoles, sec.PermCreate)).Post("/", handler.create)
	router.With(middleware.Authorize(adminRoles, sec.PermUpdate)).Put("/{id}", handler.update)
	router.With(middleware.Authorize(adminRoles, sec.PermDelete)).Delete("/{id}", handler.delete)

	return router
}

// StatsRoutes returns the /api/admin/stats endpoint.
func (handler *Handler) StatsRoutes() chi.Router {
	router := chi.NewRouter()
	router.With(middleware.Authorize(adminRoles, sec.PermRead)).Get("/", handler.stats)
	return router
}

// # Payloads

type createUserRequest struct {
	Username string       `json:"username"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     sec.RoleName `json:"role"`
	IsActive *bool        `json:"isActive"`
}

type updateUserRequest struct {
	Username *string       `json:"username"`
	Email    *string       `json:"email"`
	Password *string       `json:"password"`
	Role     *sec.RoleName `json:"role"`
	IsActive *bool         `json:"isActive"`
}

// # Endpoints

/*
GET /api/users.

Request:
  - search: string (username or email fragment)
  - role: []string (repeatable or comma separated)
  - isActive: bool
  - page, limit: int

Response:
  - 200: []User with pagination meta
  - 400: VALIDATION_ERROR: Unknown role or malformed isActive
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	queryParams := request.URL.Query()

	isActive, ok := query.Bool(queryParams.Get("isActive"))
	if !ok {
		respond.Error(writer, request, validate.RequiredError("isActive", "Must be true or false"))
		return
	}

	filter := ListFilter{
		Search:   queryParams.Get("search"),
		Roles:    slice.Map(query.StringSlice(queryParams["role"]), func(v string) sec.RoleName { return sec.RoleName(v) }),
		IsActive: isActive,
		Page:     pagination.FromRequest(request),
	}

	users, total, err := handler.accountService.List(request.Context(), filter)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, users, pagination.NewMeta(filter.Page, total))
}

// get serves GET /api/users/{id}.
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	user, err := handler.accountService.Get(request.Context(), requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}

/*
POST /api/users.

Response:
  - 201: User
  - 400: VALIDATION_ERROR
  - 404: NOT_FOUND: Role not registered
  - 409: CONFLICT: Username or email already in use
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var input createUserRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.Create(request.Context(), CreateInput(input))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
PUT /api/users/{id}.

Description: Fields omitted from the body are left unchanged.

Response:
  - 200: User
  - 400: VALIDATION_ERROR
  - 404: NOT_FOUND: User or role
  - 409: CONFLICT: Username or email already in use
*/
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	var input updateUserRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.Update(request.Context(), requestutil.Param(request, "id"), UserPatch(input))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// delete serves DELETE /api/users/{id}.
func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	if err := handler.accountService.Delete(request.Context(), requestutil.Param(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// stats serves GET /api/admin/stats.
func (handler *Handler) stats(writer http.ResponseWriter, request *http.Request) {
	stats, err := handler.accountService.Stats(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, stats)
}
