// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package role

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/gatekeeper/internal/platform/middleware"
	requestutil "github.com/taibuivan/gatekeeper/internal/platform/request"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

var adminRoles = []sec.RoleName{sec.RoleAdmin}

// Handler implements the HTTP layer for the role registry.
type Handler struct {
	roleService *Service
}

// NewHandler constructs a new role [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{roleService: service}
}

// Routes returns the /api/admin/roles endpoints. Authentication must already
// have run.
//
// # Endpoints
//   - GET  /     : List roles             (admin, read)
//   - POST /     : Create a role          (admin, create)
//   - PUT  /{id} : Update a role          (admin, update)
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.With(middleware.Authorize(adminRoles, sec.PermRead)).Get("/", handler.list)
	router.With(middleware.Authorize(adminRoles, sec.PermCreate)).Post("/", handler.create)
	router.With(middleware.Authorize(adminRoles, sec.PermUpdate)).Put("/{id}", handler.update)

	return router
}

type createRoleRequest struct {
	Name        sec.RoleName `json:"name"`
	Permissions []string     `json:"permissions"`
}

type updateRoleRequest struct {
	Name        *sec.RoleName `json:"name"`
	Permissions []string      `json:"permissions"`
	IsActive    *bool         `json:"isActive"`
}

func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	roles, err := handler.roleService.List(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, roles)
}

/*
POST /api/admin/roles.

Response:
  - 201: Role
  - 400: VALIDATION_ERROR: Unknown name, no permissions or unknown permission
  - 409: CONFLICT: Role name already exists
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var input createRoleRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	role, err := handler.roleService.Create(request.Context(), CreateInput(input))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, role)
}

/*
PUT /api/admin/roles/{id}.

Response:
  - 200: Role
  - 400: VALIDATION_ERROR: Empty patch or invalid values
  - 404: NOT_FOUND
  - 409: CONFLICT: New name already taken
*/
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	var input updateRoleRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	role, err := handler.roleService.Update(request.Context(), requestutil.Param(request, "id"), RolePatch(input))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, role)
}
