package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sol-suite/sol-access/internal/catalog"
	"github.com/sol-suite/sol-access/internal/platform/httpx"
	"github.com/sol-suite/sol-access/internal/shared"
)

// Guard wraps routes with a permission requirement. Wired to the access
// middleware at startup; nil leaves enforcement to the upstream caller.
type Guard func(keys ...string) func(http.Handler) http.Handler

// Handler wires HTTP endpoints for role administration.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	catalog   *catalog.Service
	guard     Guard
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, catalogSvc *catalog.Service, guard Guard) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		catalog:   catalogSvc,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers role routes. Mutations require the rbac update
// permission when a guard is configured.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Get("/roles/{roleID}/permissions", h.getRolePermissions)
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard(shared.PermRBACUpdate, shared.PermRBACFull))
		}
		r.Put("/roles/{roleID}/permissions", h.syncRolePermissions)
		r.Post("/users/{userID}/roles", h.assignRole)
		r.Delete("/users/{userID}/roles/{roleID}", h.removeRole)
	})
}

type syncPermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required,dive,gt=0"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) getRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	ids, err := h.service.GetPermissions(r.Context(), roleID)
	if err != nil {
		h.respondServiceError(w, "get role permissions", err)
		return
	}

	// The admin UI renders the set grouped by module alongside the raw ids.
	grouped := map[string][]catalog.Permission{}
	if len(ids) > 0 {
		all, err := h.catalog.ListPermissions(r.Context())
		if err != nil {
			h.logger.Error("list catalog permissions", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		member := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			member[id] = struct{}{}
		}
		for _, p := range all {
			if _, ok := member[p.ID]; ok {
				grouped[p.ModuleSlug] = append(grouped[p.ModuleSlug], p)
			}
		}
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"permission_ids": ids,
		"by_module":      grouped,
	}})
}

func (h *Handler) syncRolePermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	var req syncPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.SyncPermissions(r.Context(), roleID, req.PermissionIDs, actor)
	if err != nil {
		h.respondServiceError(w, "sync role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.service.AssignRole(r.Context(), userID, req.RoleID, actor); err != nil {
		h.respondServiceError(w, "assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.RemoveRole(r.Context(), userID, roleID, actor); err != nil {
		h.respondServiceError(w, "remove role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "role does not exist")
	case errors.Is(err, ErrInvalidPermission):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Permission", "permission set references unknown ids")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}

func requireActor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing X-Actor-ID header")
		return 0, false
	}
	return actor, true
}
