package access

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sol-suite/sol-access/internal/overrides"
	"github.com/sol-suite/sol-access/internal/platform/httpx"
	"github.com/sol-suite/sol-access/internal/shared"
)

// Handler serves permission checks, effective maps and override mutation
// for individual users.
type Handler struct {
	logger    *slog.Logger
	engine    *Engine
	overrides *overrides.Service
	guard     *Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. A nil guard leaves enforcement
// of the override mutation to the upstream caller.
func NewHandler(logger *slog.Logger, engine *Engine, overrideSvc *overrides.Service, guard *Middleware) *Handler {
	return &Handler{
		logger:    logger,
		engine:    engine,
		overrides: overrideSvc,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers user permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users/{userID}/check", h.check)
	r.Get("/users/{userID}/permissions", h.permissionView)
	r.Get("/users/{userID}/permissions/effective", h.effective)
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard.RequireAny(shared.PermRBACUpdate, shared.PermRBACFull))
		}
		r.Put("/users/{userID}/permissions", h.setOverride)
	})
}

type setOverrideRequest struct {
	PermissionID int64      `json:"permission_id" validate:"required,gt=0"`
	Granted      *bool      `json:"granted" validate:"required"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	module, submodule, permission := q.Get("module"), q.Get("submodule"), q.Get("permission")
	if module == "" || permission == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "module and permission query parameters are required")
		return
	}
	if submodule == "" {
		// Module-level checks address the submodule sharing the module's slug.
		submodule = module
	}

	decision, err := h.engine.Check(r.Context(), userID, module, submodule, permission)
	if err != nil {
		h.logger.Error("check permission", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"allowed":    decision.Allowed,
		"reason":     decision.Reason,
		"module":     module,
		"submodule":  submodule,
		"permission": permission,
	}})
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	effective, err := h.engine.EffectivePermissions(r.Context(), userID)
	if err != nil {
		h.logger.Error("effective permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": effective})
}

func (h *Handler) permissionView(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.engine.UserPermissionView(r.Context(), userID)
	if err != nil {
		h.logger.Error("user permission view", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing "+ActorHeader+" header")
		return
	}
	userID, okID := userIDParam(w, r)
	if !okID {
		return
	}
	var req setOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	err := h.overrides.SetOverride(r.Context(), userID, req.PermissionID, *req.Granted, req.ExpiresAt, actor)
	switch {
	case errors.Is(err, overrides.ErrInvalidPermission):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Permission", "permission id not present in catalog")
	case errors.Is(err, overrides.ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case err != nil:
		h.logger.Error("set override", slog.Any("error", err))
		httpx.RespondError(w, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid userID")
		return 0, false
	}
	return id, true
}
