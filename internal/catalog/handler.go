package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sol-suite/sol-access/internal/platform/httpx"
)

// Handler serves the catalog structure for admin UIs.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/modules", h.getStructure)
}

func (h *Handler) getStructure(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.GetStructure(r.Context())
	if err != nil {
		h.logger.Error("catalog structure", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": tree})
}
