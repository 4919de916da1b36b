package vendors

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmos-erp/pharmos-erp/internal/platform/httpx"
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// Handler exposes vendor master data over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers vendor routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/vendors", h.list)
	r.Get("/vendors/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	class := Class(r.URL.Query().Get("class"))
	if !class.Valid() {
		httpx.RespondError(w, shared.NewDomainError(shared.CodeValidation, "class must be one of RM, PM, FG"))
		return
	}
	items, err := h.service.ListByClass(r.Context(), class)
	if err != nil {
		h.logger.Error("list vendors", slog.String("class", string(class)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	v, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}
