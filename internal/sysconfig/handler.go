package sysconfig

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmos-erp/pharmos-erp/internal/platform/httpx"
)

// Handler manages sysconfig endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers sysconfig routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/settings", h.list)
	r.Get("/settings/{key}", h.get)
	r.Put("/settings/{key}", h.set)
	r.Delete("/settings/{key}", h.remove)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": settings})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	setting, err := h.service.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, setting)
}

type setPayload struct {
	Value string `json:"value" validate:"required"`
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	var payload setPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key := chi.URLParam(r, "key")
	if err := h.service.Set(r.Context(), key, payload.Value); err != nil {
		h.logger.Error("set setting", slog.String("key", key), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"key": key, "value": payload.Value})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.service.Delete(r.Context(), key); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
