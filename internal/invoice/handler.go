package invoice

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/observability"
	"github.com/pharmos-erp/pharmos-erp/internal/platform/httpx"
	"github.com/pharmos-erp/pharmos-erp/internal/procurement"
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, metrics: metrics}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.process)
	r.Get("/invoices/{id}", h.get)
	r.Post("/invoices/{id}/finalize", h.finalize)
	r.Post("/invoices/{id}/cancel", h.cancel)
	r.Get("/purchase-orders/{id}/invoices", h.listByPO)
	r.Post("/purchase-orders/{id}/cancel", h.cancelPO)
}

type linePayload struct {
	Ref        procurement.MaterialRef `json:"ref" validate:"required"`
	ShippedQty decimal.Decimal         `json:"shipped_qty"`
	UnitPrice  decimal.Decimal         `json:"unit_price"`
}

type processPayload struct {
	POID        int64         `json:"po_id" validate:"required"`
	Number      string        `json:"number" validate:"required"`
	InvoiceDate string        `json:"invoice_date"`
	ActorID     int64         `json:"actor_id"`
	Note        string        `json:"note"`
	Lines       []linePayload `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	var payload processPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var invoiceDate time.Time
	if payload.InvoiceDate != "" {
		parsed, err := time.Parse("2006-01-02", payload.InvoiceDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice_date must be YYYY-MM-DD")
			return
		}
		invoiceDate = parsed
	}
	input := ProcessInput{
		POID:           payload.POID,
		Number:         payload.Number,
		InvoiceDate:    invoiceDate,
		ActorID:        payload.ActorID,
		Note:           payload.Note,
		IdempotencyKey: r.Header.Get("X-Idempotency-Key"),
	}
	for _, line := range payload.Lines {
		input.Lines = append(input.Lines, LineInput{Ref: line.Ref, ShippedQty: line.ShippedQty, UnitPrice: line.UnitPrice})
	}
	result, err := h.service.ProcessInvoice(r.Context(), input)
	if err != nil {
		h.logger.Error("process invoice", slog.String("number", payload.Number), slog.Int64("po_id", payload.POID), slog.Any("error", err))
		if code := shared.CodeOf(err); code != "" {
			h.metrics.CountDomainError(string(code))
		}
		httpx.RespondError(w, err)
		return
	}
	h.metrics.CountInvoiceProcessed(string(result.POType), string(result.POStatus))
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	inv, lines, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoice": inv, "lines": lines})
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.FinalizeInvoice(r.Context(), id, actorID(r)); err != nil {
		h.logger.Error("finalize invoice", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": StatusProcessed})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.CancelInvoice(r.Context(), id, actorID(r)); err != nil {
		h.logger.Error("cancel invoice", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": StatusCancelled})
}

func (h *Handler) listByPO(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	invoices, err := h.service.ListByPO(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": invoices})
}

func (h *Handler) cancelPO(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.CancelPurchaseOrder(r.Context(), id, actorID(r)); err != nil {
		h.logger.Error("cancel purchase order", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": procurement.POStatusCancelled})
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
