package procurement

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/observability"
	"github.com/pharmos-erp/pharmos-erp/internal/platform/httpx"
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// Handler manages procurement endpoints.
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

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchase-orders/generate", h.generate)
	r.Get("/purchase-orders", h.list)
	r.Get("/purchase-orders/{id}", h.get)
}

type overridePayload struct {
	OrderLineID int64           `json:"order_line_id" validate:"required"`
	POType      string          `json:"po_type" validate:"required,oneof=RM PM FG"`
	Qty         decimal.Decimal `json:"qty"`
	Unit        string          `json:"unit"`
}

type generatePayload struct {
	OrderID   int64             `json:"order_id" validate:"required"`
	ActorID   int64             `json:"actor_id"`
	Note      string            `json:"note"`
	Overrides []overridePayload `json:"overrides" validate:"dive"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var payload generatePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := GenerateInput{OrderID: payload.OrderID, ActorID: payload.ActorID, Note: payload.Note}
	for _, ov := range payload.Overrides {
		input.Overrides = append(input.Overrides, QtyOverride{
			OrderLineID: ov.OrderLineID,
			POType:      POType(ov.POType),
			Qty:         ov.Qty,
			Unit:        ov.Unit,
		})
	}
	result, err := h.service.GeneratePurchaseOrders(r.Context(), input)
	if err != nil {
		h.logger.Error("generate purchase orders", slog.Int64("order_id", payload.OrderID), slog.Any("error", err))
		if code := shared.CodeOf(err); code != "" {
			h.metrics.CountDomainError(string(code))
		}
		httpx.RespondError(w, err)
		return
	}
	for _, po := range result.PurchaseOrders {
		h.metrics.CountPOGenerated(string(po.Type))
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	vendorID, _ := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	orderID, _ := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64)
	filters := ListFilters{
		Status:   r.URL.Query().Get("status"),
		Type:     r.URL.Query().Get("type"),
		VendorID: vendorID,
		OrderID:  orderID,
		Search:   r.URL.Query().Get("search"),
	}
	items, total, err := h.service.ListPOs(r.Context(), limit, offset, filters)
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	page := 1
	if limit > 0 {
		page = offset/limit + 1
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": shared.NewPagination(page, limit, total)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	po, lines, err := h.service.GetPO(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_order": po, "lines": lines})
}
