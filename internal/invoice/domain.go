package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/procurement"
)

// Status tracks the invoice lifecycle. PENDING invoices may be finalized to
// PROCESSED or cancelled; both are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
	StatusCancelled Status = "CANCELLED"
)

// Invoice is one vendor shipment against a purchase order. Its type always
// mirrors the target PO's type.
type Invoice struct {
	ID              int64              `json:"id"`
	Number          string             `json:"number"`
	POID            int64              `json:"po_id"`
	Type            procurement.POType `json:"type"`
	VendorID        int64              `json:"vendor_id"`
	Status          Status             `json:"status"`
	InvoiceDate     time.Time          `json:"invoice_date"`
	TotalShippedQty decimal.Decimal    `json:"total_shipped_qty"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	Note            string             `json:"note"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Line is one shipped item on an invoice.
type Line struct {
	ID         int64                   `json:"id"`
	InvoiceID  int64                   `json:"invoice_id"`
	Ref        procurement.MaterialRef `json:"ref"`
	ShippedQty decimal.Decimal         `json:"shipped_qty"`
	UnitPrice  decimal.Decimal         `json:"unit_price"`
	Amount     decimal.Decimal         `json:"amount"`
}
