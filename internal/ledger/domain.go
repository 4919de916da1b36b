package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/materials"
)

// BalanceEntry is one ledger row, keyed by (po, invoice, vendor, material).
// Re-posting the same key overwrites the row; distinct invoices accumulate as
// separate rows. The ledger records material inflow only: finished-goods
// dispatch never posts here.
type BalanceEntry struct {
	ID           int64           `json:"id"`
	POID         int64           `json:"po_id"`
	InvoiceID    int64           `json:"invoice_id"`
	VendorID     int64           `json:"vendor_id"`
	MaterialKind materials.Kind  `json:"material_kind"`
	MaterialID   int64           `json:"material_id"`
	OrderedQty   decimal.Decimal `json:"ordered_qty"`
	ReceivedQty  decimal.Decimal `json:"received_qty"`
	BalanceQty   decimal.Decimal `json:"balance_qty"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// NewEntry builds an entry with the derived balance. The balance is ordered
// minus received, never clamped: a negative value flags over-receipt at row
// granularity.
func NewEntry(poID, invoiceID, vendorID int64, kind materials.Kind, materialID int64, ordered, received decimal.Decimal) BalanceEntry {
	return BalanceEntry{
		POID:         poID,
		InvoiceID:    invoiceID,
		VendorID:     vendorID,
		MaterialKind: kind,
		MaterialID:   materialID,
		OrderedQty:   ordered,
		ReceivedQty:  received,
		BalanceQty:   ordered.Sub(received),
	}
}

// SummaryRow aggregates the ledger per (material, vendor).
type SummaryRow struct {
	MaterialKind  materials.Kind  `json:"material_kind"`
	MaterialID    int64           `json:"material_id"`
	VendorID      int64           `json:"vendor_id"`
	TotalOrdered  decimal.Decimal `json:"total_ordered"`
	TotalReceived decimal.Decimal `json:"total_received"`
	TotalBalance  decimal.Decimal `json:"total_balance"`
}

// Summary is the aggregate view plus the most recent rows for audit display.
type Summary struct {
	Totals []SummaryRow   `json:"totals"`
	Recent []BalanceEntry `json:"recent"`
}
