package eopa

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks the approval lifecycle of an order.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// ApprovedOrder is the EOPA header that authorises purchase-order issuance.
type ApprovedOrder struct {
	ID        int64     `json:"id"`
	Number    string    `json:"number"`
	Status    Status    `json:"status"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderLine references a medicine and the quantity authorised for procurement.
type OrderLine struct {
	ID         int64           `json:"id"`
	OrderID    int64           `json:"order_id"`
	MedicineID int64           `json:"medicine_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
}
