package medicines

import (
	"time"
)

// Medicine is a finished-product catalog entry. ManufacturerVendorID is zero
// when no manufacturer mapping exists; FG purchase orders skip such products.
type Medicine struct {
	ID                   int64     `json:"id"`
	Code                 string    `json:"code"`
	Name                 string    `json:"name"`
	UOM                  string    `json:"uom"`
	ManufacturerVendorID int64     `json:"manufacturer_vendor_id"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
