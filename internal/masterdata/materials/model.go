package materials

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes raw from packing material catalogs.
type Kind string

const (
	KindRaw     Kind = "RM"
	KindPacking Kind = "PM"
)

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	return k == KindRaw || k == KindPacking
}

// Material is a raw or packing material catalog entry. Read-only input to
// BOM explosion; default vendor and tax attributes are fallbacks when a
// mapping carries no override.
type Material struct {
	ID              int64           `json:"id"`
	Kind            Kind            `json:"kind"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	UOM             string          `json:"uom"`
	DefaultVendorID int64           `json:"default_vendor_id"`
	HSNCode         string          `json:"hsn_code"`
	GSTRate         decimal.Decimal `json:"gst_rate"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
