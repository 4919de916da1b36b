package bom

import (
	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/materials"
)

// Mapping relates a medicine to one material required to produce it.
// VendorID, HSNCode and GSTRate are per-mapping overrides; material-master
// defaults apply when they are unset.
type Mapping struct {
	ID             int64               `json:"id"`
	MedicineID     int64               `json:"medicine_id"`
	Kind           materials.Kind      `json:"kind"`
	MaterialID     int64               `json:"material_id"`
	QtyPerUnit     decimal.Decimal     `json:"qty_per_unit"`
	UOM            string              `json:"uom"`
	WastagePct     decimal.Decimal     `json:"wastage_pct"`
	VendorID       int64               `json:"vendor_id"`
	HSNCode        string              `json:"hsn_code"`
	GSTRate        decimal.NullDecimal `json:"gst_rate"`
	Language       string              `json:"language"`
	ArtworkVersion string              `json:"artwork_version"`
	Notes          string              `json:"notes"`
	IsCritical     bool                `json:"is_critical"`
	IsActive       bool                `json:"is_active"`
}

// Requirement is one exploded material need, one per (order line x mapping),
// with vendor and tax attributes already resolved. Unconsolidated.
type Requirement struct {
	MaterialID     int64           `json:"material_id"`
	Kind           materials.Kind  `json:"kind"`
	VendorID       int64           `json:"vendor_id"`
	Qty            decimal.Decimal `json:"qty"`
	UOM            string          `json:"uom"`
	HSNCode        string          `json:"hsn_code"`
	GSTRate        decimal.Decimal `json:"gst_rate"`
	MedicineID     int64           `json:"medicine_id"`
	Language       string          `json:"language"`
	ArtworkVersion string          `json:"artwork_version"`
	Notes          string          `json:"notes"`
	IsCritical     bool            `json:"is_critical"`
}
