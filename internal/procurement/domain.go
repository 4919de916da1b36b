package procurement

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// POType routes a purchase order to one procurement category.
type POType string

const (
	POTypeRawMaterial     POType = "RM"
	POTypePackingMaterial POType = "PM"
	POTypeFinishedGoods   POType = "FG"
)

// Valid reports whether the type is known.
func (t POType) Valid() bool {
	switch t {
	case POTypeRawMaterial, POTypePackingMaterial, POTypeFinishedGoods:
		return true
	}
	return false
}

// POStatus tracks the fulfillment lifecycle of a purchase order.
type POStatus string

const (
	POStatusOpen      POStatus = "OPEN"
	POStatusPartial   POStatus = "PARTIAL"
	POStatusClosed    POStatus = "CLOSED"
	POStatusCancelled POStatus = "CANCELLED"
)

// StatusFor derives the fulfillment status from aggregate quantities.
// Cancellation is an explicit action and never derived here.
func StatusFor(ordered, fulfilled decimal.Decimal) POStatus {
	switch {
	case fulfilled.LessThanOrEqual(decimal.Zero):
		return POStatusOpen
	case fulfilled.GreaterThanOrEqual(ordered):
		return POStatusClosed
	default:
		return POStatusPartial
	}
}

// RefKind discriminates what catalog a PO line points at.
type RefKind string

const (
	RefMedicine        RefKind = "MEDICINE"
	RefRawMaterial     RefKind = "RAW_MATERIAL"
	RefPackingMaterial RefKind = "PACKING_MATERIAL"
)

// MaterialRef points at exactly one catalog entry: a medicine, a raw material
// or a packing material. The fields are unexported so a ref can only be built
// through a constructor; two kinds at once cannot be represented.
type MaterialRef struct {
	kind RefKind
	id   int64
}

// MedicineRef builds a finished-goods reference.
func MedicineRef(id int64) MaterialRef { return MaterialRef{kind: RefMedicine, id: id} }

// RawMaterialRef builds a raw-material reference.
func RawMaterialRef(id int64) MaterialRef { return MaterialRef{kind: RefRawMaterial, id: id} }

// PackingMaterialRef builds a packing-material reference.
func PackingMaterialRef(id int64) MaterialRef { return MaterialRef{kind: RefPackingMaterial, id: id} }

// Kind returns the catalog the ref points at.
func (r MaterialRef) Kind() RefKind { return r.kind }

// ID returns the catalog entry id.
func (r MaterialRef) ID() int64 { return r.id }

// IsZero reports whether the ref was never set.
func (r MaterialRef) IsZero() bool { return r.kind == "" }

type materialRefJSON struct {
	Kind RefKind `json:"kind"`
	ID   int64   `json:"id"`
}

// MarshalJSON encodes the ref as {"kind":...,"id":...}.
func (r MaterialRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(materialRefJSON{Kind: r.kind, ID: r.id})
}

// UnmarshalJSON decodes a ref, rejecting unknown kinds.
func (r *MaterialRef) UnmarshalJSON(data []byte) error {
	var raw materialRefJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case RefMedicine, RefRawMaterial, RefPackingMaterial:
		r.kind, r.id = raw.Kind, raw.ID
		return nil
	}
	return shared.NewDomainError(shared.CodeValidation, "unknown material ref kind %q", raw.Kind)
}

// PurchaseOrder is one order issued to a single vendor, generated from an
// approved order. TotalOrderedQty is fixed at creation; TotalFulfilledQty is
// recomputed on every fulfillment and the status derives from the pair.
// Quantities only, no pricing lives on this entity.
type PurchaseOrder struct {
	ID                int64           `json:"id"`
	Number            string          `json:"number"`
	Type              POType          `json:"type"`
	FiscalYear        string          `json:"fiscal_year"`
	OrderID           int64           `json:"order_id"`
	VendorID          int64           `json:"vendor_id"`
	Status            POStatus        `json:"status"`
	TotalOrderedQty   decimal.Decimal `json:"total_ordered_qty"`
	TotalFulfilledQty decimal.Decimal `json:"total_fulfilled_qty"`
	Note              string          `json:"note"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// POLine is one ordered item. TolerancePct is carried from master data for
// print and reporting only; fulfillment checks compare against Qty alone.
type POLine struct {
	ID             int64           `json:"id"`
	POID           int64           `json:"po_id"`
	Ref            MaterialRef     `json:"ref"`
	Description    string          `json:"description"`
	Qty            decimal.Decimal `json:"qty"`
	UOM            string          `json:"uom"`
	FulfilledQty   decimal.Decimal `json:"fulfilled_qty"`
	HSNCode        string          `json:"hsn_code"`
	GSTRate        decimal.Decimal `json:"gst_rate"`
	Language       string          `json:"language"`
	ArtworkVersion string          `json:"artwork_version"`
	Notes          string          `json:"notes"`
	IsCritical     bool            `json:"is_critical"`
	TolerancePct   decimal.Decimal `json:"tolerance_pct"`
}
