package bom

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/eopa"
	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/materials"
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// OrderPort exposes approved-order reads from the EOPA module.
type OrderPort interface {
	GetOrder(ctx context.Context, id int64) (eopa.ApprovedOrder, []eopa.OrderLine, error)
}

// MappingPort exposes BOM mapping reads.
type MappingPort interface {
	ListActive(ctx context.Context, medicineID int64, kind materials.Kind) ([]Mapping, error)
}

// MaterialPort exposes material-master reads.
type MaterialPort interface {
	GetMany(ctx context.Context, kind materials.Kind, ids []int64) (map[int64]materials.Material, error)
}

// Engine expands an approved order's lines into material requirements.
type Engine struct {
	orders    OrderPort
	mappings  MappingPort
	materials MaterialPort
}

// NewEngine constructs the explosion engine.
func NewEngine(orders OrderPort, mappings MappingPort, materials MaterialPort) *Engine {
	return &Engine{orders: orders, mappings: mappings, materials: materials}
}

var hundred = decimal.NewFromInt(100)

// RequiredQty computes order qty x per-unit qty x (1 + wastage/100).
// All arithmetic stays in fixed-point decimals to avoid drift across lines.
func RequiredQty(orderQty, qtyPerUnit, wastagePct decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(wastagePct.Div(hundred))
	return orderQty.Mul(qtyPerUnit).Mul(factor)
}

// Explode expands one approved order into flat material requirements of the
// given kind, one per (order line x active mapping). A medicine without any
// active mapping fails the whole call; an incomplete procurement plan is
// worse than a loud failure.
func (e *Engine) Explode(ctx context.Context, orderID int64, kind materials.Kind) ([]Requirement, error) {
	_, lines, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return e.ExplodeLines(ctx, lines, kind)
}

// ExplodeLines explodes an explicit set of order lines. Callers that adjust
// line quantities (procurement unit overrides) use this entry point.
func (e *Engine) ExplodeLines(ctx context.Context, lines []eopa.OrderLine, kind materials.Kind) ([]Requirement, error) {
	if !kind.Valid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "unknown material kind %q", kind)
	}

	type lineMappings struct {
		line     eopa.OrderLine
		mappings []Mapping
	}
	perLine := make([]lineMappings, 0, len(lines))
	materialIDs := make(map[int64]struct{})
	for _, line := range lines {
		mappings, err := e.mappings.ListActive(ctx, line.MedicineID, kind)
		if err != nil {
			return nil, err
		}
		if len(mappings) == 0 {
			return nil, shared.NewDomainError(shared.CodeBOMNotDefined, "no active %s BOM mapping for medicine %d", kind, line.MedicineID)
		}
		for _, m := range mappings {
			materialIDs[m.MaterialID] = struct{}{}
		}
		perLine = append(perLine, lineMappings{line: line, mappings: mappings})
	}

	ids := make([]int64, 0, len(materialIDs))
	for id := range materialIDs {
		ids = append(ids, id)
	}
	masters, err := e.materials.GetMany(ctx, kind, ids)
	if err != nil {
		return nil, err
	}

	var out []Requirement
	for _, lm := range perLine {
		for _, m := range lm.mappings {
			master, ok := masters[m.MaterialID]
			if !ok {
				return nil, shared.NewDomainError(shared.CodeNotFound, "material %s/%d referenced by mapping %d not found", kind, m.MaterialID, m.ID)
			}
			req, err := resolve(lm.line, m, master)
			if err != nil {
				return nil, err
			}
			out = append(out, req)
		}
	}
	return out, nil
}

// resolve applies override-then-default priority for vendor, HSN and GST.
func resolve(line eopa.OrderLine, m Mapping, master materials.Material) (Requirement, error) {
	vendorID := m.VendorID
	if vendorID == 0 {
		vendorID = master.DefaultVendorID
	}
	if vendorID == 0 {
		return Requirement{}, shared.NewDomainError(shared.CodeVendorNotMapped, "no vendor for material %s (mapping %d)", master.Code, m.ID)
	}
	hsn := m.HSNCode
	if hsn == "" {
		hsn = master.HSNCode
	}
	gst := master.GSTRate
	if m.GSTRate.Valid {
		gst = m.GSTRate.Decimal
	}
	uom := m.UOM
	if uom == "" {
		uom = master.UOM
	}
	return Requirement{
		MaterialID:     m.MaterialID,
		Kind:           m.Kind,
		VendorID:       vendorID,
		Qty:            RequiredQty(line.Quantity, m.QtyPerUnit, m.WastagePct),
		UOM:            uom,
		HSNCode:        hsn,
		GSTRate:        gst,
		MedicineID:     line.MedicineID,
		Language:       m.Language,
		ArtworkVersion: m.ArtworkVersion,
		Notes:          m.Notes,
		IsCritical:     m.IsCritical,
	}, nil
}
