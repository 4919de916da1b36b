package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/bom"
	"github.com/pharmos-erp/pharmos-erp/internal/eopa"
	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/materials"
	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/medicines"
	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/vendors"
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	HasGeneration(ctx context.Context, orderID int64) (bool, error)
	GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error)
	ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error)
}

// OrderPort exposes approved-order reads from the EOPA module.
type OrderPort interface {
	GetOrder(ctx context.Context, id int64) (eopa.ApprovedOrder, []eopa.OrderLine, error)
}

// ExplosionPort expands order lines into material requirements.
type ExplosionPort interface {
	ExplodeLines(ctx context.Context, lines []eopa.OrderLine, kind materials.Kind) ([]bom.Requirement, error)
}

// VendorPort exposes vendor-master reads.
type VendorPort interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]vendors.Vendor, error)
	ValidateClass(ctx context.Context, id int64, class vendors.Class) (vendors.Vendor, error)
}

// MedicinePort exposes medicine-master reads.
type MedicinePort interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]medicines.Medicine, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates purchase-order generation from approved orders.
type Service struct {
	repo      RepositoryPort
	orders    OrderPort
	explosion ExplosionPort
	vendors   VendorPort
	medicines MedicinePort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, orders OrderPort, explosion ExplosionPort, vendorPort VendorPort, medicinePort MedicinePort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		orders:    orders,
		explosion: explosion,
		vendors:   vendorPort,
		medicines: medicinePort,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// QtyOverride replaces the computed quantity for one order line and target PO
// type. Used when the approved order's unit differs from the procurement unit.
type QtyOverride struct {
	OrderLineID int64           `json:"order_line_id"`
	POType      POType          `json:"po_type"`
	Qty         decimal.Decimal `json:"qty"`
	Unit        string          `json:"unit"`
}

// GenerateInput describes one generation request.
type GenerateInput struct {
	OrderID   int64
	ActorID   int64
	Note      string
	Overrides []QtyOverride
}

// GeneratedPO summarises one created purchase order.
type GeneratedPO struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	Type       POType          `json:"type"`
	VendorID   int64           `json:"vendor_id"`
	VendorName string          `json:"vendor_name"`
	TotalQty   decimal.Decimal `json:"total_qty"`
	LineCount  int             `json:"line_count"`
}

// GenerateResult reports everything one generation run produced.
type GenerateResult struct {
	OrderID          int64         `json:"order_id"`
	OrderNumber      string        `json:"order_number"`
	FiscalYear       string        `json:"fiscal_year"`
	TotalPOs         int           `json:"total_pos"`
	PurchaseOrders   []GeneratedPO `json:"purchase_orders"`
	SkippedMedicines []int64       `json:"skipped_medicines,omitempty"`
}

type overrideKey struct {
	lineID int64
	poType POType
}

// poDraft is a PO still in memory, before numbering and persistence.
type poDraft struct {
	poType   POType
	vendorID int64
	lines    []POLine
}

// GeneratePurchaseOrders explodes an approved order into per-vendor purchase
// orders across all three categories in one transaction. An order can be
// generated exactly once; a second call fails with DUPLICATE_PO.
func (s *Service) GeneratePurchaseOrders(ctx context.Context, input GenerateInput) (GenerateResult, error) {
	order, lines, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		return GenerateResult{}, err
	}
	if order.Status != eopa.StatusApproved {
		return GenerateResult{}, shared.NewDomainError(shared.CodeValidation, "order %s is %s, only APPROVED orders generate purchase orders", order.Number, order.Status)
	}
	if len(lines) == 0 {
		return GenerateResult{}, shared.NewDomainError(shared.CodeValidation, "order %s has no lines", order.Number)
	}
	exists, err := s.repo.HasGeneration(ctx, order.ID)
	if err != nil {
		return GenerateResult{}, err
	}
	if exists {
		return GenerateResult{}, shared.NewDomainError(shared.CodeDuplicatePO, "purchase orders already generated for order %s", order.Number)
	}

	overrides := make(map[overrideKey]QtyOverride, len(input.Overrides))
	for _, ov := range input.Overrides {
		if !ov.POType.Valid() {
			return GenerateResult{}, shared.NewDomainError(shared.CodeValidation, "override for line %d has unknown po type %q", ov.OrderLineID, ov.POType)
		}
		if ov.Qty.IsNegative() {
			return GenerateResult{}, shared.NewDomainError(shared.CodeValidation, "override for line %d has negative quantity", ov.OrderLineID)
		}
		overrides[overrideKey{lineID: ov.OrderLineID, poType: ov.POType}] = ov
	}

	fgDrafts, skipped, fgVendorIDs, err := s.buildFGDrafts(ctx, order, lines, overrides)
	if err != nil {
		return GenerateResult{}, err
	}
	rmReqs, err := s.explodeFor(ctx, lines, overrides, POTypeRawMaterial, materials.KindRaw)
	if err != nil {
		return GenerateResult{}, err
	}
	pmReqs, err := s.explodeFor(ctx, lines, overrides, POTypePackingMaterial, materials.KindPacking)
	if err != nil {
		return GenerateResult{}, err
	}

	directory, err := s.vendorDirectory(ctx, fgVendorIDs, rmReqs, pmReqs)
	if err != nil {
		return GenerateResult{}, err
	}

	drafts := fgDrafts
	drafts = append(drafts, groupDrafts(POTypeRawMaterial, bom.Consolidate(rmReqs, directory))...)
	drafts = append(drafts, groupDrafts(POTypePackingMaterial, bom.Consolidate(pmReqs, directory))...)

	// drafts that lost every line to overrides are dropped, never persisted
	kept := drafts[:0]
	for _, d := range drafts {
		if len(d.lines) > 0 {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return GenerateResult{}, shared.NewDomainError(shared.CodeValidation, "order %s yields no purchase orders", order.Number)
	}

	// a vendor class must match the PO category it receives: an RM order
	// placed on a packing vendor is a master-data fault, not a shipment
	for _, draft := range kept {
		if _, err := s.vendors.ValidateClass(ctx, draft.vendorID, vendors.Class(draft.poType)); err != nil {
			return GenerateResult{}, err
		}
	}

	fiscalYear := FiscalYear(s.now())
	result := GenerateResult{OrderID: order.ID, OrderNumber: order.Number, FiscalYear: fiscalYear, SkippedMedicines: skipped}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.MarkGenerated(ctx, order.ID, input.ActorID); err != nil {
			return err
		}
		for _, draft := range kept {
			seq, err := tx.NextSequence(ctx, fiscalYear, draft.poType)
			if err != nil {
				return err
			}
			total := decimal.Zero
			for _, line := range draft.lines {
				total = total.Add(line.Qty)
			}
			po := PurchaseOrder{
				Number:            FormatPONumber(fiscalYear, draft.poType, seq),
				Type:              draft.poType,
				FiscalYear:        fiscalYear,
				OrderID:           order.ID,
				VendorID:          draft.vendorID,
				Status:            POStatusOpen,
				TotalOrderedQty:   total,
				TotalFulfilledQty: decimal.Zero,
				Note:              input.Note,
			}
			poID, err := tx.CreatePO(ctx, po)
			if err != nil {
				return err
			}
			for _, line := range draft.lines {
				line.POID = poID
				if err := tx.InsertPOLine(ctx, line); err != nil {
					return err
				}
			}
			result.PurchaseOrders = append(result.PurchaseOrders, GeneratedPO{
				ID:         poID,
				Number:     po.Number,
				Type:       po.Type,
				VendorID:   po.VendorID,
				VendorName: directory[po.VendorID].Name,
				TotalQty:   total,
				LineCount:  len(draft.lines),
			})
		}
		return nil
	})
	if err != nil {
		return GenerateResult{}, err
	}
	result.TotalPOs = len(result.PurchaseOrders)
	s.recordAudit(ctx, "PO_GENERATE", order.ID, input.ActorID, map[string]any{
		"order_number": order.Number,
		"total_pos":    result.TotalPOs,
		"fiscal_year":  fiscalYear,
	})
	return result, nil
}

// buildFGDrafts creates one finished-goods draft per manufacturer vendor.
// Medicines without a manufacturer mapping are skipped with a warning rather
// than failing the run; material categories still need their orders placed.
func (s *Service) buildFGDrafts(ctx context.Context, order eopa.ApprovedOrder, lines []eopa.OrderLine, overrides map[overrideKey]QtyOverride) ([]poDraft, []int64, []int64, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.MedicineID)
	}
	catalog, err := s.medicines.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, nil, err
	}

	byVendor := make(map[int64][]POLine)
	var skipped []int64
	for _, line := range lines {
		med, ok := catalog[line.MedicineID]
		if !ok {
			return nil, nil, nil, shared.NewDomainError(shared.CodeNotFound, "medicine %d on order %s not found", line.MedicineID, order.Number)
		}
		qty, unit := line.Quantity, line.Unit
		if ov, ok := overrides[overrideKey{lineID: line.ID, poType: POTypeFinishedGoods}]; ok {
			qty = ov.Qty
			if ov.Unit != "" {
				unit = ov.Unit
			}
		}
		if !qty.IsPositive() {
			continue
		}
		if med.ManufacturerVendorID == 0 {
			s.logger.Warn("skipping finished-goods line, no manufacturer vendor",
				slog.String("order", order.Number), slog.Int64("medicine_id", med.ID), slog.String("medicine", med.Code))
			skipped = append(skipped, med.ID)
			continue
		}
		if unit == "" {
			unit = med.UOM
		}
		byVendor[med.ManufacturerVendorID] = append(byVendor[med.ManufacturerVendorID], POLine{
			Ref:         MedicineRef(med.ID),
			Description: med.Name,
			Qty:         qty,
			UOM:         unit,
		})
	}

	vendorIDs := make([]int64, 0, len(byVendor))
	for id := range byVendor {
		vendorIDs = append(vendorIDs, id)
	}
	sort.Slice(vendorIDs, func(i, j int) bool { return vendorIDs[i] < vendorIDs[j] })

	drafts := make([]poDraft, 0, len(vendorIDs))
	for _, vendorID := range vendorIDs {
		vendorLines := byVendor[vendorID]
		sort.Slice(vendorLines, func(i, j int) bool { return vendorLines[i].Ref.ID() < vendorLines[j].Ref.ID() })
		drafts = append(drafts, poDraft{poType: POTypeFinishedGoods, vendorID: vendorID, lines: vendorLines})
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i] < skipped[j] })
	return drafts, skipped, vendorIDs, nil
}

// explodeFor applies per-line quantity overrides for one category and runs
// the BOM explosion on the adjusted lines. Lines overridden to zero drop out
// before explosion.
func (s *Service) explodeFor(ctx context.Context, lines []eopa.OrderLine, overrides map[overrideKey]QtyOverride, poType POType, kind materials.Kind) ([]bom.Requirement, error) {
	adjusted := make([]eopa.OrderLine, 0, len(lines))
	for _, line := range lines {
		if ov, ok := overrides[overrideKey{lineID: line.ID, poType: poType}]; ok {
			line.Quantity = ov.Qty
			if ov.Unit != "" {
				line.Unit = ov.Unit
			}
		}
		if !line.Quantity.IsPositive() {
			continue
		}
		adjusted = append(adjusted, line)
	}
	if len(adjusted) == 0 {
		return nil, nil
	}
	return s.explosion.ExplodeLines(ctx, adjusted, kind)
}

func (s *Service) vendorDirectory(ctx context.Context, fgVendorIDs []int64, reqSets ...[]bom.Requirement) (map[int64]vendors.Vendor, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, id := range fgVendorIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, reqs := range reqSets {
		for _, req := range reqs {
			if _, ok := seen[req.VendorID]; !ok {
				seen[req.VendorID] = struct{}{}
				ids = append(ids, req.VendorID)
			}
		}
	}
	if len(ids) == 0 {
		return map[int64]vendors.Vendor{}, nil
	}
	return s.vendors.GetMany(ctx, ids)
}

// groupDrafts converts consolidated vendor groups into drafts of one category.
func groupDrafts(poType POType, groups []bom.VendorGroup) []poDraft {
	drafts := make([]poDraft, 0, len(groups))
	for _, group := range groups {
		draft := poDraft{poType: poType, vendorID: group.VendorID}
		for _, line := range group.Materials {
			ref := RawMaterialRef(line.MaterialID)
			if line.Kind == materials.KindPacking {
				ref = PackingMaterialRef(line.MaterialID)
			}
			draft.lines = append(draft.lines, POLine{
				Ref:            ref,
				Qty:            line.Qty,
				UOM:            line.UOM,
				HSNCode:        line.HSNCode,
				GSTRate:        line.GSTRate,
				Language:       line.Language,
				ArtworkVersion: line.ArtworkVersion,
				Notes:          line.Notes,
				IsCritical:     line.IsCritical,
			})
		}
		drafts = append(drafts, draft)
	}
	return drafts
}

// GetPO returns a purchase order with lines.
func (s *Service) GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	return s.repo.GetPO(ctx, id)
}

// ListPOs returns a filtered page of purchase orders.
func (s *Service) ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListPOs(ctx, limit, offset, filters)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID, actorID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "procurement", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
