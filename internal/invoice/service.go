package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/ledger"
	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/materials"
	"github.com/pharmos-erp/pharmos-erp/internal/procurement"
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, []Line, error)
	ListByPO(ctx context.Context, poID int64) ([]Invoice, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards retried invoice submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service runs the invoice fulfillment state machine.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	idem   IdempotencyPort
	logger *slog.Logger
}

// NewService constructs the invoice service. idem may be nil when callers
// do not supply idempotency keys.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idem: idem, logger: logger}
}

// LineInput is one shipped item in a processing request.
type LineInput struct {
	Ref        procurement.MaterialRef
	ShippedQty decimal.Decimal
	UnitPrice  decimal.Decimal
}

// ProcessInput describes one invoice to process against a purchase order.
type ProcessInput struct {
	POID           int64
	Number         string
	InvoiceDate    time.Time
	ActorID        int64
	Note           string
	IdempotencyKey string
	Lines          []LineInput
}

// ProcessResult reports the outcome of one processed invoice.
type ProcessResult struct {
	InvoiceID       int64                `json:"invoice_id"`
	InvoiceNumber   string               `json:"invoice_number"`
	PONumber        string               `json:"po_number"`
	POType          procurement.POType   `json:"po_type"`
	POStatus        procurement.POStatus `json:"po_status"`
	TotalShippedQty decimal.Decimal      `json:"total_shipped_qty"`
	TotalAmount     decimal.Decimal      `json:"total_amount"`
	LineCount       int                  `json:"line_count"`
}

// ProcessInvoice applies one shipment to a purchase order atomically: lock
// the PO, check every line against remaining capacity, update fulfillment,
// recompute PO status, insert the invoice as PENDING and post ledger entries
// for material categories. Any line failing aborts the whole invoice.
func (s *Service) ProcessInvoice(ctx context.Context, input ProcessInput) (ProcessResult, error) {
	if input.Number == "" {
		return ProcessResult{}, shared.NewDomainError(shared.CodeValidation, "invoice number required")
	}
	if len(input.Lines) == 0 {
		return ProcessResult{}, shared.NewDomainError(shared.CodeValidation, "invoice requires at least one line")
	}
	for _, line := range input.Lines {
		if line.Ref.IsZero() {
			return ProcessResult{}, shared.NewDomainError(shared.CodeValidation, "invoice line requires a material reference")
		}
		if !line.ShippedQty.IsPositive() {
			return ProcessResult{}, shared.NewDomainError(shared.CodeValidation, "invoice line requires a positive shipped quantity")
		}
		if line.UnitPrice.IsNegative() {
			return ProcessResult{}, shared.NewDomainError(shared.CodeValidation, "invoice line has a negative unit price")
		}
	}
	if input.InvoiceDate.IsZero() {
		input.InvoiceDate = time.Now()
	}
	if input.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "invoice"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return ProcessResult{}, shared.NewDomainError(shared.CodeDuplicateInvoice, "request %s already processed", input.IdempotencyKey)
			}
			return ProcessResult{}, err
		}
	}

	var result ProcessResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, poLines, err := tx.GetPOForUpdate(ctx, input.POID)
		if err != nil {
			return err
		}
		switch po.Status {
		case procurement.POStatusClosed:
			return shared.NewDomainError(shared.CodePOClosed, "purchase order %s is closed", po.Number)
		case procurement.POStatusCancelled:
			return shared.NewDomainError(shared.CodePOCancelled, "purchase order %s is cancelled", po.Number)
		}

		exists, err := tx.InvoiceNumberExists(ctx, input.Number)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewDomainError(shared.CodeDuplicateInvoice, "invoice number %s already exists", input.Number)
		}

		byRef := make(map[procurement.MaterialRef]*procurement.POLine, len(poLines))
		for i := range poLines {
			byRef[poLines[i].Ref] = &poLines[i]
		}

		// invoice lines may repeat a material; postings collapse them to one
		// per PO line so a ledger row carries the invoice's full receipt
		totalShipped, totalAmount := decimal.Zero, decimal.Zero
		type posting struct {
			poLine *procurement.POLine
			qty    decimal.Decimal
		}
		postings := make([]posting, 0, len(input.Lines))
		postingIdx := make(map[int64]int, len(input.Lines))
		for _, line := range input.Lines {
			poLine, ok := byRef[line.Ref]
			if !ok {
				return shared.NewDomainError(shared.CodeMaterialNotInPO, "%s %d is not on purchase order %s", line.Ref.Kind(), line.Ref.ID(), po.Number)
			}
			newFulfilled := poLine.FulfilledQty.Add(line.ShippedQty)
			if newFulfilled.GreaterThan(poLine.Qty) {
				return shared.NewDomainError(shared.CodeOverShipped, "%s %d: shipping %s exceeds ordered %s (already fulfilled %s) on %s",
					line.Ref.Kind(), line.Ref.ID(), line.ShippedQty, poLine.Qty, poLine.FulfilledQty, po.Number)
			}
			poLine.FulfilledQty = newFulfilled
			if i, ok := postingIdx[poLine.ID]; ok {
				postings[i].qty = postings[i].qty.Add(line.ShippedQty)
			} else {
				postingIdx[poLine.ID] = len(postings)
				postings = append(postings, posting{poLine: poLine, qty: line.ShippedQty})
			}
			totalShipped = totalShipped.Add(line.ShippedQty)
			totalAmount = totalAmount.Add(line.ShippedQty.Mul(line.UnitPrice))
		}

		for _, p := range postings {
			if err := tx.UpdatePOLineFulfilled(ctx, p.poLine.ID, p.poLine.FulfilledQty); err != nil {
				return err
			}
		}

		totalFulfilled := decimal.Zero
		for _, poLine := range poLines {
			totalFulfilled = totalFulfilled.Add(poLine.FulfilledQty)
		}
		newStatus := procurement.StatusFor(po.TotalOrderedQty, totalFulfilled)
		if err := tx.UpdatePOFulfillment(ctx, po.ID, totalFulfilled, newStatus); err != nil {
			return err
		}

		inv := Invoice{
			Number:          input.Number,
			POID:            po.ID,
			Type:            po.Type,
			VendorID:        po.VendorID,
			Status:          StatusPending,
			InvoiceDate:     input.InvoiceDate,
			TotalShippedQty: totalShipped,
			TotalAmount:     totalAmount,
			Note:            input.Note,
		}
		invoiceID, err := tx.CreateInvoice(ctx, inv)
		if err != nil {
			return err
		}
		for _, line := range input.Lines {
			if err := tx.InsertLine(ctx, Line{
				InvoiceID:  invoiceID,
				Ref:        line.Ref,
				ShippedQty: line.ShippedQty,
				UnitPrice:  line.UnitPrice,
				Amount:     line.ShippedQty.Mul(line.UnitPrice),
			}); err != nil {
				return err
			}
		}

		// material categories feed the balance ledger; finished-goods
		// dispatch does not
		if kind, ok := ledgerKind(po.Type); ok {
			for _, p := range postings {
				entry := ledger.NewEntry(po.ID, invoiceID, po.VendorID, kind, p.poLine.Ref.ID(), p.poLine.Qty, p.qty)
				if err := tx.PostBalance(ctx, entry); err != nil {
					return err
				}
			}
		}

		result = ProcessResult{
			InvoiceID:       invoiceID,
			InvoiceNumber:   inv.Number,
			PONumber:        po.Number,
			POType:          po.Type,
			POStatus:        newStatus,
			TotalShippedQty: totalShipped,
			TotalAmount:     totalAmount,
			LineCount:       len(input.Lines),
		}
		return nil
	})
	if err != nil {
		// release the key so a corrected resubmission is not blocked
		if input.IdempotencyKey != "" && s.idem != nil {
			if delErr := s.idem.Delete(ctx, input.IdempotencyKey); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", input.IdempotencyKey), slog.Any("error", delErr))
			}
		}
		return ProcessResult{}, err
	}
	s.recordAudit(ctx, "INVOICE_PROCESS", result.InvoiceID, input.ActorID, map[string]any{
		"number":    result.InvoiceNumber,
		"po_number": result.PONumber,
		"po_status": result.POStatus,
	})
	return result, nil
}

// FinalizeInvoice moves a PENDING invoice to PROCESSED. No edits afterwards.
func (s *Service) FinalizeInvoice(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, _, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusPending {
			return shared.NewDomainError(shared.CodeValidation, "invoice %s is %s, only PENDING invoices can be finalized", inv.Number, inv.Status)
		}
		return tx.UpdateInvoiceStatus(ctx, id, StatusProcessed)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "INVOICE_FINALIZE", id, actorID, nil)
	return nil
}

// CancelInvoice reverses a PENDING invoice: fulfilled quantities roll back,
// the PO status is recomputed and the invoice's ledger rows are removed.
// This is the one flow where a PO status may move backwards.
func (s *Service) CancelInvoice(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, lines, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusPending {
			return shared.NewDomainError(shared.CodeValidation, "invoice %s is %s, only PENDING invoices can be cancelled", inv.Number, inv.Status)
		}
		po, poLines, err := tx.GetPOForUpdate(ctx, inv.POID)
		if err != nil {
			return err
		}
		byRef := make(map[procurement.MaterialRef]*procurement.POLine, len(poLines))
		for i := range poLines {
			byRef[poLines[i].Ref] = &poLines[i]
		}
		for _, line := range lines {
			poLine, ok := byRef[line.Ref]
			if !ok {
				return fmt.Errorf("invoice %s line %d references %s %d missing from purchase order %s", inv.Number, line.ID, line.Ref.Kind(), line.Ref.ID(), po.Number)
			}
			poLine.FulfilledQty = poLine.FulfilledQty.Sub(line.ShippedQty)
			if err := tx.UpdatePOLineFulfilled(ctx, poLine.ID, poLine.FulfilledQty); err != nil {
				return err
			}
		}
		totalFulfilled := decimal.Zero
		for _, poLine := range poLines {
			totalFulfilled = totalFulfilled.Add(poLine.FulfilledQty)
		}
		status := po.Status
		if po.Status != procurement.POStatusCancelled {
			status = procurement.StatusFor(po.TotalOrderedQty, totalFulfilled)
		}
		if err := tx.UpdatePOFulfillment(ctx, po.ID, totalFulfilled, status); err != nil {
			return err
		}
		if err := tx.DeleteBalances(ctx, inv.ID); err != nil {
			return err
		}
		return tx.UpdateInvoiceStatus(ctx, id, StatusCancelled)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "INVOICE_CANCEL", id, actorID, nil)
	return nil
}

// CancelPurchaseOrder terminates an OPEN or PARTIAL purchase order. CLOSED
// orders cannot be cancelled.
func (s *Service) CancelPurchaseOrder(ctx context.Context, poID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, _, err := tx.GetPOForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		switch po.Status {
		case procurement.POStatusClosed:
			return shared.NewDomainError(shared.CodePOClosed, "purchase order %s is closed and cannot be cancelled", po.Number)
		case procurement.POStatusCancelled:
			return shared.NewDomainError(shared.CodePOCancelled, "purchase order %s is already cancelled", po.Number)
		}
		return tx.UpdatePOStatus(ctx, poID, procurement.POStatusCancelled)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PO_CANCEL", poID, actorID, nil)
	return nil
}

// GetInvoice returns the invoice header and lines.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, []Line, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListByPO returns invoices raised against one purchase order.
func (s *Service) ListByPO(ctx context.Context, poID int64) ([]Invoice, error) {
	return s.repo.ListByPO(ctx, poID)
}

// ledgerKind maps a PO type to its ledger material kind. FG has none.
func ledgerKind(poType procurement.POType) (materials.Kind, bool) {
	switch poType {
	case procurement.POTypeRawMaterial:
		return materials.KindRaw, true
	case procurement.POTypePackingMaterial:
		return materials.KindPacking, true
	}
	return "", false
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID, actorID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "invoice", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
