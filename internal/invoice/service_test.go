package invoice

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pharmos-erp/pharmos-erp/internal/ledger"
	"github.com/pharmos-erp/pharmos-erp/internal/procurement"
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

type balanceKey struct {
	poID, invoiceID, vendorID int64
	kind                      string
	materialID                int64
}

type memoryInvoiceRepo struct {
	pos      map[int64]procurement.PurchaseOrder
	poLines  map[int64][]procurement.POLine
	invoices map[int64]Invoice
	invLines map[int64][]Line
	numbers  map[string]int64
	balances map[balanceKey]ledger.BalanceEntry
	nextID   int64
}

type memoryInvoiceTx struct {
	repo *memoryInvoiceRepo
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{
		pos:      make(map[int64]procurement.PurchaseOrder),
		poLines:  make(map[int64][]procurement.POLine),
		invoices: make(map[int64]Invoice),
		invLines: make(map[int64][]Line),
		numbers:  make(map[string]int64),
		balances: make(map[balanceKey]ledger.BalanceEntry),
	}
}

func (r *memoryInvoiceRepo) clone() *memoryInvoiceRepo {
	c := newMemoryInvoiceRepo()
	c.nextID = r.nextID
	for k, v := range r.pos {
		c.pos[k] = v
	}
	for k, v := range r.poLines {
		c.poLines[k] = append([]procurement.POLine(nil), v...)
	}
	for k, v := range r.invoices {
		c.invoices[k] = v
	}
	for k, v := range r.invLines {
		c.invLines[k] = append([]Line(nil), v...)
	}
	for k, v := range r.numbers {
		c.numbers[k] = v
	}
	for k, v := range r.balances {
		c.balances[k] = v
	}
	return c
}

// WithTx restores the snapshot on error, mirroring a database rollback.
func (r *memoryInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	backup := r.clone()
	if err := fn(ctx, &memoryInvoiceTx{repo: r}); err != nil {
		*r = *backup
		return err
	}
	return nil
}

func (r *memoryInvoiceRepo) GetInvoice(ctx context.Context, id int64) (Invoice, []Line, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, nil, shared.NewDomainError(shared.CodeNotFound, "invoice %d not found", id)
	}
	return inv, append([]Line(nil), r.invLines[id]...), nil
}

func (r *memoryInvoiceRepo) ListByPO(ctx context.Context, poID int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.POID == poID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (tx *memoryInvoiceTx) GetPOForUpdate(ctx context.Context, poID int64) (procurement.PurchaseOrder, []procurement.POLine, error) {
	po, ok := tx.repo.pos[poID]
	if !ok {
		return procurement.PurchaseOrder{}, nil, shared.NewDomainError(shared.CodeNotFound, "purchase order %d not found", poID)
	}
	return po, append([]procurement.POLine(nil), tx.repo.poLines[poID]...), nil
}

func (tx *memoryInvoiceTx) UpdatePOLineFulfilled(ctx context.Context, lineID int64, fulfilled decimal.Decimal) error {
	for poID, lines := range tx.repo.poLines {
		for i := range lines {
			if lines[i].ID == lineID {
				lines[i].FulfilledQty = fulfilled
				tx.repo.poLines[poID] = lines
				return nil
			}
		}
	}
	return shared.NewDomainError(shared.CodeNotFound, "po line %d not found", lineID)
}

func (tx *memoryInvoiceTx) UpdatePOFulfillment(ctx context.Context, poID int64, fulfilled decimal.Decimal, status procurement.POStatus) error {
	po := tx.repo.pos[poID]
	po.TotalFulfilledQty = fulfilled
	po.Status = status
	tx.repo.pos[poID] = po
	return nil
}

func (tx *memoryInvoiceTx) UpdatePOStatus(ctx context.Context, poID int64, status procurement.POStatus) error {
	po := tx.repo.pos[poID]
	po.Status = status
	tx.repo.pos[poID] = po
	return nil
}

func (tx *memoryInvoiceTx) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	_, exists := tx.repo.numbers[number]
	return exists, nil
}

func (tx *memoryInvoiceTx) CreateInvoice(ctx context.Context, inv Invoice) (int64, error) {
	if _, exists := tx.repo.numbers[inv.Number]; exists {
		return 0, shared.NewDomainError(shared.CodeDuplicateInvoice, "invoice number %s already exists", inv.Number)
	}
	tx.repo.nextID++
	inv.ID = tx.repo.nextID
	tx.repo.invoices[inv.ID] = inv
	tx.repo.numbers[inv.Number] = inv.ID
	return inv.ID, nil
}

func (tx *memoryInvoiceTx) InsertLine(ctx context.Context, line Line) error {
	tx.repo.nextID++
	line.ID = tx.repo.nextID
	tx.repo.invLines[line.InvoiceID] = append(tx.repo.invLines[line.InvoiceID], line)
	return nil
}

func (tx *memoryInvoiceTx) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, []Line, error) {
	inv, ok := tx.repo.invoices[id]
	if !ok {
		return Invoice{}, nil, shared.NewDomainError(shared.CodeNotFound, "invoice %d not found", id)
	}
	return inv, append([]Line(nil), tx.repo.invLines[id]...), nil
}

func (tx *memoryInvoiceTx) UpdateInvoiceStatus(ctx context.Context, id int64, status Status) error {
	inv := tx.repo.invoices[id]
	inv.Status = status
	tx.repo.invoices[id] = inv
	return nil
}

func (tx *memoryInvoiceTx) PostBalance(ctx context.Context, entry ledger.BalanceEntry) error {
	key := balanceKey{entry.POID, entry.InvoiceID, entry.VendorID, string(entry.MaterialKind), entry.MaterialID}
	tx.repo.balances[key] = entry
	return nil
}

func (tx *memoryInvoiceTx) DeleteBalances(ctx context.Context, invoiceID int64) error {
	for key := range tx.repo.balances {
		if key.invoiceID == invoiceID {
			delete(tx.repo.balances, key)
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedPO installs an OPEN raw-material PO with one line of ordered 1000.
func seedPO(repo *memoryInvoiceRepo) {
	repo.pos[1] = procurement.PurchaseOrder{
		ID: 1, Number: "PO/25-26/RM/0001", Type: procurement.POTypeRawMaterial,
		FiscalYear: "25-26", OrderID: 1, VendorID: 40, Status: procurement.POStatusOpen,
		TotalOrderedQty: dec("1000"), TotalFulfilledQty: decimal.Zero,
	}
	repo.poLines[1] = []procurement.POLine{
		{ID: 100, POID: 1, Ref: procurement.RawMaterialRef(500), Qty: dec("1000"), UOM: "kg", FulfilledQty: decimal.Zero},
	}
}

func TestInvoiceFulfillmentLifecycle(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	// first shipment: 400 of 1000
	result, err := svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("400"), UnitPrice: dec("2.50")}},
	})
	require.NoError(t, err)
	require.Equal(t, procurement.POStatusPartial, result.POStatus)
	require.True(t, dec("400").Equal(result.TotalShippedQty))
	require.True(t, dec("1000").Equal(result.TotalAmount))
	require.True(t, dec("400").Equal(repo.poLines[1][0].FulfilledQty))

	inv, _, err := repo.GetInvoice(ctx, result.InvoiceID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, inv.Status)

	// one ledger row, balance = ordered - received on the row
	require.Len(t, repo.balances, 1)
	entry := repo.balances[balanceKey{1, result.InvoiceID, 40, "RM", 500}]
	require.True(t, dec("600").Equal(entry.BalanceQty))

	// second shipment completes the order
	result2, err := svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-002",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("600"), UnitPrice: dec("2.50")}},
	})
	require.NoError(t, err)
	require.Equal(t, procurement.POStatusClosed, result2.POStatus)
	require.True(t, dec("1000").Equal(repo.poLines[1][0].FulfilledQty))
	// distinct invoices accumulate as separate rows, never merged
	require.Len(t, repo.balances, 2)

	// third shipment bounces off the closed order; nothing changes
	_, err = svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-003",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("1"), UnitPrice: dec("2.50")}},
	})
	require.ErrorIs(t, err, shared.ErrPOClosed)
	require.True(t, dec("1000").Equal(repo.poLines[1][0].FulfilledQty))
	require.Len(t, repo.invoices, 2)
	require.Len(t, repo.balances, 2)
}

func TestOverShipmentRejectsWholeInvoice(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("400")}},
	})
	require.NoError(t, err)

	_, err = svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-002",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("700")}},
	})
	require.ErrorIs(t, err, shared.ErrOverShipped)

	// the failed invoice left no trace
	require.True(t, dec("400").Equal(repo.poLines[1][0].FulfilledQty))
	require.Equal(t, procurement.POStatusPartial, repo.pos[1].Status)
	require.Len(t, repo.invoices, 1)
	require.Len(t, repo.balances, 1)
}

func TestOverShipmentOnOneLineAbortsAllLines(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	repo.poLines[1] = append(repo.poLines[1], procurement.POLine{
		ID: 101, POID: 1, Ref: procurement.RawMaterialRef(501), Qty: dec("50"), UOM: "kg", FulfilledQty: decimal.Zero,
	})
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.ProcessInvoice(context.Background(), ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{
			{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("100")},
			{Ref: procurement.RawMaterialRef(501), ShippedQty: dec("51")},
		},
	})
	require.ErrorIs(t, err, shared.ErrOverShipped)
	require.True(t, repo.poLines[1][0].FulfilledQty.IsZero(), "the valid line must not be applied either")
	require.Empty(t, repo.invoices)
}

func TestDuplicateInvoiceNumberRollsBack(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("100")}},
	})
	require.NoError(t, err)

	_, err = svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("100")}},
	})
	require.ErrorIs(t, err, shared.ErrDuplicateInvoice)
	require.True(t, dec("100").Equal(repo.poLines[1][0].FulfilledQty), "fulfillment from the rejected duplicate must roll back")
}

func TestRepeatedMaterialLinesPostOneLedgerRow(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	svc := NewService(repo, nil, nil, nil)

	// two partial shipments of the same material on one invoice
	result, err := svc.ProcessInvoice(context.Background(), ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{
			{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("300"), UnitPrice: dec("2")},
			{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("200"), UnitPrice: dec("2")},
		},
	})
	require.NoError(t, err)
	require.True(t, dec("500").Equal(result.TotalShippedQty))
	require.True(t, dec("500").Equal(repo.poLines[1][0].FulfilledQty))

	// the ledger must carry the combined receipt, not the last line's
	require.Len(t, repo.balances, 1)
	entry := repo.balances[balanceKey{1, result.InvoiceID, 40, "RM", 500}]
	require.True(t, dec("500").Equal(entry.ReceivedQty))
	require.True(t, dec("500").Equal(entry.BalanceQty))

	// both lines remain on the invoice as submitted
	_, lines, err := repo.GetInvoice(context.Background(), result.InvoiceID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
}

func TestPOHeaderTotalsFollowFulfillment(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	result, err := svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("400"), UnitPrice: dec("2")}},
	})
	require.NoError(t, err)
	require.True(t, dec("1000").Equal(repo.pos[1].TotalOrderedQty), "ordered total is fixed at creation")
	require.True(t, dec("400").Equal(repo.pos[1].TotalFulfilledQty))
	require.Equal(t, procurement.POStatusPartial, repo.pos[1].Status)

	// cancelling the invoice rolls the header total back with the lines
	require.NoError(t, svc.CancelInvoice(ctx, result.InvoiceID, 99))
	require.True(t, repo.pos[1].TotalFulfilledQty.IsZero())
	require.Equal(t, procurement.POStatusOpen, repo.pos[1].Status)
}

func TestDuplicateInvoiceNumberCheckedBeforeFulfillment(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("100")}},
	})
	require.NoError(t, err)

	// the reused number is refused before line quantities are even looked
	// at: an over-shipping duplicate reports DUPLICATE_INVOICE, not
	// OVER_SHIPPED
	_, err = svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("9000")}},
	})
	require.ErrorIs(t, err, shared.ErrDuplicateInvoice)
	require.True(t, dec("100").Equal(repo.poLines[1][0].FulfilledQty))
	require.Len(t, repo.invoices, 1)
}

func TestMaterialNotInPO(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.ProcessInvoice(context.Background(), ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(999), ShippedQty: dec("1")}},
	})
	require.ErrorIs(t, err, shared.ErrMaterialNotInPO)
}

func TestCancelledPORejectsInvoices(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	po := repo.pos[1]
	po.Status = procurement.POStatusCancelled
	repo.pos[1] = po
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.ProcessInvoice(context.Background(), ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("1")}},
	})
	require.ErrorIs(t, err, shared.ErrPOCancelled)
}

func TestFinishedGoodsInvoicePostsNoLedgerEntry(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	repo.pos[2] = procurement.PurchaseOrder{
		ID: 2, Number: "PO/25-26/FG/0001", Type: procurement.POTypeFinishedGoods,
		FiscalYear: "25-26", OrderID: 1, VendorID: 30, Status: procurement.POStatusOpen,
		TotalOrderedQty: dec("1000"), TotalFulfilledQty: decimal.Zero,
	}
	repo.poLines[2] = []procurement.POLine{
		{ID: 200, POID: 2, Ref: procurement.MedicineRef(7), Qty: dec("1000"), UOM: "tablets", FulfilledQty: decimal.Zero},
	}
	svc := NewService(repo, nil, nil, nil)

	result, err := svc.ProcessInvoice(context.Background(), ProcessInput{
		POID: 2, Number: "INV-FG-001",
		Lines: []LineInput{{Ref: procurement.MedicineRef(7), ShippedQty: dec("1000"), UnitPrice: dec("1.10")}},
	})
	require.NoError(t, err)
	require.Equal(t, procurement.POStatusClosed, result.POStatus)
	require.Empty(t, repo.balances, "finished-goods dispatch never touches the material ledger")
}

func TestFinalizeInvoice(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	result, err := svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("100")}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.FinalizeInvoice(ctx, result.InvoiceID, 99))
	inv, _, err := repo.GetInvoice(ctx, result.InvoiceID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, inv.Status)

	// PROCESSED is terminal
	require.ErrorIs(t, svc.FinalizeInvoice(ctx, result.InvoiceID, 99), shared.ErrValidation)
	require.ErrorIs(t, svc.CancelInvoice(ctx, result.InvoiceID, 99), shared.ErrValidation)
}

func TestCancelInvoiceRevertsFulfillment(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	result, err := svc.ProcessInvoice(ctx, ProcessInput{
		POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("400"), UnitPrice: dec("2")}},
	})
	require.NoError(t, err)
	require.Equal(t, procurement.POStatusPartial, repo.pos[1].Status)

	require.NoError(t, svc.CancelInvoice(ctx, result.InvoiceID, 99))

	inv, _, err := repo.GetInvoice(ctx, result.InvoiceID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, inv.Status)
	require.True(t, repo.poLines[1][0].FulfilledQty.IsZero())
	require.Equal(t, procurement.POStatusOpen, repo.pos[1].Status)
	require.Empty(t, repo.balances)
}

func TestCancelPurchaseOrder(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.CancelPurchaseOrder(ctx, 1, 99))
	require.Equal(t, procurement.POStatusCancelled, repo.pos[1].Status)

	// cancelled is terminal; closed orders cannot be cancelled
	require.ErrorIs(t, svc.CancelPurchaseOrder(ctx, 1, 99), shared.ErrPOCancelled)

	po := repo.pos[1]
	po.Status = procurement.POStatusClosed
	repo.pos[1] = po
	require.ErrorIs(t, svc.CancelPurchaseOrder(ctx, 1, 99), shared.ErrPOClosed)
}

func TestProcessInvoiceValidation(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.ProcessInvoice(ctx, ProcessInput{POID: 1, Number: "", Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("1")}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ProcessInvoice(ctx, ProcessInput{POID: 1, Number: "INV-001"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ProcessInvoice(ctx, ProcessInput{POID: 1, Number: "INV-001",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: decimal.Zero}}})
	require.ErrorIs(t, err, shared.ErrValidation)
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func TestProcessInvoiceIdempotencyKey(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	seedPO(repo)
	idem := &memoryIdempotency{keys: map[string]bool{}}
	svc := NewService(repo, nil, idem, nil)
	ctx := context.Background()

	input := ProcessInput{
		POID: 1, Number: "INV-001", IdempotencyKey: "req-1",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("400"), UnitPrice: dec("2.50")}},
	}
	_, err := svc.ProcessInvoice(ctx, input)
	require.NoError(t, err)

	// a retried request with the same key is refused before touching the PO
	_, err = svc.ProcessInvoice(ctx, input)
	require.ErrorIs(t, err, shared.ErrDuplicateInvoice)
	require.True(t, dec("400").Equal(repo.poLines[1][0].FulfilledQty))
	require.Len(t, repo.invoices, 1)

	// a failed submission releases its key so a corrected retry can reuse it
	bad := ProcessInput{
		POID: 1, Number: "INV-002", IdempotencyKey: "req-2",
		Lines: []LineInput{{Ref: procurement.RawMaterialRef(500), ShippedQty: dec("9000"), UnitPrice: dec("2.50")}},
	}
	_, err = svc.ProcessInvoice(ctx, bad)
	require.ErrorIs(t, err, shared.ErrOverShipped)
	require.False(t, idem.keys["req-2"])

	bad.Lines[0].ShippedQty = dec("600")
	_, err = svc.ProcessInvoice(ctx, bad)
	require.NoError(t, err)
}
