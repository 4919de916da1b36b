package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pharmos-erp/pharmos-erp/internal/ledger"
	"github.com/pharmos-erp/pharmos-erp/internal/platform/db"
	"github.com/pharmos-erp/pharmos-erp/internal/procurement"
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for invoices and owns the
// fulfillment writes against purchase orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. One invoice is processed in
// one transaction: PO lock, line updates, status recompute, invoice insert
// and ledger posting commit together or roll back together.
type TxRepository interface {
	GetPOForUpdate(ctx context.Context, poID int64) (procurement.PurchaseOrder, []procurement.POLine, error)
	UpdatePOLineFulfilled(ctx context.Context, lineID int64, fulfilled decimal.Decimal) error
	UpdatePOFulfillment(ctx context.Context, poID int64, fulfilled decimal.Decimal, status procurement.POStatus) error
	UpdatePOStatus(ctx context.Context, poID int64, status procurement.POStatus) error
	InvoiceNumberExists(ctx context.Context, number string) (bool, error)
	CreateInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertLine(ctx context.Context, line Line) error
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, []Line, error)
	UpdateInvoiceStatus(ctx context.Context, id int64, status Status) error
	PostBalance(ctx context.Context, entry ledger.BalanceEntry) error
	DeleteBalances(ctx context.Context, invoiceID int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetPOForUpdate locks the PO header row so concurrent invoices against the
// same order serialise, then loads its lines. The lock prevents two invoices
// from both passing the over-shipment check against a stale total.
func (tx *txRepo) GetPOForUpdate(ctx context.Context, poID int64) (procurement.PurchaseOrder, []procurement.POLine, error) {
	var po procurement.PurchaseOrder
	err := tx.tx.QueryRow(ctx, `SELECT id, number, po_type, fiscal_year, order_id, vendor_id, status, total_ordered_qty, total_fulfilled_qty, COALESCE(note,''), created_at, updated_at
FROM purchase_orders WHERE id=$1 FOR UPDATE`, poID).
		Scan(&po.ID, &po.Number, &po.Type, &po.FiscalYear, &po.OrderID, &po.VendorID, &po.Status,
			&po.TotalOrderedQty, &po.TotalFulfilledQty, &po.Note, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return procurement.PurchaseOrder{}, nil, shared.NewDomainError(shared.CodeNotFound, "purchase order %d not found", poID)
		}
		return procurement.PurchaseOrder{}, nil, err
	}
	rows, err := tx.tx.Query(ctx, `SELECT id, po_id, medicine_id, raw_material_id, packing_material_id, COALESCE(description,''), qty, uom, fulfilled_qty,
COALESCE(hsn_code,''), gst_rate, COALESCE(language,''), COALESCE(artwork_version,''), COALESCE(notes,''), is_critical, tolerance_pct
FROM po_lines WHERE po_id=$1 ORDER BY id`, poID)
	if err != nil {
		return procurement.PurchaseOrder{}, nil, err
	}
	defer rows.Close()
	var lines []procurement.POLine
	for rows.Next() {
		var line procurement.POLine
		var medID, rmID, pmID *int64
		if err := rows.Scan(&line.ID, &line.POID, &medID, &rmID, &pmID, &line.Description, &line.Qty, &line.UOM, &line.FulfilledQty,
			&line.HSNCode, &line.GSTRate, &line.Language, &line.ArtworkVersion, &line.Notes, &line.IsCritical, &line.TolerancePct); err != nil {
			return procurement.PurchaseOrder{}, nil, err
		}
		ref, err := refFromColumns(medID, rmID, pmID)
		if err != nil {
			return procurement.PurchaseOrder{}, nil, fmt.Errorf("po %d line %d: %w", poID, line.ID, err)
		}
		line.Ref = ref
		lines = append(lines, line)
	}
	return po, lines, rows.Err()
}

func (tx *txRepo) UpdatePOLineFulfilled(ctx context.Context, lineID int64, fulfilled decimal.Decimal) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE po_lines SET fulfilled_qty=$1 WHERE id=$2`, fulfilled, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError(shared.CodeNotFound, "po line %d not found", lineID)
	}
	return nil
}

// UpdatePOFulfillment writes the recomputed fulfilled total together with the
// status derived from it, so the header never shows one without the other.
func (tx *txRepo) UpdatePOFulfillment(ctx context.Context, poID int64, fulfilled decimal.Decimal, status procurement.POStatus) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_orders SET total_fulfilled_qty=$1, status=$2, updated_at=NOW() WHERE id=$3`, fulfilled, status, poID)
	return err
}

func (tx *txRepo) UpdatePOStatus(ctx context.Context, poID int64, status procurement.POStatus) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_orders SET status=$1, updated_at=NOW() WHERE id=$2`, status, poID)
	return err
}

func (tx *txRepo) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := tx.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vendor_invoices WHERE number=$1)`, number).Scan(&exists)
	return exists, err
}

// CreateInvoice inserts the header. A duplicate number trips the unique
// index and reports DUPLICATE_INVOICE.
func (tx *txRepo) CreateInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO vendor_invoices (number, po_id, invoice_type, vendor_id, status, invoice_date, total_shipped_qty, total_amount, note, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW()) RETURNING id`,
		inv.Number, inv.POID, inv.Type, inv.VendorID, inv.Status, inv.InvoiceDate, inv.TotalShippedQty, inv.TotalAmount, inv.Note).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.NewDomainError(shared.CodeDuplicateInvoice, "invoice number %s already exists", inv.Number)
		}
		return 0, err
	}
	return id, nil
}

func (tx *txRepo) InsertLine(ctx context.Context, line Line) error {
	medID, rmID, pmID := refColumns(line.Ref)
	_, err := tx.tx.Exec(ctx, `INSERT INTO invoice_lines (invoice_id, medicine_id, raw_material_id, packing_material_id, shipped_qty, unit_price, amount)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		line.InvoiceID, medID, rmID, pmID, line.ShippedQty, line.UnitPrice, line.Amount)
	return err
}

func (tx *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, []Line, error) {
	inv, err := scanInvoice(tx.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM vendor_invoices WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, nil, shared.NewDomainError(shared.CodeNotFound, "invoice %d not found", id)
		}
		return Invoice{}, nil, err
	}
	lines, err := listLines(ctx, tx.tx, id)
	if err != nil {
		return Invoice{}, nil, err
	}
	return inv, lines, nil
}

func (tx *txRepo) UpdateInvoiceStatus(ctx context.Context, id int64, status Status) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE vendor_invoices SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError(shared.CodeNotFound, "invoice %d not found", id)
	}
	return nil
}

func (tx *txRepo) PostBalance(ctx context.Context, entry ledger.BalanceEntry) error {
	return ledger.UpsertTx(ctx, tx.tx, entry)
}

func (tx *txRepo) DeleteBalances(ctx context.Context, invoiceID int64) error {
	_, err := tx.tx.Exec(ctx, `DELETE FROM material_balance_entries WHERE invoice_id=$1`, invoiceID)
	return err
}

const invoiceColumns = `id, number, po_id, invoice_type, vendor_id, status, invoice_date, total_shipped_qty, total_amount, COALESCE(note,''), created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.POID, &inv.Type, &inv.VendorID, &inv.Status, &inv.InvoiceDate,
		&inv.TotalShippedQty, &inv.TotalAmount, &inv.Note, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listLines(ctx context.Context, q queryer, invoiceID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, medicine_id, raw_material_id, packing_material_id, shipped_qty, unit_price, amount
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		var medID, rmID, pmID *int64
		if err := rows.Scan(&line.ID, &line.InvoiceID, &medID, &rmID, &pmID, &line.ShippedQty, &line.UnitPrice, &line.Amount); err != nil {
			return nil, err
		}
		ref, err := refFromColumns(medID, rmID, pmID)
		if err != nil {
			return nil, fmt.Errorf("invoice %d line %d: %w", invoiceID, line.ID, err)
		}
		line.Ref = ref
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// GetInvoice returns the invoice header and lines.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, []Line, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM vendor_invoices WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, nil, shared.NewDomainError(shared.CodeNotFound, "invoice %d not found", id)
		}
		return Invoice{}, nil, err
	}
	lines, err := listLines(ctx, r.pool, id)
	if err != nil {
		return Invoice{}, nil, err
	}
	return inv, lines, nil
}

// ListByPO returns invoices raised against one purchase order.
func (r *Repository) ListByPO(ctx context.Context, poID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM vendor_invoices WHERE po_id=$1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func refColumns(ref procurement.MaterialRef) (medID, rmID, pmID *int64) {
	id := ref.ID()
	switch ref.Kind() {
	case procurement.RefMedicine:
		medID = &id
	case procurement.RefRawMaterial:
		rmID = &id
	case procurement.RefPackingMaterial:
		pmID = &id
	}
	return medID, rmID, pmID
}

func refFromColumns(medID, rmID, pmID *int64) (procurement.MaterialRef, error) {
	switch {
	case medID != nil && rmID == nil && pmID == nil:
		return procurement.MedicineRef(*medID), nil
	case rmID != nil && medID == nil && pmID == nil:
		return procurement.RawMaterialRef(*rmID), nil
	case pmID != nil && medID == nil && rmID == nil:
		return procurement.PackingMaterialRef(*pmID), nil
	}
	return procurement.MaterialRef{}, errors.New("line must reference exactly one catalog entry")
}
