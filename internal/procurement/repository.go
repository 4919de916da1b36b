package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmos-erp/pharmos-erp/internal/platform/db"
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for purchase orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Generation runs as one
// transaction: the generation marker, every PO and every line commit together
// or not at all.
type TxRepository interface {
	MarkGenerated(ctx context.Context, orderID, actorID int64) error
	NextSequence(ctx context.Context, fiscalYear string, poType POType) (int64, error)
	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertPOLine(ctx context.Context, line POLine) error
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

// MarkGenerated claims the one-shot generation slot for an approved order.
// The unique index on po_generations(order_id) makes concurrent generation
// attempts lose with a duplicate-key error, reported as DUPLICATE_PO.
func (tx *txRepo) MarkGenerated(ctx context.Context, orderID, actorID int64) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO po_generations (order_id, actor_id, created_at) VALUES ($1,$2,NOW())`, orderID, actorID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.NewDomainError(shared.CodeDuplicatePO, "purchase orders already generated for order %d", orderID)
		}
		return err
	}
	return nil
}

// NextSequence increments and returns the per fiscal-year, per type counter.
// The upsert takes a row lock, so concurrent transactions serialise here and
// never observe the same value.
func (tx *txRepo) NextSequence(ctx context.Context, fiscalYear string, poType POType) (int64, error) {
	var seq int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO po_sequences (fiscal_year, po_type, value) VALUES ($1,$2,1)
ON CONFLICT (fiscal_year, po_type) DO UPDATE SET value = po_sequences.value + 1
RETURNING value`, fiscalYear, poType).Scan(&seq)
	return seq, err
}

func (tx *txRepo) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, po_type, fiscal_year, order_id, vendor_id, status, total_ordered_qty, total_fulfilled_qty, note, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW()) RETURNING id`,
		po.Number, po.Type, po.FiscalYear, po.OrderID, po.VendorID, po.Status, po.TotalOrderedQty, po.TotalFulfilledQty, po.Note).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertPOLine(ctx context.Context, line POLine) error {
	medID, rmID, pmID := refColumns(line.Ref)
	_, err := tx.tx.Exec(ctx, `INSERT INTO po_lines (po_id, medicine_id, raw_material_id, packing_material_id, description, qty, uom, fulfilled_qty, hsn_code, gst_rate, language, artwork_version, notes, is_critical, tolerance_pct)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		line.POID, medID, rmID, pmID, line.Description, line.Qty, line.UOM, line.FulfilledQty,
		line.HSNCode, line.GSTRate, line.Language, line.ArtworkVersion, line.Notes, line.IsCritical, line.TolerancePct)
	return err
}

// refColumns splits a ref into the three nullable foreign keys, exactly one
// of which is set.
func refColumns(ref MaterialRef) (medID, rmID, pmID *int64) {
	id := ref.ID()
	switch ref.Kind() {
	case RefMedicine:
		medID = &id
	case RefRawMaterial:
		rmID = &id
	case RefPackingMaterial:
		pmID = &id
	}
	return medID, rmID, pmID
}

func refFromColumns(medID, rmID, pmID *int64) (MaterialRef, error) {
	switch {
	case medID != nil && rmID == nil && pmID == nil:
		return MedicineRef(*medID), nil
	case rmID != nil && medID == nil && pmID == nil:
		return RawMaterialRef(*rmID), nil
	case pmID != nil && medID == nil && rmID == nil:
		return PackingMaterialRef(*pmID), nil
	}
	return MaterialRef{}, fmt.Errorf("po line must reference exactly one catalog entry")
}

// HasGeneration reports whether POs were already generated for the order.
func (r *Repository) HasGeneration(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM po_generations WHERE order_id=$1)`, orderID).Scan(&exists)
	return exists, err
}

const poColumns = `id, number, po_type, fiscal_year, order_id, vendor_id, status, total_ordered_qty, total_fulfilled_qty, COALESCE(note,''), created_at, updated_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Number, &po.Type, &po.FiscalYear, &po.OrderID, &po.VendorID, &po.Status,
		&po.TotalOrderedQty, &po.TotalFulfilledQty, &po.Note, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

// GetPO returns the order header and lines.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	po, err := scanPO(r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, nil, shared.NewDomainError(shared.CodeNotFound, "purchase order %d not found", id)
		}
		return PurchaseOrder{}, nil, err
	}
	lines, err := r.listLines(ctx, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return po, lines, nil
}

func (r *Repository) listLines(ctx context.Context, poID int64) ([]POLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, po_id, medicine_id, raw_material_id, packing_material_id, COALESCE(description,''), qty, uom, fulfilled_qty,
COALESCE(hsn_code,''), gst_rate, COALESCE(language,''), COALESCE(artwork_version,''), COALESCE(notes,''), is_critical, tolerance_pct
FROM po_lines WHERE po_id=$1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []POLine
	for rows.Next() {
		var line POLine
		var medID, rmID, pmID *int64
		if err := rows.Scan(&line.ID, &line.POID, &medID, &rmID, &pmID, &line.Description, &line.Qty, &line.UOM, &line.FulfilledQty,
			&line.HSNCode, &line.GSTRate, &line.Language, &line.ArtworkVersion, &line.Notes, &line.IsCritical, &line.TolerancePct); err != nil {
			return nil, err
		}
		ref, err := refFromColumns(medID, rmID, pmID)
		if err != nil {
			return nil, fmt.Errorf("po %d line %d: %w", poID, line.ID, err)
		}
		line.Ref = ref
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ListFilters narrows PO listings.
type ListFilters struct {
	Status   string
	Type     string
	VendorID int64
	OrderID  int64
	Search   string
}

// ListPOs returns a filtered page of purchase orders and the total count.
func (r *Repository) ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseOrder, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	idx := 1
	add := func(cond string, value any) {
		where += fmt.Sprintf(cond, idx)
		args = append(args, value)
		idx++
	}
	if filters.Status != "" {
		add(` AND status=$%d`, filters.Status)
	}
	if filters.Type != "" {
		add(` AND po_type=$%d`, filters.Type)
	}
	if filters.VendorID != 0 {
		add(` AND vendor_id=$%d`, filters.VendorID)
	}
	if filters.OrderID != 0 {
		add(` AND order_id=$%d`, filters.OrderID)
	}
	if filters.Search != "" {
		add(` AND number ILIKE $%d`, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + poColumns + ` FROM purchase_orders` + where +
		fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var pos []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, 0, err
		}
		pos = append(pos, po)
	}
	return pos, total, rows.Err()
}
