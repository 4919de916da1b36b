package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the balance ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertTx writes one entry inside a caller-owned transaction. A conflict on
// the full key overwrites quantities instead of accumulating them, so the
// invoice fulfillment transaction can post entries atomically with its PO
// updates.
func UpsertTx(ctx context.Context, tx pgx.Tx, entry BalanceEntry) error {
	_, err := tx.Exec(ctx, `INSERT INTO material_balance_entries (po_id, invoice_id, vendor_id, material_kind, material_id, ordered_qty, received_qty, balance_qty, last_updated)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
ON CONFLICT (po_id, invoice_id, vendor_id, material_kind, material_id)
DO UPDATE SET ordered_qty=EXCLUDED.ordered_qty, received_qty=EXCLUDED.received_qty, balance_qty=EXCLUDED.balance_qty, last_updated=NOW()`,
		entry.POID, entry.InvoiceID, entry.VendorID, entry.MaterialKind, entry.MaterialID,
		entry.OrderedQty, entry.ReceivedQty, entry.BalanceQty)
	return err
}

const entryColumns = `id, po_id, invoice_id, vendor_id, material_kind, material_id, ordered_qty, received_qty, balance_qty, last_updated`

func scanEntries(rows pgx.Rows) ([]BalanceEntry, error) {
	defer rows.Close()
	var entries []BalanceEntry
	for rows.Next() {
		var e BalanceEntry
		if err := rows.Scan(&e.ID, &e.POID, &e.InvoiceID, &e.VendorID, &e.MaterialKind, &e.MaterialID,
			&e.OrderedQty, &e.ReceivedQty, &e.BalanceQty, &e.LastUpdated); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// filterClause builds the shared WHERE fragment; zero filter values match all.
func filterClause(filter SummaryFilter) (string, []any) {
	clause := ` WHERE ($1 = 0 OR vendor_id = $1) AND ($2 = '' OR material_kind = $2)`
	return clause, []any{filter.VendorID, string(filter.MaterialKind)}
}

// Totals aggregates the ledger per (material, vendor).
func (r *Repository) Totals(ctx context.Context, filter SummaryFilter) ([]SummaryRow, error) {
	clause, args := filterClause(filter)
	rows, err := r.pool.Query(ctx, `SELECT material_kind, material_id, vendor_id, SUM(ordered_qty), SUM(received_qty), SUM(balance_qty)
FROM material_balance_entries`+clause+` GROUP BY material_kind, material_id, vendor_id ORDER BY material_kind, material_id, vendor_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SummaryRow
	for rows.Next() {
		var row SummaryRow
		if err := rows.Scan(&row.MaterialKind, &row.MaterialID, &row.VendorID, &row.TotalOrdered, &row.TotalReceived, &row.TotalBalance); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Recent returns the latest entries by update time.
func (r *Repository) Recent(ctx context.Context, filter SummaryFilter, limit int) ([]BalanceEntry, error) {
	clause, args := filterClause(filter)
	args = append(args, limit)
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM material_balance_entries`+clause+` ORDER BY last_updated DESC, id DESC LIMIT $3`, args...)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// ListByPO returns entries for one purchase order.
func (r *Repository) ListByPO(ctx context.Context, poID int64) ([]BalanceEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM material_balance_entries WHERE po_id=$1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// Recompute rewrites any drifted balances back to ordered minus received.
// Run periodically by the maintenance job; returns rows touched.
func (r *Repository) Recompute(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE material_balance_entries
SET balance_qty = ordered_qty - received_qty, last_updated = NOW()
WHERE balance_qty <> ordered_qty - received_qty`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
