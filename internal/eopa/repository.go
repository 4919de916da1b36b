package eopa

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmos-erp/pharmos-erp/internal/platform/db"
	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateOrder(ctx context.Context, order ApprovedOrder) (int64, error)
	InsertLine(ctx context.Context, line OrderLine) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
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

// GetOrder returns the order header and lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (ApprovedOrder, []OrderLine, error) {
	var order ApprovedOrder
	err := r.pool.QueryRow(ctx, `SELECT id, number, status, note, created_at, updated_at FROM approved_orders WHERE id=$1`, id).
		Scan(&order.ID, &order.Number, &order.Status, &order.Note, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ApprovedOrder{}, nil, shared.NewDomainError(shared.CodeNotFound, "approved order %d not found", id)
		}
		return ApprovedOrder{}, nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, medicine_id, quantity, unit FROM approved_order_lines WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return ApprovedOrder{}, nil, err
	}
	defer rows.Close()
	var lines []OrderLine
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.MedicineID, &line.Quantity, &line.Unit); err != nil {
			return ApprovedOrder{}, nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return ApprovedOrder{}, nil, err
	}
	return order, lines, nil
}

func (tx *txRepo) CreateOrder(ctx context.Context, order ApprovedOrder) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO approved_orders (number, status, note, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id`, order.Number, order.Status, order.Note).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertLine(ctx context.Context, line OrderLine) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO approved_order_lines (order_id, medicine_id, quantity, unit) VALUES ($1,$2,$3,$4)`,
		line.OrderID, line.MedicineID, line.Quantity, line.Unit)
	return err
}

func (tx *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE approved_orders SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError(shared.CodeNotFound, "approved order %d not found", id)
	}
	return nil
}
