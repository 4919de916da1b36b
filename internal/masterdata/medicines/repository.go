package medicines

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// Get fetches one medicine by id.
func (r *Repository) Get(ctx context.Context, id int64) (Medicine, error) {
	var m Medicine
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, uom, COALESCE(manufacturer_vendor_id,0), is_active, created_at, updated_at FROM medicines WHERE id=$1`, id).
		Scan(&m.ID, &m.Code, &m.Name, &m.UOM, &m.ManufacturerVendorID, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Medicine{}, shared.NewDomainError(shared.CodeNotFound, "medicine %d not found", id)
		}
		return Medicine{}, err
	}
	return m, nil
}

// GetMany fetches medicines keyed by id.
func (r *Repository) GetMany(ctx context.Context, ids []int64) (map[int64]Medicine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, uom, COALESCE(manufacturer_vendor_id,0), is_active, created_at, updated_at FROM medicines WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Medicine, len(ids))
	for rows.Next() {
		var m Medicine
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.UOM, &m.ManufacturerVendorID, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}
