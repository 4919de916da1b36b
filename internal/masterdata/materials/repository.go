package materials

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

const selectColumns = `id, kind, code, name, uom, COALESCE(default_vendor_id,0), hsn_code, gst_rate, is_active, created_at, updated_at`

// Get fetches one material by kind and id.
func (r *Repository) Get(ctx context.Context, kind Kind, id int64) (Material, error) {
	var m Material
	err := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM materials WHERE kind=$1 AND id=$2`, kind, id).
		Scan(&m.ID, &m.Kind, &m.Code, &m.Name, &m.UOM, &m.DefaultVendorID, &m.HSNCode, &m.GSTRate, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, shared.NewDomainError(shared.CodeNotFound, "material %s/%d not found", kind, id)
		}
		return Material{}, err
	}
	return m, nil
}

// GetMany fetches materials of one kind keyed by id.
func (r *Repository) GetMany(ctx context.Context, kind Kind, ids []int64) (map[int64]Material, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM materials WHERE kind=$1 AND id = ANY($2)`, kind, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Material, len(ids))
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.Kind, &m.Code, &m.Name, &m.UOM, &m.DefaultVendorID, &m.HSNCode, &m.GSTRate, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}
