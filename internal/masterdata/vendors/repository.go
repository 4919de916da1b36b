package vendors

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

// Get fetches one vendor by id.
func (r *Repository) Get(ctx context.Context, id int64) (Vendor, error) {
	var v Vendor
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, class, address, email, phone, is_active, created_at, updated_at FROM vendors WHERE id=$1`, id).
		Scan(&v.ID, &v.Code, &v.Name, &v.Class, &v.Address, &v.Email, &v.Phone, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, shared.NewDomainError(shared.CodeNotFound, "vendor %d not found", id)
		}
		return Vendor{}, err
	}
	return v, nil
}

// GetMany fetches vendors for a set of ids keyed by id.
func (r *Repository) GetMany(ctx context.Context, ids []int64) (map[int64]Vendor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, class, address, email, phone, is_active, created_at, updated_at FROM vendors WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Vendor, len(ids))
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Code, &v.Name, &v.Class, &v.Address, &v.Email, &v.Phone, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out[v.ID] = v
	}
	return out, rows.Err()
}

// ListByClass returns active vendors of a class ordered by name.
func (r *Repository) ListByClass(ctx context.Context, class Class) ([]Vendor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, class, address, email, phone, is_active, created_at, updated_at FROM vendors WHERE class=$1 AND is_active ORDER BY name`, class)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var vendorsList []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Code, &v.Name, &v.Class, &v.Address, &v.Email, &v.Phone, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vendorsList = append(vendorsList, v)
	}
	return vendorsList, rows.Err()
}
