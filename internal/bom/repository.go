package bom

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/materials"
)

// Repository provides PostgreSQL backed persistence for BOM mappings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActive returns active mappings for a medicine and material kind.
func (r *Repository) ListActive(ctx context.Context, medicineID int64, kind materials.Kind) ([]Mapping, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, medicine_id, kind, material_id, qty_per_unit, uom, wastage_pct,
COALESCE(vendor_id,0), COALESCE(hsn_code,''), gst_rate, COALESCE(language,''), COALESCE(artwork_version,''), COALESCE(notes,''), is_critical, is_active
FROM bom_mappings WHERE medicine_id=$1 AND kind=$2 AND is_active ORDER BY id`, medicineID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mappings []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.ID, &m.MedicineID, &m.Kind, &m.MaterialID, &m.QtyPerUnit, &m.UOM, &m.WastagePct,
			&m.VendorID, &m.HSNCode, &m.GSTRate, &m.Language, &m.ArtworkVersion, &m.Notes, &m.IsCritical, &m.IsActive); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}
