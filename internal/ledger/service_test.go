package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/materials"
)

type memoryLedgerRepo struct {
	totals     []SummaryRow
	entries    []BalanceEntry
	recomputed int64
	lastLimit  int
}

func (r *memoryLedgerRepo) Totals(ctx context.Context, filter SummaryFilter) ([]SummaryRow, error) {
	var out []SummaryRow
	for _, row := range r.totals {
		if filter.VendorID != 0 && row.VendorID != filter.VendorID {
			continue
		}
		if filter.MaterialKind != "" && row.MaterialKind != filter.MaterialKind {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *memoryLedgerRepo) Recent(ctx context.Context, filter SummaryFilter, limit int) ([]BalanceEntry, error) {
	r.lastLimit = limit
	var out []BalanceEntry
	for _, e := range r.entries {
		if filter.VendorID != 0 && e.VendorID != filter.VendorID {
			continue
		}
		if filter.MaterialKind != "" && e.MaterialKind != filter.MaterialKind {
			continue
		}
		out = append(out, e)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryLedgerRepo) ListByPO(ctx context.Context, poID int64) ([]BalanceEntry, error) {
	var out []BalanceEntry
	for _, e := range r.entries {
		if e.POID == poID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) Recompute(ctx context.Context) (int64, error) {
	return r.recomputed, nil
}

func TestNewEntryDerivesBalance(t *testing.T) {
	entry := NewEntry(1, 2, 40, materials.KindRaw, 100, decimal.NewFromInt(10), decimal.NewFromInt(4))
	require.True(t, decimal.NewFromInt(6).Equal(entry.BalanceQty))
}

func TestNewEntryNegativeBalanceUnclamped(t *testing.T) {
	// over-receipt at row granularity stays visible as a negative balance
	entry := NewEntry(1, 2, 40, materials.KindRaw, 100, decimal.NewFromInt(10), decimal.NewFromInt(12))
	require.True(t, decimal.NewFromInt(-2).Equal(entry.BalanceQty))
}

func TestSummaryCombinesTotalsAndRecent(t *testing.T) {
	repo := &memoryLedgerRepo{
		totals: []SummaryRow{{MaterialKind: materials.KindRaw, MaterialID: 100, VendorID: 40,
			TotalOrdered: decimal.NewFromInt(10), TotalReceived: decimal.NewFromInt(4), TotalBalance: decimal.NewFromInt(6)}},
	}
	for i := 0; i < 15; i++ {
		repo.entries = append(repo.entries, BalanceEntry{ID: int64(i + 1), POID: 1})
	}

	svc := NewService(repo, nil)
	summary, err := svc.Summary(context.Background(), SummaryFilter{})
	require.NoError(t, err)
	require.Len(t, summary.Totals, 1)
	require.Len(t, summary.Recent, 10)
	require.Equal(t, 10, repo.lastLimit)
}

func TestSummaryFilterNarrowsByVendorAndKind(t *testing.T) {
	repo := &memoryLedgerRepo{
		totals: []SummaryRow{
			{MaterialKind: materials.KindRaw, MaterialID: 100, VendorID: 40, TotalBalance: decimal.NewFromInt(6)},
			{MaterialKind: materials.KindPacking, MaterialID: 200, VendorID: 50, TotalBalance: decimal.NewFromInt(3)},
		},
		entries: []BalanceEntry{
			{ID: 1, POID: 1, VendorID: 40, MaterialKind: materials.KindRaw},
			{ID: 2, POID: 2, VendorID: 50, MaterialKind: materials.KindPacking},
		},
	}

	svc := NewService(repo, nil)
	summary, err := svc.Summary(context.Background(), SummaryFilter{VendorID: 50})
	require.NoError(t, err)
	require.Len(t, summary.Totals, 1)
	require.Equal(t, int64(50), summary.Totals[0].VendorID)
	require.Len(t, summary.Recent, 1)

	summary, err = svc.Summary(context.Background(), SummaryFilter{MaterialKind: materials.KindRaw})
	require.NoError(t, err)
	require.Len(t, summary.Totals, 1)
	require.Equal(t, materials.KindRaw, summary.Totals[0].MaterialKind)
}
