package ledger

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pharmos-erp/pharmos-erp/internal/masterdata/materials"
)

// SummaryFilter narrows the summary to one vendor and/or material kind.
// Zero values mean no restriction.
type SummaryFilter struct {
	VendorID     int64
	MaterialKind materials.Kind
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Totals(ctx context.Context, filter SummaryFilter) ([]SummaryRow, error)
	Recent(ctx context.Context, filter SummaryFilter, limit int) ([]BalanceEntry, error)
	ListByPO(ctx context.Context, poID int64) ([]BalanceEntry, error)
	Recompute(ctx context.Context) (int64, error)
}

// recentLimit caps the audit-display tail of the summary.
const recentLimit = 10

// Service serves ledger read models.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Summary loads aggregates and the recent tail concurrently.
func (s *Service) Summary(ctx context.Context, filter SummaryFilter) (Summary, error) {
	var summary Summary
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		totals, err := s.repo.Totals(ctx, filter)
		if err != nil {
			return err
		}
		summary.Totals = totals
		return nil
	})
	g.Go(func() error {
		recent, err := s.repo.Recent(ctx, filter, recentLimit)
		if err != nil {
			return err
		}
		summary.Recent = recent
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// ListByPO returns entries for one purchase order.
func (s *Service) ListByPO(ctx context.Context, poID int64) ([]BalanceEntry, error) {
	return s.repo.ListByPO(ctx, poID)
}

// Recompute repairs drifted balance columns.
func (s *Service) Recompute(ctx context.Context) (int64, error) {
	touched, err := s.repo.Recompute(ctx)
	if err != nil {
		return 0, err
	}
	if touched > 0 {
		s.logger.Warn("ledger balances recomputed", slog.Int64("rows", touched))
	}
	return touched, nil
}
