package vendors

import (
	"context"
)

// RepositoryPort describes vendor lookups used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Vendor, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]Vendor, error)
	ListByClass(ctx context.Context, class Class) ([]Vendor, error)
}

// Service exposes vendor master data at the module boundary.
type Service struct {
	repo RepositoryPort
}

// NewService constructs vendor service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns a vendor by id.
func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.Get(ctx, id)
}

// GetMany returns vendors keyed by id.
func (s *Service) GetMany(ctx context.Context, ids []int64) (map[int64]Vendor, error) {
	return s.repo.GetMany(ctx, ids)
}

// ListByClass returns active vendors of a class.
func (s *Service) ListByClass(ctx context.Context, class Class) ([]Vendor, error) {
	return s.repo.ListByClass(ctx, class)
}

// ValidateClass ensures a vendor belongs to the expected class.
func (s *Service) ValidateClass(ctx context.Context, id int64, class Class) (Vendor, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Vendor{}, err
	}
	if v.Class != class {
		return Vendor{}, errClassMismatch(v, class)
	}
	return v, nil
}
