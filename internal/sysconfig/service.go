package sysconfig

import (
	"context"
	"log/slog"

	"github.com/pharmos-erp/pharmos-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, key string) (Setting, error)
	Upsert(ctx context.Context, setting Setting) error
	List(ctx context.Context) ([]Setting, error)
	Delete(ctx context.Context, key string) error
}

// Service serves configuration settings through the versioned cache.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs the sysconfig service. The cache is injected so tests
// control freshness explicitly; a nil cache falls through to the repository.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Get returns one setting, served from cache when fresh.
func (s *Service) Get(ctx context.Context, key string) (Setting, error) {
	if key == "" {
		return Setting{}, shared.NewDomainError(shared.CodeValidation, "setting key required")
	}
	cacheKey, err := s.cache.BuildKey(ctx, "sysconfig", key)
	if err != nil {
		return Setting{}, err
	}
	var setting Setting
	err = s.cache.FetchJSON(ctx, cacheKey, &setting, func(ctx context.Context) (interface{}, error) {
		return s.repo.Get(ctx, key)
	})
	if err != nil {
		return Setting{}, err
	}
	return setting, nil
}

// Set writes a setting and invalidates the cache so the next read sees it.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return shared.NewDomainError(shared.CodeValidation, "setting key required")
	}
	if err := s.repo.Upsert(ctx, Setting{Key: key, Value: value}); err != nil {
		return err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("sysconfig cache bump failed", slog.Any("error", err))
	}
	return nil
}

// List returns all settings straight from the repository.
func (s *Service) List(ctx context.Context) ([]Setting, error) {
	return s.repo.List(ctx)
}

// Delete removes a setting and invalidates the cache.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("sysconfig cache bump failed", slog.Any("error", err))
	}
	return nil
}

// Refresh force-invalidates the cache. Run on a timer by the worker.
func (s *Service) Refresh(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
