package service

import (
	"context"
	"log/slog"
	"time"

	"webstore-backend/internal/cache"
	"webstore-backend/internal/config"
	"webstore-backend/internal/models"
	repository "webstore-backend/internal/repositories"

	"github.com/google/uuid"
)

// CatalogService is the cart engine's read path for authoritative product
// price and stock, with a short-lived Redis read-through cache.
type CatalogService interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, amount int64) error
	InvalidateProduct(ctx context.Context, id uuid.UUID)
}

type catalogService struct {
	repo  repository.ProductRepository
	cache cache.Cache
	ttl   time.Duration
}

func NewCatalogService(repo repository.ProductRepository, productCache cache.Cache, cfg *config.CacheConfig) CatalogService {
	return &catalogService{repo: repo, cache: productCache, ttl: cfg.ProductTTL}
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {

	key := cache.Key(cache.ProductKeyPrefix, id.String())

	product := &models.Product{}

	found, err := s.cache.Get(ctx, key, product)
	if err != nil {
		// Cache failures degrade to a database read.
		slog.Warn("Product cache read failed", slog.String("error", err.Error()))
	}

	if found {
		return product, nil
	}

	product, err = s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, product, s.ttl); err != nil {
		slog.Warn("Product cache write failed", slog.String("error", err.Error()))
	}

	return product, nil
}

func (s *catalogService) DecrementStock(ctx context.Context, id uuid.UUID, amount int64) error {

	if err := s.repo.DecrementStock(ctx, id, amount); err != nil {
		return err
	}

	s.InvalidateProduct(ctx, id)

	return nil
}

func (s *catalogService) InvalidateProduct(ctx context.Context, id uuid.UUID) {

	key := cache.Key(cache.ProductKeyPrefix, id.String())

	if err := s.cache.Delete(ctx, key); err != nil {
		slog.Warn("Product cache invalidation failed", slog.String("error", err.Error()))
	}
}
