// internal/domain/catalog/service.go
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
)

// Service handles catalog reads for the storefront
type Service struct {
	db     *gorm.DB
	redis  *redis.Client
	config *config.Config
	logger *logrus.Logger
}

// NewService creates a new catalog service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		db:     db,
		redis:  redisClient,
		config: cfg,
		logger: log,
	}
}

// GetVariant loads a single variant by ID. Stock and price always come from
// the database, never from cache, so order assembly sees current values.
func (s *Service) GetVariant(variantID uint) (*ProductVariant, error) {
	var variant ProductVariant
	if err := s.db.Where("id = ? AND is_active = ?", variantID, true).First(&variant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVariantNotFound
		}
		return nil, fmt.Errorf("failed to get variant: %w", err)
	}
	return &variant, nil
}

// GetProduct returns a product with variants, read-through cached
func (s *Service) GetProduct(ctx context.Context, productID uint) (*Product, error) {
	cacheKey := redis.ProductKey(productID)

	var cached Product
	if err := s.redis.GetJSON(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	} else if !redis.IsMiss(err) {
		s.logger.WithError(err).Warn("Failed to read product from cache")
	}

	var product Product
	err := s.db.Preload("Category").Preload("Brand").Preload("Variants").
		Where("id = ? AND is_active = ?", productID, true).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if err := s.redis.SetJSON(ctx, cacheKey, &product, s.config.Cache.CatalogTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache product")
	}

	return &product, nil
}

// ListProducts returns the active product listing, read-through cached under
// a single key so mutations can invalidate it without scanning.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	cacheKey := redis.ProductListingKey()

	var cached []Product
	if err := s.redis.GetJSON(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	} else if !redis.IsMiss(err) {
		s.logger.WithError(err).Warn("Failed to read product listing from cache")
	}

	var products []Product
	err := s.db.Preload("Category").Preload("Variants").
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	if err := s.redis.SetJSON(ctx, cacheKey, products, s.config.Cache.CatalogTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache product listing")
	}

	return products, nil
}

// InvalidateProduct drops the cached entries touched by a stock change
func (s *Service) InvalidateProduct(ctx context.Context, productID uint) {
	if err := s.redis.Del(ctx, redis.ProductKey(productID), redis.ProductListingKey()); err != nil {
		s.logger.WithError(err).WithField("product_id", productID).Warn("Failed to invalidate product cache")
	}
}
