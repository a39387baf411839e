// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
)

// Service handles cart business logic
type Service struct {
	db      *gorm.DB
	redis   *redis.Client
	catalog *catalog.Service
	config  *config.Config
	logger  *logrus.Logger
}

// NewService creates a new cart service
func NewService(db *gorm.DB, redisClient *redis.Client, catalogService *catalog.Service, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		db:      db,
		redis:   redisClient,
		catalog: catalogService,
		config:  cfg,
		logger:  log,
	}
}

// GetCart returns the user's cart, read-through cached. A missing cart is
// created empty rather than reported as an error.
func (s *Service) GetCart(ctx context.Context, userID uint) (*Cart, error) {
	cacheKey := redis.CartKey(userID)

	var cached Cart
	if err := s.redis.GetJSON(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	} else if !redis.IsMiss(err) {
		s.logger.WithError(err).Warn("Failed to read cart from cache")
	}

	userCart, err := s.loadOrCreateCart(userID)
	if err != nil {
		return nil, err
	}

	if err := s.redis.SetJSON(ctx, cacheKey, userCart, s.config.Cache.CartTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache cart")
	}

	return userCart, nil
}

// AddItem adds a variant to the user's cart. Stock is checked against the
// requested quantity of this call only, not against the accumulated line
// total; an existing line for the same variant has its quantity increased.
func (s *Service) AddItem(ctx context.Context, userID, variantID uint, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	variant, err := s.catalog.GetVariant(variantID)
	if err != nil {
		return nil, err
	}

	if variant.Stock < quantity {
		return nil, fmt.Errorf("%w: variant %d has %d units", ErrInsufficientStock, variantID, variant.Stock)
	}

	userCart, err := s.loadOrCreateCart(userID)
	if err != nil {
		return nil, err
	}

	var existing CartItem
	err = s.db.Where("cart_id = ? AND variant_id = ?", userCart.ID, variantID).First(&existing).Error
	switch {
	case err == nil:
		existing.Quantity += quantity
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to update cart item: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item := CartItem{
			CartID:    userCart.ID,
			VariantID: variantID,
			Quantity:  quantity,
		}
		if err := s.db.Create(&item).Error; err != nil {
			return nil, fmt.Errorf("failed to add cart item: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up cart item: %w", err)
	}

	return s.reloadAndInvalidate(ctx, userID, userCart.ID)
}

// UpdateItem changes the quantity of the line holding the given variant.
// No stock check here; stock is only consulted when items enter the cart.
func (s *Service) UpdateItem(ctx context.Context, userID, variantID uint, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	userCart, err := s.loadOrCreateCart(userID)
	if err != nil {
		return nil, err
	}

	var item CartItem
	if err := s.db.Where("cart_id = ? AND variant_id = ?", userCart.ID, variantID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to look up cart item: %w", err)
	}

	item.Quantity = quantity
	if err := s.db.Save(&item).Error; err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	return s.reloadAndInvalidate(ctx, userID, userCart.ID)
}

// RemoveItem deletes the line holding the given variant from the user's cart
func (s *Service) RemoveItem(ctx context.Context, userID, variantID uint) (*Cart, error) {
	userCart, err := s.loadOrCreateCart(userID)
	if err != nil {
		return nil, err
	}

	result := s.db.Where("cart_id = ? AND variant_id = ?", userCart.ID, variantID).Delete(&CartItem{})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrItemNotFound
	}

	return s.reloadAndInvalidate(ctx, userID, userCart.ID)
}

// Clear removes all lines from the user's cart
func (s *Service) Clear(ctx context.Context, userID uint) error {
	userCart, err := s.loadOrCreateCart(userID)
	if err != nil {
		return err
	}

	if err := s.db.Where("cart_id = ?", userCart.ID).Delete(&CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	s.invalidate(ctx, userID)
	return nil
}

// loadOrCreateCart fetches the user's cart with items from the database,
// creating an empty cart on first touch.
func (s *Service) loadOrCreateCart(userID uint) (*Cart, error) {
	var userCart Cart
	err := s.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("cart_items.created_at ASC")
	}).Preload("Items.Variant").Where("user_id = ?", userID).First(&userCart).Error
	if err == nil {
		return &userCart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	userCart = Cart{UserID: userID, Items: []CartItem{}}
	if err := s.db.Create(&userCart).Error; err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return &userCart, nil
}

// reloadAndInvalidate drops the cached cart before returning so the next
// read cannot observe pre-mutation state, then returns the fresh cart.
func (s *Service) reloadAndInvalidate(ctx context.Context, userID, cartID uint) (*Cart, error) {
	s.invalidate(ctx, userID)

	var userCart Cart
	err := s.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("cart_items.created_at ASC")
	}).Preload("Items.Variant").First(&userCart, cartID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to reload cart: %w", err)
	}
	return &userCart, nil
}

func (s *Service) invalidate(ctx context.Context, userID uint) {
	if err := s.redis.Del(ctx, redis.CartKey(userID)); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate cart cache")
	}
}
