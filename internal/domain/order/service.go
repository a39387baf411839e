// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
)

// TaxRatePercent is the fixed storefront tax policy
const TaxRatePercent = 10

// Service handles order assembly and lifecycle
type Service struct {
	db       *gorm.DB
	redis    *redis.Client
	cart     *cart.Service
	resolver *discount.Resolver
	config   *config.Config
	logger   *logrus.Logger
}

// NewService creates a new order service
func NewService(db *gorm.DB, redisClient *redis.Client, cartService *cart.Service, resolver *discount.Resolver, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		db:       db,
		redis:    redisClient,
		cart:     cartService,
		resolver: resolver,
		config:   cfg,
		logger:   log,
	}
}

// CreateOrderRequest carries the checkout parameters. Items, if sent by the
// client, are ignored; the order is always assembled from the stored cart.
type CreateOrderRequest struct {
	AddressID        *uint  `json:"address_id"`
	ShippingMethodID *uint  `json:"shipping_method_id"`
	DiscountCode     string `json:"discount_code"`
	Items            []struct {
		VariantID uint `json:"variant_id"`
		Quantity  int  `json:"quantity"`
	} `json:"items"`
}

// CreateOrder assembles an order from the user's cart. Variant prices are
// read live from the database and frozen onto the order lines; the cart is
// cleared after the order transaction commits, as a separate operation.
func (s *Service) CreateOrder(ctx context.Context, userID uint, req *CreateOrderRequest) (*Order, error) {
	var userCart cart.Cart
	err := s.db.Preload("Items").Preload("Items.Variant").
		Where("user_id = ?", userID).First(&userCart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if userCart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	var subtotal int64
	for _, item := range userCart.Items {
		subtotal += item.Variant.Price * int64(item.Quantity)
	}
	tax := subtotal * TaxRatePercent / 100
	total := subtotal + tax

	var discountAmount int64
	var discountID *uint
	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		d, _, err := s.resolver.Resolve(code, subtotal)
		if err != nil {
			return nil, err
		}
		// Checkout applies the code to the tax-inclusive total, multiplicatively
		// for percentage codes and subtractively for fixed ones. The resolver's
		// preview amount is computed against the bare subtotal and can differ.
		switch d.Kind {
		case discount.KindPercentage:
			discounted := total * (100 - d.Value) / 100
			discountAmount = total - discounted
			total = discounted
		case discount.KindFixed:
			discountAmount = d.Value
			if discountAmount > total {
				discountAmount = total
			}
			total -= discountAmount
		}
		discountID = &d.ID
	}

	newOrder := Order{
		OrderNumber:    generateOrderNumber(),
		UserID:         userID,
		Status:         StatusPending,
		SubtotalAmount: subtotal,
		TaxAmount:      tax,
		DiscountAmount: discountAmount,
		TotalAmount:    total,
		DiscountID:     discountID,
	}
	for _, item := range userCart.Items {
		newOrder.Items = append(newOrder.Items, OrderItem{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Price:     item.Variant.Price,
		})
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&newOrder).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	// Cart clearing is outside the order transaction. A failure here leaves
	// an already ordered cart behind; the order itself stands.
	if err := s.cart.Clear(ctx, userID); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"order_id": newOrder.ID,
		}).Error("Failed to clear cart after order creation")
	}

	return &newOrder, nil
}

// GetOrder returns a single order owned by the user, read-through cached
func (s *Service) GetOrder(ctx context.Context, userID, orderID uint) (*Order, error) {
	cacheKey := redis.OrderKey(orderID)

	var cached Order
	if err := s.redis.GetJSON(ctx, cacheKey, &cached); err == nil {
		if cached.UserID != userID {
			return nil, ErrOrderNotFound
		}
		return &cached, nil
	} else if !redis.IsMiss(err) {
		s.logger.WithError(err).Warn("Failed to read order from cache")
	}

	var ord Order
	if err := s.db.Preload("Items").First(&ord, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if ord.UserID != userID {
		return nil, ErrOrderNotFound
	}

	if err := s.redis.SetJSON(ctx, cacheKey, &ord, s.config.Cache.OrderTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache order")
	}

	return &ord, nil
}

// GetOrders returns the user's orders, newest first, paginated
func (s *Service) GetOrders(userID uint, page, limit int) ([]Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := s.db.Model(&Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	err := s.db.Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus moves an order along its lifecycle. Illegal moves fail with
// ErrInvalidTransition and write nothing.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, newStatus string) (*Order, error) {
	var ord Order
	if err := s.db.Preload("Items").First(&ord, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if !ord.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ord.Status, newStatus)
	}

	if err := s.db.Model(&ord).Update("status", newStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	ord.Status = newStatus

	s.invalidate(ctx, orderID)

	return &ord, nil
}

// PreviewDiscount resolves a code against an existing order's subtotal and
// returns the amount it would remove. The order's frozen totals are not
// touched; codes are applied for real only at checkout.
func (s *Service) PreviewDiscount(ctx context.Context, userID, orderID uint, code string) (*discount.Discount, int64, error) {
	ord, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, 0, err
	}
	return s.resolver.Resolve(code, ord.SubtotalAmount)
}

func (s *Service) invalidate(ctx context.Context, orderID uint) {
	if err := s.redis.Del(ctx, redis.OrderKey(orderID)); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("Failed to invalidate order cache")
	}
}

// generateOrderNumber builds a human readable unique order number
func generateOrderNumber() string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
