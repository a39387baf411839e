// internal/domain/payment/service.go
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
)

// Service is the payment ledger: it records attempts against orders and
// drives the confirmation side effects.
type Service struct {
	db     *gorm.DB
	redis  *redis.Client
	config *config.Config
	logger *logrus.Logger
}

// NewService creates a new payment service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		db:     db,
		redis:  redisClient,
		config: cfg,
		logger: log,
	}
}

// Create records a new pending payment for an order. The amount is copied
// from the order total; external methods get an opaque transaction id.
func (s *Service) Create(ctx context.Context, orderID uint, method string) (*Payment, error) {
	if !ValidMethod(method) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}

	var ord order.Order
	if err := s.db.First(&ord, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	p := Payment{
		OrderID: ord.ID,
		Method:  method,
		Status:  StatusPending,
		Amount:  ord.TotalAmount,
	}
	if IsExternalMethod(method) {
		txnID := uuid.New().String()
		p.TransactionID = &txnID
	}

	if err := s.db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	return &p, nil
}

// UpdateStatus moves a payment along its lifecycle inside one transaction.
// The status row is updated with a guard on the previously observed status,
// so a transition that already happened is rejected instead of reapplied;
// confirmation side effects therefore run exactly once per payment.
//
// On success the order advances to processing and each order line's variant
// stock is decremented by the line quantity. The decrement is blind: nothing
// checks that stock covers the quantity, so concurrent confirmations that
// drain the same variant can push its stock negative.
func (s *Service) UpdateStatus(ctx context.Context, paymentID uint, newStatus string) (*Payment, error) {
	if !ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, newStatus)
	}

	var p Payment
	if err := s.db.First(&p, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}

	if !p.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, newStatus)
	}

	var productIDs []uint
	var orderID uint

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	result := tx.Model(&Payment{}).
		Where("id = ? AND status = ?", p.ID, p.Status).
		Update("status", newStatus)
	if result.Error != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to update payment status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Another request moved the payment first.
		tx.Rollback()
		return nil, fmt.Errorf("%w: payment %d already left %s", ErrInvalidTransition, p.ID, p.Status)
	}

	if newStatus == StatusSuccess {
		var ord order.Order
		if err := tx.Preload("Items").First(&ord, p.OrderID).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to load order for confirmation: %w", err)
		}

		err := tx.Model(&order.Order{}).Where("id = ?", ord.ID).
			Updates(map[string]interface{}{
				"status":     order.StatusProcessing,
				"payment_id": p.ID,
			}).Error
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to advance order: %w", err)
		}

		for _, item := range ord.Items {
			err := tx.Model(&catalog.ProductVariant{}).
				Where("id = ?", item.VariantID).
				Update("stock", gorm.Expr("stock - ?", item.Quantity)).Error
			if err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("failed to decrement stock for variant %d: %w", item.VariantID, err)
			}

			var variant catalog.ProductVariant
			if err := tx.Select("product_id").First(&variant, item.VariantID).Error; err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("failed to resolve variant %d: %w", item.VariantID, err)
			}
			productIDs = append(productIDs, variant.ProductID)
		}
		orderID = ord.ID
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit payment update: %w", err)
	}

	p.Status = newStatus
	s.invalidateAfterUpdate(ctx, &p, orderID, productIDs)

	return &p, nil
}

// FindAll lists payments filtered by order, status and method, read-through
// cached per distinct query. List entries age out by TTL; mutations outside
// this ledger do not invalidate them.
func (s *Service) FindAll(ctx context.Context, orderID uint, status, method string, page, limit int) ([]Payment, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	cacheKey := redis.PaymentListKey(orderID, status, method, page, limit)

	var cached []Payment
	if err := s.redis.GetJSON(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	} else if !redis.IsMiss(err) {
		s.logger.WithError(err).Warn("Failed to read payment list from cache")
	}

	query := s.db.Model(&Payment{})
	if orderID != 0 {
		query = query.Where("order_id = ?", orderID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if method != "" {
		query = query.Where("method = ?", method)
	}

	var payments []Payment
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	if err := s.redis.SetJSON(ctx, cacheKey, payments, s.config.Cache.PaymentTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache payment list")
	}

	return payments, nil
}

// FindOne returns a single payment by id, read-through cached
func (s *Service) FindOne(ctx context.Context, paymentID uint) (*Payment, error) {
	cacheKey := redis.PaymentKey(paymentID)

	var cached Payment
	if err := s.redis.GetJSON(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	} else if !redis.IsMiss(err) {
		s.logger.WithError(err).Warn("Failed to read payment from cache")
	}

	var p Payment
	if err := s.db.First(&p, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if err := s.redis.SetJSON(ctx, cacheKey, &p, s.config.Cache.PaymentTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache payment")
	}

	return &p, nil
}

// invalidateAfterUpdate drops every cache entry a status change could have
// staled. This runs after commit and is fire-and-forget; failures are logged
// and the write stands.
func (s *Service) invalidateAfterUpdate(ctx context.Context, p *Payment, orderID uint, productIDs []uint) {
	keys := []string{redis.PaymentKey(p.ID), redis.OrderKey(p.OrderID)}
	if orderID != 0 && orderID != p.OrderID {
		keys = append(keys, redis.OrderKey(orderID))
	}
	for _, productID := range productIDs {
		keys = append(keys, redis.ProductKey(productID))
	}
	if len(productIDs) > 0 {
		keys = append(keys, redis.ProductListingKey())
	}

	if err := s.redis.Del(ctx, keys...); err != nil {
		s.logger.WithError(err).WithField("payment_id", p.ID).Warn("Failed to invalidate payment caches")
	}
}
