// internal/domain/payment/service_test.go
package payment

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
)

type testEnv struct {
	db      *gorm.DB
	redis   *redis.Client
	mr      *miniredis.Miniredis
	svc     *Service
	variant *catalog.ProductVariant
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&catalog.Category{},
		&catalog.Product{},
		&catalog.ProductVariant{},
		&order.Order{},
		&order.OrderItem{},
		&Payment{},
	))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	cfg := &config.Config{
		Cache: config.CacheConfig{
			OrderTTL:   300 * time.Second,
			PaymentTTL: 30 * time.Minute,
			CatalogTTL: 10 * time.Minute,
		},
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	category := catalog.Category{Name: "Apparel", Slug: "apparel", IsActive: true}
	require.NoError(t, db.Create(&category).Error)
	product := catalog.Product{
		SKU:        "TEE-001",
		Name:       "Classic Tee",
		Slug:       "classic-tee",
		CategoryID: category.ID,
		IsActive:   true,
		Variants: []catalog.ProductVariant{
			{SKU: "TEE-001-M", Name: "Classic Tee / M", Price: 100000, Stock: 50, IsActive: true},
		},
	}
	require.NoError(t, db.Create(&product).Error)

	return &testEnv{
		db:      db,
		redis:   redisClient,
		mr:      mr,
		svc:     NewService(db, redisClient, cfg, log),
		variant: &product.Variants[0],
	}
}

// seedOrder inserts an order with one frozen line for the env's variant
func (e *testEnv) seedOrder(t *testing.T, userID uint, qty int) *order.Order {
	t.Helper()

	ord := order.Order{
		OrderNumber:    fmt.Sprintf("ORD-TEST-%d-%d", userID, time.Now().UnixNano()),
		UserID:         userID,
		Status:         order.StatusPending,
		SubtotalAmount: e.variant.Price * int64(qty),
		TaxAmount:      e.variant.Price * int64(qty) / 10,
		TotalAmount:    e.variant.Price * int64(qty) * 11 / 10,
		Items: []order.OrderItem{
			{VariantID: e.variant.ID, Quantity: qty, Price: e.variant.Price},
		},
	}
	require.NoError(t, e.db.Create(&ord).Error)
	return &ord
}

func (e *testEnv) stock(t *testing.T) int {
	t.Helper()
	var variant catalog.ProductVariant
	require.NoError(t, e.db.First(&variant, e.variant.ID).Error)
	return variant.Stock
}

func TestCreateDerivesAmountFromOrder(t *testing.T) {
	env := setupEnv(t)
	ord := env.seedOrder(t, 1, 2)

	p, err := env.svc.Create(context.Background(), ord.ID, MethodCard)
	require.NoError(t, err)

	assert.Equal(t, ord.TotalAmount, p.Amount)
	assert.Equal(t, StatusPending, p.Status)
	require.NotNil(t, p.TransactionID)
	assert.NotEmpty(t, *p.TransactionID)
}

func TestCreateDirectMethodHasNoTransactionID(t *testing.T) {
	env := setupEnv(t)
	ord := env.seedOrder(t, 1, 1)

	p, err := env.svc.Create(context.Background(), ord.ID, MethodCOD)
	require.NoError(t, err)
	assert.Nil(t, p.TransactionID)
}

func TestCreateMissingOrder(t *testing.T) {
	env := setupEnv(t)

	_, err := env.svc.Create(context.Background(), 9999, MethodCard)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCreateRejectsUnknownMethod(t *testing.T) {
	env := setupEnv(t)
	ord := env.seedOrder(t, 1, 1)

	_, err := env.svc.Create(context.Background(), ord.ID, "barter")
	require.ErrorIs(t, err, ErrInvalidMethod)
}

func TestSuccessAdvancesOrderAndDecrementsStock(t *testing.T) {
	env := setupEnv(t)
	ord := env.seedOrder(t, 1, 2)
	ctx := context.Background()

	p, err := env.svc.Create(ctx, ord.ID, MethodCard)
	require.NoError(t, err)

	updated, err := env.svc.UpdateStatus(ctx, p.ID, StatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, updated.Status)

	var reloaded order.Order
	require.NoError(t, env.db.First(&reloaded, ord.ID).Error)
	assert.Equal(t, order.StatusProcessing, reloaded.Status)
	require.NotNil(t, reloaded.PaymentID)
	assert.Equal(t, p.ID, *reloaded.PaymentID)

	assert.Equal(t, 48, env.stock(t))
}

func TestSuccessSideEffectsApplyExactlyOnce(t *testing.T) {
	env := setupEnv(t)
	ord := env.seedOrder(t, 1, 2)
	ctx := context.Background()

	p, err := env.svc.Create(ctx, ord.ID, MethodCard)
	require.NoError(t, err)

	_, err = env.svc.UpdateStatus(ctx, p.ID, StatusSuccess)
	require.NoError(t, err)

	// Replaying the confirmation is rejected and decrements nothing.
	_, err = env.svc.UpdateStatus(ctx, p.ID, StatusSuccess)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 48, env.stock(t))
}

func TestInvalidTransitions(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	ord := env.seedOrder(t, 1, 1)
	p, err := env.svc.Create(ctx, ord.ID, MethodCOD)
	require.NoError(t, err)

	// pending cannot refund.
	_, err = env.svc.UpdateStatus(ctx, p.ID, StatusRefunded)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.svc.UpdateStatus(ctx, p.ID, StatusFailed)
	require.NoError(t, err)

	// failed is terminal.
	_, err = env.svc.UpdateStatus(ctx, p.ID, StatusSuccess)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 50, env.stock(t))
}

func TestSuccessCanRefund(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	ord := env.seedOrder(t, 1, 1)
	p, err := env.svc.Create(ctx, ord.ID, MethodCard)
	require.NoError(t, err)

	_, err = env.svc.UpdateStatus(ctx, p.ID, StatusSuccess)
	require.NoError(t, err)

	updated, err := env.svc.UpdateStatus(ctx, p.ID, StatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, updated.Status)

	// Refunds do not restock.
	assert.Equal(t, 49, env.stock(t))
}

// Confirming several orders that drain the same variant pushes its stock
// negative: the decrement checks nothing. The fix is a conditional decrement
// guarded by the updated row count inside the confirmation transaction.
func TestConcurrentConfirmationsOversellStock(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	require.NoError(t, env.db.Model(&catalog.ProductVariant{}).
		Where("id = ?", env.variant.ID).
		Update("stock", 5).Error)

	var paymentIDs []uint
	for userID := uint(1); userID <= 3; userID++ {
		ord := env.seedOrder(t, userID, 3)
		p, err := env.svc.Create(ctx, ord.ID, MethodCard)
		require.NoError(t, err)
		paymentIDs = append(paymentIDs, p.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(paymentIDs))
	for i, id := range paymentIDs {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			_, errs[i] = env.svc.UpdateStatus(ctx, id, StatusSuccess)
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	// 5 in stock, 9 confirmed.
	assert.Equal(t, -4, env.stock(t))
}

func TestFindOneReadsThroughCache(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	ord := env.seedOrder(t, 1, 1)
	p, err := env.svc.Create(ctx, ord.ID, MethodCard)
	require.NoError(t, err)

	_, err = env.svc.FindOne(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, env.mr.Exists(redis.PaymentKey(p.ID)))

	_, err = env.svc.FindOne(ctx, 9999)
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestUpdateStatusInvalidatesPaymentCache(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	ord := env.seedOrder(t, 1, 1)
	p, err := env.svc.Create(ctx, ord.ID, MethodCard)
	require.NoError(t, err)

	_, err = env.svc.FindOne(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, env.mr.Exists(redis.PaymentKey(p.ID)))

	_, err = env.svc.UpdateStatus(ctx, p.ID, StatusSuccess)
	require.NoError(t, err)
	assert.False(t, env.mr.Exists(redis.PaymentKey(p.ID)))

	fresh, err := env.svc.FindOne(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, fresh.Status)
}

func TestFindAllFiltersAndCaches(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	first := env.seedOrder(t, 1, 1)
	second := env.seedOrder(t, 2, 1)

	_, err := env.svc.Create(ctx, first.ID, MethodCard)
	require.NoError(t, err)
	p2, err := env.svc.Create(ctx, second.ID, MethodCOD)
	require.NoError(t, err)

	payments, err := env.svc.FindAll(ctx, 0, "", MethodCOD, 1, 20)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, p2.ID, payments[0].ID)

	// Distinct queries land under distinct keys.
	assert.True(t, env.mr.Exists(redis.PaymentListKey(0, "", MethodCOD, 1, 20)))
	assert.False(t, env.mr.Exists(redis.PaymentListKey(0, "", MethodCard, 1, 20)))
}
