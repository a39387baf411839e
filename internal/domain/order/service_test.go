// internal/domain/order/service_test.go
package order

import (
	"context"
	"io"
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
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
)

type testEnv struct {
	db      *gorm.DB
	redis   *redis.Client
	mr      *miniredis.Miniredis
	cart    *cart.Service
	orders  *Service
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
		&catalog.Brand{},
		&catalog.Product{},
		&catalog.ProductVariant{},
		&discount.Discount{},
		&cart.Cart{},
		&cart.CartItem{},
		&Order{},
		&OrderItem{},
	))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	cfg := &config.Config{
		Cache: config.CacheConfig{
			CartTTL:    300 * time.Second,
			OrderTTL:   300 * time.Second,
			PaymentTTL: 30 * time.Minute,
			CatalogTTL: 10 * time.Minute,
		},
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	catalogService := catalog.NewService(db, redisClient, cfg, log)
	cartService := cart.NewService(db, redisClient, catalogService, cfg, log)
	resolver := discount.NewResolver(db)
	orderService := NewService(db, redisClient, cartService, resolver, cfg, log)

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
		cart:    cartService,
		orders:  orderService,
		variant: &product.Variants[0],
	}
}

func (e *testEnv) seedDiscount(t *testing.T, d discount.Discount) discount.Discount {
	t.Helper()
	if d.StartsAt.IsZero() {
		d.StartsAt = time.Now().Add(-time.Hour)
	}
	d.IsActive = true
	require.NoError(t, e.db.Create(&d).Error)
	return d
}

func TestCreateOrderWithoutDiscount(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.cart.AddItem(ctx, 1, env.variant.ID, 2)
	require.NoError(t, err)

	ord, err := env.orders.CreateOrder(ctx, 1, &CreateOrderRequest{})
	require.NoError(t, err)

	assert.Equal(t, int64(200000), ord.SubtotalAmount)
	assert.Equal(t, int64(20000), ord.TaxAmount)
	assert.Equal(t, int64(0), ord.DiscountAmount)
	assert.Equal(t, int64(220000), ord.TotalAmount)
	assert.Equal(t, StatusPending, ord.Status)
	require.Len(t, ord.Items, 1)
	assert.Equal(t, int64(100000), ord.Items[0].Price)
	assert.Equal(t, 2, ord.Items[0].Quantity)
}

func TestCreateOrderWithPercentageDiscount(t *testing.T) {
	env := setupEnv(t)
	env.seedDiscount(t, discount.Discount{Code: "SAVE10", Kind: discount.KindPercentage, Value: 10})
	ctx := context.Background()

	_, err := env.cart.AddItem(ctx, 1, env.variant.ID, 2)
	require.NoError(t, err)

	ord, err := env.orders.CreateOrder(ctx, 1, &CreateOrderRequest{DiscountCode: "SAVE10"})
	require.NoError(t, err)

	// Percentage codes multiply down the tax-inclusive total.
	assert.Equal(t, int64(198000), ord.TotalAmount)
	assert.Equal(t, int64(22000), ord.DiscountAmount)
	require.NotNil(t, ord.DiscountID)
}

func TestCreateOrderWithFixedDiscount(t *testing.T) {
	env := setupEnv(t)
	env.seedDiscount(t, discount.Discount{Code: "FLAT500", Kind: discount.KindFixed, Value: 50000})
	ctx := context.Background()

	_, err := env.cart.AddItem(ctx, 1, env.variant.ID, 2)
	require.NoError(t, err)

	ord, err := env.orders.CreateOrder(ctx, 1, &CreateOrderRequest{DiscountCode: "FLAT500"})
	require.NoError(t, err)

	// Fixed codes subtract from the tax-inclusive total.
	assert.Equal(t, int64(170000), ord.TotalAmount)
	assert.Equal(t, int64(50000), ord.DiscountAmount)
}

func TestTotalRecomputesFromFrozenLines(t *testing.T) {
	env := setupEnv(t)
	env.seedDiscount(t, discount.Discount{Code: "FLAT500", Kind: discount.KindFixed, Value: 50000})
	ctx := context.Background()

	_, err := env.cart.AddItem(ctx, 1, env.variant.ID, 2)
	require.NoError(t, err)

	ord, err := env.orders.CreateOrder(ctx, 1, &CreateOrderRequest{DiscountCode: "FLAT500"})
	require.NoError(t, err)

	var fromLines int64
	for _, item := range ord.Items {
		fromLines += item.Price * int64(item.Quantity)
	}
	assert.Equal(t, ord.TotalAmount, fromLines+ord.TaxAmount-ord.DiscountAmount)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	env := setupEnv(t)

	_, err := env.orders.CreateOrder(context.Background(), 1, &CreateOrderRequest{})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateOrderInvalidDiscount(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.cart.AddItem(ctx, 1, env.variant.ID, 2)
	require.NoError(t, err)

	_, err = env.orders.CreateOrder(ctx, 1, &CreateOrderRequest{DiscountCode: "NOPE"})
	require.ErrorIs(t, err, discount.ErrInvalidDiscount)

	// The failed checkout must not consume the cart.
	userCart, err := env.cart.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.False(t, userCart.IsEmpty())
}

func TestCreateOrderClearsCart(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.cart.AddItem(ctx, 1, env.variant.ID, 2)
	require.NoError(t, err)

	_, err = env.orders.CreateOrder(ctx, 1, &CreateOrderRequest{})
	require.NoError(t, err)

	userCart, err := env.cart.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.True(t, userCart.IsEmpty())
}

func TestOrderPricesStayFrozenAfterCatalogChange(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.cart.AddItem(ctx, 1, env.variant.ID, 2)
	require.NoError(t, err)

	ord, err := env.orders.CreateOrder(ctx, 1, &CreateOrderRequest{})
	require.NoError(t, err)

	// Reprice the variant after checkout; the stored order must not move.
	require.NoError(t, env.db.Model(&catalog.ProductVariant{}).
		Where("id = ?", env.variant.ID).
		Update("price", 999999).Error)

	reloaded, err := env.orders.GetOrder(ctx, 1, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), reloaded.Items[0].Price)
	assert.Equal(t, int64(220000), reloaded.TotalAmount)
}

func TestGetOrderOwnership(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.cart.AddItem(ctx, 1, env.variant.ID, 1)
	require.NoError(t, err)
	ord, err := env.orders.CreateOrder(ctx, 1, &CreateOrderRequest{})
	require.NoError(t, err)

	_, err = env.orders.GetOrder(ctx, 2, ord.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateStatusTransitions(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.cart.AddItem(ctx, 1, env.variant.ID, 1)
	require.NoError(t, err)
	ord, err := env.orders.CreateOrder(ctx, 1, &CreateOrderRequest{})
	require.NoError(t, err)

	// pending -> shipped skips processing and is rejected.
	_, err = env.orders.UpdateStatus(ctx, ord.ID, StatusShipped)
	require.ErrorIs(t, err, ErrInvalidTransition)

	updated, err := env.orders.UpdateStatus(ctx, ord.ID, StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, updated.Status)

	updated, err = env.orders.UpdateStatus(ctx, ord.ID, StatusShipped)
	require.NoError(t, err)
	updated, err = env.orders.UpdateStatus(ctx, ord.ID, StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, updated.Status)

	// delivered is terminal.
	_, err = env.orders.UpdateStatus(ctx, ord.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPreviewDiscountDoesNotMutateOrder(t *testing.T) {
	env := setupEnv(t)
	maxDiscount := int64(15000)
	env.seedDiscount(t, discount.Discount{Code: "SAVE10", Kind: discount.KindPercentage, Value: 10, MaxDiscount: &maxDiscount})
	ctx := context.Background()

	_, err := env.cart.AddItem(ctx, 1, env.variant.ID, 2)
	require.NoError(t, err)
	ord, err := env.orders.CreateOrder(ctx, 1, &CreateOrderRequest{})
	require.NoError(t, err)

	d, amount, err := env.orders.PreviewDiscount(ctx, 1, ord.ID, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", d.Code)
	// Preview runs against the bare subtotal and honors the cap.
	assert.Equal(t, int64(15000), amount)

	reloaded, err := env.orders.GetOrder(ctx, 1, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(220000), reloaded.TotalAmount)
	assert.Equal(t, int64(0), reloaded.DiscountAmount)
}

func TestGetOrdersPagination(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.cart.AddItem(ctx, 1, env.variant.ID, 1)
		require.NoError(t, err)
		_, err = env.orders.CreateOrder(ctx, 1, &CreateOrderRequest{})
		require.NoError(t, err)
	}

	orders, total, err := env.orders.GetOrders(1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, orders, 2)

	orders, _, err = env.orders.GetOrders(1, 2, 2)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}
