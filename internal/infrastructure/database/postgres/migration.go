// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
)

// Migrate runs all database migrations
func Migrate(db *gorm.DB) error {
	fmt.Println("🔄 Running database migrations...")

	if err := db.AutoMigrate(
		&user.User{},
		&catalog.Category{},
		&catalog.Brand{},
		&catalog.Product{},
		&catalog.ProductVariant{},
		&discount.Discount{},
		&cart.Cart{},
		&cart.CartItem{},
		&order.Order{},
		&order.OrderItem{},
		&payment.Payment{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fmt.Println("✅ Database migrations completed successfully")
	return nil
}

// CreateIndexes creates additional database indexes for performance
func CreateIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_payments_order_status ON payments(order_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_product_variants_product ON product_variants(product_id) WHERE deleted_at IS NULL",
		"CREATE INDEX IF NOT EXISTS idx_discounts_window ON discounts(starts_at, ends_at) WHERE is_active = true",
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	fmt.Println("✅ Database indexes created successfully")
	return nil
}

// SeedInitialData seeds the database with initial data for development
func SeedInitialData(db *gorm.DB, adminEmail, adminPassword string) error {
	if err := seedAdminUser(db, adminEmail, adminPassword); err != nil {
		return err
	}
	if err := seedCatalog(db); err != nil {
		return err
	}
	if err := seedDiscounts(db); err != nil {
		return err
	}

	fmt.Println("✅ Initial data seeded successfully")
	return nil
}

func seedAdminUser(db *gorm.DB, email, password string) error {
	var count int64
	db.Model(&user.User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return nil
	}

	hashed, err := auth.HashPassword(password, 0)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := user.User{
		Email:     email,
		Password:  hashed,
		FirstName: "Store",
		LastName:  "Admin",
		IsActive:  true,
		IsAdmin:   true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	return nil
}

func seedCatalog(db *gorm.DB) error {
	var count int64
	db.Model(&catalog.Product{}).Count(&count)
	if count > 0 {
		return nil
	}

	category := catalog.Category{Name: "Apparel", Slug: "apparel", IsActive: true}
	if err := db.Create(&category).Error; err != nil {
		return fmt.Errorf("failed to seed category: %w", err)
	}

	brand := catalog.Brand{Name: "Storefront Basics", Slug: "storefront-basics", IsActive: true}
	if err := db.Create(&brand).Error; err != nil {
		return fmt.Errorf("failed to seed brand: %w", err)
	}

	product := catalog.Product{
		SKU:         "TEE-001",
		Name:        "Classic Tee",
		Slug:        "classic-tee",
		Description: "Plain cotton tee",
		CategoryID:  category.ID,
		BrandID:     &brand.ID,
		IsActive:    true,
		Variants: []catalog.ProductVariant{
			{SKU: "TEE-001-S", Name: "Classic Tee / S", Price: 100000, Stock: 50, IsActive: true},
			{SKU: "TEE-001-M", Name: "Classic Tee / M", Price: 100000, Stock: 50, IsActive: true},
			{SKU: "TEE-001-L", Name: "Classic Tee / L", Price: 110000, Stock: 25, IsActive: true},
		},
	}
	if err := db.Create(&product).Error; err != nil {
		return fmt.Errorf("failed to seed product: %w", err)
	}
	return nil
}

func seedDiscounts(db *gorm.DB) error {
	var count int64
	db.Model(&discount.Discount{}).Count(&count)
	if count > 0 {
		return nil
	}

	maxDiscount := int64(100000)
	ends := time.Now().AddDate(1, 0, 0)
	codes := []discount.Discount{
		{
			Code:        "WELCOME10",
			Kind:        discount.KindPercentage,
			Value:       10,
			MaxDiscount: &maxDiscount,
			StartsAt:    time.Now().AddDate(0, -1, 0),
			EndsAt:      &ends,
			IsActive:    true,
		},
		{
			Code:     "FLAT500",
			Kind:     discount.KindFixed,
			Value:    50000,
			StartsAt: time.Now().AddDate(0, -1, 0),
			IsActive: true,
		},
	}
	if err := db.Create(&codes).Error; err != nil {
		return fmt.Errorf("failed to seed discounts: %w", err)
	}
	return nil
}
