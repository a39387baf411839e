// internal/domain/discount/resolver_test.go
package discount

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&Discount{}))
	return db
}

func seedCode(t *testing.T, db *gorm.DB, d Discount) Discount {
	t.Helper()
	if d.StartsAt.IsZero() {
		d.StartsAt = time.Now().Add(-time.Hour)
	}
	d.IsActive = true
	require.NoError(t, db.Create(&d).Error)
	return d
}

func TestResolvePercentage(t *testing.T) {
	db := setupTestDB(t)
	seedCode(t, db, Discount{Code: "SAVE10", Kind: KindPercentage, Value: 10})
	r := NewResolver(db)

	d, amount, err := r.Resolve("SAVE10", 200000)
	require.NoError(t, err)
	assert.Equal(t, KindPercentage, d.Kind)
	assert.Equal(t, int64(20000), amount)
}

func TestResolvePercentageCappedAtMax(t *testing.T) {
	db := setupTestDB(t)
	maxDiscount := int64(5000)
	seedCode(t, db, Discount{Code: "SAVE10", Kind: KindPercentage, Value: 10, MaxDiscount: &maxDiscount})
	r := NewResolver(db)

	_, amount, err := r.Resolve("SAVE10", 200000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), amount)
}

func TestResolveFixed(t *testing.T) {
	db := setupTestDB(t)
	seedCode(t, db, Discount{Code: "FLAT500", Kind: KindFixed, Value: 50000})
	r := NewResolver(db)

	_, amount, err := r.Resolve("FLAT500", 200000)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), amount)
}

func TestResolveFixedNeverExceedsSubtotal(t *testing.T) {
	db := setupTestDB(t)
	seedCode(t, db, Discount{Code: "FLAT500", Kind: KindFixed, Value: 50000})
	r := NewResolver(db)

	_, amount, err := r.Resolve("FLAT500", 30000)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), amount)
}

func TestResolveUnknownCode(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db)

	_, _, err := r.Resolve("NOPE", 200000)
	require.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestResolveExpiredCode(t *testing.T) {
	db := setupTestDB(t)
	ended := time.Now().Add(-time.Hour)
	seedCode(t, db, Discount{
		Code:     "OLD",
		Kind:     KindFixed,
		Value:    1000,
		StartsAt: time.Now().Add(-48 * time.Hour),
		EndsAt:   &ended,
	})
	r := NewResolver(db)

	_, _, err := r.Resolve("OLD", 200000)
	require.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestResolveNotYetStartedCode(t *testing.T) {
	db := setupTestDB(t)
	seedCode(t, db, Discount{
		Code:     "SOON",
		Kind:     KindFixed,
		Value:    1000,
		StartsAt: time.Now().Add(time.Hour),
	})
	r := NewResolver(db)

	_, _, err := r.Resolve("SOON", 200000)
	require.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestResolveBlankCode(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db)

	_, _, err := r.Resolve("  ", 200000)
	require.ErrorIs(t, err, ErrInvalidDiscount)
}
