// internal/domain/discount/entity.go
package discount

import (
	"time"

	"gorm.io/gorm"
)

// Discount kinds
const (
	KindPercentage = "percentage"
	KindFixed      = "fixed"
)

// Discount represents a redeemable discount code. For percentage discounts
// Value is a whole percent (0-100) and MaxDiscount, when set, caps the
// computed amount in cents. For fixed discounts Value is an amount in cents.
type Discount struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Code        string         `gorm:"uniqueIndex;not null;size:50" json:"code"`
	Kind        string         `gorm:"not null;size:20" json:"kind"`
	Value       int64          `gorm:"not null" json:"value"`
	MaxDiscount *int64         `json:"max_discount,omitempty"`
	StartsAt    time.Time      `gorm:"not null" json:"starts_at"`
	EndsAt      *time.Time     `json:"ends_at,omitempty"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsLive reports whether the discount window covers the given instant
func (d *Discount) IsLive(now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if now.Before(d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return false
	}
	return true
}

// TableName overrides the table name
func (Discount) TableName() string { return "discounts" }
