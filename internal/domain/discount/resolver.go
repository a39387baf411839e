// internal/domain/discount/resolver.go
package discount

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrInvalidDiscount covers unknown, inactive, not yet started and expired
// codes. Callers get the same error in all four cases so the response does
// not leak which codes exist.
var ErrInvalidDiscount = errors.New("invalid discount code")

// Resolver looks up discount codes and computes discount amounts
type Resolver struct {
	db  *gorm.DB
	now func() time.Time
}

// NewResolver creates a new discount resolver
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db, now: time.Now}
}

// Resolve validates a code against the current time and returns the discount
// together with the amount it removes from the given subtotal, in cents.
func (r *Resolver) Resolve(code string, subtotal int64) (*Discount, int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, 0, ErrInvalidDiscount
	}

	var d Discount
	if err := r.db.Where("code = ?", code).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrInvalidDiscount
		}
		return nil, 0, fmt.Errorf("failed to look up discount: %w", err)
	}

	if !d.IsLive(r.now()) {
		return nil, 0, ErrInvalidDiscount
	}

	return &d, r.Amount(&d, subtotal), nil
}

// Amount computes how much the discount removes from a subtotal, in cents
func (r *Resolver) Amount(d *Discount, subtotal int64) int64 {
	switch d.Kind {
	case KindPercentage:
		amount := subtotal * d.Value / 100
		if d.MaxDiscount != nil && amount > *d.MaxDiscount {
			amount = *d.MaxDiscount
		}
		return amount
	case KindFixed:
		if d.Value > subtotal {
			return subtotal
		}
		return d.Value
	default:
		return 0
	}
}
