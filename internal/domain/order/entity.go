// internal/domain/order/entity.go
package order

import (
	"time"

	"gorm.io/gorm"
)

// Order statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Order is an immutable snapshot of a checkout. All amounts are in cents and
// frozen at creation; they are never recomputed from live catalog prices.
type Order struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OrderNumber    string         `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	Status         string         `gorm:"not null;default:'pending';size:20" json:"status"`
	SubtotalAmount int64          `gorm:"not null" json:"subtotal_amount"`
	TaxAmount      int64          `gorm:"not null" json:"tax_amount"`
	DiscountAmount int64          `gorm:"not null;default:0" json:"discount_amount"`
	TotalAmount    int64          `gorm:"not null" json:"total_amount"`
	DiscountID     *uint          `gorm:"index" json:"discount_id,omitempty"`
	PaymentID      *uint          `gorm:"index" json:"payment_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
}

// OrderItem is one frozen line of an order. Price is the variant price read
// at assembly time, in cents, and is never re-derived afterwards.
type OrderItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	VariantID uint      `gorm:"not null;index" json:"variant_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	Price     int64     `gorm:"not null" json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// validTransitions maps each order status to the statuses it may move to
var validTransitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransitionTo reports whether the order may move to the given status
func (o *Order) CanTransitionTo(status string) bool {
	for _, allowed := range validTransitions[o.Status] {
		if allowed == status {
			return true
		}
	}
	return false
}

// TableName overrides
func (Order) TableName() string     { return "orders" }
func (OrderItem) TableName() string { return "order_items" }
