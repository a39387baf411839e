// internal/domain/payment/entity.go
package payment

import (
	"time"

	"gorm.io/gorm"
)

// Payment statuses
const (
	StatusPending  = "pending"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusRefunded = "refunded"
)

// Payment methods
const (
	MethodCard       = "card"
	MethodWallet     = "wallet"
	MethodNetbanking = "netbanking"
	MethodCOD        = "cod"
)

// Payment records one payment attempt against an order. Amount is always
// derived from the order total at creation, in cents; a caller-supplied
// amount is never trusted. TransactionID is set only for external methods.
type Payment struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	OrderID       uint           `gorm:"not null;index" json:"order_id"`
	Method        string         `gorm:"not null;size:20" json:"method"`
	Status        string         `gorm:"not null;default:'pending';size:20" json:"status"`
	Amount        int64          `gorm:"not null" json:"amount"`
	TransactionID *string        `gorm:"size:100" json:"transaction_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// validTransitions maps each payment status to the statuses it may move to
var validTransitions = map[string][]string{
	StatusPending:  {StatusSuccess, StatusFailed},
	StatusSuccess:  {StatusRefunded},
	StatusFailed:   {},
	StatusRefunded: {},
}

// CanTransitionTo reports whether the payment may move to the given status
func (p *Payment) CanTransitionTo(status string) bool {
	for _, allowed := range validTransitions[p.Status] {
		if allowed == status {
			return true
		}
	}
	return false
}

// IsExternalMethod reports whether the method settles through an external
// provider and therefore carries an opaque transaction id.
func IsExternalMethod(method string) bool {
	switch method {
	case MethodCard, MethodWallet, MethodNetbanking:
		return true
	default:
		return false
	}
}

// ValidMethod reports whether the method is one this ledger accepts
func ValidMethod(method string) bool {
	switch method {
	case MethodCard, MethodWallet, MethodNetbanking, MethodCOD:
		return true
	default:
		return false
	}
}

// ValidStatus reports whether the status is part of the payment lifecycle
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusSuccess, StatusFailed, StatusRefunded:
		return true
	default:
		return false
	}
}

// TableName overrides the table name
func (Payment) TableName() string { return "payments" }
