// internal/domain/payment/errors.go
package payment

import "errors"

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidMethod     = errors.New("invalid payment method")
	ErrInvalidTransition = errors.New("invalid payment status transition")
)
