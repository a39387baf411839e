// internal/infrastructure/database/redis/keys.go
package redis

import "fmt"

// Cache keys are derived deterministically from the aggregate's identity or
// query so that the writer that stales an aggregate can re-derive exactly the
// keys to delete.

// CartKey returns the cache key for a user's cart aggregate
func CartKey(userID uint) string {
	return fmt.Sprintf("cart:user:%d", userID)
}

// OrderKey returns the cache key for a single order
func OrderKey(orderID uint) string {
	return fmt.Sprintf("order:%d", orderID)
}

// PaymentKey returns the cache key for a single payment
func PaymentKey(paymentID uint) string {
	return fmt.Sprintf("payment:%d", paymentID)
}

// PaymentListKey returns the cache key for a filtered payment listing
func PaymentListKey(orderID uint, status, method string, page, limit int) string {
	return fmt.Sprintf("payments:o%d:s%s:m%s:p%d:l%d", orderID, status, method, page, limit)
}

// ProductKey returns the cache key for a single product page
func ProductKey(productID uint) string {
	return fmt.Sprintf("catalog:product:%d", productID)
}

// ProductListingKey returns the cache key for the active product listing
func ProductListingKey() string {
	return "catalog:products"
}
