// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/discount"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
	"github.com/your-org/storefront-backend/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-backend/internal/pkg/invoice"
)

// SetupRoutes wires all storefront routes onto the API group
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log *logrus.Logger) {
	catalogService := catalog.NewService(db, redisClient, cfg, log)
	cartService := cart.NewService(db, redisClient, catalogService, cfg, log)
	resolver := discount.NewResolver(db)
	orderService := order.NewService(db, redisClient, cartService, resolver, cfg, log)
	paymentService := payment.NewService(db, redisClient, cfg, log)
	invoiceService := invoice.NewService(cfg)

	catalogHandler := handlers.NewCatalogHandler(catalogService)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService, invoiceService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	// Public browsing endpoints
	products := rg.Group("/products")
	{
		products.GET("", catalogHandler.ListProducts)
		products.GET("/:id", catalogHandler.GetProduct)
	}

	// Cart endpoints require an authenticated user
	cartGroup := rg.Group("/cart")
	cartGroup.Use(middleware.AuthMiddleware(cfg))
	{
		cartGroup.GET("", cartHandler.GetCart)
		cartGroup.DELETE("", cartHandler.ClearCart)
		cartGroup.POST("/items", cartHandler.AddItem)
		cartGroup.PUT("/items/:variantId", cartHandler.UpdateItem)
		cartGroup.DELETE("/items/:variantId", cartHandler.RemoveItem)
	}

	// Order endpoints
	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(cfg))
	{
		orders.POST("", orderHandler.CreateOrder)
		orders.GET("", orderHandler.GetOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.POST("/:id/discount", orderHandler.PreviewDiscount)
		orders.GET("/:id/invoice", orderHandler.GetInvoice)

		// Status transitions are an admin operation
		orders.PUT("/:id", middleware.AdminMiddleware(), orderHandler.UpdateStatus)
	}

	// Payment ledger endpoints
	payments := rg.Group("/payments")
	payments.Use(middleware.AuthMiddleware(cfg))
	{
		payments.POST("", paymentHandler.CreatePayment)
		payments.GET("", paymentHandler.GetPayments)
		payments.GET("/:id", paymentHandler.GetPayment)
		payments.PUT("/:id/status", middleware.AdminMiddleware(), paymentHandler.UpdatePaymentStatus)
	}
}
