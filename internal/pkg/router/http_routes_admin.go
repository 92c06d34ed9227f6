package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lapakdigital/lapakstore/app/controllers"
	"github.com/lapakdigital/lapakstore/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/", controllers.HandleAdminDashboard)

	// Catalogue management
	adminGroup.Get("/products", controllers.HandleAdminProducts)
	adminGroup.Get("/products/create", controllers.HandleAdminProductForm)
	adminGroup.Get("/products/edit/:id", controllers.HandleAdminProductForm)
	adminGroup.Post("/products/save", controllers.HandleAdminProductSave)

	// Stock pools
	adminGroup.Get("/products/:id/credentials", controllers.HandleAdminCredentials)
	adminGroup.Post("/products/:id/credentials", controllers.HandleAdminCredentialsAdd)
	adminGroup.Post("/products/:id/credentials/delete/:credID", controllers.HandleAdminCredentialDelete)

	// Order ledger
	adminGroup.Get("/orders", controllers.HandleAdminOrders)
	adminGroup.Post("/orders/resend/:orderID", controllers.HandleAdminOrderResend)
	adminGroup.Post("/orders/sweep", controllers.HandleAdminSweepNow)
}
