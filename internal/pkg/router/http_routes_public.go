package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lapakdigital/lapakstore/app/controllers"
	"github.com/lapakdigital/lapakstore/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth
	app.Get("/login", controllers.HandleAuthLogin)
	app.Post("/login", controllers.HandleAuthLogin)
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Payment provider webhooks (no CSRF, signature-verified in controller).
	// The provider-specific paths stay registered so existing gateway
	// dashboard configs keep working.
	app.Post("/payment/webhook", controllers.HandlePaymentWebhook)
	app.Post("/tripay/webhook", controllers.HandlePaymentWebhook)
	app.Post("/midtrans/webhook", controllers.HandlePaymentWebhook)

	// Telegram bot updates
	app.Post("/telegram/webhook", controllers.HandleTelegramWebhook)
}
