package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// Adapter functions binding router routes to the admin controller instance

func HandleAdminDashboard(c *fiber.Ctx) error {
	return GetAdminController().HandleDashboard(c)
}

func HandleAdminProducts(c *fiber.Ctx) error {
	return GetAdminController().HandleProducts(c)
}

func HandleAdminProductForm(c *fiber.Ctx) error {
	return GetAdminController().HandleProductForm(c)
}

func HandleAdminProductSave(c *fiber.Ctx) error {
	return GetAdminController().HandleProductSave(c)
}

func HandleAdminCredentials(c *fiber.Ctx) error {
	return GetAdminController().HandleCredentials(c)
}

func HandleAdminCredentialsAdd(c *fiber.Ctx) error {
	return GetAdminController().HandleCredentialsAdd(c)
}

func HandleAdminCredentialDelete(c *fiber.Ctx) error {
	return GetAdminController().HandleCredentialDelete(c)
}

func HandleAdminOrders(c *fiber.Ctx) error {
	return GetAdminController().HandleOrders(c)
}

func HandleAdminOrderResend(c *fiber.Ctx) error {
	return GetAdminController().HandleOrderResend(c)
}

func HandleAdminSweepNow(c *fiber.Ctx) error {
	return GetAdminController().HandleSweepNow(c)
}
