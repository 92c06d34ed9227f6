package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lapakdigital/lapakstore/app/repository"
	"github.com/lapakdigital/lapakstore/internal/pkg/fulfillment"
	"github.com/lapakdigital/lapakstore/internal/pkg/gateway"
)

// WebhookController receives payment notifications from both providers on a
// single endpoint. The sender is unknown until a signature verifies, so each
// configured gateway gets a chance to authenticate the raw body.
type WebhookController struct {
	orders    repository.OrderRepository
	fulfiller *fulfillment.Service
	gateways  []gateway.Gateway
}

var webhookController *WebhookController

// InitializeWebhookController wires the webhook controller with its
// dependencies. Must be called during router setup.
func InitializeWebhookController(orders repository.OrderRepository, fulfiller *fulfillment.Service, gateways []gateway.Gateway) {
	webhookController = NewWebhookController(orders, fulfiller, gateways)
}

func NewWebhookController(orders repository.OrderRepository, fulfiller *fulfillment.Service, gateways []gateway.Gateway) *WebhookController {
	return &WebhookController{
		orders:    orders,
		fulfiller: fulfiller,
		gateways:  gateways,
	}
}

// HandlePaymentWebhook is the package-level handler bound by the router.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	if webhookController == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"ok":    false,
			"error": "webhook controller not initialized",
		})
	}
	return webhookController.HandlePaymentWebhook(c)
}

// HandlePaymentWebhook authenticates, normalizes and applies one provider
// notification. Responses: 403 on bad signature, 404 on unknown order,
// 200 {ok:true} otherwise. Fulfillment runs synchronously so the provider
// only gets a 200 once the ledger mutation committed.
func (wc *WebhookController) HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := c.Body()
	signature := c.Get("X-Callback-Signature")

	var verified gateway.Gateway
	for _, gw := range wc.gateways {
		if gw.VerifyWebhook(rawBody, signature) {
			verified = gw
			break
		}
	}
	if verified == nil {
		log.Warnf("[Webhook] rejected notification with invalid signature (%d bytes)", len(rawBody))
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"ok":    false,
			"error": "invalid_signature",
		})
	}

	ev, err := verified.ParseWebhook(rawBody)
	if err != nil {
		log.Warnf("[Webhook] %s notification verified but unparseable: %v", verified.Name(), err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":    false,
			"error": "invalid_payload",
		})
	}

	order, err := wc.orders.GetByOrderID(ev.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Webhook] %s notification for unknown order %s", verified.Name(), ev.OrderID)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"ok":    false,
				"error": "order_not_found",
			})
		}
		log.Errorf("[Webhook] order lookup for %s failed: %v", ev.OrderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":    false,
			"error": "internal_error",
		})
	}

	if ev.Amount > 0 && ev.Amount != order.PriceIDR {
		// Providers occasionally report fee-adjusted totals; keep processing
		// but leave a trail for the operator.
		log.Warnf("[Webhook] order %s amount mismatch: ledger=%d notification=%d", order.OrderID, order.PriceIDR, ev.Amount)
	}

	rec := gateway.RecordFromWebhook(ev)

	switch {
	case verified.IsSuccessful(rec):
		res, err := wc.fulfiller.Fulfill(c.Context(), order)
		if err != nil {
			log.Errorf("[Webhook] fulfillment for order %s failed: %v", order.OrderID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"ok":    false,
				"error": "fulfillment_failed",
			})
		}
		log.Infof("[Webhook] order %s resolved via %s: %s", order.OrderID, verified.Name(), res.Status)

	case verified.IsFailed(rec):
		if order.IsFulfilled() {
			// No transition out of FULFILLED: a late REFUND/CANCEL style
			// notification never removes a delivered order.
			log.Warnf("[Webhook] %s reports %s for fulfilled order %s, keeping the order", verified.Name(), ev.Status, order.OrderID)
			break
		}
		log.Infof("[Webhook] order %s failed at %s (%s), deleting", order.OrderID, verified.Name(), ev.Status)
		if err := wc.orders.Delete(order.OrderID); err != nil {
			log.Errorf("[Webhook] delete of failed order %s: %v", order.OrderID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"ok":    false,
				"error": "internal_error",
			})
		}
		wc.fulfiller.NotifyOrderDeleted(c.Context(), order, "Pembayaran "+ev.Status)

	default:
		// Pending-style notification, nothing to apply yet.
		log.Infof("[Webhook] order %s still pending at %s (%s)", order.OrderID, verified.Name(), ev.Status)
	}

	return c.JSON(fiber.Map{"ok": true})
}
