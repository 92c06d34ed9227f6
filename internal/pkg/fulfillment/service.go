package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lapakdigital/lapakstore/app/models"
	"github.com/lapakdigital/lapakstore/app/repository"
)

const (
	// ResultFulfilled means a credential was (or already had been) bound and
	// delivered.
	ResultFulfilled = "FULFILLED"
	// ResultPaidNoStock means payment is confirmed but the product pool is
	// empty; the order stays PAID until an admin restocks and resends.
	ResultPaidNoStock = "PAID_NO_STOCK"
)

// Notifier is the outbound buyer channel. Delivery is best-effort: the
// engine logs failures and never rolls back a claim because a message did
// not go out.
type Notifier interface {
	Send(ctx context.Context, chatID int64, html string) error
}

// Result reports the outcome of a fulfillment attempt.
type Result struct {
	Status     string
	Credential string
	Message    string
}

// Service is the single choke point that turns "paid" into "delivered".
// Every trigger (webhook, sweeps, manual checks) funnels through Fulfill.
type Service struct {
	orders   repository.OrderRepository
	notifier Notifier
}

func NewService(orders repository.OrderRepository, notifier Notifier) *Service {
	return &Service{
		orders:   orders,
		notifier: notifier,
	}
}

// Fulfill drives a confirmed-paid order to delivery:
//
//  1. Already FULFILLED -> return the stored payload (idempotent; repeat and
//     losing-race callers take this path, no second notification).
//  2. Ensure the ledger shows PAID.
//  3. Atomically claim the oldest unused credential and bind it.
//  4. Empty pool -> PAID_NO_STOCK, apologize to the buyer.
//  5. Claimed -> notify the buyer with the credential.
//
// The claim commits before any notification is attempted.
func (s *Service) Fulfill(ctx context.Context, order *models.Order) (*Result, error) {
	if order.IsFulfilled() {
		return &Result{
			Status:     ResultFulfilled,
			Credential: order.Payload(),
			Message:    "Pesanan sudah selesai dan produk sudah dikirim",
		}, nil
	}

	if order.Status != models.OrderStatusPaid {
		if err := s.orders.MarkPaid(order.OrderID); err != nil {
			return nil, fmt.Errorf("mark order %s paid: %w", order.OrderID, err)
		}
	}

	cred, err := s.orders.ClaimAndFulfill(order.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyFulfilled) {
			// A concurrent trigger won the claim; re-read for its payload.
			fresh, ferr := s.orders.GetByOrderID(order.OrderID)
			if ferr != nil {
				return nil, fmt.Errorf("reload fulfilled order %s: %w", order.OrderID, ferr)
			}
			return &Result{
				Status:     ResultFulfilled,
				Credential: fresh.Payload(),
				Message:    "Pesanan sudah selesai dan produk sudah dikirim",
			}, nil
		}
		if errors.Is(err, repository.ErrOutOfStock) {
			log.Warnf("[Fulfillment] order %s paid but product %d has no stock", order.OrderID, order.ProductID)
			s.notify(ctx, order, StockEmptyMessage(order))
			return &Result{
				Status:  ResultPaidNoStock,
				Message: "Pembayaran berhasil dikonfirmasi, namun stok kosong. Admin akan segera menindaklanjuti.",
			}, nil
		}
		return nil, fmt.Errorf("claim credential for order %s: %w", order.OrderID, err)
	}

	log.Infof("[Fulfillment] order %s fulfilled with credential %d", order.OrderID, cred.ID)
	s.notify(ctx, order, DeliveryMessage(order, cred.Payload))

	return &Result{
		Status:     ResultFulfilled,
		Credential: cred.Payload,
		Message:    "Pembayaran berhasil dan produk sudah dikirim",
	}, nil
}

// NotifyOrderDeleted tells the buyer their order was removed and why. Used
// by the sweeper and the webhook handler for failed/expired/unknown orders.
func (s *Service) NotifyOrderDeleted(ctx context.Context, order *models.Order, reason string) {
	s.notify(ctx, order, OrderDeletedMessage(order, reason))
}

// Resend redelivers the stored payload of a FULFILLED order. Operator
// recovery path for notification failures after the claim committed.
func (s *Service) Resend(ctx context.Context, order *models.Order) error {
	if !order.IsFulfilled() {
		return fmt.Errorf("order %s is not fulfilled", order.OrderID)
	}
	if order.Buyer.TelegramID == 0 {
		return fmt.Errorf("order %s has no buyer chat to notify", order.OrderID)
	}
	return s.notifier.Send(ctx, order.Buyer.TelegramID, DeliveryMessage(order, order.Payload()))
}

func (s *Service) notify(ctx context.Context, order *models.Order, html string) {
	if s.notifier == nil || order.Buyer.TelegramID == 0 {
		return
	}
	if err := s.notifier.Send(ctx, order.Buyer.TelegramID, html); err != nil {
		log.Errorf("[Fulfillment] failed to notify buyer %d for order %s: %v", order.Buyer.TelegramID, order.OrderID, err)
	}
}
