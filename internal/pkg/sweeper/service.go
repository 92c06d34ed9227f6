package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lapakdigital/lapakstore/app/models"
	"github.com/lapakdigital/lapakstore/app/repository"
	"github.com/lapakdigital/lapakstore/internal/pkg/fulfillment"
	"github.com/lapakdigital/lapakstore/internal/pkg/gateway"
)

const (
	sweepBatchLimit      = 100
	staleSweepBatchLimit = 50
	sweepCallDelay       = 200 * time.Millisecond
	staleSweepCallDelay  = 300 * time.Millisecond
	gatewayQueryTimeout  = 20 * time.Second
)

// Summary reports what one sweep did with its batch.
type Summary struct {
	Processed int
	Fulfilled int
	Deleted   int
	Kept      int
}

// CheckResult is the outcome of classifying one order against the gateway.
type CheckResult struct {
	// Status is one of PENDING, FULFILLED, PAID_NO_STOCK, DELETED, NOT_FOUND.
	Status     string
	Message    string
	Credential string
}

const (
	CheckPending     = "PENDING"
	CheckFulfilled   = fulfillment.ResultFulfilled
	CheckPaidNoStock = fulfillment.ResultPaidNoStock
	CheckDeleted     = "DELETED"
	CheckNotFound    = "NOT_FOUND"
)

// Service reconciles ledger state against authoritative gateway state. The
// same classification drives the periodic sweeps and the buyer's manual
// "check payment" action, so there is exactly one code path from gateway
// status to ledger mutation.
type Service struct {
	orders    repository.OrderRepository
	gw        gateway.Gateway
	fulfiller *fulfillment.Service
}

func NewService(orders repository.OrderRepository, gw gateway.Gateway, fulfiller *fulfillment.Service) *Service {
	return &Service{
		orders:    orders,
		gw:        gw,
		fulfiller: fulfiller,
	}
}

// Sweep re-checks up to 100 PENDING orders against the gateway. Each order
// is handled independently: a failing order is logged and the batch
// continues. Calls are sequential with a small delay to respect gateway
// rate limits.
func (s *Service) Sweep(ctx context.Context) (Summary, error) {
	orders, err := s.orders.ListPending(sweepBatchLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("list pending orders: %w", err)
	}

	log.Infof("[Sweeper] checking %d pending orders", len(orders))
	return s.runBatch(ctx, orders, sweepCallDelay), nil
}

// SweepStale targets PENDING orders older than maxAge, bounding how long a
// stuck order can linger between regular sweep cadences.
func (s *Service) SweepStale(ctx context.Context, maxAge time.Duration) (Summary, error) {
	cutoff := time.Now().Add(-maxAge)
	orders, err := s.orders.ListPendingOlderThan(cutoff, staleSweepBatchLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("list stale pending orders: %w", err)
	}

	log.Infof("[Sweeper] checking %d stale pending orders (older than %s)", len(orders), maxAge)
	return s.runBatch(ctx, orders, staleSweepCallDelay), nil
}

func (s *Service) runBatch(ctx context.Context, orders []models.Order, delay time.Duration) Summary {
	var summary Summary
	for i := range orders {
		if ctx.Err() != nil {
			log.Warnf("[Sweeper] batch aborted after %d orders: %v", summary.Processed, ctx.Err())
			break
		}

		order := orders[i]
		summary.Processed++

		res, err := s.CheckOrder(ctx, &order)
		if err != nil {
			// Transport failure for this order only; safe to retry next sweep.
			log.Errorf("[Sweeper] order %s check failed: %v", order.OrderID, err)
			summary.Kept++
		} else {
			switch res.Status {
			case CheckFulfilled, CheckPaidNoStock:
				summary.Fulfilled++
			case CheckDeleted, CheckNotFound:
				summary.Deleted++
			default:
				summary.Kept++
			}
		}

		if i < len(orders)-1 {
			time.Sleep(delay)
		}
	}

	log.Infof("[Sweeper] summary: processed=%d fulfilled=%d deleted=%d kept=%d",
		summary.Processed, summary.Fulfilled, summary.Deleted, summary.Kept)
	return summary
}

// CheckOrder queries the gateway for one order and resolves the ledger:
// not found -> delete, successful -> fulfill, failed -> delete, otherwise
// keep pending. Already-FULFILLED orders short-circuit to their payload.
func (s *Service) CheckOrder(ctx context.Context, order *models.Order) (*CheckResult, error) {
	if order.IsFulfilled() {
		return &CheckResult{
			Status:     CheckFulfilled,
			Message:    "Pesanan sudah selesai dan produk sudah dikirim",
			Credential: order.Payload(),
		}, nil
	}

	qctx, cancel := context.WithTimeout(ctx, gatewayQueryTimeout)
	defer cancel()

	rec, err := s.gw.GetPaymentStatus(qctx, order.OrderID)
	if err != nil {
		return nil, fmt.Errorf("gateway status for %s: %w", order.OrderID, err)
	}

	if !rec.Found {
		log.Infof("[Sweeper] order %s unknown to gateway, deleting (buyer=%d price=%d)",
			order.OrderID, order.Buyer.TelegramID, order.PriceIDR)
		if err := s.orders.Delete(order.OrderID); err != nil {
			return nil, fmt.Errorf("delete order %s: %w", order.OrderID, err)
		}
		s.fulfiller.NotifyOrderDeleted(ctx, order, "Order tidak ditemukan di payment gateway")
		return &CheckResult{Status: CheckNotFound, Message: rec.Message}, nil
	}

	if s.gw.IsSuccessful(rec) {
		res, err := s.fulfiller.Fulfill(ctx, order)
		if err != nil {
			return nil, err
		}
		return &CheckResult{
			Status:     res.Status,
			Message:    res.Message,
			Credential: res.Credential,
		}, nil
	}

	if s.gw.IsFailed(rec) {
		log.Infof("[Sweeper] order %s failed at gateway (%s), deleting (buyer=%d price=%d)",
			order.OrderID, rec.Status, order.Buyer.TelegramID, order.PriceIDR)
		if err := s.orders.Delete(order.OrderID); err != nil {
			return nil, fmt.Errorf("delete order %s: %w", order.OrderID, err)
		}
		s.fulfiller.NotifyOrderDeleted(ctx, order, "Pembayaran "+rec.Status)
		return &CheckResult{
			Status:  CheckDeleted,
			Message: fmt.Sprintf("Pembayaran gagal (%s). Pesanan telah dihapus dari sistem.", rec.Status),
		}, nil
	}

	return &CheckResult{
		Status:  CheckPending,
		Message: s.gw.StatusMessage(rec),
	}, nil
}
