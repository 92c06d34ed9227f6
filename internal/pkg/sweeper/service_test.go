package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapakdigital/lapakstore/app/models"
	"github.com/lapakdigital/lapakstore/app/repository"
	"github.com/lapakdigital/lapakstore/internal/pkg/fulfillment"
	"github.com/lapakdigital/lapakstore/internal/pkg/gateway"
)

// fakeGateway returns scripted status records keyed by order id.
type fakeGateway struct {
	records map[string]*gateway.StatusRecord
	errs    map[string]error
	calls   []string
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreatePayLink(ctx context.Context, in gateway.CreateInput) (*gateway.Checkout, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) CreateQris(ctx context.Context, in gateway.CreateInput) (*gateway.Qris, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) GetPaymentStatus(ctx context.Context, orderID string) (*gateway.StatusRecord, error) {
	g.calls = append(g.calls, orderID)
	if err, ok := g.errs[orderID]; ok {
		return nil, err
	}
	if rec, ok := g.records[orderID]; ok {
		return rec, nil
	}
	return &gateway.StatusRecord{Found: false, Status: "NOT_FOUND"}, nil
}

func (g *fakeGateway) IsSuccessful(rec *gateway.StatusRecord) bool {
	return rec != nil && rec.Found && rec.Status == "PAID"
}

func (g *fakeGateway) IsFailed(rec *gateway.StatusRecord) bool {
	return rec != nil && rec.Found && (rec.Status == "EXPIRED" || rec.Status == "FAILED")
}

func (g *fakeGateway) StatusMessage(rec *gateway.StatusRecord) string {
	if rec == nil || !rec.Found {
		return "tidak ditemukan"
	}
	return "Status: " + rec.Status
}

func (g *fakeGateway) VerifyWebhook(rawBody []byte, signatureHeader string) bool { return false }

func (g *fakeGateway) ParseWebhook(body []byte) (*gateway.WebhookEvent, error) {
	return nil, errors.New("not implemented")
}

// fakeOrderRepo mirrors the gorm repository's claim and delete semantics in
// memory.
type fakeOrderRepo struct {
	mu          sync.Mutex
	orders      map[string]*models.Order
	stock       []string
	staleCutoff time.Time
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*models.Order)}
}

func (r *fakeOrderRepo) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.OrderID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetByOrderID(orderID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) ListPending(limit int) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.Status == models.OrderStatusPending && len(out) < limit {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ListPendingOlderThan(cutoff time.Time, limit int) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staleCutoff = cutoff
	var out []models.Order
	for _, o := range r.orders {
		if o.Status == models.OrderStatusPending && o.CreatedAt.Before(cutoff) && len(out) < limit {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ListRecent(limit int) ([]models.Order, error) { return nil, nil }

func (r *fakeOrderRepo) MarkPaid(orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderID]; ok && o.Status == models.OrderStatusPending {
		o.Status = models.OrderStatusPaid
	}
	return nil
}

func (r *fakeOrderRepo) ClaimAndFulfill(orderID string) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, errors.New("record not found")
	}
	if o.Status == models.OrderStatusFulfilled {
		return nil, repository.ErrAlreadyFulfilled
	}
	if len(r.stock) == 0 {
		return nil, repository.ErrOutOfStock
	}
	payload := r.stock[0]
	r.stock = r.stock[1:]
	o.Status = models.OrderStatusFulfilled
	o.DeliveredPayload = &payload
	return &models.Credential{ID: 1, ProductID: o.ProductID, Payload: payload, Used: true}, nil
}

func (r *fakeOrderRepo) Delete(orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, orderID)
	return nil
}

func (r *fakeOrderRepo) CountByStatus(status string) (int64, error) { return 0, nil }

func (r *fakeOrderRepo) has(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.orders[orderID]
	return ok
}

type nopNotifier struct{}

func (nopNotifier) Send(ctx context.Context, chatID int64, html string) error { return nil }

func pendingOrder(oid string, age time.Duration) *models.Order {
	return &models.Order{
		OrderID:   oid,
		BuyerID:   7,
		Buyer:     models.Buyer{ID: 7, TelegramID: 123},
		ProductID: 3,
		PriceIDR:  65000,
		Status:    models.OrderStatusPending,
		CreatedAt: time.Now().Add(-age),
	}
}

func newTestService(repo *fakeOrderRepo, gw *fakeGateway) *Service {
	fulfiller := fulfillment.NewService(repo, nopNotifier{})
	return NewService(repo, gw, fulfiller)
}

func TestCheckOrderPaidFulfills(t *testing.T) {
	repo := newFakeOrderRepo()
	gw := &fakeGateway{records: map[string]*gateway.StatusRecord{
		"ORD-1": {Found: true, Status: "PAID"},
	}}
	svc := newTestService(repo, gw)

	order := pendingOrder("ORD-1", time.Minute)
	require.NoError(t, repo.Create(order))
	repo.stock = []string{"cred-1"}

	res, err := svc.CheckOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, CheckFulfilled, res.Status)
	assert.Equal(t, "cred-1", res.Credential)

	stored, err := repo.GetByOrderID("ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFulfilled, stored.Status)
}

func TestCheckOrderPaidNoStock(t *testing.T) {
	repo := newFakeOrderRepo()
	gw := &fakeGateway{records: map[string]*gateway.StatusRecord{
		"ORD-1": {Found: true, Status: "PAID"},
	}}
	svc := newTestService(repo, gw)

	order := pendingOrder("ORD-1", time.Minute)
	require.NoError(t, repo.Create(order))

	res, err := svc.CheckOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, CheckPaidNoStock, res.Status)

	stored, err := repo.GetByOrderID("ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, stored.Status, "payment recorded despite empty pool")
}

func TestCheckOrderFailedDeletes(t *testing.T) {
	repo := newFakeOrderRepo()
	gw := &fakeGateway{records: map[string]*gateway.StatusRecord{
		"ORD-1": {Found: true, Status: "EXPIRED"},
	}}
	svc := newTestService(repo, gw)

	order := pendingOrder("ORD-1", time.Minute)
	require.NoError(t, repo.Create(order))

	res, err := svc.CheckOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, CheckDeleted, res.Status)
	assert.False(t, repo.has("ORD-1"))
}

func TestCheckOrderUnknownDeletes(t *testing.T) {
	repo := newFakeOrderRepo()
	gw := &fakeGateway{}
	svc := newTestService(repo, gw)

	order := pendingOrder("ORD-1", time.Minute)
	require.NoError(t, repo.Create(order))

	res, err := svc.CheckOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, CheckNotFound, res.Status)
	assert.False(t, repo.has("ORD-1"))
}

func TestCheckOrderPendingKept(t *testing.T) {
	repo := newFakeOrderRepo()
	gw := &fakeGateway{records: map[string]*gateway.StatusRecord{
		"ORD-1": {Found: true, Status: "UNPAID"},
	}}
	svc := newTestService(repo, gw)

	order := pendingOrder("ORD-1", time.Minute)
	require.NoError(t, repo.Create(order))

	res, err := svc.CheckOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, CheckPending, res.Status)
	assert.True(t, repo.has("ORD-1"))
}

func TestCheckOrderFulfilledShortCircuits(t *testing.T) {
	repo := newFakeOrderRepo()
	gw := &fakeGateway{}
	svc := newTestService(repo, gw)

	payload := "cred-1"
	order := pendingOrder("ORD-1", time.Minute)
	order.Status = models.OrderStatusFulfilled
	order.DeliveredPayload = &payload

	res, err := svc.CheckOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, CheckFulfilled, res.Status)
	assert.Equal(t, "cred-1", res.Credential)
	assert.Empty(t, gw.calls, "no gateway round trip for delivered orders")
}

func TestSweepContinuesPastFailures(t *testing.T) {
	repo := newFakeOrderRepo()
	gw := &fakeGateway{
		records: map[string]*gateway.StatusRecord{
			"ORD-OK":   {Found: true, Status: "PAID"},
			"ORD-WAIT": {Found: true, Status: "UNPAID"},
		},
		errs: map[string]error{
			"ORD-ERR": errors.New("gateway timeout"),
		},
	}
	svc := newTestService(repo, gw)

	require.NoError(t, repo.Create(pendingOrder("ORD-OK", time.Minute)))
	require.NoError(t, repo.Create(pendingOrder("ORD-ERR", time.Minute)))
	require.NoError(t, repo.Create(pendingOrder("ORD-WAIT", time.Minute)))
	repo.stock = []string{"cred-1"}

	summary, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Fulfilled)
	assert.Equal(t, 2, summary.Kept, "errored and pending orders are both kept")
	assert.Len(t, gw.calls, 3, "one failing order does not stop the batch")
}

func TestSweepStaleUsesCutoff(t *testing.T) {
	repo := newFakeOrderRepo()
	gw := &fakeGateway{}
	svc := newTestService(repo, gw)

	require.NoError(t, repo.Create(pendingOrder("ORD-OLD", 3*time.Hour)))
	require.NoError(t, repo.Create(pendingOrder("ORD-NEW", time.Minute)))

	summary, err := svc.SweepStale(context.Background(), 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed, "only stale orders are checked")
	assert.Equal(t, []string{"ORD-OLD"}, gw.calls)
	assert.WithinDuration(t, time.Now().Add(-2*time.Hour), repo.staleCutoff, 5*time.Second)

	// Unknown to the gateway, so the stale order is removed.
	assert.False(t, repo.has("ORD-OLD"))
	assert.True(t, repo.has("ORD-NEW"))
}
