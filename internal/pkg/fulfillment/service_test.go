package fulfillment

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
)

// fakeOrderRepo is an in-memory OrderRepository with the same claim
// semantics as the gorm implementation: one credential per order, exactly
// one winner under concurrency.
type fakeOrderRepo struct {
	mu          sync.Mutex
	orders      map[string]*models.Order
	stock       []string
	nextCredID  uint
	claimCalls  int
	deleteCalls int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:     make(map[string]*models.Order),
		nextCredID: 1,
	}
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
	return nil, nil
}

func (r *fakeOrderRepo) ListPendingOlderThan(cutoff time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) ListRecent(limit int) ([]models.Order, error) {
	return nil, nil
}

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
	r.claimCalls++

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
	cred := &models.Credential{
		ID:        r.nextCredID,
		ProductID: o.ProductID,
		Payload:   payload,
		Used:      true,
		OrderID:   &o.ID,
	}
	r.nextCredID++

	o.Status = models.OrderStatusFulfilled
	o.DeliveredPayload = &payload
	return cred, nil
}

func (r *fakeOrderRepo) Delete(orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	delete(r.orders, orderID)
	return nil
}

func (r *fakeOrderRepo) CountByStatus(status string) (int64, error) {
	return 0, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	chatIDs  []int64
	err      error
}

func (n *fakeNotifier) Send(ctx context.Context, chatID int64, html string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.chatIDs = append(n.chatIDs, chatID)
	n.messages = append(n.messages, html)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func testOrder(oid string) *models.Order {
	return &models.Order{
		ID:        1,
		OrderID:   oid,
		BuyerID:   7,
		Buyer:     models.Buyer{ID: 7, TelegramID: 123456789, Username: "pembeli"},
		ProductID: 3,
		Product:   models.Product{ID: 3, Name: "Netflix 1 Bulan", PriceIDR: 65000},
		PriceIDR:  65000,
		Provider:  models.PaymentProviderMidtrans,
		Status:    models.OrderStatusPending,
	}
}

func TestFulfillDeliversCredential(t *testing.T) {
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, notifier)

	order := testOrder("ORD-20250101120000-abc123")
	require.NoError(t, repo.Create(order))
	repo.stock = []string{"user@mail.com:secret"}

	res, err := svc.Fulfill(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, ResultFulfilled, res.Status)
	assert.Equal(t, "user@mail.com:secret", res.Credential)

	stored, err := repo.GetByOrderID(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFulfilled, stored.Status)
	assert.Equal(t, "user@mail.com:secret", stored.Payload())

	require.Equal(t, 1, notifier.count())
	assert.Contains(t, notifier.messages[0], "user@mail.com:secret")
	assert.Contains(t, notifier.messages[0], "Netflix 1 Bulan")
	assert.Equal(t, int64(123456789), notifier.chatIDs[0])
}

func TestFulfillIdempotent(t *testing.T) {
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, notifier)

	order := testOrder("ORD-20250101120000-abc123")
	require.NoError(t, repo.Create(order))
	repo.stock = []string{"only-credential"}

	_, err := svc.Fulfill(context.Background(), order)
	require.NoError(t, err)

	// Second trigger on a fresh read of the same order.
	fresh, err := repo.GetByOrderID(order.OrderID)
	require.NoError(t, err)
	fresh.Buyer = order.Buyer
	res, err := svc.Fulfill(context.Background(), fresh)
	require.NoError(t, err)
	assert.Equal(t, ResultFulfilled, res.Status)
	assert.Equal(t, "only-credential", res.Credential)

	assert.Equal(t, 1, notifier.count(), "repeat trigger must not re-notify")
}

func TestFulfillStaleOrderLosesRace(t *testing.T) {
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, notifier)

	order := testOrder("ORD-20250101120000-abc123")
	require.NoError(t, repo.Create(order))
	repo.stock = []string{"only-credential"}

	_, err := svc.Fulfill(context.Background(), order)
	require.NoError(t, err)

	// A caller holding a stale PENDING snapshot hits ErrAlreadyFulfilled in
	// the claim and recovers by re-reading.
	stale := testOrder(order.OrderID)
	res, err := svc.Fulfill(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, ResultFulfilled, res.Status)
	assert.Equal(t, "only-credential", res.Credential)
	assert.Equal(t, 1, notifier.count())
}

func TestFulfillOutOfStock(t *testing.T) {
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, notifier)

	order := testOrder("ORD-20250101120000-abc123")
	require.NoError(t, repo.Create(order))

	res, err := svc.Fulfill(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, ResultPaidNoStock, res.Status)
	assert.Empty(t, res.Credential)

	// Payment stays recorded even though delivery is blocked.
	stored, err := repo.GetByOrderID(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)

	require.Equal(t, 1, notifier.count())
	assert.Contains(t, notifier.messages[0], "Stok")
}

func TestFulfillConcurrentSingleClaim(t *testing.T) {
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, notifier)

	order := testOrder("ORD-20250101120000-abc123")
	require.NoError(t, repo.Create(order))
	repo.stock = []string{"cred-1", "cred-2", "cred-3"}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*Result, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := testOrder(order.OrderID)
			results[i], errs[i] = svc.Fulfill(context.Background(), o)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ResultFulfilled, results[i].Status)
		assert.Equal(t, "cred-1", results[i].Credential, "every caller sees the single bound credential")
	}

	assert.Equal(t, []string{"cred-2", "cred-3"}, repo.stock, "exactly one credential consumed")
	assert.Equal(t, 1, notifier.count(), "exactly one delivery message")
}

func TestFulfillNotifyFailureDoesNotFailClaim(t *testing.T) {
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	svc := NewService(repo, notifier)

	order := testOrder("ORD-20250101120000-abc123")
	require.NoError(t, repo.Create(order))
	repo.stock = []string{"cred-1"}

	res, err := svc.Fulfill(context.Background(), order)
	require.NoError(t, err, "notification failure must not surface")
	assert.Equal(t, ResultFulfilled, res.Status)

	stored, err := repo.GetByOrderID(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFulfilled, stored.Status, "claim survives the failed notification")
}

func TestResend(t *testing.T) {
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, notifier)

	payload := "cred-1"
	order := testOrder("ORD-20250101120000-abc123")
	order.Status = models.OrderStatusFulfilled
	order.DeliveredPayload = &payload

	require.NoError(t, svc.Resend(context.Background(), order))
	require.Equal(t, 1, notifier.count())
	assert.Contains(t, notifier.messages[0], "cred-1")

	pending := testOrder("ORD-20250101120001-def456")
	assert.Error(t, svc.Resend(context.Background(), pending), "only fulfilled orders can be resent")
}
