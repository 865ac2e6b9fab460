package payment

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritesh5001/tatvivah-marketplace/internal/cache"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/settlement"
	"github.com/ritesh5001/tatvivah-marketplace/internal/notify"
)

type nopTx struct{}

func (nopTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memPaymentRepo struct {
	payments map[string]*Payment
	events   []Event
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: map[string]*Payment{}}
}

func (r *memPaymentRepo) Create(_ context.Context, p *Payment) error {
	// Mirrors the partial unique index: one non-FAILED payment per order.
	for _, existing := range r.payments {
		if existing.OrderID == p.OrderID && existing.Status != StatusFailed {
			return ErrAlreadyExists
		}
	}
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *memPaymentRepo) FindActiveByOrder(_ context.Context, orderID string) (*Payment, error) {
	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status != StatusFailed {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memPaymentRepo) FindByProviderOrderID(_ context.Context, providerOrderID string) (*Payment, error) {
	for _, p := range r.payments {
		if p.ProviderOrderID == providerOrderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memPaymentRepo) MarkSucceeded(_ context.Context, id, providerPaymentID, signature string) (bool, error) {
	p, ok := r.payments[id]
	if !ok || p.Status != StatusInitiated {
		return false, nil
	}
	p.Status = StatusSuccess
	p.ProviderPaymentID = providerPaymentID
	p.ProviderSignature = signature
	return true, nil
}

func (r *memPaymentRepo) MarkFailed(_ context.Context, id string) (bool, error) {
	p, ok := r.payments[id]
	if !ok || p.Status != StatusInitiated {
		return false, nil
	}
	p.Status = StatusFailed
	return true, nil
}

func (r *memPaymentRepo) AppendEvent(_ context.Context, e *Event) error {
	r.events = append(r.events, *e)
	return nil
}

type memOrderRepo struct {
	orders map[string]*order.Order
}

func (r *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *memOrderRepo) SetStatus(_ context.Context, id string, status order.Status) error {
	o, ok := r.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	return nil
}

type memSettlementRepo struct {
	rows []settlement.SellerSettlement
}

func (r *memSettlementRepo) CreateBatch(_ context.Context, batch []settlement.SellerSettlement) error {
	r.rows = append(r.rows, batch...)
	return nil
}

func (r *memSettlementRepo) ListByOrder(_ context.Context, orderID string) ([]settlement.SellerSettlement, error) {
	var out []settlement.SellerSettlement
	for _, s := range r.rows {
		if s.OrderID == orderID {
			out = append(out, s)
		}
	}
	return out, nil
}

type recordNotifier struct {
	mu    sync.Mutex
	sent  []notify.Kind
	users []string
}

func (n *recordNotifier) Notify(_ context.Context, kind notify.Kind, userID string, _ map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, kind)
	n.users = append(n.users, userID)
	return nil
}

func amount(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

type processorFixture struct {
	processor   *Processor
	payments    *memPaymentRepo
	orders      *memOrderRepo
	settlements *memSettlementRepo
	notifier    *recordNotifier
	provider    *MockProvider
}

func newProcessorFixture() *processorFixture {
	payments := newMemPaymentRepo()
	orders := &memOrderRepo{orders: map[string]*order.Order{}}
	settlements := &memSettlementRepo{}
	notifier := &recordNotifier{}
	provider := NewMockProvider("test-secret")

	orders.orders["ord-1"] = &order.Order{
		ID:          "ord-1",
		BuyerID:     "buyer-1",
		Status:      order.StatusPlaced,
		TotalAmount: amount("500.00"),
		Items: []order.Item{
			{ID: "item-1", OrderID: "ord-1", SellerID: "seller-a", Quantity: 1, PriceSnapshot: amount("100.00")},
			{ID: "item-2", OrderID: "ord-1", SellerID: "seller-b", Quantity: 2, PriceSnapshot: amount("200.00")},
		},
	}

	p := NewProcessor(ProcessorConfig{},
		nopTx{}, payments, orders, settlements, []Provider{provider}, notifier, cache.Noop{})
	return &processorFixture{
		processor:   p,
		payments:    payments,
		orders:      orders,
		settlements: settlements,
		notifier:    notifier,
		provider:    provider,
	}
}

func (f *processorFixture) capturedWebhook(providerOrderID string) ([]byte, string) {
	body, _ := json.Marshal(mockWebhook{
		Event:             "payment.captured",
		ProviderOrderID:   providerOrderID,
		ProviderPaymentID: "pay_123",
	})
	return body, f.provider.SignWebhook(body)
}

func (f *processorFixture) failedWebhook(providerOrderID string) ([]byte, string) {
	body, _ := json.Marshal(mockWebhook{
		Event:             "payment.failed",
		ProviderOrderID:   providerOrderID,
		ProviderPaymentID: "pay_123",
	})
	return body, f.provider.SignWebhook(body)
}

func TestInitiateCreatesPayment(t *testing.T) {
	f := newProcessorFixture()

	res, err := f.processor.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.NoError(t, err)

	assert.NotEmpty(t, res.PaymentID)
	assert.NotEmpty(t, res.ProviderOrderID)
	assert.Equal(t, res.ProviderOrderID, res.CheckoutParams["provider_order_id"])

	stored := f.payments.payments[res.PaymentID]
	require.NotNil(t, stored)
	assert.Equal(t, StatusInitiated, stored.Status)
	assert.Equal(t, "ord-1", stored.OrderID)
}

func TestInitiateUnknownProvider(t *testing.T) {
	f := newProcessorFixture()

	_, err := f.processor.Initiate(context.Background(), "ord-1", "buyer-1", "stripe")
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestInitiateNotOwnerLooksLikeMissingOrder(t *testing.T) {
	f := newProcessorFixture()

	_, err := f.processor.Initiate(context.Background(), "ord-1", "buyer-2", "mock")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestInitiateOrderNotPayable(t *testing.T) {
	f := newProcessorFixture()
	f.orders.orders["ord-1"].Status = order.StatusConfirmed

	_, err := f.processor.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.ErrorIs(t, err, ErrOrderNotPayable)
}

func TestInitiateBlockedByActivePayment(t *testing.T) {
	f := newProcessorFixture()

	_, err := f.processor.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.NoError(t, err)

	_, err = f.processor.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.ErrorIs(t, err, ErrAlreadyExists)
}

// staleActiveLookupRepo never sees an active payment, reproducing the window
// where two initiations both pass the lookup before either insert lands.
type staleActiveLookupRepo struct {
	*memPaymentRepo
}

func (r *staleActiveLookupRepo) FindActiveByOrder(context.Context, string) (*Payment, error) {
	return nil, ErrNotFound
}

func TestInitiateConcurrentDuplicateBlockedByStorage(t *testing.T) {
	f := newProcessorFixture()
	racing := NewProcessor(ProcessorConfig{}, nopTx{}, &staleActiveLookupRepo{f.payments},
		f.orders, f.settlements, []Provider{f.provider}, f.notifier, cache.Noop{})

	_, err := racing.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.NoError(t, err)

	// The second initiation also passes the lookup; the insert must reject it
	// so the buyer can never hold two chargeable payments.
	_, err = racing.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.ErrorIs(t, err, ErrAlreadyExists)

	active := 0
	for _, p := range f.payments.payments {
		if p.Status != StatusFailed {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestInitiateRetryAfterFailure(t *testing.T) {
	f := newProcessorFixture()

	res, err := f.processor.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.NoError(t, err)

	body, sig := f.failedWebhook(res.ProviderOrderID)
	require.NoError(t, f.processor.ApplyWebhook(context.Background(), "mock", body, sig))

	_, err = f.processor.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.NoError(t, err, "a failed payment must not block re-initiation")
}

func TestWebhookInvalidSignature(t *testing.T) {
	f := newProcessorFixture()

	body, _ := f.capturedWebhook("mock_order_x")
	err := f.processor.ApplyWebhook(context.Background(), "mock", body, "deadbeef")
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWebhookCapturedConfirmsOrderAndSettles(t *testing.T) {
	f := newProcessorFixture()

	res, err := f.processor.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.NoError(t, err)

	body, sig := f.capturedWebhook(res.ProviderOrderID)
	require.NoError(t, f.processor.ApplyWebhook(context.Background(), "mock", body, sig))

	pay := f.payments.payments[res.PaymentID]
	assert.Equal(t, StatusSuccess, pay.Status)
	assert.Equal(t, "pay_123", pay.ProviderPaymentID)
	assert.Equal(t, sig, pay.ProviderSignature)

	assert.Equal(t, order.StatusConfirmed, f.orders.orders["ord-1"].Status)

	require.Len(t, f.payments.events, 1)
	assert.Equal(t, EventWebhook, f.payments.events[0].Type)
	assert.JSONEq(t, string(body), string(f.payments.events[0].Payload))

	require.Len(t, f.settlements.rows, 2)
	bySeller := map[string]settlement.SellerSettlement{}
	for _, s := range f.settlements.rows {
		bySeller[s.SellerID] = s
	}
	assert.True(t, bySeller["seller-a"].Amount.Equal(amount("100.00")), "got %s", bySeller["seller-a"].Amount)
	assert.True(t, bySeller["seller-b"].Amount.Equal(amount("400.00")), "got %s", bySeller["seller-b"].Amount)
	assert.Equal(t, settlement.StatusPending, bySeller["seller-a"].Status)
	assert.Equal(t, "item-1", bySeller["seller-a"].OrderItemID)

	// One buyer notification plus one per seller.
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	assert.Len(t, f.notifier.sent, 3)
	assert.Contains(t, f.notifier.users, "buyer-1")
	assert.Contains(t, f.notifier.users, "seller-a")
	assert.Contains(t, f.notifier.users, "seller-b")
}

func TestWebhookDuplicateCaptureIsNoOp(t *testing.T) {
	f := newProcessorFixture()

	res, err := f.processor.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.NoError(t, err)

	body, sig := f.capturedWebhook(res.ProviderOrderID)
	require.NoError(t, f.processor.ApplyWebhook(context.Background(), "mock", body, sig))
	require.NoError(t, f.processor.ApplyWebhook(context.Background(), "mock", body, sig))

	assert.Len(t, f.settlements.rows, 2, "settlements must not duplicate")
	assert.Len(t, f.payments.events, 1, "only the first delivery appends an event")
	assert.Equal(t, order.StatusConfirmed, f.orders.orders["ord-1"].Status)
}

// staleReadPaymentRepo serves a stale INITIATED snapshot from the resolve
// query while the row has already been captured, reproducing the window where
// two deliveries race past the status pre-check.
type staleReadPaymentRepo struct {
	*memPaymentRepo
}

func (r *staleReadPaymentRepo) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*Payment, error) {
	p, err := r.memPaymentRepo.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return nil, err
	}
	p.Status = StatusInitiated
	return p, nil
}

func TestWebhookConcurrentCaptureLosesRace(t *testing.T) {
	f := newProcessorFixture()

	res, err := f.processor.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.NoError(t, err)

	body, sig := f.capturedWebhook(res.ProviderOrderID)
	require.NoError(t, f.processor.ApplyWebhook(context.Background(), "mock", body, sig))

	// Rebuild the processor over a repo whose resolve query reads stale state;
	// the conditional MarkSucceeded must still reject the transition.
	racing := NewProcessor(ProcessorConfig{}, nopTx{}, &staleReadPaymentRepo{f.payments},
		f.orders, f.settlements, []Provider{f.provider}, f.notifier, cache.Noop{})
	require.NoError(t, racing.ApplyWebhook(context.Background(), "mock", body, sig))

	assert.Len(t, f.settlements.rows, 2, "losing delivery must not settle again")
	assert.Len(t, f.payments.events, 1)
	assert.Equal(t, StatusSuccess, f.payments.payments[res.PaymentID].Status)
}

func TestWebhookFailedRecordsFailure(t *testing.T) {
	f := newProcessorFixture()

	res, err := f.processor.Initiate(context.Background(), "ord-1", "buyer-1", "mock")
	require.NoError(t, err)

	body, sig := f.failedWebhook(res.ProviderOrderID)
	require.NoError(t, f.processor.ApplyWebhook(context.Background(), "mock", body, sig))

	assert.Equal(t, StatusFailed, f.payments.payments[res.PaymentID].Status)
	assert.Equal(t, order.StatusPlaced, f.orders.orders["ord-1"].Status, "failure must not touch the order")
	assert.Empty(t, f.settlements.rows)
	require.Len(t, f.payments.events, 1)
	assert.Equal(t, EventFailed, f.payments.events[0].Type)
}

func TestWebhookUnknownProviderOrderAcknowledged(t *testing.T) {
	f := newProcessorFixture()

	body, sig := f.capturedWebhook("mock_order_unknown")
	require.NoError(t, f.processor.ApplyWebhook(context.Background(), "mock", body, sig))

	assert.Empty(t, f.settlements.rows)
	assert.Empty(t, f.payments.events)
}

func TestWebhookMalformedBody(t *testing.T) {
	f := newProcessorFixture()

	body := []byte(`{"event":"payment.captured"}`)
	err := f.processor.ApplyWebhook(context.Background(), "mock", body, f.provider.SignWebhook(body))
	require.ErrorIs(t, err, ErrMalformedWebhook)
}
