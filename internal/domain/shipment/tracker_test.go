package shipment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/audit"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
	"github.com/ritesh5001/tatvivah-marketplace/internal/notify"
)

type trackerFixture struct {
	tracker   *Tracker
	orders    *memOrderRepo
	shipments *memShipmentRepo
	auditRepo *memAuditRepo
	notifier  *recordNotifier
	store     *memStore
}

func newTrackerFixture() *trackerFixture {
	orders := &memOrderRepo{orders: map[string]*order.Order{
		"ord-1": twoSellerOrder("ord-1"),
	}}
	shipments := newMemShipmentRepo()
	auditRepo := &memAuditRepo{}
	notifier := &recordNotifier{}
	store := newMemStore()

	sync := NewSynchronizer(nopTx{}, orders, shipments)
	tracker := NewTracker(nopTx{}, shipments, orders, sync, audit.NewLogger(auditRepo), notifier, store)
	return &trackerFixture{
		tracker:   tracker,
		orders:    orders,
		shipments: shipments,
		auditRepo: auditRepo,
		notifier:  notifier,
		store:     store,
	}
}

func TestCreateShipment(t *testing.T) {
	f := newTrackerFixture()

	sh, err := f.tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, sh.Status)
	assert.Equal(t, "seller-a", sh.SellerID)
	assert.Equal(t, "BD123", sh.TrackingNumber)

	events, err := f.shipments.ListEvents(context.Background(), sh.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, StatusCreated, events[0].Status)
}

func TestCreateShipmentRequiresConfirmedOrder(t *testing.T) {
	f := newTrackerFixture()
	f.orders.orders["ord-1"].Status = order.StatusPlaced

	_, err := f.tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.ErrorIs(t, err, ErrOrderNotShippable)
}

// cancelAtLockOrderRepo serves CONFIRMED from the plain read but CANCELLED
// once the row is locked, modelling an admin cancel committing between an
// optimistic read and the shipment insert.
type cancelAtLockOrderRepo struct {
	*memOrderRepo
}

func (r *cancelAtLockOrderRepo) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	o, err := r.memOrderRepo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Status = order.StatusCancelled
	return o, nil
}

func TestCreateShipmentChecksOrderUnderLock(t *testing.T) {
	f := newTrackerFixture()
	sync := NewSynchronizer(nopTx{}, f.orders, f.shipments)
	tracker := NewTracker(nopTx{}, f.shipments, &cancelAtLockOrderRepo{f.orders}, sync,
		audit.NewLogger(f.auditRepo), f.notifier, f.store)

	_, err := tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.ErrorIs(t, err, ErrOrderNotShippable)

	shipments, err := f.shipments.ListByOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Empty(t, shipments, "no shipment may attach to a cancelled order")
}

func TestCreateShipmentRequiresSellerItems(t *testing.T) {
	f := newTrackerFixture()

	_, err := f.tracker.Create(context.Background(), "ord-1", "seller-c", "bluedart", "BD123")
	require.ErrorIs(t, err, ErrNoSellerItems)
}

func TestCreateShipmentOncePerSeller(t *testing.T) {
	f := newTrackerFixture()

	_, err := f.tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.NoError(t, err)

	_, err = f.tracker.Create(context.Background(), "ord-1", "seller-a", "delhivery", "DL456")
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUpdateStatusForward(t *testing.T) {
	f := newTrackerFixture()
	sh, err := f.tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.NoError(t, err)

	updated, err := f.tracker.UpdateStatus(context.Background(), sh.ID, "seller-a", StatusShipped, "picked up")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, updated.Status)
	require.NotNil(t, updated.ShippedAt)

	updated, err = f.tracker.UpdateStatus(context.Background(), sh.ID, "seller-a", StatusDelivered, "")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, updated.Status)
	require.NotNil(t, updated.DeliveredAt)

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	assert.Equal(t, []notify.Kind{notify.KindShipmentShipped, notify.KindShipmentDelivered}, f.notifier.sent)
}

func TestUpdateStatusRejectsSkips(t *testing.T) {
	f := newTrackerFixture()
	sh, err := f.tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.NoError(t, err)

	_, err = f.tracker.UpdateStatus(context.Background(), sh.ID, "seller-a", StatusDelivered, "")
	var transitionErr *InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, StatusCreated, transitionErr.From)
	assert.Equal(t, StatusDelivered, transitionErr.To)
}

func TestUpdateStatusDoubleSubmit(t *testing.T) {
	f := newTrackerFixture()
	sh, err := f.tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.NoError(t, err)

	_, err = f.tracker.UpdateStatus(context.Background(), sh.ID, "seller-a", StatusShipped, "")
	require.NoError(t, err)

	// The second identical submit sees SHIPPED -> SHIPPED, which is not a
	// forward step.
	_, err = f.tracker.UpdateStatus(context.Background(), sh.ID, "seller-a", StatusShipped, "")
	var transitionErr *InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
}

func TestUpdateStatusNotOwner(t *testing.T) {
	f := newTrackerFixture()
	sh, err := f.tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.NoError(t, err)

	_, err = f.tracker.UpdateStatus(context.Background(), sh.ID, "seller-b", StatusShipped, "")
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestUpdateStatusInvalidStatus(t *testing.T) {
	f := newTrackerFixture()

	_, err := f.tracker.UpdateStatus(context.Background(), "sh-x", "seller-a", Status("LOST"), "")
	var transitionErr *InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
}

func TestUpdateStatusSynchronizesOrder(t *testing.T) {
	f := newTrackerFixture()
	shA, err := f.tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.NoError(t, err)
	shB, err := f.tracker.Create(context.Background(), "ord-1", "seller-b", "delhivery", "DL456")
	require.NoError(t, err)

	_, err = f.tracker.UpdateStatus(context.Background(), shA.ID, "seller-a", StatusShipped, "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, f.orders.orders["ord-1"].Status)

	_, err = f.tracker.UpdateStatus(context.Background(), shB.ID, "seller-b", StatusShipped, "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, f.orders.orders["ord-1"].Status)
}

func TestAdminOverrideBypassesForwardOnly(t *testing.T) {
	f := newTrackerFixture()
	sh, err := f.tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.NoError(t, err)
	_, err = f.tracker.UpdateStatus(context.Background(), sh.ID, "seller-a", StatusShipped, "")
	require.NoError(t, err)

	updated, err := f.tracker.AdminOverride(context.Background(), sh.ID, "admin-1", StatusCreated, "carrier lost parcel")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, updated.Status)

	require.Len(t, f.auditRepo.entries, 1)
	entry := f.auditRepo.entries[0]
	assert.Equal(t, ActionShipmentOverride, entry.Action)
	assert.Equal(t, "admin-1", entry.ActorID)
	assert.Equal(t, sh.ID, entry.EntityID)
	assert.Equal(t, string(StatusShipped), entry.Metadata["previousStatus"])
	assert.Equal(t, string(StatusCreated), entry.Metadata["newStatus"])

	events, err := f.shipments.ListEvents(context.Background(), sh.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin override: carrier lost parcel", events[len(events)-1].Note)
}

func TestAdminOverrideDoesNotRegressOrder(t *testing.T) {
	f := newTrackerFixture()
	shA, err := f.tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.NoError(t, err)
	shB, err := f.tracker.Create(context.Background(), "ord-1", "seller-b", "delhivery", "DL456")
	require.NoError(t, err)

	for _, step := range []Status{StatusShipped, StatusDelivered} {
		_, err = f.tracker.UpdateStatus(context.Background(), shA.ID, "seller-a", step, "")
		require.NoError(t, err)
		_, err = f.tracker.UpdateStatus(context.Background(), shB.ID, "seller-b", step, "")
		require.NoError(t, err)
	}
	require.Equal(t, order.StatusDelivered, f.orders.orders["ord-1"].Status)

	_, err = f.tracker.AdminOverride(context.Background(), shA.ID, "admin-1", StatusShipped, "delivery disputed")
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, f.orders.orders["ord-1"].Status,
		"order status must stay monotone across overrides")
}

func TestMutationsInvalidateTrackingCache(t *testing.T) {
	f := newTrackerFixture()
	require.NoError(t, f.store.Set(context.Background(), "order:tracking:ord-1", "stale", 0))

	_, err := f.tracker.Create(context.Background(), "ord-1", "seller-a", "bluedart", "BD123")
	require.NoError(t, err)

	assert.Contains(t, f.store.invalidated, "order:tracking:ord-1")
	_, found, _ := f.store.Get(context.Background(), "order:tracking:ord-1")
	assert.False(t, found)
}
