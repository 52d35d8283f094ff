package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"driverlink/internal/apperr"
	"driverlink/internal/domain"
	"driverlink/internal/geo"
	"driverlink/internal/hub"
	"driverlink/internal/ports/dispatchtx"
	testlog "driverlink/internal/testutil"
)

// memStore is an in-memory order and courier store with the same
// conditional-update semantics as the SQL layer. The transaction lock makes
// each WithTx atomic relative to the others.
type memStore struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	couriers map[int64]*domain.Courier
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[string]*domain.Order),
		couriers: make(map[int64]*domain.Courier),
	}
}

func (s *memStore) putOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := o
	s.orders[o.ID] = &cp
}

func (s *memStore) putCourier(c domain.Courier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := c
	s.couriers[c.ID] = &cp
}

func (s *memStore) order(id string) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

func (s *memStore) courier(id int64) domain.Courier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.couriers[id]
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Declined = append([]int64(nil), o.Declined...)
	if o.AssignedCourierID != nil {
		id := *o.AssignedCourierID
		cp.AssignedCourierID = &id
	}
	return &cp
}

func (s *memStore) Get(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (s *memStore) ListPending(_ context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.Status == domain.OrderPending {
			out = append(out, *copyOrder(o))
		}
	}
	return out, nil
}

func (s *memStore) WithTx(_ context.Context, fn func(tx dispatchtx.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{s: s})
}

func (s *memStore) ListEligible(_ context.Context, minClass domain.VehicleClass, staleness time.Duration) ([]domain.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []domain.Courier
	for _, c := range s.couriers {
		if c.Eligible(minClass, now, staleness) {
			out = append(out, *c)
		}
	}
	return out, nil
}

type memTx struct{ s *memStore }

func (t *memTx) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (t *memTx) TransitionOrder(_ context.Context, id string, from, to domain.OrderStatus, version int64) error {
	o, ok := t.s.orders[id]
	if !ok || o.Status != from || o.Version != version {
		return apperr.ErrConflict
	}
	o.Status = to
	o.Version++
	return nil
}

func (t *memTx) AssignOrder(_ context.Context, id string, courierID, version int64) error {
	o, ok := t.s.orders[id]
	if !ok || o.Status != domain.OrderOffering || o.Version != version {
		return apperr.ErrConflict
	}
	o.Status = domain.OrderAssigned
	o.AssignedCourierID = &courierID
	o.Version++
	return nil
}

func (t *memTx) ClearAssignment(_ context.Context, id string) error {
	if o, ok := t.s.orders[id]; ok {
		o.AssignedCourierID = nil
	}
	return nil
}

func (t *memTx) BindCourier(_ context.Context, courierID int64, orderID string) error {
	c, ok := t.s.couriers[courierID]
	if !ok || c.Status != domain.CourierAvailable {
		return apperr.ErrConflict
	}
	c.Status = domain.CourierBusy
	c.CurrentOrderID = &orderID
	return nil
}

func (t *memTx) ReleaseCourier(_ context.Context, courierID int64, orderID string) error {
	c, ok := t.s.couriers[courierID]
	if !ok || c.Status != domain.CourierBusy || c.CurrentOrderID == nil || *c.CurrentOrderID != orderID {
		return apperr.ErrConflict
	}
	c.Status = domain.CourierAvailable
	c.CurrentOrderID = nil
	return nil
}

func (t *memTx) AddDeclined(_ context.Context, orderID string, courierID int64) error {
	o, ok := t.s.orders[orderID]
	if !ok {
		return nil
	}
	for _, id := range o.Declined {
		if id == courierID {
			return nil
		}
	}
	o.Declined = append(o.Declined, courierID)
	return nil
}

type sentEvent struct {
	Actor domain.Actor
	Event hub.Event
}

// notifierRec records pushed frames and exposes them on a channel so tests
// can wait for the engine to reach a known point.
type notifierRec struct {
	mu     sync.Mutex
	events []sentEvent
	ch     chan sentEvent
}

func newNotifierRec() *notifierRec {
	return &notifierRec{ch: make(chan sentEvent, 128)}
}

func (n *notifierRec) Send(a domain.Actor, ev hub.Event) bool {
	n.mu.Lock()
	n.events = append(n.events, sentEvent{Actor: a, Event: ev})
	n.mu.Unlock()
	select {
	case n.ch <- sentEvent{Actor: a, Event: ev}:
	default:
	}
	return true
}

func (n *notifierRec) await(t *testing.T, match func(sentEvent) bool) sentEvent {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-n.ch:
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("expected event not observed")
			return sentEvent{}
		}
	}
}

func (n *notifierRec) awaitOfferFor(t *testing.T, courierID int64) {
	t.Helper()
	actor := domain.CourierActor(courierID)
	n.await(t, func(ev sentEvent) bool {
		return ev.Event.Type == hub.EventOfferCreated && ev.Actor == actor
	})
}

type estFunc func(ctx context.Context, origin, dest domain.Location) (geo.Estimate, error)

func (f estFunc) Estimate(ctx context.Context, o, d domain.Location) (geo.Estimate, error) {
	return f(ctx, o, d)
}

// latEstimator scores by how far the courier's latitude sits from pickup.
func latEstimator() estFunc {
	return func(_ context.Context, origin, dest domain.Location) (geo.Estimate, error) {
		d := origin.Lat - dest.Lat
		if d < 0 {
			d = -d
		}
		return geo.Estimate{DistanceM: d * 111000, DurationS: d * 11100}, nil
	}
}

func availableCourier(id int64, lat float64) domain.Courier {
	return domain.Courier{
		ID:        id,
		Approval:  domain.ApprovalApproved,
		Status:    domain.CourierAvailable,
		Vehicle:   domain.VehicleCar,
		Location:  &domain.Location{Lat: lat, Lon: 0},
		LocatedAt: time.Now(),
	}
}

func pendingOrder(id string) domain.Order {
	return domain.Order{
		ID:       id,
		StoreID:  "store-1",
		WeightKg: 2,
		Status:   domain.OrderPending,
		Pickup:   domain.Location{Lat: 0, Lon: 0},
	}
}

func newTestEngine(store *memStore, not *notifierRec, cfg Config) *Engine {
	return NewEngine(store, store, latEstimator(), not, cfg, Metrics{}, testlog.New().Logger())
}

func dispatchAsync(e *Engine, orderID string) chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- e.Dispatch(context.Background(), orderID) }()
	return errCh
}

func waitErr(t *testing.T, ch chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("dispatch did not finish in time")
		return nil
	}
}

func TestEngine_Dispatch_AcceptAssigns(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.putOrder(pendingOrder("ord-1"))
	store.putCourier(availableCourier(1, 0.01))

	not := newNotifierRec()
	e := newTestEngine(store, not, Config{BatchSize: 5, OfferTTL: 2 * time.Second})

	errCh := dispatchAsync(e, "ord-1")
	not.awaitOfferFor(t, 1)

	require.NoError(t, e.Accept(context.Background(), 1, "ord-1"))
	require.NoError(t, waitErr(t, errCh))

	o := store.order("ord-1")
	require.Equal(t, domain.OrderAssigned, o.Status)
	require.NotNil(t, o.AssignedCourierID)
	require.Equal(t, int64(1), *o.AssignedCourierID)

	c := store.courier(1)
	require.Equal(t, domain.CourierBusy, c.Status)
	require.NotNil(t, c.CurrentOrderID)
	require.Equal(t, "ord-1", *c.CurrentOrderID)

	not.await(t, func(ev sentEvent) bool {
		return ev.Event.Type == hub.EventOrderAssigned && ev.Actor == domain.StoreActor("store-1")
	})
}

func TestEngine_ConcurrentAccepts_ExactlyOneWinner(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.putOrder(pendingOrder("ord-1"))
	for i := int64(1); i <= 3; i++ {
		store.putCourier(availableCourier(i, float64(i)*0.01))
	}

	not := newNotifierRec()
	e := newTestEngine(store, not, Config{BatchSize: 5, OfferTTL: 2 * time.Second})

	errCh := dispatchAsync(e, "ord-1")
	for i := int64(1); i <= 3; i++ {
		not.awaitOfferFor(t, i)
	}

	results := make(chan error, 3)
	for i := int64(1); i <= 3; i++ {
		go func(id int64) {
			results <- e.Accept(context.Background(), id, "ord-1")
		}(i)
	}

	var wins, losses int
	for i := 0; i < 3; i++ {
		err := <-results
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperr.ErrAlreadyAssigned) || errors.Is(err, apperr.ErrOfferExpired):
			losses++
		default:
			t.Fatalf("unexpected accept error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 2, losses)

	require.NoError(t, waitErr(t, errCh))

	o := store.order("ord-1")
	require.Equal(t, domain.OrderAssigned, o.Status)
	require.NotNil(t, o.AssignedCourierID)

	// Only the winner is busy.
	var busy int
	for i := int64(1); i <= 3; i++ {
		if store.courier(i).Status == domain.CourierBusy {
			busy++
		}
	}
	require.Equal(t, 1, busy)
}

func TestEngine_Reject_AdvancesToNextCandidate(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.putOrder(pendingOrder("ord-1"))
	store.putCourier(availableCourier(1, 0.01))
	store.putCourier(availableCourier(2, 0.02))

	not := newNotifierRec()
	e := newTestEngine(store, not, Config{BatchSize: 1, OfferTTL: 2 * time.Second})

	errCh := dispatchAsync(e, "ord-1")

	// Nearest courier is ranked first and gets the whole first batch.
	not.awaitOfferFor(t, 1)
	require.NoError(t, e.Reject(context.Background(), 1, "ord-1"))

	not.awaitOfferFor(t, 2)
	require.NoError(t, e.Accept(context.Background(), 2, "ord-1"))
	require.NoError(t, waitErr(t, errCh))

	o := store.order("ord-1")
	require.Equal(t, domain.OrderAssigned, o.Status)
	require.Equal(t, int64(2), *o.AssignedCourierID)
	require.Equal(t, []int64{1}, o.Declined)
}

func TestEngine_AllOffersExpire_OrderParkedPending(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.putOrder(pendingOrder("ord-1"))
	store.putCourier(availableCourier(1, 0.01))

	not := newNotifierRec()
	e := newTestEngine(store, not, Config{BatchSize: 5, OfferTTL: 30 * time.Millisecond})

	errCh := dispatchAsync(e, "ord-1")
	not.awaitOfferFor(t, 1)

	err := waitErr(t, errCh)
	require.ErrorIs(t, err, apperr.ErrNoEligibleCandidates)

	o := store.order("ord-1")
	require.Equal(t, domain.OrderPending, o.Status)
	require.Equal(t, []int64{1}, o.Declined)

	not.await(t, func(ev sentEvent) bool {
		if ev.Event.Type != hub.EventOfferResolved {
			return false
		}
		data, ok := ev.Event.Data.(hub.OfferResolvedData)
		return ok && data.Outcome == string(domain.OfferExpired)
	})

	// A late accept finds no live round and gets told the offer is gone.
	err = e.Accept(context.Background(), 1, "ord-1")
	require.ErrorIs(t, err, apperr.ErrOfferExpired)
}

func TestEngine_RoundLosers_NotExcluded(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.putOrder(pendingOrder("ord-1"))
	store.putCourier(availableCourier(1, 0.01))
	store.putCourier(availableCourier(2, 0.02))

	not := newNotifierRec()
	e := newTestEngine(store, not, Config{BatchSize: 5, OfferTTL: 2 * time.Second})

	errCh := dispatchAsync(e, "ord-1")
	not.awaitOfferFor(t, 1)
	not.awaitOfferFor(t, 2)

	require.NoError(t, e.Accept(context.Background(), 1, "ord-1"))
	require.NoError(t, waitErr(t, errCh))

	// The loser was never asked, so it must not join the exclusion set.
	o := store.order("ord-1")
	require.Empty(t, o.Declined)

	not.await(t, func(ev sentEvent) bool {
		if ev.Event.Type != hub.EventOfferResolved || ev.Actor != domain.CourierActor(2) {
			return false
		}
		data, ok := ev.Event.Data.(hub.OfferResolvedData)
		return ok && data.Outcome == string(domain.OfferLost)
	})
}

func TestEngine_Dispatch_NoCandidates_Parks(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.putOrder(pendingOrder("ord-1"))

	not := newNotifierRec()
	e := newTestEngine(store, not, Config{BatchSize: 5, OfferTTL: time.Second})

	err := e.Dispatch(context.Background(), "ord-1")
	require.ErrorIs(t, err, apperr.ErrNoEligibleCandidates)
	require.Equal(t, domain.OrderPending, store.order("ord-1").Status)
}

func TestEngine_Dispatch_SkipsNonPending(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	o := pendingOrder("ord-1")
	o.Status = domain.OrderDelivered
	store.putOrder(o)

	e := newTestEngine(store, newNotifierRec(), Config{})
	require.NoError(t, e.Dispatch(context.Background(), "ord-1"))
}

func TestEngine_Dispatch_NotFound(t *testing.T) {
	t.Parallel()

	e := newTestEngine(newMemStore(), newNotifierRec(), Config{})
	err := e.Dispatch(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEngine_Dispatch_SecondCallerNoops(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.putOrder(pendingOrder("ord-1"))
	store.putCourier(availableCourier(1, 0.01))

	not := newNotifierRec()
	e := newTestEngine(store, not, Config{BatchSize: 5, OfferTTL: 2 * time.Second})

	errCh := dispatchAsync(e, "ord-1")
	not.awaitOfferFor(t, 1)

	// The order is offering now; a second dispatch attempt yields nothing.
	require.NoError(t, e.Dispatch(context.Background(), "ord-1"))

	require.NoError(t, e.Accept(context.Background(), 1, "ord-1"))
	require.NoError(t, waitErr(t, errCh))
}

func TestEngine_CancelOrder_StopsRun(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.putOrder(pendingOrder("ord-1"))
	store.putCourier(availableCourier(1, 0.01))

	not := newNotifierRec()
	e := newTestEngine(store, not, Config{BatchSize: 5, OfferTTL: 5 * time.Second})

	errCh := dispatchAsync(e, "ord-1")
	not.awaitOfferFor(t, 1)

	e.CancelOrder("ord-1")
	require.NoError(t, waitErr(t, errCh))

	not.await(t, func(ev sentEvent) bool {
		return ev.Event.Type == hub.EventOrderCancelled && ev.Actor == domain.CourierActor(1)
	})
}

func TestEngine_ClassifyStale(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	courierID := int64(7)

	assigned := pendingOrder("ord-assigned")
	assigned.Status = domain.OrderAssigned
	assigned.AssignedCourierID = &courierID
	store.putOrder(assigned)

	cancelled := pendingOrder("ord-cancelled")
	cancelled.Status = domain.OrderCancelled
	store.putOrder(cancelled)

	e := newTestEngine(store, newNotifierRec(), Config{})
	ctx := context.Background()

	// The winner retrying its accept is not an error.
	require.NoError(t, e.Accept(ctx, 7, "ord-assigned"))
	require.ErrorIs(t, e.Accept(ctx, 8, "ord-assigned"), apperr.ErrAlreadyAssigned)
	require.ErrorIs(t, e.Reject(ctx, 8, "ord-assigned"), apperr.ErrOfferExpired)
	require.ErrorIs(t, e.Accept(ctx, 7, "ord-cancelled"), apperr.ErrOrderCancelled)
	require.ErrorIs(t, e.Accept(ctx, 7, "missing"), apperr.ErrNotFound)
}

func TestEngine_AcceptAfterBusy_TreatedAsRejection(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.putOrder(pendingOrder("ord-1"))
	store.putCourier(availableCourier(1, 0.01))
	store.putCourier(availableCourier(2, 0.02))

	not := newNotifierRec()
	e := newTestEngine(store, not, Config{BatchSize: 5, OfferTTL: 2 * time.Second})

	errCh := dispatchAsync(e, "ord-1")
	not.awaitOfferFor(t, 1)
	not.awaitOfferFor(t, 2)

	// Courier 1 went busy elsewhere after being offered; its accept cannot
	// bind and must not kill the round for courier 2.
	store.mu.Lock()
	store.couriers[1].Status = domain.CourierBusy
	store.mu.Unlock()

	err := e.Accept(context.Background(), 1, "ord-1")
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	require.NoError(t, e.Accept(context.Background(), 2, "ord-1"))
	require.NoError(t, waitErr(t, errCh))

	o := store.order("ord-1")
	require.Equal(t, domain.OrderAssigned, o.Status)
	require.Equal(t, int64(2), *o.AssignedCourierID)
}

func TestEngine_CourierAvailable_RedispatchesParked(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.putOrder(pendingOrder("ord-1"))
	store.putCourier(availableCourier(1, 0.01))

	not := newNotifierRec()
	e := newTestEngine(store, not, Config{BatchSize: 5, OfferTTL: 2 * time.Second})

	e.CourierAvailable(context.Background())
	not.awaitOfferFor(t, 1)

	require.NoError(t, e.Accept(context.Background(), 1, "ord-1"))

	// Dispatch runs detached; wait for the store to settle.
	require.Eventually(t, func() bool {
		return store.order("ord-1").Status == domain.OrderAssigned
	}, 3*time.Second, 10*time.Millisecond)
}

func TestEngine_ParkPending_LogsOnlyWhenParked(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	offering := pendingOrder("ord-1")
	offering.Status = domain.OrderOffering
	store.putOrder(offering)

	assigned := pendingOrder("ord-2")
	assigned.Status = domain.OrderAssigned
	store.putOrder(assigned)

	rec := testlog.New()
	e := NewEngine(store, store, latEstimator(), newNotifierRec(), Config{}, Metrics{}, rec.Logger())

	e.parkPending(context.Background(), "ord-1")
	require.Equal(t, domain.OrderPending, store.order("ord-1").Status)

	// Already assigned: the guarded transaction finds nothing to park and
	// must not claim it did.
	e.parkPending(context.Background(), "ord-2")
	require.Equal(t, domain.OrderAssigned, store.order("ord-2").Status)

	parkedLogs := 0
	for _, entry := range rec.Entries() {
		if entry.Msg == "no eligible candidates, order parked" {
			parkedLogs++
		}
	}
	require.Equal(t, 1, parkedLogs)
}
