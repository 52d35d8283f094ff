package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"driverlink/internal/apperr"
	"driverlink/internal/domain"
	"driverlink/internal/geo"
	"driverlink/internal/hub"
	"driverlink/internal/logx"
	"driverlink/internal/ports/dispatchtx"
)

// Config tunes a dispatch Engine.
type Config struct {
	BatchSize           int
	OfferTTL            time.Duration
	LocationStaleness   time.Duration
	MaxPickupDistanceKm float64
}

// Metrics holds the engine counters. Nil counters are allowed.
type Metrics struct {
	OffersIssued counter
	RaceLost     counter
}

// Engine matches pending orders to couriers. One dispatch attempt owns an
// order for its whole offering phase: it ranks candidates, issues offer
// batches and resolves accepts, rejects and expiries for the order through
// a single resolver loop, so two couriers can never both win. The
// offering→assigned row update stays conditional on state and version, which
// protects the invariant even against writers outside this process.
type Engine struct {
	orders   orderStore
	couriers courierSource
	est      geo.Estimator
	notifier notifier
	cfg      Config
	metrics  Metrics
	logger   logx.Logger
	now      func() time.Time

	mu   sync.Mutex
	runs map[string]*run

	scanMu   sync.Mutex
	scanning bool
}

// NewEngine creates and configures a dispatch Engine.
func NewEngine(
	orders orderStore,
	couriers courierSource,
	est geo.Estimator,
	notifier notifier,
	cfg Config,
	metrics Metrics,
	logger logx.Logger,
) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.OfferTTL <= 0 {
		cfg.OfferTTL = 30 * time.Second
	}
	if cfg.LocationStaleness <= 0 {
		cfg.LocationStaleness = 5 * time.Minute
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Engine{
		orders:   orders,
		couriers: couriers,
		est:      est,
		notifier: notifier,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		runs:     make(map[string]*run),
	}
}

// response is one courier decision delivered to a round's resolver.
type response struct {
	courierID int64
	accept    bool
	reply     chan error
}

// round is one batch of offers sharing a deadline. Its offers map is only
// touched by the resolver loop.
type round struct {
	number    int
	offers    map[int64]*domain.Offer
	deadline  time.Time
	responses chan response
	done      chan struct{}
}

// run is the arena entry for one order's offering phase.
type run struct {
	orderID    string
	cancel     chan struct{}
	cancelOnce sync.Once

	mu      sync.Mutex
	current *round
}

func (r *run) stop() {
	r.cancelOnce.Do(func() { close(r.cancel) })
}

func (r *run) setCurrent(rd *round) {
	r.mu.Lock()
	r.current = rd
	r.mu.Unlock()
}

func (r *run) currentRound() *round {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

type roundResult int

const (
	roundContinue roundResult = iota
	roundAssigned
	roundClosed
)

// Dispatch runs the offering phase for one order. It is idempotent: the
// pending→offering update admits exactly one concurrent caller per order,
// everyone else returns immediately. It blocks until the order is assigned,
// parked back to pending, cancelled, or ctx ends.
func (e *Engine) Dispatch(ctx context.Context, orderID string) error {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return apperr.ErrNotFound
	}
	if o.Status != domain.OrderPending {
		return nil
	}

	err = e.orders.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.TransitionOrder(ctx, orderID, domain.OrderPending, domain.OrderOffering, o.Version)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil
		}
		return err
	}

	rn := &run{orderID: orderID, cancel: make(chan struct{})}
	e.mu.Lock()
	if _, exists := e.runs[orderID]; exists {
		// Should be unreachable given the CAS above; bail out rather than
		// fight the other run.
		e.mu.Unlock()
		return nil
	}
	e.runs[orderID] = rn
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		if e.runs[orderID] == rn {
			delete(e.runs, orderID)
		}
		e.mu.Unlock()
	}()

	return e.offerLoop(ctx, rn, o)
}

// offerLoop drives rank → batch → round until the order is assigned or no
// candidate remains. Every courier that rejects or times out joins the
// exclusion set, so each re-rank only surfaces couriers not yet tried.
func (e *Engine) offerLoop(ctx context.Context, rn *run, o *domain.Order) error {
	excluded := o.DeclinedSet()
	roundNo := 0

	for {
		select {
		case <-rn.cancel:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cands, err := e.rankCandidates(ctx, o, excluded)
		if err != nil {
			e.parkPending(ctx, o.ID)
			return err
		}
		if len(cands) == 0 {
			e.parkPending(ctx, o.ID)
			return apperr.ErrNoEligibleCandidates
		}

		for start := 0; start < len(cands); start += e.cfg.BatchSize {
			end := start + e.cfg.BatchSize
			if end > len(cands) {
				end = len(cands)
			}
			roundNo++

			res, err := e.runRound(ctx, rn, o, roundNo, cands[start:end], excluded)
			if err != nil {
				return err
			}
			switch res {
			case roundAssigned, roundClosed:
				return nil
			}
		}
	}
}

// parkPending returns an order that found no courier to the pending state.
// A conflict means the order moved meanwhile, which is fine.
func (e *Engine) parkPending(ctx context.Context, orderID string) {
	parked := false
	err := e.orders.WithTx(ctx, func(tx dispatchtx.Repository) error {
		cur, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur == nil || cur.Status != domain.OrderOffering {
			return nil
		}
		if err := tx.TransitionOrder(ctx, orderID, domain.OrderOffering, domain.OrderPending, cur.Version); err != nil {
			return err
		}
		parked = true
		return nil
	})
	switch {
	case err != nil && !errors.Is(err, apperr.ErrConflict):
		e.logger.Error("park order pending failed",
			logx.String("order_id", orderID),
			logx.Err(err),
		)
	case parked:
		e.logger.Info("no eligible candidates, order parked",
			logx.String("event", "dispatch_parked"),
			logx.String("order_id", orderID),
		)
	}
}

// runRound issues one batch of offers and resolves courier decisions until
// someone wins, everyone declines, the deadline fires, or the order is
// cancelled.
func (e *Engine) runRound(ctx context.Context, rn *run, o *domain.Order, number int, cands []candidate, excluded map[int64]struct{}) (roundResult, error) {
	deadline := e.now().Add(e.cfg.OfferTTL)
	rd := &round{
		number:    number,
		offers:    make(map[int64]*domain.Offer, len(cands)),
		deadline:  deadline,
		responses: make(chan response),
		done:      make(chan struct{}),
	}

	for i, c := range cands {
		rd.offers[c.courier.ID] = &domain.Offer{
			OrderID:   o.ID,
			CourierID: c.courier.ID,
			Round:     number,
			Rank:      i + 1,
			DistanceM: c.estimate.DistanceM,
			DurationS: c.estimate.DurationS,
			Deadline:  deadline,
			Outcome:   domain.OfferPending,
		}
	}

	rn.setCurrent(rd)
	defer func() {
		rn.setCurrent(nil)
		close(rd.done)
	}()

	for _, offer := range rd.offers {
		e.notifier.Send(domain.CourierActor(offer.CourierID), hub.Event{
			Type: hub.EventOfferCreated,
			Data: hub.OfferCreatedData{
				OrderID:        o.ID,
				Round:          offer.Round,
				Rank:           offer.Rank,
				PickupAddress:  o.PickupAddress,
				DropoffAddress: o.DropoffAddress,
				DistanceM:      offer.DistanceM,
				DurationS:      offer.DurationS,
				Items:          o.Items,
				CustomerName:   o.CustomerName,
				ExpiresAt:      deadline.Format(time.RFC3339),
			},
		})
		if e.metrics.OffersIssued != nil {
			e.metrics.OffersIssued.Inc()
		}
	}
	e.logger.Info("offers issued",
		logx.String("event", "offers_issued"),
		logx.String("order_id", o.ID),
		logx.Int("round", number),
		logx.Int("count", len(rd.offers)),
	)

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		select {
		case resp := <-rd.responses:
			replyErr, res := e.handleResponse(ctx, rd, o, resp, excluded)
			resp.reply <- replyErr
			if res != roundContinue {
				return res, nil
			}
			if rd.pendingCount() == 0 {
				return roundContinue, nil
			}

		case <-timer.C:
			e.expirePending(ctx, rd, o.ID, excluded)
			return roundContinue, nil

		case <-rn.cancel:
			e.resolvePending(rd, domain.OfferExpired, hub.Event{
				Type: hub.EventOrderCancelled,
				Data: hub.OrderCancelledData{OrderID: o.ID},
			})
			return roundClosed, nil

		case <-ctx.Done():
			return roundClosed, ctx.Err()
		}
	}
}

func (rd *round) pendingCount() int {
	n := 0
	for _, o := range rd.offers {
		if o.Outcome == domain.OfferPending {
			n++
		}
	}
	return n
}

// handleResponse applies one courier decision inside the resolver loop. The
// first error is the reply for the deciding courier, the result tells the
// round whether to keep going.
func (e *Engine) handleResponse(ctx context.Context, rd *round, o *domain.Order, resp response, excluded map[int64]struct{}) (error, roundResult) {
	offer, ok := rd.offers[resp.courierID]
	if !ok || offer.Outcome != domain.OfferPending {
		return apperr.ErrOfferExpired, roundContinue
	}
	if offer.Expired(e.now()) {
		offer.Outcome = domain.OfferExpired
		e.decline(ctx, o.ID, resp.courierID, excluded)
		return apperr.ErrOfferExpired, roundContinue
	}

	if !resp.accept {
		offer.Outcome = domain.OfferRejected
		e.decline(ctx, o.ID, resp.courierID, excluded)
		e.notifier.Send(domain.CourierActor(resp.courierID), hub.Event{
			Type: hub.EventOfferResolved,
			Data: hub.OfferResolvedData{OrderID: o.ID, Outcome: string(domain.OfferRejected)},
		})
		return nil, roundContinue
	}

	err := e.tryAssign(ctx, o.ID, resp.courierID)
	switch {
	case err == nil:
		offer.Outcome = domain.OfferAccepted
		e.resolvePending(rd, domain.OfferLost, hub.Event{
			Type: hub.EventOfferResolved,
			Data: hub.OfferResolvedData{OrderID: o.ID, Outcome: string(domain.OfferLost)},
		})
		assigned := hub.Event{
			Type: hub.EventOrderAssigned,
			Data: hub.OrderAssignedData{OrderID: o.ID, CourierID: resp.courierID},
		}
		e.notifier.Send(domain.CourierActor(resp.courierID), assigned)
		e.notifier.Send(domain.StoreActor(o.StoreID), assigned)
		e.logger.Info("order assigned",
			logx.String("event", "order_assigned"),
			logx.String("order_id", o.ID),
			logx.Int64("courier_id", resp.courierID),
			logx.Int("round", rd.number),
			logx.Int("rank", offer.Rank),
		)
		return nil, roundAssigned

	case errors.Is(err, apperr.ErrOrderCancelled):
		e.resolvePending(rd, domain.OfferExpired, hub.Event{
			Type: hub.EventOrderCancelled,
			Data: hub.OrderCancelledData{OrderID: o.ID},
		})
		return err, roundClosed

	case errors.Is(err, apperr.ErrAlreadyAssigned):
		// The row moved under us. Only possible with a writer outside this
		// run, so stop offering.
		return err, roundClosed

	case errors.Is(err, apperr.ErrInvalidTransition):
		// The courier accepted but is no longer available. Treat like a
		// rejection and keep the round open for the others.
		offer.Outcome = domain.OfferRejected
		e.decline(ctx, o.ID, resp.courierID, excluded)
		return err, roundContinue

	default:
		return err, roundContinue
	}
}

// tryAssign commits the accept: order offering→assigned and courier
// available→busy in one transaction. Both updates are conditional; either
// conflict rolls the whole thing back.
func (e *Engine) tryAssign(ctx context.Context, orderID string, courierID int64) error {
	return e.orders.WithTx(ctx, func(tx dispatchtx.Repository) error {
		cur, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur == nil {
			return apperr.ErrNotFound
		}
		switch cur.Status {
		case domain.OrderCancelled:
			return apperr.ErrOrderCancelled
		case domain.OrderOffering:
		default:
			return apperr.ErrAlreadyAssigned
		}

		if err := tx.AssignOrder(ctx, orderID, courierID, cur.Version); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				if e.metrics.RaceLost != nil {
					e.metrics.RaceLost.Inc()
				}
				return apperr.ErrAlreadyAssigned
			}
			return err
		}
		if err := tx.BindCourier(ctx, courierID, orderID); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.ErrInvalidTransition
			}
			return err
		}
		return nil
	})
}

// decline records a courier in the order's exclusion set.
func (e *Engine) decline(ctx context.Context, orderID string, courierID int64, excluded map[int64]struct{}) {
	excluded[courierID] = struct{}{}
	err := e.orders.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.AddDeclined(ctx, orderID, courierID)
	})
	if err != nil {
		e.logger.Error("record declined courier failed",
			logx.String("order_id", orderID),
			logx.Int64("courier_id", courierID),
			logx.Err(err),
		)
	}
}

// expirePending times out every unresolved offer in the round.
func (e *Engine) expirePending(ctx context.Context, rd *round, orderID string, excluded map[int64]struct{}) {
	for id, offer := range rd.offers {
		if offer.Outcome != domain.OfferPending {
			continue
		}
		offer.Outcome = domain.OfferExpired
		e.decline(ctx, orderID, id, excluded)
		e.notifier.Send(domain.CourierActor(id), hub.Event{
			Type: hub.EventOfferResolved,
			Data: hub.OfferResolvedData{OrderID: orderID, Outcome: string(domain.OfferExpired)},
		})
	}
}

// resolvePending closes every unresolved offer with the given outcome and
// pushes ev to each holder. Unlike expiry it does not grow the exclusion
// set; these couriers never got to decide.
func (e *Engine) resolvePending(rd *round, outcome domain.OfferOutcome, ev hub.Event) {
	for id, offer := range rd.offers {
		if offer.Outcome != domain.OfferPending {
			continue
		}
		offer.Outcome = outcome
		e.notifier.Send(domain.CourierActor(id), ev)
	}
}

// Accept resolves a courier's accept for an order. First accept wins; a
// late accept gets the specific reason it lost.
func (e *Engine) Accept(ctx context.Context, courierID int64, orderID string) error {
	return e.submit(ctx, courierID, orderID, true)
}

// Reject resolves a courier's reject for an order. The courier joins the
// exclusion set and is not offered this order again.
func (e *Engine) Reject(ctx context.Context, courierID int64, orderID string) error {
	return e.submit(ctx, courierID, orderID, false)
}

func (e *Engine) submit(ctx context.Context, courierID int64, orderID string, accept bool) error {
	e.mu.Lock()
	rn := e.runs[orderID]
	e.mu.Unlock()

	if rn == nil {
		return e.classifyStale(ctx, courierID, orderID, accept)
	}
	rd := rn.currentRound()
	if rd == nil {
		return e.classifyStale(ctx, courierID, orderID, accept)
	}

	resp := response{courierID: courierID, accept: accept, reply: make(chan error, 1)}
	select {
	case rd.responses <- resp:
	case <-rd.done:
		return e.classifyStale(ctx, courierID, orderID, accept)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-resp.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classifyStale explains a decision that arrived with no live offer round,
// based on where the order ended up.
func (e *Engine) classifyStale(ctx context.Context, courierID int64, orderID string, accept bool) error {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return apperr.ErrNotFound
	}
	switch o.Status {
	case domain.OrderCancelled:
		return apperr.ErrOrderCancelled
	case domain.OrderAssigned, domain.OrderInProgress, domain.OrderDelivered:
		if accept && o.AssignedCourierID != nil && *o.AssignedCourierID == courierID {
			// Duplicate accept from the winner.
			return nil
		}
		if accept {
			return apperr.ErrAlreadyAssigned
		}
		return apperr.ErrOfferExpired
	default:
		return apperr.ErrOfferExpired
	}
}

// CancelOrder invalidates any outstanding offers for an order. Safe to call
// whether or not a run is active.
func (e *Engine) CancelOrder(orderID string) {
	e.mu.Lock()
	rn := e.runs[orderID]
	e.mu.Unlock()
	if rn != nil {
		rn.stop()
	}
}

// OrderCreated kicks off dispatch for a freshly created order without
// waiting for the broker round trip. Detached from the caller's request
// lifetime.
func (e *Engine) OrderCreated(ctx context.Context, orderID string) {
	dctx := context.WithoutCancel(ctx)
	go func() {
		err := e.Dispatch(dctx, orderID)
		if err != nil && !apperr.IsExpected(err) {
			e.logger.Error("dispatch failed",
				logx.String("order_id", orderID),
				logx.Err(err),
			)
		}
	}()
}

// OrderCancelled implements the order store's cancellation trigger.
func (e *Engine) OrderCancelled(orderID string) {
	e.CancelOrder(orderID)
}

// CourierAvailable retriggers dispatch for parked pending orders when a
// courier comes online. At most one scan runs at a time.
func (e *Engine) CourierAvailable(ctx context.Context) {
	e.scanMu.Lock()
	if e.scanning {
		e.scanMu.Unlock()
		return
	}
	e.scanning = true
	e.scanMu.Unlock()

	dctx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			e.scanMu.Lock()
			e.scanning = false
			e.scanMu.Unlock()
		}()
		e.redispatchPending(dctx)
	}()
}

func (e *Engine) redispatchPending(ctx context.Context) {
	pending, err := e.orders.ListPending(ctx)
	if err != nil {
		e.logger.Error("list pending orders failed", logx.Err(err))
		return
	}
	for _, o := range pending {
		if err := e.Dispatch(ctx, o.ID); err != nil && !apperr.IsExpected(err) {
			e.logger.Error("dispatch failed",
				logx.String("order_id", o.ID),
				logx.Err(err),
			)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Run periodically resurrects parked pending orders until ctx ends. Meant
// for the worker process.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.redispatchPending(ctx)
		}
	}
}
