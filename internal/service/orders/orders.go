package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"driverlink/internal/apperr"
	"driverlink/internal/domain"
	"driverlink/internal/geo"
	"driverlink/internal/hub"
	"driverlink/internal/logx"
	"driverlink/internal/ports/dispatchtx"
	"driverlink/internal/repository"
)

// Service owns the order lifecycle on behalf of stores and bound couriers.
// Dispatch-side transitions (offering, assignment) belong to the engine;
// everything a store or a bound courier does directly goes through here.
type Service struct {
	repo             orderRepository
	est              geo.Estimator
	publisher        eventPublisher
	notifier         notifier
	trigger          dispatchTrigger
	logger           logx.Logger
	operationTimeout time.Duration
	now              func() time.Time
}

// NewService creates and configures an order Service.
func NewService(
	repo orderRepository,
	est geo.Estimator,
	publisher eventPublisher,
	notifier notifier,
	trigger dispatchTrigger,
	logger logx.Logger,
	timeout time.Duration,
) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		repo:             repo,
		est:              est,
		publisher:        publisher,
		notifier:         notifier,
		trigger:          trigger,
		logger:           logger,
		operationTimeout: timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// CreateInput carries the store-provided fields of a new order.
type CreateInput struct {
	CustomerName  string
	CustomerPhone string
	Items         string
	WeightKg      float64
	Value         float64

	Pickup              domain.Location
	PickupAddress       string
	PickupInstructions  string
	Dropoff             domain.Location
	DropoffAddress      string
	DropoffInstructions string
}

func validateCreate(in *CreateInput) error {
	if strings.TrimSpace(in.CustomerName) == "" {
		return apperr.ErrInvalid
	}
	if !domain.ValidatePhone(in.CustomerPhone) {
		return apperr.ErrInvalid
	}
	if strings.TrimSpace(in.Items) == "" {
		return apperr.ErrInvalid
	}
	if in.WeightKg <= 0 || in.Value < 0 {
		return apperr.ErrInvalid
	}
	for _, loc := range []domain.Location{in.Pickup, in.Dropoff} {
		if loc.Lat < -90 || loc.Lat > 90 || loc.Lon < -180 || loc.Lon > 180 {
			return apperr.ErrInvalid
		}
	}
	if strings.TrimSpace(in.PickupAddress) == "" || strings.TrimSpace(in.DropoffAddress) == "" {
		return apperr.ErrInvalid
	}
	return nil
}

// Create persists a new pending order for the acting store, enriches it with
// a route estimate and kicks off dispatch. A provider failure leaves the
// estimate empty; the order is still created.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Order, error) {
	if actor.Role != domain.RoleStore {
		return nil, apperr.ErrUnauthorized
	}
	if err := validateCreate(&in); err != nil {
		return nil, err
	}

	o := &domain.Order{
		ID:                  uuid.NewString(),
		StoreID:             actor.ID,
		CustomerName:        in.CustomerName,
		CustomerPhone:       in.CustomerPhone,
		Items:               in.Items,
		WeightKg:            in.WeightKg,
		Value:               in.Value,
		Pickup:              in.Pickup,
		PickupAddress:       in.PickupAddress,
		PickupInstructions:  in.PickupInstructions,
		Dropoff:             in.Dropoff,
		DropoffAddress:      in.DropoffAddress,
		DropoffInstructions: in.DropoffInstructions,
		Status:              domain.OrderPending,
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if s.est != nil {
		est, err := s.est.Estimate(opCtx, in.Pickup, in.Dropoff)
		if err != nil {
			s.logger.Warn("route estimate failed",
				logx.String("order_id", o.ID),
				logx.Err(err),
			)
		} else {
			o.EstimatedDistanceM = &est.DistanceM
			o.EstimatedDurationS = &est.DurationS
		}
	}

	if err := s.repo.Create(opCtx, o); err != nil {
		return nil, err
	}

	s.publish(ctx, o.ID, domain.OrderPending)
	if s.trigger != nil {
		s.trigger.OrderCreated(ctx, o.ID)
	}

	s.logger.Info("order created",
		logx.String("event", "order_created"),
		logx.String("order_id", o.ID),
		logx.String("store_id", o.StoreID),
		logx.String("vehicle", string(o.RequiredVehicle())),
	)
	return o, nil
}

// Get returns an order visible to the actor: its owning store or the courier
// currently bound to it.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.ErrNotFound
	}
	if !canView(actor, o) {
		return nil, apperr.ErrUnauthorized
	}
	return o, nil
}

func canView(actor domain.Actor, o *domain.Order) bool {
	switch actor.Role {
	case domain.RoleStore:
		return actor.ID == o.StoreID
	case domain.RoleCourier:
		id, ok := actor.CourierID()
		return ok && o.AssignedCourierID != nil && *o.AssignedCourierID == id
	}
	return false
}

// List returns the actor's own orders, optionally narrowed by status.
func (s *Service) List(ctx context.Context, actor domain.Actor, status domain.OrderStatus, limit, offset int) ([]domain.Order, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.ErrInvalid
	}
	f := repository.ListFilter{Status: status, Limit: limit, Offset: offset}
	switch actor.Role {
	case domain.RoleStore:
		f.StoreID = actor.ID
	case domain.RoleCourier:
		id, ok := actor.CourierID()
		if !ok {
			return nil, apperr.ErrUnauthorized
		}
		f.CourierID = id
	default:
		return nil, apperr.ErrUnauthorized
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.List(ctx, f)
}

// Cancel voids an order on behalf of its owning store. Allowed from every
// state before delivered; a bound courier is released in the same
// transaction and outstanding offers are invalidated.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	if actor.Role != domain.RoleStore {
		return nil, apperr.ErrUnauthorized
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		cancelled       *domain.Order
		releasedCourier *int64
	)
	err := s.repo.WithTx(opCtx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrder(opCtx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return apperr.ErrNotFound
		}
		if o.StoreID != actor.ID {
			return apperr.ErrUnauthorized
		}
		if !domain.CanTransitionOrder(o.Status, domain.OrderCancelled) {
			return apperr.ErrInvalidTransition
		}

		if err := tx.TransitionOrder(opCtx, id, o.Status, domain.OrderCancelled, o.Version); err != nil {
			return err
		}
		if o.AssignedCourierID != nil {
			if err := tx.ReleaseCourier(opCtx, *o.AssignedCourierID, id); err != nil {
				return err
			}
			if err := tx.ClearAssignment(opCtx, id); err != nil {
				return err
			}
			releasedCourier = o.AssignedCourierID
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Offers outstanding for this order must stop resolving before any
	// late accept can observe the cancelled row.
	if s.trigger != nil {
		s.trigger.OrderCancelled(id)
	}
	s.publish(ctx, id, domain.OrderCancelled)
	s.notify(domain.StoreActor(cancelled.StoreID), hub.Event{
		Type: hub.EventOrderCancelled,
		Data: hub.OrderCancelledData{OrderID: id},
	})
	if releasedCourier != nil {
		s.notify(domain.CourierActor(*releasedCourier), hub.Event{
			Type: hub.EventOrderCancelled,
			Data: hub.OrderCancelledData{OrderID: id},
		})
	}

	s.logger.Info("order cancelled",
		logx.String("event", "order_cancelled"),
		logx.String("order_id", id),
		logx.Bool("courier_released", releasedCourier != nil),
	)

	cancelled.Status = domain.OrderCancelled
	cancelled.AssignedCourierID = nil
	return cancelled, nil
}

// UpdateStatus advances an order through the courier-side lifecycle,
// assigned to in_progress to delivered. Only the bound courier may call it;
// delivered releases the courier back to available.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, id string, to domain.OrderStatus) (*domain.Order, error) {
	courierID, ok := actor.CourierID()
	if !ok {
		return nil, apperr.ErrUnauthorized
	}
	if to != domain.OrderInProgress && to != domain.OrderDelivered {
		return nil, apperr.ErrInvalidTransition
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var updated *domain.Order
	err := s.repo.WithTx(opCtx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrder(opCtx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return apperr.ErrNotFound
		}
		if o.Status == domain.OrderCancelled {
			return apperr.ErrOrderCancelled
		}
		if o.AssignedCourierID == nil || *o.AssignedCourierID != courierID {
			return apperr.ErrUnauthorized
		}
		if !domain.CanTransitionOrder(o.Status, to) {
			return apperr.ErrInvalidTransition
		}

		if err := tx.TransitionOrder(opCtx, id, o.Status, to, o.Version); err != nil {
			return err
		}
		if to == domain.OrderDelivered {
			if err := tx.ReleaseCourier(opCtx, courierID, id); err != nil {
				return err
			}
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, id, to)
	s.notify(domain.StoreActor(updated.StoreID), hub.Event{
		Type: hub.EventOrderStatusChanged,
		Data: hub.OrderStatusChangedData{OrderID: id, Status: to},
	})

	s.logger.Info("order status changed",
		logx.String("event", "order_status_changed"),
		logx.String("order_id", id),
		logx.Int64("courier_id", courierID),
		logx.String("status", string(to)),
	)

	updated.Status = to
	return updated, nil
}

// StoreStats is a per-store breakdown of order counts by state.
type StoreStats struct {
	Pending    int64 `json:"pending"`
	Offering   int64 `json:"offering"`
	Assigned   int64 `json:"assigned"`
	InProgress int64 `json:"in_progress"`
	Delivered  int64 `json:"delivered"`
	Cancelled  int64 `json:"cancelled"`
}

// OrderStats returns the acting store's order counts by state.
func (s *Service) OrderStats(ctx context.Context, actor domain.Actor) (*StoreStats, error) {
	if actor.Role != domain.RoleStore {
		return nil, apperr.ErrUnauthorized
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		out  StoreStats
		dsts = []struct {
			status domain.OrderStatus
			into   *int64
		}{
			{domain.OrderPending, &out.Pending},
			{domain.OrderOffering, &out.Offering},
			{domain.OrderAssigned, &out.Assigned},
			{domain.OrderInProgress, &out.InProgress},
			{domain.OrderDelivered, &out.Delivered},
			{domain.OrderCancelled, &out.Cancelled},
		}
	)
	for _, d := range dsts {
		n, err := s.repo.CountByStatus(ctx, actor.ID, d.status)
		if err != nil {
			return nil, err
		}
		*d.into = n
	}
	return &out, nil
}

// CourierStats is a courier's delivery record.
type CourierStats struct {
	Active    int64 `json:"active"`
	Delivered int64 `json:"delivered"`
}

// CourierStatsFor returns the acting courier's active and completed counts.
func (s *Service) CourierStatsFor(ctx context.Context, actor domain.Actor) (*CourierStats, error) {
	courierID, ok := actor.CourierID()
	if !ok {
		return nil, apperr.ErrUnauthorized
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	active, err := s.repo.CountForCourier(ctx, courierID,
		[]domain.OrderStatus{domain.OrderAssigned, domain.OrderInProgress})
	if err != nil {
		return nil, err
	}
	delivered, err := s.repo.CountForCourier(ctx, courierID,
		[]domain.OrderStatus{domain.OrderDelivered})
	if err != nil {
		return nil, err
	}
	return &CourierStats{Active: active, Delivered: delivered}, nil
}

func (s *Service) publish(ctx context.Context, orderID string, status domain.OrderStatus) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, orderID, status); err != nil {
		s.logger.Warn("publish order event failed",
			logx.String("order_id", orderID),
			logx.String("status", string(status)),
			logx.Err(err),
		)
	}
}

func (s *Service) notify(actor domain.Actor, ev hub.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Send(actor, ev)
}
