package handlers

import (
	"context"

	"driverlink/internal/domain"
	"driverlink/internal/service/courier"
	"driverlink/internal/service/dispatch"
	"driverlink/internal/service/orders"
)

type courierUsecase interface {
	Register(ctx context.Context, c *domain.Courier) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Courier, error)
	SetLocation(ctx context.Context, id int64, loc domain.Location) error
	SetAvailability(ctx context.Context, id int64, to domain.CourierStatus) error
	ApplyApproval(ctx context.Context, id int64, to domain.ApprovalStatus) error
}

// NewCourierUsecase wires a courier Service into a courierUsecase.
func NewCourierUsecase(svc *courier.Service) courierUsecase {
	return svc
}

type ordersUsecase interface {
	Create(ctx context.Context, actor domain.Actor, in orders.CreateInput) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error)
	List(ctx context.Context, actor domain.Actor, status domain.OrderStatus, limit, offset int) ([]domain.Order, error)
	Cancel(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, id string, to domain.OrderStatus) (*domain.Order, error)
	OrderStats(ctx context.Context, actor domain.Actor) (*orders.StoreStats, error)
	CourierStatsFor(ctx context.Context, actor domain.Actor) (*orders.CourierStats, error)
}

// NewOrdersUsecase wires an order Service into an ordersUsecase.
func NewOrdersUsecase(svc *orders.Service) ordersUsecase {
	return svc
}

type dispatchUsecase interface {
	Accept(ctx context.Context, courierID int64, orderID string) error
	Reject(ctx context.Context, courierID int64, orderID string) error
}

// NewDispatchUsecase wires the dispatch Engine into a dispatchUsecase.
func NewDispatchUsecase(e *dispatch.Engine) dispatchUsecase {
	return e
}
