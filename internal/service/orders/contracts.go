package orders

import (
	"context"

	"driverlink/internal/domain"
	"driverlink/internal/hub"
	"driverlink/internal/ports/dispatchtx"
	"driverlink/internal/repository"
)

// orderRepository defines order store persistence required by the service.
type orderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f repository.ListFilter) ([]domain.Order, error)
	CountByStatus(ctx context.Context, storeID string, status domain.OrderStatus) (int64, error)
	CountForCourier(ctx context.Context, courierID int64, statuses []domain.OrderStatus) (int64, error)
	WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error
}

// eventPublisher emits order lifecycle events to the message broker.
type eventPublisher interface {
	PublishOrderEvent(ctx context.Context, orderID string, status domain.OrderStatus) error
}

// notifier pushes realtime frames to connected actors.
type notifier interface {
	Send(actor domain.Actor, ev hub.Event) bool
}

// dispatchTrigger lets the order store nudge the dispatch engine without
// waiting for the broker round trip.
type dispatchTrigger interface {
	OrderCreated(ctx context.Context, orderID string)
	OrderCancelled(orderID string)
}
