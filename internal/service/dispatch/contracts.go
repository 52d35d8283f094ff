package dispatch

import (
	"context"
	"time"

	"driverlink/internal/domain"
	"driverlink/internal/hub"
	"driverlink/internal/ports/dispatchtx"
)

// orderStore is the slice of order persistence the engine drives.
type orderStore interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListPending(ctx context.Context) ([]domain.Order, error)
	WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error
}

// courierSource supplies candidate couriers for an order's vehicle class.
type courierSource interface {
	ListEligible(ctx context.Context, minClass domain.VehicleClass, staleness time.Duration) ([]domain.Courier, error)
}

// notifier pushes realtime frames to connected actors. A false return means
// the actor is offline and the frame was dropped.
type notifier interface {
	Send(actor domain.Actor, ev hub.Event) bool
}

type counter interface {
	Inc()
}
