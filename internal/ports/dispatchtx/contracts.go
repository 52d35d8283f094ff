package dispatchtx

import (
	"context"

	"driverlink/internal/domain"
)

// Repository is the set of conditional mutations available inside one
// dispatch transaction. Every state-changing call is a compare-and-swap on
// the record's state/version pair and returns apperr.ErrConflict when the
// record has moved.
type Repository interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	// TransitionOrder moves an order between lifecycle states iff its
	// current status and version match the expected pair.
	TransitionOrder(ctx context.Context, id string, from, to domain.OrderStatus, version int64) error
	// AssignOrder is the race-critical offering→assigned CAS that also binds
	// the courier reference on the order row.
	AssignOrder(ctx context.Context, id string, courierID, version int64) error
	// ClearAssignment removes the courier reference, used on cancellation.
	ClearAssignment(ctx context.Context, id string) error
	// BindCourier flips an available courier to busy and points it at the
	// order; fails with ErrConflict if the courier is no longer available.
	BindCourier(ctx context.Context, courierID int64, orderID string) error
	// ReleaseCourier flips a busy courier bound to orderID back to available.
	ReleaseCourier(ctx context.Context, courierID int64, orderID string) error
	// AddDeclined records a courier in the order's exclusion set.
	AddDeclined(ctx context.Context, orderID string, courierID int64) error
}

// Runner is a transaction runner.
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
