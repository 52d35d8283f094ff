package courier

import (
	"context"
	"time"

	"driverlink/internal/domain"
)

// courierRepository defines registry storage operations required by the
// business layer.
type courierRepository interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
	Create(ctx context.Context, c *domain.Courier) (int64, error)
	SetApproval(ctx context.Context, id int64, to domain.ApprovalStatus) error
	UpdateLocation(ctx context.Context, id int64, loc domain.Location, at time.Time) error
	TransitionStatus(ctx context.Context, id int64, from, to domain.CourierStatus, version int64) error
	ListEligible(ctx context.Context, minClass domain.VehicleClass, staleness time.Duration) ([]domain.Courier, error)
}

// availabilityTrigger is notified when a courier becomes available, so
// pending orders can be re-dispatched without manual intervention.
type availabilityTrigger interface {
	CourierAvailable(ctx context.Context)
}
