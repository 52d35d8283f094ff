package courier

import (
	"context"
	"strings"
	"time"

	"driverlink/internal/apperr"
	"driverlink/internal/domain"
)

// Service coordinates courier registry business logic and orchestrates
// repository calls.
type Service struct {
	repo             courierRepository
	trigger          availabilityTrigger
	staleness        time.Duration
	operationTimeout time.Duration
}

// NewService creates and configures a courier Service.
func NewService(r courierRepository, trigger availabilityTrigger, staleness, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if staleness <= 0 {
		staleness = 5 * time.Minute
	}
	return &Service{repo: r, trigger: trigger, staleness: staleness, operationTimeout: timeout}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// validateRegister validates a courier for registration.
func validateRegister(c *domain.Courier) error {
	if c == nil {
		return apperr.ErrInvalid
	}
	if strings.TrimSpace(c.Name) == "" {
		return apperr.ErrInvalid
	}
	if !domain.ValidatePhone(c.Phone) {
		return apperr.ErrInvalid
	}
	if c.Vehicle == "" {
		c.Vehicle = domain.VehicleCar
	}
	if !c.Vehicle.Valid() {
		return apperr.ErrInvalid
	}
	return nil
}

func validateLocation(loc domain.Location) error {
	if loc.Lat < -90 || loc.Lat > 90 {
		return apperr.ErrInvalid
	}
	if loc.Lon < -180 || loc.Lon > 180 {
		return apperr.ErrInvalid
	}
	return nil
}

// Register persists a new courier and returns its generated ID. The courier
// starts offline with a pending approval.
func (s *Service) Register(ctx context.Context, c *domain.Courier) (int64, error) {
	if err := validateRegister(c); err != nil {
		return 0, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.Create(ctx, c)
}

// Get retrieves a courier by its ID.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

// SetLocation records a courier's position. Only approved couriers report
// locations; an update also refreshes the freshness timestamp used when
// building candidate lists.
func (s *Service) SetLocation(ctx context.Context, id int64, loc domain.Location) error {
	if err := validateLocation(loc); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.ErrNotFound
	}
	if c.Approval != domain.ApprovalApproved {
		return apperr.ErrNotApproved
	}
	return s.repo.UpdateLocation(ctx, id, loc, time.Now().UTC())
}

// SetAvailability toggles a courier between offline and available. The busy
// state is owned by the assignment flow and cannot be entered or left here;
// a courier on an active order stays busy until the order completes.
func (s *Service) SetAvailability(ctx context.Context, id int64, to domain.CourierStatus) error {
	if to != domain.CourierOffline && to != domain.CourierAvailable {
		return apperr.ErrInvalidTransition
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.repo.Get(opCtx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.ErrNotFound
	}
	if c.Approval != domain.ApprovalApproved {
		return apperr.ErrNotApproved
	}
	if c.Status == domain.CourierBusy {
		return apperr.ErrInvalidTransition
	}
	if c.Status == to {
		return nil
	}
	if err := s.repo.TransitionStatus(opCtx, id, c.Status, to, c.Version); err != nil {
		return err
	}
	if to == domain.CourierAvailable && s.trigger != nil {
		s.trigger.CourierAvailable(ctx)
	}
	return nil
}

// ApplyApproval records the outcome of the external document check. The
// decision is terminal; a second callback for the same courier conflicts.
func (s *Service) ApplyApproval(ctx context.Context, id int64, to domain.ApprovalStatus) error {
	if to != domain.ApprovalApproved && to != domain.ApprovalRejected {
		return apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.ErrNotFound
	}
	return s.repo.SetApproval(ctx, id, to)
}

// ListEligible returns couriers able to take offers for an order requiring
// at least minClass.
func (s *Service) ListEligible(ctx context.Context, minClass domain.VehicleClass) ([]domain.Courier, error) {
	if !minClass.Valid() {
		return nil, apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.ListEligible(ctx, minClass, s.staleness)
}
