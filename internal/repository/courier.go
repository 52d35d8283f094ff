package repository

import (
	"context"
	"fmt"
	"time"

	"driverlink/internal/apperr"
	"driverlink/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CourierRepo persists courier registry records.
type CourierRepo struct{ db *pgxpool.Pool }

// NewCourierRepo creates a new CourierRepo.
func NewCourierRepo(db *pgxpool.Pool) *CourierRepo { return &CourierRepo{db: db} }

const courierColumns = `id, name, phone, approval, status, vehicle,
       latitude, longitude, located_at, current_order_id, version`

func scanCourier(row interface{ Scan(...any) error }) (*domain.Courier, error) {
	var (
		c        domain.Courier
		lat, lon *float64
		at       *time.Time
	)
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Approval, &c.Status, &c.Vehicle,
		&lat, &lon, &at, &c.CurrentOrderID, &c.Version)
	if err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		c.Location = &domain.Location{Lat: *lat, Lon: *lon}
	}
	if at != nil {
		c.LocatedAt = *at
	}
	return &c, nil
}

// Get returns a courier by its ID, or nil when absent.
func (r *CourierRepo) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+courierColumns+` FROM couriers WHERE id=$1`, id)
	c, err := scanCourier(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get courier %d: %w", id, err)
	}
	return c, nil
}

// Create persists a new courier awaiting approval.
func (r *CourierRepo) Create(ctx context.Context, c *domain.Courier) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
        INSERT INTO couriers(name, phone, approval, status, vehicle)
        VALUES($1, $2, $3, $4, $5)
        RETURNING id
    `, c.Name, c.Phone, domain.ApprovalPending, domain.CourierOffline, c.Vehicle).Scan(&id)
	if err != nil {
		if IsDuplicate(err) {
			return 0, apperr.ErrConflict
		}
		return 0, fmt.Errorf("create courier: %w", err)
	}
	return id, nil
}

// SetApproval applies the external approval outcome. The transition is
// conditional on the courier still being pending; approval is terminal.
func (r *CourierRepo) SetApproval(ctx context.Context, id int64, to domain.ApprovalStatus) error {
	ct, err := r.db.Exec(ctx, `
        UPDATE couriers
        SET approval = $2, version = version + 1, updated_at = now()
        WHERE id = $1 AND approval = $3
    `, id, to, domain.ApprovalPending)
	if err != nil {
		return fmt.Errorf("set approval courier %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// UpdateLocation overwrites a courier's location and its timestamp.
func (r *CourierRepo) UpdateLocation(ctx context.Context, id int64, loc domain.Location, at time.Time) error {
	ct, err := r.db.Exec(ctx, `
        UPDATE couriers
        SET latitude = $2, longitude = $3, located_at = $4, updated_at = now()
        WHERE id = $1
    `, id, loc.Lat, loc.Lon, at)
	if err != nil {
		return fmt.Errorf("update location courier %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// TransitionStatus moves a courier between availability states iff the
// current state and version match. busy transitions go through BindCourier /
// ReleaseCourier inside the assignment transaction instead.
func (r *CourierRepo) TransitionStatus(ctx context.Context, id int64, from, to domain.CourierStatus, version int64) error {
	ct, err := r.db.Exec(ctx, `
        UPDATE couriers
        SET status = $2, version = version + 1, updated_at = now()
        WHERE id = $1 AND status = $3 AND version = $4
    `, id, to, from, version)
	if err != nil {
		return fmt.Errorf("transition courier %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// ListEligible returns approved, available couriers with a sufficient
// vehicle class and a location fresher than the staleness cutoff. Result
// order is unspecified; ranking is the engine's job.
func (r *CourierRepo) ListEligible(ctx context.Context, minClass domain.VehicleClass, staleness time.Duration) ([]domain.Courier, error) {
	classes := eligibleClasses(minClass)
	rows, err := r.db.Query(ctx, `
        SELECT `+courierColumns+`
        FROM couriers
        WHERE approval = $1
          AND status = $2
          AND vehicle = ANY($3)
          AND located_at IS NOT NULL
          AND located_at > now() - $4::interval
    `, domain.ApprovalApproved, domain.CourierAvailable, classes, staleness.String())
	if err != nil {
		return nil, fmt.Errorf("list eligible couriers: %w", err)
	}
	defer rows.Close()

	var out []domain.Courier
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func eligibleClasses(min domain.VehicleClass) []string {
	all := []domain.VehicleClass{
		domain.VehicleMotorcycle, domain.VehicleCar,
		domain.VehicleVan, domain.VehicleTruck,
	}
	out := make([]string, 0, len(all))
	for _, v := range all {
		if v.AtLeast(min) {
			out = append(out, string(v))
		}
	}
	return out
}
