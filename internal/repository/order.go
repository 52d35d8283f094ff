package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"driverlink/internal/apperr"
	"driverlink/internal/domain"
	"driverlink/internal/ports/dispatchtx"
)

// OrderRepo persists order store records.
type OrderRepo struct {
	db *pgxpool.Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(db *pgxpool.Pool) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, store_id, customer_name, customer_phone, items,
       weight_kg, value,
       pickup_lat, pickup_lon, pickup_address, pickup_instructions,
       dropoff_lat, dropoff_lon, dropoff_address, dropoff_instructions,
       estimated_distance_m, estimated_duration_s,
       status, courier_id, declined, created_at, transition_at, version`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.StoreID, &o.CustomerName, &o.CustomerPhone, &o.Items,
		&o.WeightKg, &o.Value,
		&o.Pickup.Lat, &o.Pickup.Lon, &o.PickupAddress, &o.PickupInstructions,
		&o.Dropoff.Lat, &o.Dropoff.Lon, &o.DropoffAddress, &o.DropoffInstructions,
		&o.EstimatedDistanceM, &o.EstimatedDurationS,
		&o.Status, &o.AssignedCourierID, &o.Declined, &o.CreatedAt, &o.TransitionAt, &o.Version)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create persists a new pending order.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO orders(
            id, store_id, customer_name, customer_phone, items, weight_kg, value,
            pickup_lat, pickup_lon, pickup_address, pickup_instructions,
            dropoff_lat, dropoff_lon, dropoff_address, dropoff_instructions,
            estimated_distance_m, estimated_duration_s, status
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
    `, o.ID, o.StoreID, o.CustomerName, o.CustomerPhone, o.Items, o.WeightKg, o.Value,
		o.Pickup.Lat, o.Pickup.Lon, o.PickupAddress, o.PickupInstructions,
		o.Dropoff.Lat, o.Dropoff.Lon, o.DropoffAddress, o.DropoffInstructions,
		o.EstimatedDistanceM, o.EstimatedDurationS, domain.OrderPending)
	if err != nil {
		if IsDuplicate(err) {
			return apperr.ErrConflict
		}
		return fmt.Errorf("create order %s: %w", o.ID, err)
	}
	return nil
}

// Get returns an order by ID, or nil when absent.
func (r *OrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// ListFilter narrows List results. Zero values mean no filter.
type ListFilter struct {
	StoreID   string
	CourierID int64
	Status    domain.OrderStatus
	Limit     int
	Offset    int
}

// List returns orders matching the filter, newest first.
func (r *OrderRepo) List(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE true`
	args := make([]any, 0, 5)
	if f.StoreID != "" {
		args = append(args, f.StoreID)
		q += fmt.Sprintf(" AND store_id = $%d", len(args))
	}
	if f.CourierID != 0 {
		args = append(args, f.CourierID)
		q += fmt.Sprintf(" AND courier_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// ListPending returns orders waiting for a dispatch attempt.
func (r *OrderRepo) ListPending(ctx context.Context) ([]domain.Order, error) {
	return r.List(ctx, ListFilter{Status: domain.OrderPending})
}

// CountByStatus returns the number of a store's orders in a given state.
func (r *OrderRepo) CountByStatus(ctx context.Context, storeID string, status domain.OrderStatus) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE store_id=$1 AND status=$2`,
		storeID, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders %s/%s: %w", storeID, status, err)
	}
	return n, nil
}

// CountForCourier returns the number of a courier's orders in the given states.
func (r *OrderRepo) CountForCourier(ctx context.Context, courierID int64, statuses []domain.OrderStatus) (int64, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE courier_id=$1 AND status = ANY($2)`,
		courierID, ss).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count courier orders %d: %w", courierID, err)
	}
	return n, nil
}

// WithTx opens a transaction and executes fn within it.
func (r *OrderRepo) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TxRepo implements dispatchtx.Repository over one pgx transaction.
type TxRepo struct {
	tx pgx.Tx
}

// GetOrder returns an order by ID inside the transaction, or nil when absent.
func (r *TxRepo) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// TransitionOrder moves an order between states iff status and version match.
func (r *TxRepo) TransitionOrder(ctx context.Context, id string, from, to domain.OrderStatus, version int64) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET status = $2, version = version + 1, transition_at = now()
        WHERE id = $1 AND status = $3 AND version = $4
    `, id, to, from, version)
	if err != nil {
		return fmt.Errorf("transition order %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// AssignOrder performs the offering→assigned CAS and binds the courier
// reference in one statement. A zero row count means the order moved first
// and the caller lost the race.
func (r *TxRepo) AssignOrder(ctx context.Context, id string, courierID, version int64) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET status = $2, courier_id = $3, version = version + 1, transition_at = now()
        WHERE id = $1 AND status = $4 AND version = $5
    `, id, domain.OrderAssigned, courierID, domain.OrderOffering, version)
	if err != nil {
		return fmt.Errorf("assign order %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// ClearAssignment removes the courier reference from an order.
func (r *TxRepo) ClearAssignment(ctx context.Context, id string) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE orders SET courier_id = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear assignment %s: %w", id, err)
	}
	return nil
}

// BindCourier flips an available courier to busy and records its order.
func (r *TxRepo) BindCourier(ctx context.Context, courierID int64, orderID string) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE couriers
        SET status = $2, current_order_id = $3, version = version + 1, updated_at = now()
        WHERE id = $1 AND status = $4
    `, courierID, domain.CourierBusy, orderID, domain.CourierAvailable)
	if err != nil {
		return fmt.Errorf("bind courier %d: %w", courierID, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// ReleaseCourier flips a busy courier bound to orderID back to available.
func (r *TxRepo) ReleaseCourier(ctx context.Context, courierID int64, orderID string) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE couriers
        SET status = $2, current_order_id = NULL, version = version + 1, updated_at = now()
        WHERE id = $1 AND status = $3 AND current_order_id = $4
    `, courierID, domain.CourierAvailable, domain.CourierBusy, orderID)
	if err != nil {
		return fmt.Errorf("release courier %d: %w", courierID, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// AddDeclined records a courier in the order's exclusion set, once.
func (r *TxRepo) AddDeclined(ctx context.Context, orderID string, courierID int64) error {
	_, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET declined = array_append(declined, $2)
        WHERE id = $1 AND NOT ($2 = ANY(declined))
    `, orderID, courierID)
	if err != nil {
		return fmt.Errorf("add declined %s/%d: %w", orderID, courierID, err)
	}
	return nil
}
