package domain

import "time"

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

// Order represents a delivery order owned by the order store.
//
// AssignedCourierID is non-nil iff Status is assigned, in_progress or
// delivered. Version increases monotonically on every state mutation and is
// the optimistic concurrency token for conditional updates.
type Order struct {
	ID      string
	StoreID string

	CustomerName  string
	CustomerPhone string
	Items         string
	WeightKg      float64
	Value         float64

	Pickup              Location
	PickupAddress       string
	PickupInstructions  string
	Dropoff             Location
	DropoffAddress      string
	DropoffInstructions string

	EstimatedDistanceM *float64
	EstimatedDurationS *float64

	Status            OrderStatus
	AssignedCourierID *int64
	// Declined holds couriers already offered this order that rejected or
	// let the offer expire; they are excluded from re-offers.
	Declined []int64

	CreatedAt    time.Time
	TransitionAt time.Time
	Version      int64
}

// DeclinedSet returns the exclusion set as a lookup map.
func (o *Order) DeclinedSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(o.Declined))
	for _, id := range o.Declined {
		set[id] = struct{}{}
	}
	return set
}

// RequiredVehicle derives the minimum vehicle class able to carry the order,
// from its weight.
func (o *Order) RequiredVehicle() VehicleClass {
	return VehicleForWeight(o.WeightKg)
}

// Active reports whether the order still needs or holds a courier.
func (o *Order) Active() bool {
	switch o.Status {
	case OrderPending, OrderOffering, OrderAssigned, OrderInProgress:
		return true
	}
	return false
}
