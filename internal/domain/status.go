package domain

import "regexp"

// List of approval statuses. Both approved and rejected are terminal.
const (
	ApprovalPending  ApprovalStatus = "pending_approval"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// List of courier availability statuses. busy is only ever set through the
// assignment path, never by a direct courier request.
const (
	CourierOffline   CourierStatus = "offline"
	CourierAvailable CourierStatus = "available"
	CourierBusy      CourierStatus = "busy"
)

// List of vehicle classes in ascending payload order.
const (
	VehicleMotorcycle VehicleClass = "motorcycle"
	VehicleCar        VehicleClass = "car"
	VehicleVan        VehicleClass = "van"
	VehicleTruck      VehicleClass = "truck"
)

// List of order lifecycle states.
const (
	OrderPending    OrderStatus = "pending"
	OrderOffering   OrderStatus = "offering"
	OrderAssigned   OrderStatus = "assigned"
	OrderInProgress OrderStatus = "in_progress"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var allowedCourierStatuses = [...]CourierStatus{
	CourierOffline, CourierAvailable, CourierBusy,
}

var allowedVehicles = [...]VehicleClass{
	VehicleMotorcycle, VehicleCar, VehicleVan, VehicleTruck,
}

var allowedOrderStatuses = [...]OrderStatus{
	OrderPending, OrderOffering, OrderAssigned,
	OrderInProgress, OrderDelivered, OrderCancelled,
}

// Valid checks if the CourierStatus is valid.
func (s CourierStatus) Valid() bool {
	for _, v := range allowedCourierStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Valid checks if the VehicleClass is valid.
func (v VehicleClass) Valid() bool {
	for _, a := range allowedVehicles {
		if v == a {
			return true
		}
	}
	return false
}

// Valid checks if the OrderStatus is valid.
func (s OrderStatus) Valid() bool {
	for _, v := range allowedOrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// rank orders vehicle classes by payload capacity.
func (v VehicleClass) rank() int {
	switch v {
	case VehicleMotorcycle:
		return 1
	case VehicleCar:
		return 2
	case VehicleVan:
		return 3
	case VehicleTruck:
		return 4
	}
	return 0
}

// AtLeast reports whether v can carry anything min can.
func (v VehicleClass) AtLeast(min VehicleClass) bool {
	return v.rank() >= min.rank()
}

// Payload thresholds in kilograms per vehicle class.
const (
	maxMotorcycleKg = 5
	maxCarKg        = 50
	maxVanKg        = 200
)

// VehicleForWeight maps an order weight to the minimum vehicle class.
func VehicleForWeight(weightKg float64) VehicleClass {
	switch {
	case weightKg <= maxMotorcycleKg:
		return VehicleMotorcycle
	case weightKg <= maxCarKg:
		return VehicleCar
	case weightKg <= maxVanKg:
		return VehicleVan
	default:
		return VehicleTruck
	}
}

// CanTransitionOrder reports whether an order may move from one lifecycle
// state to another. The offering→pending edge is the batch-exhaustion retry
// path; cancelled is reachable from every state before delivered.
func CanTransitionOrder(from, to OrderStatus) bool {
	switch to {
	case OrderOffering:
		return from == OrderPending
	case OrderAssigned:
		return from == OrderOffering
	case OrderInProgress:
		return from == OrderAssigned
	case OrderDelivered:
		return from == OrderInProgress
	case OrderPending:
		return from == OrderOffering
	case OrderCancelled:
		return from == OrderPending || from == OrderOffering ||
			from == OrderAssigned || from == OrderInProgress
	}
	return false
}

var rePhone = regexp.MustCompile(`^\+[0-9]{7,15}$`)

// ValidatePhone validates the phone number format.
func ValidatePhone(s string) bool {
	return rePhone.MatchString(s)
}
