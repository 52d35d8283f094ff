package hub

import "driverlink/internal/domain"

// Event types pushed to connected actors.
const (
	EventOfferCreated       = "offer_created"
	EventOfferResolved      = "offer_resolved"
	EventOrderAssigned      = "order_assigned"
	EventOrderCancelled     = "order_cancelled"
	EventOrderStatusChanged = "order_status_changed"
)

// Event is one server→client frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// OfferCreatedData describes a new offer pushed to a candidate courier.
type OfferCreatedData struct {
	OrderID        string  `json:"order_id"`
	Round          int     `json:"round"`
	Rank           int     `json:"rank"`
	PickupAddress  string  `json:"pickup_address"`
	DropoffAddress string  `json:"dropoff_address"`
	DistanceM      float64 `json:"distance_m"`
	DurationS      float64 `json:"duration_s"`
	Items          string  `json:"items_description"`
	CustomerName   string  `json:"customer_name"`
	ExpiresAt      string  `json:"expires_at"`
}

// OfferResolvedData tells an offered courier how their offer ended.
type OfferResolvedData struct {
	OrderID string `json:"order_id"`
	Outcome string `json:"outcome"`
}

// OrderAssignedData notifies the store and winning courier of a binding.
type OrderAssignedData struct {
	OrderID   string `json:"order_id"`
	CourierID int64  `json:"courier_id"`
}

// OrderCancelledData notifies affected actors of a cancellation.
type OrderCancelledData struct {
	OrderID string `json:"order_id"`
}

// OrderStatusChangedData notifies the store of courier progress.
type OrderStatusChangedData struct {
	OrderID string             `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
}
