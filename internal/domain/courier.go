package domain

import "time"

type (
	// ApprovalStatus represents the outcome of the external document
	// approval workflow for a courier.
	ApprovalStatus string
	// CourierStatus represents the availability of a courier.
	CourierStatus string
	// VehicleClass represents the vehicle a courier operates, ordered by
	// payload capacity.
	VehicleClass string
)

// Courier represents a delivery courier tracked by the registry.
type Courier struct {
	ID             int64
	Name           string
	Phone          string
	Approval       ApprovalStatus
	Status         CourierStatus
	Vehicle        VehicleClass
	Location       *Location
	LocatedAt      time.Time
	CurrentOrderID *string
	Version        int64
}

// Location is a latitude/longitude pair.
type Location struct {
	Lat float64
	Lon float64
}

// LocationFresh reports whether the courier's last location update is recent
// enough to rank against, per the configured staleness threshold.
func (c *Courier) LocationFresh(now time.Time, staleness time.Duration) bool {
	if c.Location == nil || c.LocatedAt.IsZero() {
		return false
	}
	return now.Sub(c.LocatedAt) <= staleness
}

// Eligible reports whether the courier can receive offers for an order
// requiring at least minClass.
func (c *Courier) Eligible(minClass VehicleClass, now time.Time, staleness time.Duration) bool {
	return c.Approval == ApprovalApproved &&
		c.Status == CourierAvailable &&
		c.Vehicle.AtLeast(minClass) &&
		c.LocationFresh(now, staleness)
}
