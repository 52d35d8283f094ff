package handlers

// locationDTO is a latitude/longitude pair on the wire.
type locationDTO struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type waypointDTO struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Address      string  `json:"address"`
	Instructions string  `json:"instructions,omitempty"`
}

type createOrderRequest struct {
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	Items         string      `json:"items_description"`
	WeightKg      float64     `json:"weight_kg"`
	Value         float64     `json:"order_value"`
	Pickup        waypointDTO `json:"pickup"`
	Dropoff       waypointDTO `json:"dropoff"`
}

type orderResponse struct {
	ID              string       `json:"id"`
	StoreID         string       `json:"store_id"`
	Status          string       `json:"status"`
	CustomerName    string       `json:"customer_name"`
	CustomerPhone   string       `json:"customer_phone"`
	Items           string       `json:"items_description"`
	WeightKg        float64      `json:"weight_kg"`
	Value           float64      `json:"order_value"`
	RequiredVehicle string       `json:"required_vehicle"`
	Pickup          waypointDTO  `json:"pickup"`
	Dropoff         waypointDTO  `json:"dropoff"`
	DistanceM       *float64     `json:"estimated_distance_m,omitempty"`
	DurationS       *float64     `json:"estimated_duration_s,omitempty"`
	CourierID       *int64       `json:"courier_id,omitempty"`
	CreatedAt       string       `json:"created_at"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type registerCourierRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Vehicle string `json:"vehicle,omitempty"`
}

type courierResponse struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Phone          string       `json:"phone"`
	Approval       string       `json:"approval"`
	Status         string       `json:"status"`
	Vehicle        string       `json:"vehicle"`
	Location       *locationDTO `json:"location,omitempty"`
	LocatedAt      string       `json:"located_at,omitempty"`
	CurrentOrderID *string      `json:"current_order_id,omitempty"`
}

type updateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type updateAvailabilityRequest struct {
	Status string `json:"status"`
}

type approvalWebhookRequest struct {
	CourierID int64  `json:"courier_id"`
	Decision  string `json:"decision"`
}
