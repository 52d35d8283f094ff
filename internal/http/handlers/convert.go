package handlers

import (
	"time"

	"driverlink/internal/domain"
	"driverlink/internal/service/orders"
)

func toCreateInput(req createOrderRequest) orders.CreateInput {
	return orders.CreateInput{
		CustomerName:        req.CustomerName,
		CustomerPhone:       req.CustomerPhone,
		Items:               req.Items,
		WeightKg:            req.WeightKg,
		Value:               req.Value,
		Pickup:              domain.Location{Lat: req.Pickup.Lat, Lon: req.Pickup.Lon},
		PickupAddress:       req.Pickup.Address,
		PickupInstructions:  req.Pickup.Instructions,
		Dropoff:             domain.Location{Lat: req.Dropoff.Lat, Lon: req.Dropoff.Lon},
		DropoffAddress:      req.Dropoff.Address,
		DropoffInstructions: req.Dropoff.Instructions,
	}
}

func toOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		StoreID:         o.StoreID,
		Status:          string(o.Status),
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		Items:           o.Items,
		WeightKg:        o.WeightKg,
		Value:           o.Value,
		RequiredVehicle: string(o.RequiredVehicle()),
		Pickup: waypointDTO{
			Lat: o.Pickup.Lat, Lon: o.Pickup.Lon,
			Address: o.PickupAddress, Instructions: o.PickupInstructions,
		},
		Dropoff: waypointDTO{
			Lat: o.Dropoff.Lat, Lon: o.Dropoff.Lon,
			Address: o.DropoffAddress, Instructions: o.DropoffInstructions,
		},
		DistanceM: o.EstimatedDistanceM,
		DurationS: o.EstimatedDurationS,
		CourierID: o.AssignedCourierID,
		CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toOrderResponses(list []domain.Order) []orderResponse {
	out := make([]orderResponse, len(list))
	for i := range list {
		out[i] = toOrderResponse(&list[i])
	}
	return out
}

func toCourierResponse(c *domain.Courier) courierResponse {
	resp := courierResponse{
		ID:             c.ID,
		Name:           c.Name,
		Phone:          c.Phone,
		Approval:       string(c.Approval),
		Status:         string(c.Status),
		Vehicle:        string(c.Vehicle),
		CurrentOrderID: c.CurrentOrderID,
	}
	if c.Location != nil {
		resp.Location = &locationDTO{Lat: c.Location.Lat, Lon: c.Location.Lon}
	}
	if !c.LocatedAt.IsZero() {
		resp.LocatedAt = c.LocatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
