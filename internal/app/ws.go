package app

import (
	"context"

	"driverlink/internal/domain"
	"driverlink/internal/hub"
	"driverlink/internal/service/courier"
	"driverlink/internal/service/dispatch"
)

// wsActions exposes courier operations over the push channel. Both the ws
// and HTTP paths resolve against the same services.
type wsActions struct {
	couriers *courier.Service
	engine   *dispatch.Engine
}

func newWSActions(couriers *courier.Service, engine *dispatch.Engine) hub.Actions {
	return &wsActions{couriers: couriers, engine: engine}
}

func (a *wsActions) AcceptOffer(ctx context.Context, courierID int64, orderID string) error {
	return a.engine.Accept(ctx, courierID, orderID)
}

func (a *wsActions) RejectOffer(ctx context.Context, courierID int64, orderID string) error {
	return a.engine.Reject(ctx, courierID, orderID)
}

func (a *wsActions) UpdateLocation(ctx context.Context, courierID int64, loc domain.Location) error {
	return a.couriers.SetLocation(ctx, courierID, loc)
}

func (a *wsActions) UpdateAvailability(ctx context.Context, courierID int64, status domain.CourierStatus) error {
	return a.couriers.SetAvailability(ctx, courierID, status)
}
