package dispatch

import (
	"context"
	"sort"

	"driverlink/internal/domain"
	"driverlink/internal/geo"
	"driverlink/internal/logx"
)

// candidate is a courier ranked against one order's pickup point.
type candidate struct {
	courier  domain.Courier
	estimate geo.Estimate
}

// rankCandidates builds the ordered candidate list for an order: eligible
// couriers minus the exclusion set, each scored by travel time to the
// pickup. Couriers whose estimate fails or whose distance exceeds the
// pickup radius are left out. Order is travel time ascending, distance
// ascending, then courier ID ascending so equal scores rank the same way
// on every run.
func (e *Engine) rankCandidates(ctx context.Context, o *domain.Order, excluded map[int64]struct{}) ([]candidate, error) {
	couriers, err := e.couriers.ListEligible(ctx, o.RequiredVehicle(), e.cfg.LocationStaleness)
	if err != nil {
		return nil, err
	}

	maxDistanceM := e.cfg.MaxPickupDistanceKm * 1000
	out := make([]candidate, 0, len(couriers))
	for _, c := range couriers {
		if _, skip := excluded[c.ID]; skip {
			continue
		}
		if c.Location == nil {
			continue
		}
		est, err := e.est.Estimate(ctx, *c.Location, o.Pickup)
		if err != nil {
			e.logger.Warn("candidate estimate failed",
				logx.String("order_id", o.ID),
				logx.Int64("courier_id", c.ID),
				logx.Err(err),
			)
			continue
		}
		if maxDistanceM > 0 && est.DistanceM > maxDistanceM {
			continue
		}
		out = append(out, candidate{courier: c, estimate: est})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.estimate.DurationS != b.estimate.DurationS {
			return a.estimate.DurationS < b.estimate.DurationS
		}
		if a.estimate.DistanceM != b.estimate.DistanceM {
			return a.estimate.DistanceM < b.estimate.DistanceM
		}
		return a.courier.ID < b.courier.ID
	})
	return out, nil
}
