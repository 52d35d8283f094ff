package kafka

import (
	"context"
)

// DispatchPort is the slice of the dispatch engine driven by order events.
type DispatchPort interface {
	OrderCreated(ctx context.Context, orderID string)
	CancelOrder(orderID string)
}

type actionFunc func(context.Context, OrderEvent) error

// Processor maps order events to engine actions.
type Processor struct {
	byStatus map[string]actionFunc
}

// NewProcessor creates a Processor driving the given engine.
func NewProcessor(engine DispatchPort) *Processor {
	p := &Processor{}
	p.byStatus = map[string]actionFunc{
		// Dispatch runs detached from the claim loop: a blocking offering
		// phase would hold up every later order on the partition. The
		// pending->offering CAS keeps redelivery idempotent, and orders
		// whose dispatch fails stay pending for the scan to retry.
		"pending": func(ctx context.Context, ev OrderEvent) error {
			engine.OrderCreated(ctx, ev.OrderID)
			return nil
		},
		"cancelled": func(_ context.Context, ev OrderEvent) error {
			engine.CancelOrder(ev.OrderID)
			return nil
		},
	}
	return p
}

// Handle processes a single order event. Unknown statuses are ignored.
func (p *Processor) Handle(ctx context.Context, ev OrderEvent) error {
	fn, ok := p.byStatus[ev.Status]
	if !ok {
		return nil
	}
	return fn(ctx, ev)
}
