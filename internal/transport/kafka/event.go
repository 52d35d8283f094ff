package kafka

import (
	"strings"
	"time"
)

// OrderEvent is the wire format of one order lifecycle event on the orders
// topic.
type OrderEvent struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Normalize trims and lowercases the event fields.
func (e OrderEvent) Normalize() OrderEvent {
	return OrderEvent{
		OrderID:   strings.TrimSpace(e.OrderID),
		Status:    strings.ToLower(strings.TrimSpace(e.Status)),
		CreatedAt: e.CreatedAt,
	}
}
