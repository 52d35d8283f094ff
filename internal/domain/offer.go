package domain

import "time"

// OfferOutcome represents the resolution of a single offer.
type OfferOutcome string

// List of offer outcomes.
const (
	OfferPending  OfferOutcome = "pending"
	OfferAccepted OfferOutcome = "accepted"
	OfferRejected OfferOutcome = "rejected"
	OfferExpired  OfferOutcome = "expired"
	// OfferLost closes the other pending offers of a round once one courier
	// has accepted.
	OfferLost OfferOutcome = "lost"
)

// Offer is the ephemeral association between one order and one courier
// during a single ranking round. Offers are not persisted; they live only in
// the engine's per-round arena and are discarded once the round resolves.
type Offer struct {
	OrderID   string
	CourierID int64
	Round     int
	Rank      int
	DistanceM float64
	DurationS float64
	Deadline  time.Time
	Outcome   OfferOutcome
}

// Expired reports whether the offer deadline has passed.
func (o *Offer) Expired(now time.Time) bool {
	return now.After(o.Deadline)
}
