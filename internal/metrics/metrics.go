package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewOffersIssuedTotal returns a Prometheus counter for offers pushed to couriers.
func NewOffersIssuedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_issued_total",
		Help: "Total number of offers pushed to couriers",
	})
}

// NewAcceptRaceLostTotal returns a Prometheus counter for accepts that lost the assignment race.
func NewAcceptRaceLostTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_accept_race_lost_total",
		Help: "Total number of accepts rejected because the order was already assigned",
	})
}

// NewProviderRetriesTotal returns a Prometheus counter for distance provider retry attempts.
func NewProviderRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "distance_provider_retries_total",
		Help: "Total number of retry attempts against the distance provider",
	})
}

// NewNotificationsDroppedTotal returns a Prometheus counter for hub messages addressed to disconnected actors.
func NewNotificationsDroppedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_notifications_dropped_total",
		Help: "Total number of hub messages dropped because the target actor was not connected",
	})
}

// NewRateLimitedTotal returns a Prometheus counter for requests rejected by the rate limiter.
func NewRateLimitedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Total number of HTTP requests rejected by the rate limiter",
	})
}

// Registry bundles the dispatch counters and registers them once.
type Registry struct {
	OffersIssued         prometheus.Counter
	AcceptRaceLost       prometheus.Counter
	ProviderRetries      prometheus.Counter
	NotificationsDropped prometheus.Counter
	RateLimited          prometheus.Counter

	reg *prometheus.Registry
}

// NewRegistry creates the counter set on a fresh Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		OffersIssued:         NewOffersIssuedTotal(),
		AcceptRaceLost:       NewAcceptRaceLostTotal(),
		ProviderRetries:      NewProviderRetriesTotal(),
		NotificationsDropped: NewNotificationsDroppedTotal(),
		RateLimited:          NewRateLimitedTotal(),
		reg:                  prometheus.NewRegistry(),
	}
	r.reg.MustRegister(r.OffersIssued, r.AcceptRaceLost, r.ProviderRetries, r.NotificationsDropped, r.RateLimited)
	return r
}

// Gatherer exposes the underlying registry for the /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
