package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"driverlink/internal/http/handlers"
	"driverlink/internal/http/middleware"
	"driverlink/internal/logx"
)

// Deps are the pieces the router mounts.
type Deps struct {
	Logger   logx.Logger
	Base     *handlers.Handlers
	Couriers *handlers.CourierHandler
	Orders   *handlers.OrderHandler
	WS       http.Handler
	Gatherer prometheus.Gatherer
	// RateLimit is optional chi middleware applied to the API routes.
	RateLimit func(http.Handler) http.Handler
}

// New constructs a chi-based http.Handler with base middleware and routes.
// The websocket route sits outside the timeout group; its connections are
// long-lived.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Identity())
	if d.Logger != nil {
		r.Use(middleware.Observability(d.Logger))
	}

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	r.NotFound(http.HandlerFunc(d.Base.NotFound))

	if d.Gatherer != nil {
		gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, d.Gatherer}
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
	}

	if d.WS != nil {
		r.Handle("/ws", d.WS)
	}

	r.Group(func(api chi.Router) {
		api.Use(chimw.Timeout(15 * time.Second))
		if d.RateLimit != nil {
			api.Use(d.RateLimit)
		}

		api.Route("/orders", func(rr chi.Router) {
			rr.Post("/", d.Orders.Create)
			rr.Get("/", d.Orders.List)
			rr.Get("/{id}", d.Orders.Get)
			rr.Post("/{id}/cancel", d.Orders.Cancel)
			rr.Post("/{id}/accept", d.Orders.Accept)
			rr.Post("/{id}/reject", d.Orders.Reject)
			rr.Put("/{id}/status", d.Orders.UpdateStatus)
		})

		api.Route("/couriers", func(rr chi.Router) {
			rr.Post("/", d.Couriers.Register)
			rr.Get("/me", d.Couriers.Me)
			rr.Put("/location", d.Couriers.UpdateLocation)
			rr.Put("/availability", d.Couriers.UpdateAvailability)
		})

		api.Post("/webhooks/approval", d.Couriers.ApprovalWebhook)

		api.Get("/stats/orders", d.Orders.StoreStats)
		api.Get("/stats/couriers", d.Orders.CourierStats)
	})

	return r
}
