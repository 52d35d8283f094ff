package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"driverlink/internal/config"
	"driverlink/internal/geo"
	"driverlink/internal/http/handlers"
	"driverlink/internal/http/middleware/ratelimit"
	"driverlink/internal/http/pprofserver"
	"driverlink/internal/http/router"
	"driverlink/internal/hub"
	"driverlink/internal/logx"
	"driverlink/internal/metrics"
	"driverlink/internal/repository"
	"driverlink/internal/service/courier"
	"driverlink/internal/service/dispatch"
	"driverlink/internal/service/orders"
	"driverlink/internal/transport/kafka"
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error)
	logFatalf func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder.
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect: connectDbWithRetry,
		logFatalf: log.Fatalf,
	}
}

// WithDBConnect sets the database connection function.
func (b *ContainerBuilder) WithDBConnect(
	fn func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function.
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds and returns the service-dispatch container.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerDomain(container); err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds and returns the service-dispatch container.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		config.Load,
		NewLogger,
		metrics.NewRegistry,
	)
}

func registerDb(
	container *dig.Container,
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) error {
	providerDB := func(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
		return dbConnect(ctx, cfg.DB.DSN(), 10, time.Second)
	}
	return provideAll(container, providerDB)
}

func registerDomain(container *dig.Container) error {
	return provideAll(container,
		repository.NewCourierRepo,
		repository.NewOrderRepo,
		func(logger logx.Logger, m *metrics.Registry) *hub.Hub {
			return hub.New(logger, m.NotificationsDropped)
		},
		func(cfg *config.Config, logger logx.Logger, m *metrics.Registry) geo.Estimator {
			client := geo.NewClient(cfg.Geo.Timeout, geo.WithBaseURL(cfg.Geo.BaseURL))
			return geo.NewRetryingEstimator(client, logger, m.ProviderRetries, geo.RetryConfig{
				MaxAttempts: cfg.Geo.MaxRetries + 1,
				BaseDelay:   cfg.Geo.BaseDelay,
				MaxDelay:    cfg.Geo.MaxDelay,
			})
		},
		func(cfg *config.Config) (*kafka.Producer, error) {
			return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		},
		func(cfg *config.Config, engine *dispatch.Engine, logger logx.Logger) (*kafka.Consumer, error) {
			p := kafka.NewProcessor(engine)
			return kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, p.Handle, logger)
		},
		func(
			orderRepo *repository.OrderRepo,
			courierRepo *repository.CourierRepo,
			est geo.Estimator,
			h *hub.Hub,
			cfg *config.Config,
			m *metrics.Registry,
			logger logx.Logger,
		) *dispatch.Engine {
			return dispatch.NewEngine(orderRepo, courierRepo, est, h, dispatch.Config{
				BatchSize:           cfg.Dispatch.BatchSize,
				OfferTTL:            cfg.Dispatch.OfferTTL,
				LocationStaleness:   cfg.Dispatch.LocationStaleness,
				MaxPickupDistanceKm: cfg.Dispatch.MaxPickupDistanceKm,
			}, dispatch.Metrics{
				OffersIssued: m.OffersIssued,
				RaceLost:     m.AcceptRaceLost,
			}, logger)
		},
		func(repo *repository.CourierRepo, engine *dispatch.Engine, cfg *config.Config) *courier.Service {
			return courier.NewService(repo, engine, cfg.Dispatch.LocationStaleness, cfg.Dispatch.OperationTimeout)
		},
		func(
			repo *repository.OrderRepo,
			est geo.Estimator,
			producer *kafka.Producer,
			h *hub.Hub,
			engine *dispatch.Engine,
			logger logx.Logger,
			cfg *config.Config,
		) *orders.Service {
			return orders.NewService(repo, est, producer, h, engine, logger, cfg.Dispatch.OperationTimeout)
		},
	)
}

func registerHTTP(container *dig.Container) error {
	pprofProvider := func(cfg *config.Config) *http.Server {
		if !cfg.Pprof.Enabled {
			return nil
		}
		return &http.Server{
			Addr: cfg.Pprof.Addr,
			Handler: pprofserver.Handler(pprofserver.Config{
				User: cfg.Pprof.User,
				Pass: cfg.Pprof.Pass,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	if err := container.Provide(pprofProvider, dig.Name("pprof_server")); err != nil {
		return fmt.Errorf("provide pprof server: %w", err)
	}

	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return provideAll(container,
		handlers.New,
		handlers.NewCourierUsecase,
		handlers.NewOrdersUsecase,
		handlers.NewDispatchUsecase,
		handlers.NewCourierHandler,
		handlers.NewOrderHandler,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		newWSActions,
		func(h *hub.Hub, actions hub.Actions, logger logx.Logger) wsHandler {
			return wsHandler{Handler: hub.WSHandler(h, actions, logger)}
		},
		func(
			logger logx.Logger,
			base *handlers.Handlers,
			couriers *handlers.CourierHandler,
			ordersH *handlers.OrderHandler,
			ws wsHandler,
			m *metrics.Registry,
			rl *ratelimit.Middleware,
			cfg *config.Config,
		) http.Handler {
			deps := router.Deps{
				Logger:   logger,
				Base:     base,
				Couriers: couriers,
				Orders:   ordersH,
				WS:       ws.Handler,
				Gatherer: m.Gatherer(),
			}
			if cfg.RateLimit.Enabled {
				deps.RateLimit = rl.Handler()
			}
			return router.New(deps)
		},
		serverProvider,
	)
}

// wsHandler disambiguates the websocket handler from the root http.Handler
// in the container.
type wsHandler struct {
	Handler http.Handler
}
