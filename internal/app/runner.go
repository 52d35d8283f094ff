package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"driverlink/internal/config"
	"driverlink/internal/logx"
	"driverlink/internal/service/dispatch"
	"driverlink/internal/transport/kafka"
)

// MustRun starts the HTTP server using the provided DI container.
func MustRun(container *dig.Container) {
	if err := run(container); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			log.Println("shutdown requested, exiting")
			return
		case errors.Is(err, context.DeadlineExceeded):
			log.Println("startup aborted: startup timeout exceeded")
			return
		default:
			log.Fatalf("run error: %v", err)
		}
	}
}

type runDeps struct {
	dig.In

	Server   *http.Server
	Pprof    *http.Server `name:"pprof_server" optional:"true"`
	Ctx      context.Context
	Pool     *pgxpool.Pool
	Producer *kafka.Producer
	Consumer *kafka.Consumer
	Engine   *dispatch.Engine
	Cfg      *config.Config
	Logger   logx.Logger
}

func run(container *dig.Container) error {
	return container.Invoke(func(d runDeps) error {
		startServer(d.Server, d.Logger)
		startPprof(d.Pprof, d.Logger)
		startDispatchFeed(d.Ctx, d.Consumer, d.Engine, d.Cfg, d.Logger)
		waitForShutdown(d.Ctx, d.Logger)
		gracefulShutdown(d.Server, d.Logger, 15*time.Second)
		closeResources(d, d.Logger)
		return nil
	})
}

func startPprof(srv *http.Server, logger logx.Logger) {
	if srv == nil {
		return
	}
	go func() {
		logger.Info("pprof listening", logx.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("pprof server stopped", logx.Err(err))
		}
	}()
}

// startDispatchFeed drives the engine from the orders topic. Without
// brokers the consumer is nil and a local pending scan fills in.
func startDispatchFeed(ctx context.Context, consumer *kafka.Consumer, engine *dispatch.Engine, cfg *config.Config, logger logx.Logger) {
	go func() {
		var err error
		if consumer != nil {
			err = consumer.Run(ctx)
		} else {
			logger.Info("kafka disabled, running local pending scan")
			err = engine.Run(ctx, cfg.Dispatch.PendingScanInterval)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dispatch feed stopped", logx.Err(err))
		}
	}()
}

func startServer(server *http.Server, logger logx.Logger) {
	go func() {
		logger.Info("service-dispatch listening", logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()
}

func waitForShutdown(ctx context.Context, logger logx.Logger) {
	<-ctx.Done()
	logger.Info("shutting down service-dispatch")
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("graceful shutdown error", logx.Err(err))
	}
}

func closeResources(d runDeps, logger logx.Logger) {
	if err := d.Server.Close(); err != nil {
		logger.Warn("server close error", logx.Err(err))
	}
	if d.Pprof != nil {
		if err := d.Pprof.Close(); err != nil {
			logger.Warn("pprof close error", logx.Err(err))
		}
	}
	if err := d.Consumer.Close(); err != nil {
		logger.Warn("consumer close error", logx.Err(err))
	}
	if err := d.Producer.Close(); err != nil {
		logger.Warn("producer close error", logx.Err(err))
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
