package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"driverlink/internal/config"
	"driverlink/internal/domain"
	"driverlink/internal/logx"
	"driverlink/internal/repository"
	"driverlink/internal/transport/kafka"
)

// WorkerRunner runs the pending order resurrection loop.
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner.
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun starts the worker using the provided DI container.
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

func runWorker(container *dig.Container) error {
	return container.Invoke(workerRun)
}

func workerRun(
	ctx context.Context,
	pool *pgxpool.Pool,
	repo *repository.OrderRepo,
	producer *kafka.Producer,
	cfg *config.Config,
	logger logx.Logger,
) error {
	if producer == nil {
		return fmt.Errorf("kafka producer is nil: worker needs brokers configured")
	}
	defer closeWorker(pool, producer, logger)

	logger.Info("service-dispatch-worker started",
		logx.Duration("interval", cfg.Dispatch.PendingScanInterval),
	)
	return resurrectLoop(ctx, repo, producer, cfg.Dispatch.PendingScanInterval, logger)
}

// resurrectLoop republishes pending orders so a consumer with live courier
// channels picks them up again.
func resurrectLoop(ctx context.Context, repo *repository.OrderRepo, producer *kafka.Producer, interval time.Duration, logger logx.Logger) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pending, err := repo.ListPending(ctx)
			if err != nil {
				logger.Error("list pending orders failed", logx.Err(err))
				continue
			}
			for _, o := range pending {
				if err := producer.PublishOrderEvent(ctx, o.ID, domain.OrderPending); err != nil {
					logger.Error("republish pending order failed",
						logx.String("order_id", o.ID),
						logx.Err(err),
					)
				}
			}
			if len(pending) > 0 {
				logger.Info("pending orders republished", logx.Int("count", len(pending)))
			}
		}
	}
}

func closeWorker(pool *pgxpool.Pool, producer *kafka.Producer, logger logx.Logger) {
	if err := producer.Close(); err != nil {
		logger.Error("producer close error", logx.Err(err))
	}
	if pool != nil {
		pool.Close()
	}
}
