package app

import (
	"context"
	"fmt"

	"go.uber.org/dig"

	"driverlink/internal/config"
	"driverlink/internal/repository"
	"driverlink/internal/transport/kafka"
)

// MustBuildWorkerContainer builds the container for the resurrection
// worker, which republishes parked pending orders to the orders topic.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

// MustBuildWorker builds the worker container.
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.buildWorker(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) buildWorker(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	err := provideAll(container,
		repository.NewOrderRepo,
		func(cfg *config.Config) (*kafka.Producer, error) {
			return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return container, nil
}
