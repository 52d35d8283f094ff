// The worker republishes parked pending orders to the orders topic so the
// dispatcher retries them once couriers free up.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"driverlink/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container := app.MustBuildWorkerContainer(ctx)
	app.NewWorkerRunner().MustRun(container)
}
