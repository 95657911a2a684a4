package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/cpstats/statsx/app/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := worker.Initialize(ctx)

	app.Start(ctx)
}
