package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/cpstats/statsx/app/updater"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := updater.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	app.Start(ctx)
}
