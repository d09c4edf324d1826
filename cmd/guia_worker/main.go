// Command guia_worker consumes payment confirmations from AMQP and credits
// the paid orders.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"guia_service/internal/app"
	"guia_service/internal/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	err = run(ctx, a)
	if err != nil {
		a.Log.Error("worker stopped", zap.Error(err))
	}
	a.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App) error {
	if !a.Config.QueueEnabled() {
		return errors.New("queue.url is not configured")
	}

	q, err := queue.NewClient(a.Config.Queue.URL, a.Config.Queue.Exchange, a.Config.Queue.Queue, a.Log)
	if err != nil {
		return err
	}
	defer q.Close()

	a.Log.Info("starting guia_worker")
	err = q.Consume(ctx, a.Payments.Fulfill)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.Log.Info("worker shutdown complete")
	return nil
}
