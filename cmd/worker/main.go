// Package main is the entrypoint for the storyforge RabbitMQ worker. It
// consumes generation tasks published by the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/storyforge/internal/app"
	"github.com/kiranshivaraju/storyforge/internal/config"
	"github.com/kiranshivaraju/storyforge/internal/metrics"
	"github.com/kiranshivaraju/storyforge/internal/queue"
)

func main() {
	app.Main("worker", run)
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Queue.Backend != config.QueueBackendRabbitMQ {
		return fmt.Errorf("worker needs QUEUE_BACKEND=%s, got %q", config.QueueBackendRabbitMQ, cfg.Queue.Backend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Migrate(ctx); err != nil {
		return err
	}

	consumer, err := queue.NewRabbitConsumer(cfg.Queue.RabbitMQURL, cfg.Queue.RabbitMQQueue, cfg.Queue.Workers)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer consumer.Close()

	// The worker never enqueues; tasks arrive from the consumer.
	generation := a.Generation(nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx, generation) })

	// Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		slog.Info("worker metrics listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("worker stopped")
	return nil
}
