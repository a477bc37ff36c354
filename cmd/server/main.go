// Package main is the entrypoint for the storyforge API server.
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

	"github.com/kiranshivaraju/storyforge/internal/api"
	"github.com/kiranshivaraju/storyforge/internal/api/handler"
	mw "github.com/kiranshivaraju/storyforge/internal/api/middleware"
	"github.com/kiranshivaraju/storyforge/internal/app"
	"github.com/kiranshivaraju/storyforge/internal/config"
	"github.com/kiranshivaraju/storyforge/internal/metrics"
	"github.com/kiranshivaraju/storyforge/internal/queue"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app.Main("server", run)
}

func run() error {
	// 1. Load config, failing fast when it is invalid
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "queue", cfg.Queue.Backend, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect postgres, redis, provider
	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// 3. Run migrations
	if err := a.Migrate(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// 4. Dispatcher: in-process pool or RabbitMQ
	pingers := map[string]handler.Pinger{"postgres": a.Store}
	if a.Redis != nil {
		pingers["redis"] = a.Redis
	}

	var dispatcher queue.Dispatcher
	var pool *queue.Pool
	switch cfg.Queue.Backend {
	case config.QueueBackendRabbitMQ:
		pub, err := queue.NewRabbitPublisher(cfg.Queue.RabbitMQURL, cfg.Queue.RabbitMQQueue)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer pub.Close()
		dispatcher = pub
		pingers["rabbitmq"] = pub
		slog.Info("publishing jobs to rabbitmq", "queue", cfg.Queue.RabbitMQQueue)
	default:
		pool = queue.NewPool(cfg.Queue.Workers, cfg.Queue.Buffer)
		dispatcher = pool
		slog.Info("running jobs in process", "workers", cfg.Queue.Workers)
	}

	generation := a.Generation(dispatcher)
	if pool != nil {
		g.Go(func() error { return pool.Run(gctx, generation) })
	}

	// 5. Build router with dependencies
	deps := api.Dependencies{
		APIPrefix:      cfg.Server.APIPrefix,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Session:        mw.NewSession(cfg.Server.CookieSecure),
		RateLimit:      mw.NewRateLimit(a.Cache, cfg.Server.RateLimitPerMin),

		HealthHandler:        handler.NewHealthHandler(pingers),
		MetricsHandler:       metrics.Handler(),
		CreateStoryHandler:   handler.NewCreateStoryHandler(generation),
		CompleteStoryHandler: handler.NewCompleteStoryHandler(a.Stories()),
		GetJobHandler:        handler.NewGetJobHandler(generation),
	}
	router := api.NewRouter(deps)

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown on signal or when another member fails
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down, draining connections...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped gracefully")
	return nil
}
