// Package app wires the long-lived dependencies shared by every binary:
// the database pool, the cache and the story provider.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiranshivaraju/storyforge/internal/ai"
	"github.com/kiranshivaraju/storyforge/internal/cache"
	"github.com/kiranshivaraju/storyforge/internal/config"
	"github.com/kiranshivaraju/storyforge/internal/queue"
	"github.com/kiranshivaraju/storyforge/internal/store"
	"github.com/kiranshivaraju/storyforge/internal/story"
	"github.com/kiranshivaraju/storyforge/pkg/models"
)

// LogLevel controls the default logger installed by InitLogging.
var LogLevel = new(slog.LevelVar)

// InitLogging installs a JSON slog handler on w as the default logger.
func InitLogging(w io.Writer) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: LogLevel,
	})))
}

// LoadConfig loads the configuration and applies its log level.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Server.Debug {
		LogLevel.Set(slog.LevelDebug)
	}
	return cfg, nil
}

type App struct {
	Config   *config.Config
	Pool     *pgxpool.Pool
	Store    *store.PostgresStore
	Cache    cache.Cache
	Redis    *cache.RedisCache
	Provider models.StoryProvider
}

// Open connects to postgres and, when configured, redis, and builds the
// story provider. It does not run migrations.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected")

	a := &App{
		Config: cfg,
		Pool:   pool,
		Store:  store.NewPostgresStore(pool),
		Cache:  cache.NopCache{},
	}

	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.Redis = rc
		a.Cache = rc
		slog.Info("redis connected")
	} else {
		slog.Info("REDIS_URL not set, running without cache and rate limiting")
	}

	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create AI provider: %w", err)
	}
	a.Provider = provider
	slog.Info("AI provider initialized", "provider", provider.Name())

	return a, nil
}

// Migrate applies every pending migration.
func (a *App) Migrate(ctx context.Context) error {
	if err := store.RunMigrations(ctx, a.Pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (a *App) Generation(d queue.Dispatcher) *ai.GenerationService {
	return ai.NewGenerationService(a.Provider, a.Store, a.Cache, d, a.Config.AI.InferenceTimeout)
}

func (a *App) Stories() *story.Service {
	return story.NewService(a.Store, a.Cache)
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.Pool.Close()
}

// Main runs fn with the default logger installed and exits non-zero when it
// fails.
func Main(name string, fn func() error) {
	InitLogging(os.Stdout)
	if err := fn(); err != nil {
		slog.Error(name+" failed", "error", err)
		os.Exit(1)
	}
}
