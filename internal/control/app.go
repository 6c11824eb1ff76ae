package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/opsbridge/internal/batch"
	"github.com/vietddude/opsbridge/internal/core/config"
	"github.com/vietddude/opsbridge/internal/infra/credential"
	redisclient "github.com/vietddude/opsbridge/internal/infra/redis"
	"github.com/vietddude/opsbridge/internal/infra/remote"
	"github.com/vietddude/opsbridge/internal/infra/storage"
	"github.com/vietddude/opsbridge/internal/infra/storage/memory"
	"github.com/vietddude/opsbridge/internal/infra/storage/postgres"
	"github.com/vietddude/opsbridge/internal/server"
	"github.com/vietddude/opsbridge/internal/session"
)

// ErrNoCredentialStore is returned when a writable credential store is
// requested but neither Redis nor Postgres is configured.
var ErrNoCredentialStore = errors.New("no credential store configured (set redis.url or database.url)")

// App owns the session cache, batch executor and everything they depend on.
type App struct {
	cfg      *config.AppConfig
	sessions *session.Cache
	executor *batch.Executor
	server   *server.Server
	runs     storage.BatchRunRepository
	store    storage.CredentialRepository
	db       *postgres.DB
	redis    *redisclient.Client
	log      *slog.Logger
}

type appOptions struct {
	factory remote.Factory
}

// Option customises NewApp.
type Option func(*appOptions)

// WithFactory replaces the HTTP session factory.
func WithFactory(f remote.Factory) Option {
	return func(o *appOptions) { o.factory = f }
}

// NewApp creates an App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*App, error) {
	o := appOptions{factory: remote.NewFactory()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, log: slog.Default()}

	// 1. Initialize Storage
	var pgCreds storage.CredentialRepository
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		a.db = db

		if err := postgres.Migrate(ctx, db.DB.DB); err != nil {
			_ = a.Close()
			return nil, err
		}

		pgCreds = postgres.NewCredentialRepo(db)
		a.runs = postgres.NewBatchRunRepo(db)
		a.store = pgCreds
		a.log.Info("Using PostgreSQL storage")
	} else {
		a.runs = memory.NewBatchRunRepo(memory.NewMemoryStorage())
		a.log.Info("Using Memory storage")
	}

	// 2. Initialize Redis
	var redisCreds storage.CredentialRepository
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.redis = client
		redisCreds = client
		a.store = client
		a.log.Info("Using Redis credential store", "prefix", cfg.Redis.KeyPrefix)
	}

	// 3. Credential resolution: configured instances first, then Redis, then Postgres
	chain := credential.Chain{credential.NewStatic(cfg.Credentials()...)}
	if redisCreds != nil {
		chain = append(chain, credential.FromRepository("redis", redisCreds))
	}
	if pgCreds != nil {
		chain = append(chain, credential.FromRepository("postgres", pgCreds))
	}

	// 4. Sessions and batches
	a.sessions = session.NewCache(session.Config{
		TTL:          cfg.Sessions.TTL,
		DefaultAlias: cfg.Sessions.DefaultAlias,
	}, chain, o.factory)

	a.executor = batch.NewExecutor(a.sessions, batch.WithRecorder(batch.RecorderFunc(a.runs.Save)))

	// 5. HTTP server
	var checks []server.Option
	if a.db != nil {
		checks = append(checks, server.WithCheck("database", a.db.Health))
	}
	if a.redis != nil {
		checks = append(checks, server.WithCheck("redis", a.redis.Health))
	}
	a.server = server.NewServer(a.sessions, a.executor, cfg.Server.Port, checks...)

	return a, nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.AppConfig { return a.cfg }

// Sessions returns the session cache.
func (a *App) Sessions() *session.Cache { return a.sessions }

// Executor returns the batch executor.
func (a *App) Executor() *batch.Executor { return a.executor }

// Runs returns the batch audit repository.
func (a *App) Runs() storage.BatchRunRepository { return a.runs }

// CredentialStore returns the writable credential store. Redis wins when
// both Redis and Postgres are configured.
func (a *App) CredentialStore() (storage.CredentialRepository, error) {
	if a.store == nil {
		return nil, ErrNoCredentialStore
	}
	return a.store, nil
}

// Start starts the HTTP server and background collectors. It returns
// immediately.
func (a *App) Start(ctx context.Context) error {
	go func() {
		a.log.Info("HTTP server listening", "port", a.cfg.Server.Port)
		if err := a.server.Start(); err != nil {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	return nil
}

// Stop shuts the HTTP server down and releases every resource.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping opsbridge...")

	err := a.server.Stop(ctx)
	return errors.Join(err, a.Close())
}

// Close drops cached sessions and closes storage connections.
func (a *App) Close() error {
	var errs []error
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
