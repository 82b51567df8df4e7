package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/comment-moderation-api/internal/config"
	"github.com/comment-moderation-api/internal/database"
	"github.com/comment-moderation-api/internal/events"
	"github.com/comment-moderation-api/internal/metrics"
	"github.com/comment-moderation-api/internal/repository"
	"github.com/comment-moderation-api/internal/service"
	"github.com/rs/zerolog"
)

// Store is the backend connection shared by the server and the CLI
type Store interface {
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// App bundles the wired services with the resources that must be released
type App struct {
	Services  *service.Services
	Metrics   *metrics.Metrics
	Store     Store
	Publisher events.Publisher
	Backend   string
}

// OpenStore connects to the configured backend and prepares its schema
func OpenStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) (*repository.Repositories, Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := database.New(&cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewPostgres(db, cfg.Moderation, m, log), db, nil

	case config.DriverMongo:
		db, err := database.NewMongo(&cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			db.Shutdown(ctx)
			return nil, nil, err
		}
		return repository.NewMongo(db, cfg.Moderation, m, log), db, nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

// New opens the store and wires every service on top of it
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	m := metrics.New()

	repos, store, err := OpenStore(ctx, cfg, m, log)
	if err != nil {
		return nil, err
	}

	pub := events.New(cfg.Kafka, log)
	services := service.NewServices(service.Deps{
		Repos:     repos,
		Publisher: pub,
		Metrics:   m,
	}, log)

	log.Info().
		Str("backend", repos.Backend).
		Bool("events", len(cfg.Kafka.Brokers) > 0).
		Msg("Services initialized")

	return &App{
		Services:  services,
		Metrics:   m,
		Store:     store,
		Publisher: pub,
		Backend:   repos.Backend,
	}, nil
}

// Close flushes the publisher and closes the store
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if err := a.Store.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
