// Package app wires the configured components of the announcer together.
package app

import (
	"context"
	"fmt"

	"github.com/telhawk-systems/announcer/internal/cache"
	"github.com/telhawk-systems/announcer/internal/config"
	"github.com/telhawk-systems/announcer/internal/extractor"
	"github.com/telhawk-systems/announcer/internal/format"
	"github.com/telhawk-systems/announcer/internal/logging"
	"github.com/telhawk-systems/announcer/internal/messaging"
	"github.com/telhawk-systems/announcer/internal/oracle"
	"github.com/telhawk-systems/announcer/internal/repository"
	"github.com/telhawk-systems/announcer/internal/service"
	"github.com/telhawk-systems/announcer/migrations"
)

// Options overrides components that New would otherwise build from config.
type Options struct {
	// Oracle replaces the Ollama client.
	Oracle oracle.Oracle
	// Repository replaces the store selected by database.driver.
	Repository repository.Repository
	// Migrate applies pending migrations before opening a postgres store.
	Migrate bool
}

type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Repo      repository.Repository
	Formatter *format.Formatter
	Cache     *cache.ExtractionCache
	// NATS is nil unless nats.enabled is set.
	NATS     *messaging.NATSClient
	Subjects messaging.Subjects
	Service  *service.Service

	closers []func()
}

func New(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Formatter: format.New(cfg.DisplayLocation()),
		Subjects:  messaging.NewSubjects(cfg.NATS.SubjectPrefix),
	}

	repo, err := a.openRepository(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.Repo = repo
	a.closers = append(a.closers, repo.Close)

	if cfg.Cache.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.Cache = cache.NewExtractionCache(client, cfg.Cache.TTL, true)
		logger.Info("extraction cache enabled", "ttl", cfg.Cache.TTL.String())
	}

	svcOpts := []service.Option{service.WithCache(a.Cache)}
	if cfg.NATS.Enabled {
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		client, err := messaging.NewNATSClient(natsCfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.NATS = client
		a.closers = append(a.closers, func() { _ = client.Close() })
		svcOpts = append(svcOpts, service.WithPublisher(client, a.Subjects))
		logger.Info("connected to NATS", "url", cfg.NATS.URL)
	}

	o := opts.Oracle
	if o == nil {
		o = oracle.NewOllamaClient(oracle.OllamaConfig{
			Endpoint:      cfg.Oracle.Endpoint,
			Model:         cfg.Oracle.Model,
			Timeout:       cfg.Oracle.Timeout,
			ContextWindow: cfg.Oracle.ContextWindow,
		})
	}
	ex := extractor.New(o, extractor.Config{
		DefaultLocation: cfg.Extraction.DefaultLocation,
		MaxTokens:       cfg.Oracle.MaxTokens,
		Timeout:         cfg.Oracle.Timeout,
	}, logger)

	a.Service = service.NewService(ex, a.Repo, a.Formatter, service.Config{
		Location:      cfg.Location(),
		ReferenceDate: cfg.ReferenceDate,
		Model:         cfg.Oracle.Model,
		ListLimit:     cfg.Display.ListLimit,
	}, logger, svcOpts...)

	return a, nil
}

func (a *App) openRepository(ctx context.Context, opts Options) (repository.Repository, error) {
	if opts.Repository != nil {
		return opts.Repository, nil
	}

	switch a.Config.Database.Driver {
	case "memory":
		a.Logger.Warn("using in-memory event store; events are lost on restart")
		return repository.NewMemoryRepository(), nil
	case "postgres":
		dsn := a.Config.PostgresDSN()
		if opts.Migrate {
			a.Logger.Info("running database migrations")
			if err := migrations.Up(dsn); err != nil {
				return nil, err
			}
		}
		repo, err := repository.NewPostgresRepository(ctx, dsn)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("connected to PostgreSQL", "host", a.Config.Database.Postgres.Host)
		return repo, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", a.Config.Database.Driver)
}

// Close releases every component in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
