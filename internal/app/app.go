// Package app wires configuration into the store, resolvers, Canvas client
// and services shared by the binaries.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"canvas-sync/internal/aggregate"
	"canvas-sync/internal/api"
	"canvas-sync/internal/canvas"
	"canvas-sync/internal/concurrency"
	"canvas-sync/internal/config"
	"canvas-sync/internal/credentials"
	"canvas-sync/internal/dashboard"
	"canvas-sync/internal/docstore"
	"canvas-sync/internal/httpx"
	"canvas-sync/internal/sftpclient"
	csync "canvas-sync/internal/sync"
	"canvas-sync/internal/view"
)

type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Store       docstore.Store
	Credentials *credentials.StoreResolver
	Resolver    credentials.Resolver
	Client      *canvas.Client
	Aggregator  *aggregate.Aggregator
	Engine      *csync.Engine
	Fetch       canvas.FetchOptions
}

// Build opens the store and assembles the shared components.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	resolver, saver, err := buildResolver(cfg.Credentials, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	client := canvas.New(&http.Client{Timeout: cfg.Canvas.RequestTimeout}, logger)
	client.PerPage = cfg.Canvas.PerPage

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Credentials: saver,
		Resolver:    resolver,
		Client:      client,
		Aggregator: aggregate.New(concurrency.ParallelOptions{
			MaxWorkers:    cfg.Canvas.MaxWorkers,
			BranchTimeout: cfg.Canvas.BranchTimeout,
		}, logger),
		Engine: csync.NewEngine(store, logger),
		Fetch: canvas.FetchOptions{
			PerPage:  cfg.Canvas.PerPage,
			MaxPages: cfg.Canvas.MaxPages,
			Retry:    httpx.WithAttempts(cfg.Canvas.RetryAttempts),
		},
	}, nil
}

// OpenStore picks the backend named by the driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (docstore.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Warn("using in-memory store, data is lost on exit")
		return docstore.NewMemory(), nil

	case "postgres":
		db, err := docstore.OpenSQL(cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		err = docstore.RunMigrations(db, cfg.MigrationsPath, logger)
		_ = db.Close()
		if err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return docstore.NewPostgres(ctx, cfg.PostgresURL, logger)

	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		return docstore.NewRedis(ctx, redis.NewClient(opts), cfg.RedisPrefix, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// buildResolver chains the stored per-user credentials, then the optional
// credentials file, then static development credentials.
func buildResolver(cfg config.CredentialsConfig, store docstore.Store, logger *zap.Logger) (credentials.Resolver, *credentials.StoreResolver, error) {
	var sealer *credentials.Sealer
	if cfg.EncryptionKey != "" {
		var err error
		if sealer, err = credentials.NewSealer(cfg.EncryptionKey); err != nil {
			return nil, nil, fmt.Errorf("credentials key: %w", err)
		}
	} else {
		logger.Warn("CREDENTIALS_KEY not set, api keys are stored unsealed")
	}
	saver := credentials.NewStoreResolver(store, sealer, logger)

	chain := credentials.Chain{saver}
	if cfg.File != "" {
		f, err := credentials.LoadFile(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, f)
	}
	if cfg.StaticBaseURL != "" && cfg.StaticAPIKey != "" {
		chain = append(chain, credentials.StaticResolver{Credentials: canvas.Credentials{BaseURL: cfg.StaticBaseURL, APIKey: cfg.StaticAPIKey}})
	}
	return chain, saver, nil
}

func (a *App) Windows() dashboard.Windows {
	w := a.Config.Windows
	return dashboard.Windows{
		Dashboard:         view.Window(w.DashboardPast, w.DashboardFuture),
		Assignments:       view.Window(w.AssignmentsPast, w.AssignmentsFuture),
		AnnouncementsPast: w.AnnouncementsPast,
		UpcomingDays:      w.UpcomingDays,
	}
}

func (a *App) Dashboard() *dashboard.Service {
	return dashboard.New(a.Resolver, a.Client, a.Aggregator, view.NewBuilder(time.Now), a.Fetch, a.Windows(), a.Logger)
}

func (a *App) Syncer() *csync.Syncer {
	return csync.NewSyncer(a.Resolver, a.Client, a.Aggregator, a.Engine, a.Fetch, a.Logger)
}

// Router is the full HTTP surface.
func (a *App) Router() http.Handler {
	return api.NewRouter(api.Deps{
		Views:       a.Dashboard(),
		Runner:      a.Syncer(),
		Snapshots:   a.Engine,
		Credentials: a.Credentials,
		OwnerHeader: a.Config.Server.OwnerHeader,
		Logger:      a.Logger,
	})
}

// SFTP returns the upload settings, or false when uploads are off.
func (a *App) SFTP() (sftpclient.Config, bool) {
	c := a.Config.SFTP
	if !c.Enabled() {
		return sftpclient.Config{}, false
	}
	return sftpclient.Config{
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Pass:           c.Password,
		RemoteDir:      c.RemoteDir,
		KnownHostsFile: c.KnownHosts,
		Logger:         a.Logger.Named("sftp"),
	}, true
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
