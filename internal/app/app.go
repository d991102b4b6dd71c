// Package app builds the lead finder's dependencies from configuration and
// runs the HTTP server alongside the background scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/freelance-lead-finder/internal/api"
	"github.com/JakeFAU/freelance-lead-finder/internal/clock/system"
	"github.com/JakeFAU/freelance-lead-finder/internal/config"
	"github.com/JakeFAU/freelance-lead-finder/internal/forum/reddit"
	"github.com/JakeFAU/freelance-lead-finder/internal/id/uuid"
	"github.com/JakeFAU/freelance-lead-finder/internal/lead"
	memorypublisher "github.com/JakeFAU/freelance-lead-finder/internal/publisher/memory"
	"github.com/JakeFAU/freelance-lead-finder/internal/publisher/pubsub"
	"github.com/JakeFAU/freelance-lead-finder/internal/relevance"
	"github.com/JakeFAU/freelance-lead-finder/internal/scan"
	"github.com/JakeFAU/freelance-lead-finder/internal/scheduler"
	gcsstorage "github.com/JakeFAU/freelance-lead-finder/internal/storage/gcs"
	localstorage "github.com/JakeFAU/freelance-lead-finder/internal/storage/local"
	memorystorage "github.com/JakeFAU/freelance-lead-finder/internal/storage/memory"
	pgstore "github.com/JakeFAU/freelance-lead-finder/internal/storage/postgres"
	"github.com/JakeFAU/freelance-lead-finder/internal/storage/sqlite"
	"github.com/JakeFAU/freelance-lead-finder/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	store          lead.Store
	orchestrator   *scan.Orchestrator
	scheduler      *scheduler.Scheduler
	apiServer      *api.Server
	publisher      *pubsub.Publisher
	memPublisher   *memorypublisher.Publisher
	gcsArchive     *gcsstorage.BlobStore
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies. Close releases them.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	logger.Info("building application",
		zap.Int("port", cfg.Server.Port),
		zap.String("db_driver", cfg.DB.Driver),
		zap.Strings("channels", cfg.Scan.Channels),
		zap.Int("keywords", len(cfg.Scan.Keywords)),
		zap.String("archive", cfg.Archive.Backend))

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.TracerConfig{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
			ProjectID:   cfg.TraceProjectID(),
		})
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
		a.tracerShutdown = tp.Shutdown
		logger.Info("Cloud Trace exporter initialized", zap.String("project", cfg.TraceProjectID()))
	}

	forum, err := reddit.New(reddit.Config{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		UserAgent:    cfg.Reddit.UserAgent,
		BaseURL:      cfg.Reddit.BaseURL,
		TokenURL:     cfg.Reddit.TokenURL,
		Timeout:      cfg.RedditTimeout(),
		Limit:        cfg.Reddit.Limit,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("reddit client init failed: %w", err)
	}

	if a.store, err = openStore(ctx, cfg.DB); err != nil {
		a.Close(ctx)
		return nil, err
	}

	publisher, err := a.openPublisher(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	archive, err := a.openArchive(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.orchestrator = scan.New(
		forum,
		a.store,
		relevance.NewFilter(relevance.NewVader()),
		publisher,
		archive,
		system.New(),
		uuid.New(),
		scan.Config{
			Channels:      cfg.Scan.Channels,
			Keywords:      cfg.Scan.Keywords,
			Sort:          cfg.Scan.Sort,
			Window:        cfg.Scan.TimeWindow,
			Topic:         cfg.PubSub.TopicName,
			ArchivePrefix: cfg.Archive.Prefix,
		},
		logger.Named("scan"),
	)

	a.scheduler, err = scheduler.New(func(ctx context.Context) error {
		_, runErr := a.orchestrator.Run(ctx, lead.TriggerScheduled)
		return runErr
	}, scheduler.Config{Interval: cfg.Scan.Interval, Cron: cfg.Scan.Cron}, logger.Named("scheduler"))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("scheduler init failed: %w", err)
	}

	a.apiServer = api.NewServer(a.orchestrator, a.store, logger.Named("api"))
	return a, nil
}

func openStore(ctx context.Context, cfg config.DBConfig) (lead.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.NewLeadStore(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("sqlite store init failed: %w", err)
		}
		return store, nil
	default:
		store, err := pgstore.NewLeadStore(ctx, pgstore.StoreConfig{DSN: cfg.DSN, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		return store, nil
	}
}

func (a *App) openPublisher(ctx context.Context) (lead.Publisher, error) {
	switch a.cfg.PubSub.PublisherBackend() {
	case config.PublisherPubSub:
		pub, err := pubsub.NewFromProject(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		a.publisher = pub
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.TopicName))
		return pub, nil
	case config.PublisherMemory:
		a.logger.Warn("using in-memory lead publisher", zap.String("topic", a.cfg.PubSub.TopicName))
		a.memPublisher = memorypublisher.New()
		return a.memPublisher, nil
	default:
		return nil, nil
	}
}

func (a *App) openArchive(ctx context.Context) (lead.BlobStore, error) {
	switch a.cfg.Archive.Backend {
	case config.ArchiveGCS:
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs archive init failed: %w", err)
		}
		a.gcsArchive = store
		a.logger.Info("using GCS scan archive", zap.String("bucket", a.cfg.Archive.GCSBucket))
		return store, nil
	case config.ArchiveLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local archive init failed: %w", err)
		}
		a.logger.Info("using local scan archive", zap.String("path", a.cfg.Archive.BaseDir))
		return store, nil
	case config.ArchiveMemory:
		a.logger.Info("using in-memory scan archive")
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, nil
	}
}

// Handler exposes the HTTP routes.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run listens on the configured port and serves until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", a.cfg.Server.Port, err)
	}
	return a.Serve(ctx, ln)
}

// Serve starts the scheduler and the HTTP server on ln. It blocks until ctx
// is canceled, then drains in-flight requests and waits for the scheduler.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.scheduler.Run(ctx); err != nil {
			a.logger.Error("scheduler exited", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	wg.Wait()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases store connections and cloud clients.
func (a *App) Close(ctx context.Context) {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	}
	if a.gcsArchive != nil {
		if err := a.gcsArchive.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
}

// ScanOnce runs a single manual pass outside the scheduler.
func (a *App) ScanOnce(ctx context.Context) (lead.ScanResult, error) {
	res, err := a.orchestrator.Run(ctx, lead.TriggerManual)
	if err != nil {
		return res, fmt.Errorf("run scan: %w", err)
	}
	return res, nil
}
