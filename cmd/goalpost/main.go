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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	gphttp "github.com/okrtools/goalpost/internal/adapter/http"
	"github.com/okrtools/goalpost/internal/adapter/linkhub"
	gpnats "github.com/okrtools/goalpost/internal/adapter/nats"
	"github.com/okrtools/goalpost/internal/adapter/otel"
	"github.com/okrtools/goalpost/internal/adapter/postgres"
	"github.com/okrtools/goalpost/internal/adapter/ristretto"
	"github.com/okrtools/goalpost/internal/config"
	"github.com/okrtools/goalpost/internal/logger"
	"github.com/okrtools/goalpost/internal/middleware"
	"github.com/okrtools/goalpost/internal/port/cache"
	"github.com/okrtools/goalpost/internal/port/messagequeue"
	"github.com/okrtools/goalpost/internal/secrets"
	"github.com/okrtools/goalpost/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"batch_size", cfg.LinkHub.BatchSize,
		"interval", cfg.LinkHub.Interval,
		"auth_enabled", cfg.Auth.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	var publisher messagequeue.Publisher
	var events gphttp.ConnChecker
	if cfg.NATS.URL != "" {
		pub, err := gpnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = pub.Close() }()
		publisher = pub
		events = pub
		log.Info("nats connected", "url", cfg.NATS.URL)
	}

	var existsCache cache.Cache
	if cfg.Cache.MaxSizeMB > 0 {
		c, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		defer c.Close()
		existsCache = c
	}

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Services ---

	store := postgres.NewStore(pool)

	client := linkhub.NewClient(cfg.LinkHub)
	vault, err := secrets.NewVault(secrets.FromEnv())
	if err != nil {
		return fmt.Errorf("credentials: %w", err)
	}
	client.SetCredentials(vault)

	entitySvc := service.NewEntityService(store, existsCache, metrics, log, cfg.Sync.SourceApp, cfg.Cache.TTL)
	syncSvc := service.NewSyncService(store, client, publisher, metrics, log, cfg.LinkHub.BatchSize)
	authSvc := service.NewAuthService(store, log)

	// --- HTTP ---

	handlers := &gphttp.Handlers{
		Entities: entitySvc,
		Sync:     syncSvc,
		Auth:     authSvc,
		DB:       pool,
		Events:   events,
	}

	r := chi.NewRouter()
	r.Use(gphttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(gphttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))

	gphttp.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		syncSvc.Run(gctx, cfg.LinkHub.Interval)
		return nil
	})

	// SIGHUP rotates the signing credentials in place.
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if err := vault.Reload(); err != nil {
					log.Error("credential reload failed", "error", err)
				} else {
					log.Info("credentials reloaded")
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
