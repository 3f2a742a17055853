package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicore/slotqueue/internal/api"
	"github.com/clinicore/slotqueue/internal/config"
	"github.com/clinicore/slotqueue/internal/db"
	"github.com/clinicore/slotqueue/internal/directory"
	"github.com/clinicore/slotqueue/internal/engine"
	"github.com/clinicore/slotqueue/internal/notify"
	"github.com/clinicore/slotqueue/internal/observability/metrics"
	redisclient "github.com/clinicore/slotqueue/internal/redis"
	"github.com/clinicore/slotqueue/internal/store"
	"github.com/clinicore/slotqueue/pkg/logging"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("api-server starting", "env", cfg.Env, "http_port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres (archive + reference data)
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Connect Redis (event relay)
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis")

	// Load provider and department reference data
	dir := directory.New()
	loadCtx, cancelLoad := context.WithTimeout(rootCtx, 10*time.Second)
	err = store.LoadDirectory(loadCtx, pgPool, dir)
	cancelLoad()
	if err != nil {
		logger.Error("load directory error", "error", err)
		os.Exit(1)
	}
	logger.Info("directory loaded",
		"providers", len(dir.Providers()), "departments", len(dir.Departments()))

	m := metrics.NewCoordinationMetrics(nil)

	hub := notify.NewHub(cfg.SubscriberBuffer, logger)
	relay := notify.NewRelay(hub, rdb, cfg.EventChannelPrefix, logger)
	go func() {
		if err := relay.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event relay stopped", "error", err)
		}
	}()

	archive := store.NewArchive(pgPool, logger)
	go func() {
		if err := archive.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("archive writer stopped", "error", err)
		}
	}()

	eng := engine.New(dir, engine.Options{
		Publisher:       relay,
		Journal:         archive,
		Metrics:         m,
		Logger:          logger,
		BaseSlotMinutes: cfg.BaseSlotMinutes,
	})

	go eng.RunSweeper(rootCtx, cfg.SweepInterval)

	router := api.NewRouter(api.RouterConfig{
		Engine:  eng,
		Hub:     hub,
		Metrics: m,
		Logger:  logger,
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	case <-rootCtx.Done():
	}

	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
