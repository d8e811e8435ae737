package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/availability-booking/internal/api"
	"github.com/hackgods/availability-booking/internal/appointment"
	"github.com/hackgods/availability-booking/internal/availability"
	"github.com/hackgods/availability-booking/internal/booking"
	"github.com/hackgods/availability-booking/internal/calendar"
	"github.com/hackgods/availability-booking/internal/config"
	"github.com/hackgods/availability-booking/internal/db"
	"github.com/hackgods/availability-booking/internal/logger"
	redisclient "github.com/hackgods/availability-booking/internal/redis"
	"github.com/hackgods/availability-booking/internal/schedule"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	if cfg.AutoMigrate {
		applied, err := db.Migrate(rootCtx, pgPool, lg)
		if err != nil {
			lg.Fatal("migration error", zap.Error(err))
		}
		lg.Info("migrations applied", zap.Int("count", applied))
	}

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		lg.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("error closing redis", zap.Error(err))
		}
	}()
	lg.Info("connected to Redis")

	clock := calendar.SystemClock{}
	store := schedule.NewPgStore(pgPool)
	repo := appointment.NewPgRepository(pgPool)
	resolver := availability.NewResolver(store, repo, clock)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(resolver, repo, locker, cfg, clock, lg.Named("booking"))

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Resolver:       resolver,
		Postgres:       pgPool,
		Redis:          redisclient.Pinger{Client: rdb},
		Logger:         lg.Named("http"),
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		lg.Error("http server error", zap.Error(err))
	}

	lg.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
