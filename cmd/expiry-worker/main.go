package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hackgods/availability-booking/internal/appointment"
	"github.com/hackgods/availability-booking/internal/availability"
	"github.com/hackgods/availability-booking/internal/booking"
	"github.com/hackgods/availability-booking/internal/calendar"
	"github.com/hackgods/availability-booking/internal/config"
	"github.com/hackgods/availability-booking/internal/db"
	"github.com/hackgods/availability-booking/internal/logger"
	"github.com/hackgods/availability-booking/internal/schedule"
)

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

	lg.Info("expiry-worker starting up",
		zap.String("env", cfg.Env),
		zap.String("schedule", cfg.ExpirySchedule),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	cancelPg()
	if err != nil {
		lg.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	lg.Info("connected to Postgres")

	// Expiry only flips pending rows to cancelled, so no slot lock is needed.
	clock := calendar.SystemClock{}
	repo := appointment.NewPgRepository(pgPool)
	resolver := availability.NewResolver(schedule.NewPgStore(pgPool), repo, clock)
	svc := booking.NewService(resolver, repo, nil, cfg, clock, lg.Named("booking"))

	runOnce(rootCtx, svc, lg)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.ExpirySchedule, func() { runOnce(rootCtx, svc, lg) }); err != nil {
		lg.Fatal("invalid EXPIRY_SCHEDULE", zap.String("schedule", cfg.ExpirySchedule), zap.Error(err))
	}
	c.Start()

	<-rootCtx.Done()
	lg.Info("shutdown signal received, stopping expiry worker")

	// Wait for a run in progress.
	<-c.Stop().Done()
}

func runOnce(ctx context.Context, svc *booking.Service, lg *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	expired, err := svc.ExpirePendingAppointments(runCtx)
	if err != nil {
		lg.Error("expiry run error", zap.Int("expired", expired), zap.Error(err))
		return
	}
	lg.Info("expiry run complete",
		zap.Int("expired", expired),
		zap.Duration("took", time.Since(start)),
	)
}
