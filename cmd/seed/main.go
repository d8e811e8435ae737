package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/hackgods/availability-booking/internal/calendar"
	"github.com/hackgods/availability-booking/internal/config"
	"github.com/hackgods/availability-booking/internal/db"
	"github.com/hackgods/availability-booking/internal/logger"
	"github.com/hackgods/availability-booking/internal/schedule"
)

var (
	timeZones     = []string{"Europe/Paris", "Europe/London", "America/New_York", "America/Chicago", "Asia/Tokyo", "UTC"}
	slotDurations = []int{15, 20, 30, 45, 60}
	closedReasons = []string{"holiday", "conference", "training", "personal leave"}
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

	count := 20
	if v := os.Getenv("SEED_PROVIDERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = n
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		lg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool, lg); err != nil {
		lg.Fatal("migrate", zap.Error(err))
	}

	store := schedule.NewPgStore(pool)
	faker := gofakeit.New(0)

	lg.Info("seeding providers", zap.Int("count", count))
	for i := 0; i < count; i++ {
		if err := seedProvider(ctx, store, faker); err != nil {
			lg.Fatal("seed provider", zap.Int("index", i), zap.Error(err))
		}
	}
	lg.Info("seed complete", zap.Int("providers", count))
}

// seedProvider creates one provider with a weekday morning and afternoon
// window, an occasional Saturday morning, and a few closed days.
func seedProvider(ctx context.Context, store *schedule.PgStore, faker *gofakeit.Faker) error {
	p, err := store.CreateProvider(ctx, schedule.Provider{
		Name:         "Dr. " + faker.FirstName() + " " + faker.LastName(),
		TimeZone:     faker.RandomString(timeZones),
		SlotDuration: time.Duration(slotDurations[faker.Number(0, len(slotDurations)-1)]) * time.Minute,
	})
	if err != nil {
		return err
	}

	days := []calendar.DayOfWeek{calendar.Monday, calendar.Tuesday, calendar.Wednesday, calendar.Thursday, calendar.Friday}
	for _, day := range days {
		for _, span := range [][2]calendar.TimeOfDay{
			{calendar.NewTimeOfDay(9, 0), calendar.NewTimeOfDay(12, 0)},
			{calendar.NewTimeOfDay(13, 0), calendar.NewTimeOfDay(17, 0)},
		} {
			if err := store.AddWindow(ctx, schedule.Window{ProviderID: p.ID, DayOfWeek: day, Start: span[0], End: span[1]}); err != nil {
				return err
			}
		}
	}
	if faker.Bool() {
		err := store.AddWindow(ctx, schedule.Window{
			ProviderID: p.ID,
			DayOfWeek:  calendar.Saturday,
			Start:      calendar.NewTimeOfDay(9, 0),
			End:        calendar.NewTimeOfDay(12, 0),
		})
		if err != nil {
			return err
		}
	}

	loc, err := p.Location()
	if err != nil {
		return err
	}
	today := calendar.Today(calendar.SystemClock{}, loc)
	for i, n := 0, faker.Number(0, 3); i < n; i++ {
		err := store.SetDateOverride(ctx, schedule.DateOverride{
			ProviderID:  p.ID,
			Date:        today.AddDays(faker.Number(1, 60)),
			Unavailable: true,
			Reason:      faker.RandomString(closedReasons),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
