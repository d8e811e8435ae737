package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/availability-booking/internal/calendar"
	"github.com/hackgods/availability-booking/internal/config"
	"github.com/hackgods/availability-booking/internal/db"
	"github.com/hackgods/availability-booking/internal/logger"
	"github.com/hackgods/availability-booking/internal/schedule"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	CancelRatio   float64
	ConfirmRatio  float64
	ReadRatio     float64
	ProviderLimit int
	Days          int
	Patients      int
	PostgresDSN   string
}

type slotKey struct {
	ProviderID uuid.UUID
	Date       string
	StartTime  string
}

type booked struct {
	ID  uuid.UUID
	Key slotKey
}

// DataPool is the simulator's view of the world: providers to hit, patients
// to book for, and the appointments it believes are active.
type DataPool struct {
	Providers []uuid.UUID
	Patients  []uuid.UUID

	mu           sync.Mutex
	active       map[slotKey]uuid.UUID
	appointments []booked
	doubles      []slotKey
}

// AddAppointment records a 201 and notes a repeat for a key the simulator
// still believes is held.
func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if _, ok := dp.active[b.Key]; ok {
		dp.doubles = append(dp.doubles, b.Key)
	}
	dp.active[b.Key] = b.ID
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) RemoveAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	for i, b := range dp.appointments {
		if b.ID == id {
			if dp.active[b.Key] == id {
				delete(dp.active, b.Key)
			}
			dp.appointments = append(dp.appointments[:i], dp.appointments[i+1:]...)
			return
		}
	}
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))].ID, true
}

func (dp *DataPool) Doubles() []slotKey {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return append([]slotKey(nil), dp.doubles...)
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, p99 time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pct := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return sum / time.Duration(len(latencies)), pct(50), pct(95), pct(99)
}

type Metrics struct {
	Availability  OperationMetrics
	Booking       OperationMetrics
	Confirm       OperationMetrics
	Cancel        OperationMetrics
	ListByPatient OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *zap.Logger
	today   calendar.Date
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	lg, err := logger.New(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		lg.Fatal("invalid simulator config", zap.Error(err))
	}

	lg.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("confirm", cfg.ConfirmRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		lg.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, schedule.NewPgStore(pgPool), cfg)
	if err != nil {
		lg.Fatal("load data pool", zap.Error(err))
	}
	lg.Info("data pool loaded", zap.Int("providers", len(dataPool.Providers)), zap.Int("patients", len(dataPool.Patients)))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: lg,
		today:  calendar.DateOf(time.Now(), time.UTC),
	}

	sim.Run()
	sim.PrintReport()

	dupes, err := countDoubleBookings(context.Background(), pgPool)
	if err != nil {
		lg.Error("double booking check failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Printf("Double bookings in store: %d\n", dupes)
	// Holds expired by the worker can be rebooked legitimately, so the
	// client-side count is advisory. The store count is authoritative.
	fmt.Printf("Repeat 201s observed by clients: %d\n", len(sim.pool.Doubles()))
	if dupes > 0 {
		os.Exit(1)
	}
}

func loadConfig(baseCfg config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:"+baseCfg.HTTPPort),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.4),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.1),
		ConfirmRatio:  getFloat("SIM_CONFIRM_RATIO", 0.2),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		ProviderLimit: getInt("SIM_PROVIDER_LIMIT", 5),
		Days:          getInt("SIM_DAYS", 3),
		Patients:      getInt("SIM_PATIENTS", 500),
		PostgresDSN:   baseCfg.PostgresDSN,
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 || cfg.Patients <= 0 || cfg.ProviderLimit <= 0 {
		return fmt.Errorf("SIM_DAYS, SIM_PATIENTS and SIM_PROVIDER_LIMIT must be > 0")
	}
	return nil
}

// Few providers and days keep contention high.
func loadDataPool(ctx context.Context, store *schedule.PgStore, cfg SimConfig) (*DataPool, error) {
	providers, err := store.ListProviderIDs(ctx, cfg.ProviderLimit)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers loaded, run cmd/seed first")
	}

	dataPool := &DataPool{
		Providers: providers,
		active:    make(map[slotKey]uuid.UUID),
	}
	for i := 0; i < cfg.Patients; i++ {
		dataPool.Patients = append(dataPool.Patients, uuid.New())
	}
	return dataPool, nil
}

func countDoubleBookings(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT provider_id, date, start_time
			FROM appointments
			WHERE status <> 'cancelled'
			GROUP BY provider_id, date, start_time
			HAVING count(*) > 1
		) dupes
	`).Scan(&n)
	return n, err
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < c.BookingRatio:
			s.doBooking(ctx, rng)
		case r < c.BookingRatio+c.CancelRatio:
			s.doCancel(ctx, rng)
		case r < c.BookingRatio+c.CancelRatio+c.ConfirmRatio:
			s.doConfirm(ctx, rng)
		default:
			if rng.Intn(2) == 0 {
				s.doAvailability(ctx, rng)
			} else {
				s.doListByPatient(ctx, rng)
			}
		}
	}
}

type availabilityBody struct {
	Status string `json:"status"`
	Slots  []struct {
		StartTime string `json:"start_time"`
	} `json:"slots"`
}

func (s *Simulator) pickDay(rng *rand.Rand) (uuid.UUID, string) {
	provider := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	date := s.today.AddDays(1 + rng.Intn(s.config.Days))
	return provider, date.String()
}

func (s *Simulator) fetchAvailability(ctx context.Context, provider uuid.UUID, date string) (*availabilityBody, int, error) {
	url := fmt.Sprintf("%s/providers/%s/availability?date=%s", s.config.APIBaseURL, provider, date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var body availabilityBody
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, resp.StatusCode, err
		}
	}
	return &body, resp.StatusCode, nil
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	provider, date := s.pickDay(rng)

	start := time.Now()
	_, status, err := s.fetchAvailability(ctx, provider, date)
	s.metrics.Availability.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

// doBooking reads availability then books one of the first free slots, so
// workers pile onto the same starts.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	provider, date := s.pickDay(rng)

	avail, status, err := s.fetchAvailability(ctx, provider, date)
	if err != nil || status != http.StatusOK || avail.Status != "available" || len(avail.Slots) == 0 {
		return
	}
	slot := avail.Slots[rng.Intn(min(3, len(avail.Slots)))].StartTime
	patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	body, _ := json.Marshal(map[string]string{
		"provider_id": provider.String(),
		"patient_id":  patient.String(),
		"date":        date,
		"start_time":  slot,
		"motif":       "simulated",
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var appt struct {
				ID uuid.UUID `json:"id"`
			}
			if json.NewDecoder(resp.Body).Decode(&appt) == nil && appt.ID != uuid.Nil {
				s.pool.AddAppointment(booked{ID: appt.ID, Key: slotKey{provider, date, slot}})
			}
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) post(ctx context.Context, path string) (int, time.Duration, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	resp.Body.Close()
	return resp.StatusCode, latency, nil
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	status, latency, err := s.post(ctx, "/appointments/"+id.String()+"/confirm")
	if err == nil && status == http.StatusConflict {
		s.pool.RemoveAppointment(id)
	}
	s.metrics.Confirm.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	status, latency, err := s.post(ctx, "/appointments/"+id.String()+"/cancel")
	if err == nil && (status == http.StatusOK || status == http.StatusConflict) {
		s.pool.RemoveAppointment(id)
	}
	s.metrics.Cancel.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/appointments?patient_id=%s&limit=20&offset=0", s.config.APIBaseURL, patientID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ListByPatient.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, p50, p95, p99 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s p99=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), p99.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
