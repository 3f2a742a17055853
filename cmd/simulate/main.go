package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// The simulator hammers a running api-server with racing bookings and queue
// joins, then reports outcome counts and latencies. Under contention the
// expected result is exactly one winner per slot triple and the rest
// conflicts, never a double booking.

type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
	BookRatio  float64
	JoinRatio  float64
	ReadRatio  float64
	DateSpread int // how many days ahead bookings target
}

type Provider struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	SlotLabels []string `json:"slot_labels"`
}

type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	Latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
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

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[len(latencies)*50/100]
	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]
	return avg, min, max, p50, p95
}

type Metrics struct {
	Booking  OperationMetrics
	Join     OperationMetrics
	Snapshot OperationMetrics
}

type Simulator struct {
	config      SimConfig
	providers   []Provider
	departments []Department
	client      *http.Client
	metrics     Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d book=%.2f join=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookRatio, cfg.JoinRatio, cfg.ReadRatio)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	if err := sim.loadReferenceData(); err != nil {
		log.Fatalf("load reference data: %v", err)
	}
	log.Printf("loaded: %d providers, %d departments", len(sim.providers), len(sim.departments))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL: getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:   getDuration("SIM_DURATION", 30*time.Second),
		Workers:    getInt("SIM_WORKERS", 10),
		BookRatio:  getFloat("SIM_BOOK_RATIO", 0.5),
		JoinRatio:  getFloat("SIM_JOIN_RATIO", 0.2),
		ReadRatio:  getFloat("SIM_READ_RATIO", 0.3),
		DateSpread: getInt("SIM_DATE_SPREAD", 3),
	}

	total := cfg.BookRatio + cfg.JoinRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookRatio /= total
		cfg.JoinRatio /= total
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
	if cfg.DateSpread <= 0 {
		return fmt.Errorf("SIM_DATE_SPREAD must be > 0")
	}
	return nil
}

func (s *Simulator) loadReferenceData() error {
	if err := s.getJSON("/providers", &s.providers); err != nil {
		return fmt.Errorf("load providers: %w", err)
	}
	if err := s.getJSON("/departments", &s.departments); err != nil {
		return fmt.Errorf("load departments: %w", err)
	}
	if len(s.providers) == 0 {
		return fmt.Errorf("no providers available, run cmd/seed first")
	}
	if len(s.departments) == 0 {
		return fmt.Errorf("no departments available, run cmd/seed first")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookRatio:
				s.doBooking(rng, workerID)
			case r < s.config.BookRatio+s.config.JoinRatio:
				s.doJoin(rng, workerID)
			default:
				s.doSnapshot(rng)
			}
		}
	}
}

func (s *Simulator) doBooking(rng *rand.Rand, workerID int) {
	p := s.providers[rng.Intn(len(s.providers))]
	if len(p.SlotLabels) == 0 {
		return
	}

	body := map[string]string{
		"provider_id":  p.ID,
		"date":         s.randomDate(rng),
		"slot_label":   p.SlotLabels[rng.Intn(len(p.SlotLabels))],
		"patient_id":   fmt.Sprintf("sim-patient-%d", rng.Intn(500)),
		"patient_name": fmt.Sprintf("Sim Worker %d", workerID),
	}

	start := time.Now()
	status, err := s.postJSON("/appointments", body)
	latency := time.Since(start)

	if err != nil {
		s.metrics.Booking.Record(latency, false, false)
		return
	}
	s.metrics.Booking.Record(latency, status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) doJoin(rng *rand.Rand, workerID int) {
	d := s.departments[rng.Intn(len(s.departments))]

	body := map[string]string{
		"department_id": d.ID,
		"date":          time.Now().Format("2006-01-02"),
		"patient_id":    fmt.Sprintf("sim-patient-%d", rng.Intn(500)),
		"patient_name":  fmt.Sprintf("Sim Worker %d", workerID),
	}

	start := time.Now()
	status, err := s.postJSON("/queues/join", body)
	latency := time.Since(start)

	if err != nil {
		s.metrics.Join.Record(latency, false, false)
		return
	}
	s.metrics.Join.Record(latency, status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) doSnapshot(rng *rand.Rand) {
	var path string
	if rng.Intn(2) == 0 {
		p := s.providers[rng.Intn(len(s.providers))]
		path = fmt.Sprintf("/providers/%s/slots/%s", p.ID, s.randomDate(rng))
	} else {
		d := s.departments[rng.Intn(len(s.departments))]
		path = fmt.Sprintf("/departments/%s/queue/%s", d.ID, time.Now().Format("2006-01-02"))
	}

	start := time.Now()
	var out json.RawMessage
	err := s.getJSON(path, &out)
	s.metrics.Snapshot.Record(time.Since(start), err == nil, false)
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return time.Now().AddDate(0, 0, rng.Intn(s.config.DateSpread)).Format("2006-01-02")
}

func (s *Simulator) getJSON(path string, out any) error {
	resp, err := s.client.Get(s.config.APIBaseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) postJSON(path string, body any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	resp, err := s.client.Post(s.config.APIBaseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("=== Simulation Report ===")
	printOp("bookings", &s.metrics.Booking)
	printOp("queue joins", &s.metrics.Join)
	printOp("snapshots", &s.metrics.Snapshot)
}

func printOp(name string, om *OperationMetrics) {
	avg, min, max, p50, p95 := om.Stats()
	fmt.Printf("%-12s total=%d success=%d conflict=%d error=%d\n",
		name, om.Total, om.Success, om.Conflict, om.Error)
	fmt.Printf("%-12s avg=%s min=%s max=%s p50=%s p95=%s\n",
		"", avg, min, max, p50, p95)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
