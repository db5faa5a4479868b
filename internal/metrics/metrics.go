// Package metrics exposes Prometheus metrics and a health endpoint for the
// scanner and monitor processes.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading engine.
type Metrics struct {
	// Scan pipeline
	ScansTotal     prometheus.Counter
	ScanDuration   prometheus.Histogram
	SymbolsScanned prometheus.Counter
	SignalsTotal   *prometheus.CounterVec // labels: verdict
	ScanFailures   prometheus.Counter

	// Monitor pipeline
	MonitorPasses  prometheus.Counter
	ExitsTotal     *prometheus.CounterVec // labels: reason
	DegradedPasses prometheus.Counter
	OpenPositions  prometheus.Gauge

	// Orders
	OrdersTotal *prometheus.CounterVec // labels: side, status

	// Broker resilience
	BrokerCalls        *prometheus.CounterVec // labels: outcome=ok|error
	BreakerState       prometheus.Gauge       // 0=closed, 1=open
	BreakerTrips       prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	TokenRefreshes     prometheus.Counter
	BrokerCallDuration prometheus.Histogram
}

// New registers and returns all engine metrics.
func New() *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_scans_total",
			Help: "Completed scan passes",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_scan_duration_seconds",
			Help:    "Wall time of a full scan pass",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		SymbolsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_symbols_scanned_total",
			Help: "Symbols evaluated across all scans",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_signals_total",
			Help: "Signals emitted by verdict",
		}, []string{"verdict"}),
		ScanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_scan_failures_total",
			Help: "Per-symbol scan failures",
		}),

		MonitorPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_monitor_passes_total",
			Help: "Completed monitoring passes",
		}),
		ExitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_exits_total",
			Help: "Position exits by reason",
		}, []string{"reason"}),
		DegradedPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_degraded_passes_total",
			Help: "Monitoring passes aborted by consecutive failures",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_open_positions",
			Help: "Currently active algo positions",
		}),

		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_orders_total",
			Help: "Broker orders by side and status",
		}, []string{"side", "status"}),

		BrokerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_broker_calls_total",
			Help: "Broker API calls by outcome",
		}, []string{"outcome"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_breaker_state",
			Help: "Broker circuit breaker state (0=closed, 1=open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_breaker_trips_total",
			Help: "Times the broker circuit breaker tripped open",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_response_cache_hits_total",
			Help: "Broker response cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_response_cache_misses_total",
			Help: "Broker response cache misses",
		}),
		TokenRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_token_refreshes_total",
			Help: "Access-token refresh requests sent to the broker",
		}),
		BrokerCallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_broker_call_duration_seconds",
			Help:    "Broker API call latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.ScansTotal,
		m.ScanDuration,
		m.SymbolsScanned,
		m.SignalsTotal,
		m.ScanFailures,
		m.MonitorPasses,
		m.ExitsTotal,
		m.DegradedPasses,
		m.OpenPositions,
		m.OrdersTotal,
		m.BrokerCalls,
		m.BreakerState,
		m.BreakerTrips,
		m.CacheHits,
		m.CacheMisses,
		m.TokenRefreshes,
		m.BrokerCallDuration,
	)

	return m
}

// HealthStatus represents engine health for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	BrokerOK       bool      `json:"broker_ok"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastScanAt     time.Time `json:"last_scan_at"`
	LastPassAt     time.Time `json:"last_pass_at"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now(), BrokerOK: true}
}

func (h *HealthStatus) SetBrokerOK(v bool) {
	h.mu.Lock()
	h.BrokerOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastScanAt(t time.Time) {
	h.mu.Lock()
	h.LastScanAt = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastPassAt(t time.Time) {
	h.mu.Lock()
	h.LastPassAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.BrokerOK || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		BrokerOK        bool    `json:"broker_ok"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastScanAt      string  `json:"last_scan_at"`
		LastPassAt      string  `json:"last_pass_at"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		BrokerOK:        h.BrokerOK,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastScanAt:      h.LastScanAt.Format(time.RFC3339),
		LastPassAt:      h.LastPassAt.Format(time.RFC3339),
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
