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

// Metrics holds all Prometheus metrics for the chart engine.
type Metrics struct {
	TicksTotal      prometheus.Counter
	LiveCandles     prometheus.Counter
	StaleDrops      prometheus.Counter
	FeedReconnects  prometheus.Counter
	RingBufOverflow prometheus.Counter

	// Historical fetch pipeline
	HistoryFetchDur    prometheus.Histogram
	HistoryFetchErrors prometheus.Counter
	StaleFetchesTossed prometheus.Counter

	// Indicator engine
	IndicatorUpdateDur prometheus.Histogram

	// Cross-panel sync bus
	SyncEventsTotal prometheus.Counter
	SyncFanoutDrops *prometheus.CounterVec // labels: panel

	// Drawing reconciler
	DrawingSyncFailures prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_ticks_total",
			Help: "Total ticks applied to live bar series",
		}),
		LiveCandles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_live_candles_total",
			Help: "Total server-bucketed candles applied to live bar series",
		}),
		StaleDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_stale_drops_total",
			Help: "Ticks and candles discarded as stale or unroutable",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_feed_reconnects_total",
			Help: "Total live feed reconnection attempts",
		}),
		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (dropped ticks)",
		}),
		HistoryFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_history_fetch_duration_seconds",
			Help:    "Historical bar fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		HistoryFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_history_fetch_errors_total",
			Help: "Historical bar fetches that failed",
		}),
		StaleFetchesTossed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_stale_fetches_discarded_total",
			Help: "Completed fetches discarded because the instrument changed mid-flight",
		}),
		IndicatorUpdateDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_indicator_update_duration_seconds",
			Help:    "Indicator engine update latency per bar cycle",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		SyncEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_sync_events_total",
			Help: "Crosshair sync events published",
		}),
		SyncFanoutDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_sync_fanout_drops_total",
			Help: "Sync events dropped per slow panel subscriber",
		}, []string{"panel"}),
		DrawingSyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_drawing_sync_failures_total",
			Help: "Remote drawing calls that failed and degraded the session to local-only",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.LiveCandles,
		m.StaleDrops,
		m.FeedReconnects,
		m.RingBufOverflow,
		m.HistoryFetchDur,
		m.HistoryFetchErrors,
		m.StaleFetchesTossed,
		m.IndicatorUpdateDur,
		m.SyncEventsTotal,
		m.SyncFanoutDrops,
		m.DrawingSyncFailures,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastTickTime   time.Time `json:"last_tick_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
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

	if !h.FeedConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedConnected   bool    `json:"feed_connected"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
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
