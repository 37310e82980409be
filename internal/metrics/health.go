package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// HealthStatus tracks the last cycle and optional dependencies.
type HealthStatus struct {
	mu sync.RWMutex

	PollInterval time.Duration
	StartedAt    time.Time

	LastCycleID  string
	LastCycleAt  time.Time
	LastUnits    int
	LastFailures int

	// nil means the dependency is not configured.
	RedisConnected  *bool
	RedisLatencyMs  float64
	SQLiteOK        *bool
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
}

// NewHealthStatus returns a status for a loop polling at interval.
func NewHealthStatus(interval time.Duration) *HealthStatus {
	return &HealthStatus{PollInterval: interval, StartedAt: time.Now()}
}

// SetCycle records the outcome of a finished cycle.
func (h *HealthStatus) SetCycle(id string, startedAt time.Time, units, failures int) {
	h.mu.Lock()
	h.LastCycleID = id
	h.LastCycleAt = startedAt
	h.LastUnits = units
	h.LastFailures = failures
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = &v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = &v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	ok := err == nil
	h.mu.Lock()
	h.RedisConnected = &ok
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the run log database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	ok := err == nil
	h.mu.Lock()
	h.SQLiteOK = &ok
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
// Either dependency may be nil.
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

// status returns the overall state: "starting" before the first cycle,
// "degraded" when the last cycle is stale, failed every unit or a
// configured dependency is down, otherwise "healthy".
func (h *HealthStatus) status(now time.Time) string {
	if h.LastCycleAt.IsZero() {
		return "starting"
	}
	if h.PollInterval > 0 && now.Sub(h.LastCycleAt) > 3*h.PollInterval {
		return "degraded"
	}
	if h.LastUnits > 0 && h.LastFailures == h.LastUnits {
		return "degraded"
	}
	if (h.RedisConnected != nil && !*h.RedisConnected) || (h.SQLiteOK != nil && !*h.SQLiteOK) {
		return "degraded"
	}
	return "healthy"
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	overall := h.status(now)

	lastCycle := ""
	if !h.LastCycleAt.IsZero() {
		lastCycle = h.LastCycleAt.Format(time.RFC3339)
	}
	body := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		LastCycleID     string  `json:"last_cycle_id,omitempty"`
		LastCycleAt     string  `json:"last_cycle_at,omitempty"`
		LastUnits       int     `json:"last_units"`
		LastFailures    int     `json:"last_failures"`
		RedisConnected  *bool   `json:"redis_connected,omitempty"`
		RedisLatencyMs  float64 `json:"redis_latency_ms,omitempty"`
		SQLiteOK        *bool   `json:"sqlite_ok,omitempty"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms,omitempty"`
	}{
		Status:          overall,
		Uptime:          now.Sub(h.StartedAt).Round(time.Second).String(),
		LastCycleID:     h.LastCycleID,
		LastCycleAt:     lastCycle,
		LastUnits:       h.LastUnits,
		LastFailures:    h.LastFailures,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
	}

	w.Header().Set("Content-Type", "application/json")
	if overall == "degraded" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(body)
}
