package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"

	checkTimeout = 2 * time.Second
)

type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Check probes one dependency. It must respect ctx.
type Check func(ctx context.Context) CheckResult

// HealthChecker aggregates named dependency checks. Any failing check makes the
// service unhealthy; warnings only degrade it.
type HealthChecker struct {
	version   string
	gitCommit string
	checks    map[string]Check
}

func NewHealthChecker(version, gitCommit string) *HealthChecker {
	return &HealthChecker{version: version, gitCommit: gitCommit, checks: map[string]Check{}}
}

func (h *HealthChecker) Register(name string, check Check) *HealthChecker {
	h.checks[name] = check
	return h
}

func (h *HealthChecker) run(ctx context.Context) (string, map[string]CheckResult) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := "healthy"
	results := make(map[string]CheckResult, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		start := time.Now()
		result := h.checks[name](checkCtx)
		cancel()
		if result.LatencyMs == 0 {
			result.LatencyMs = time.Since(start).Milliseconds()
		}
		results[name] = result

		switch result.Status {
		case statusFail:
			overall = "unhealthy"
		case statusWarn:
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}
	return overall, results
}

// Health serves the detailed dependency report.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Err() != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
			return
		}

		overall, results := h.run(r.Context())
		status := http.StatusOK
		if overall == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, HealthCheck{
			Status:    overall,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    results,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Readyz reports whether the instance can take traffic.
func (h *HealthChecker) Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overall, _ := h.run(r.Context())
		if overall == "unhealthy" {
			respondHealth(w, http.StatusServiceUnavailable, "not_ready")
			return
		}
		respondHealth(w, http.StatusOK, "ready")
	})
}

// Healthz is a liveness probe with no dependency checks.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	writeJSON(w, status, healthResponse{Status: value})
}

// DatabaseCheck pings the pool and reports its statistics.
func DatabaseCheck(pool *pgxpool.Pool) Check {
	return func(ctx context.Context) CheckResult {
		if pool == nil {
			return CheckResult{Status: statusFail, Message: "database pool not initialized"}
		}
		if err := pool.Ping(ctx); err != nil {
			return CheckResult{
				Status:  statusFail,
				Message: "database unreachable",
				Details: map[string]any{"error": err.Error()},
			}
		}
		stats := pool.Stat()
		return CheckResult{
			Status:  statusPass,
			Message: "PostgreSQL connection successful",
			Details: map[string]any{
				"max_connections":      stats.MaxConns(),
				"total_connections":    stats.TotalConns(),
				"idle_connections":     stats.IdleConns(),
				"acquired_connections": stats.AcquiredConns(),
			},
		}
	}
}

// MigrationCheck fails when golang-migrate left the schema dirty.
func MigrationCheck(pool *pgxpool.Pool) Check {
	return func(ctx context.Context) CheckResult {
		if pool == nil {
			return CheckResult{Status: statusFail, Message: "database pool not initialized"}
		}

		var version int64
		var dirty bool
		err := pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
		if err != nil {
			return CheckResult{
				Status:  statusFail,
				Message: "failed to query migration version",
				Details: map[string]any{"error": err.Error()},
			}
		}
		if dirty {
			return CheckResult{
				Status:  statusFail,
				Message: "database in dirty migration state",
				Details: map[string]any{"version": version, "dirty": true},
			}
		}
		return CheckResult{
			Status:  statusPass,
			Message: fmt.Sprintf("migrations applied (version %d)", version),
			Details: map[string]any{"version": version, "dirty": false},
		}
	}
}

// JobQueueCheck counts outstanding River jobs. A disabled queue only warns,
// since comments then stay pending until an operator intervenes.
func JobQueueCheck(pool *pgxpool.Pool, enabled bool) Check {
	return func(ctx context.Context) CheckResult {
		if !enabled || pool == nil {
			return CheckResult{Status: statusWarn, Message: "job queue disabled"}
		}

		var active int64
		err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM river_job WHERE state = ANY($1)`,
			[]string{"available", "running", "retryable"}).Scan(&active)
		if err != nil {
			return CheckResult{
				Status:  statusFail,
				Message: "failed to query job queue",
				Details: map[string]any{"error": err.Error()},
			}
		}
		return CheckResult{
			Status:  statusPass,
			Message: "River job queue operational",
			Details: map[string]any{"active_jobs": active},
		}
	}
}
