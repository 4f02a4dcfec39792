package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/tes-agency/portal/internal/api/respond"
)

const checkTimeout = 2 * time.Second

// Pinger is satisfied by storage.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck is the /readyz body.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms"`
	Details   map[string]any `json:"details,omitempty"`
}

// BuildInfo is stamped into the binary with -ldflags.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

func (b BuildInfo) withDefaults() BuildInfo {
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.GitCommit == "" {
		b.GitCommit = "unknown"
	}
	if b.BuildDate == "" {
		b.BuildDate = "unknown"
	}
	return b
}

// HealthChecker serves the liveness, readiness and version endpoints.
type HealthChecker struct {
	store         Pinger
	backend       string
	notifications bool
	build         BuildInfo
	draining      atomic.Bool
}

// NewHealthChecker reports on store, labelled as backend. notifications
// says whether a webhook dispatcher is running.
func NewHealthChecker(store Pinger, backend string, notifications bool, build BuildInfo) *HealthChecker {
	return &HealthChecker{
		store:         store,
		backend:       backend,
		notifications: notifications,
		build:         build.withDefaults(),
	}
}

// Drain makes Readyz fail so a load balancer stops routing here before
// the listener closes.
func (h *HealthChecker) Drain() {
	h.draining.Store(true)
}

// Healthz answers as long as the process can serve HTTP.
func (h *HealthChecker) Healthz(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports 503 when storage is unreachable or the server is
// shutting down. A missing webhook only degrades the result.
func (h *HealthChecker) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		respond.JSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}

	checks := map[string]CheckResult{
		"storage":       h.checkStorage(r.Context()),
		"notifications": h.checkNotifications(),
	}

	overall, status := "healthy", http.StatusOK
	for _, check := range checks {
		if check.Status == "fail" {
			overall, status = "unhealthy", http.StatusServiceUnavailable
			break
		}
		if check.Status == "warn" {
			overall = "degraded"
		}
	}

	respond.JSON(w, r, status, HealthCheck{
		Status:    overall,
		Version:   h.build.Version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthChecker) checkStorage(ctx context.Context) CheckResult {
	details := map[string]any{"backend": h.backend}
	if h.store == nil {
		return CheckResult{Status: "fail", Message: "storage not initialized", Details: details}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := h.store.Ping(ctx)
	latency := time.Since(start).Milliseconds()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CheckResult{Status: "fail", Message: "storage ping timed out", LatencyMs: latency, Details: details}
	case err != nil:
		details["error"] = err.Error()
		return CheckResult{Status: "fail", Message: "storage ping failed", LatencyMs: latency, Details: details}
	}
	return CheckResult{Status: "pass", LatencyMs: latency, Details: details}
}

func (h *HealthChecker) checkNotifications() CheckResult {
	if !h.notifications {
		return CheckResult{Status: "warn", Message: "webhook not configured"}
	}
	return CheckResult{Status: "pass"}
}

type versionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Version handles GET /version.
func (h *HealthChecker) Version(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, versionResponse{
		Version:   h.build.Version,
		GitCommit: h.build.GitCommit,
		BuildDate: h.build.BuildDate,
		GoVersion: runtime.Version(),
	})
}
