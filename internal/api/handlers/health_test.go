package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tes-agency/portal/internal/storage/memory"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func readyz(t *testing.T, h *HealthChecker) (int, HealthCheck) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	return rec.Code, decode[HealthCheck](t, rec)
}

func TestHealthz(t *testing.T) {
	h := NewHealthChecker(nil, "memory", false, BuildInfo{})
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHealthChecker(memory.New(), "memory", true, BuildInfo{Version: "1.2.0"})
		status, body := readyz(t, h)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, "1.2.0", body.Version)
		assert.Equal(t, "pass", body.Checks["storage"].Status)
		assert.Equal(t, "memory", body.Checks["storage"].Details["backend"])
	})

	t.Run("degraded without webhook", func(t *testing.T) {
		h := NewHealthChecker(memory.New(), "memory", false, BuildInfo{})
		status, body := readyz(t, h)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "warn", body.Checks["notifications"].Status)
	})

	t.Run("storage down", func(t *testing.T) {
		h := NewHealthChecker(pingFunc(func(context.Context) error {
			return errors.New("connection refused")
		}), "postgres", true, BuildInfo{})
		status, body := readyz(t, h)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "fail", body.Checks["storage"].Status)
	})

	t.Run("storage timeout", func(t *testing.T) {
		h := NewHealthChecker(pingFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}), "postgres", true, BuildInfo{})
		status, body := readyz(t, h)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "storage ping timed out", body.Checks["storage"].Message)
	})

	t.Run("draining", func(t *testing.T) {
		h := NewHealthChecker(memory.New(), "memory", true, BuildInfo{})
		h.Drain()
		rec := httptest.NewRecorder()
		h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"shutting_down"}`, rec.Body.String())
	})
}

func TestVersion(t *testing.T) {
	h := NewHealthChecker(nil, "memory", false, BuildInfo{Version: "0.3.1", GitCommit: "abc123"})
	rec := httptest.NewRecorder()
	h.Version(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]string](t, rec)
	assert.Equal(t, "0.3.1", got["version"])
	assert.Equal(t, "abc123", got["git_commit"])
	assert.Equal(t, "unknown", got["build_date"])
	assert.Equal(t, runtime.Version(), got["go_version"])
}
