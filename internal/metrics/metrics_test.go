package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init("v1.0.0", "abc123", "2026-01-30")
		Init("v1.0.0", "abc123", "2026-01-30")
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(AppInfo.WithLabelValues("v1.0.0", "abc123", "2026-01-30")))
}

func TestRecordNotification(t *testing.T) {
	before := testutil.ToFloat64(Notifications.WithLabelValues("dropped"))
	RecordNotification("dropped")
	assert.Equal(t, before+1, testutil.ToFloat64(Notifications.WithLabelValues("dropped")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	AccessKeysIssued.WithLabelValues("public_relations").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tes_portal_access_keys_issued_total")
}

func TestDBCollector(t *testing.T) {
	collector := NewDBCollector(func() PoolStats {
		return PoolStats{Open: 4, InUse: 1, Idle: 3, MaxOpen: 10}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, collector.Run(ctx, time.Hour))

	for state, want := range map[string]float64{"open": 4, "in_use": 1, "idle": 3, "max_open": 10} {
		assert.Equal(t, want, testutil.ToFloat64(DBConnections.WithLabelValues(state)), state)
	}
}
