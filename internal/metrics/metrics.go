package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all portal metrics
const namespace = "tes_portal"

// Registry is the Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// StorageBackend marks the active storage backend with 1.
var StorageBackend = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "storage_backend",
		Help:      "Active storage backend (1 for the backend in use)",
	},
	[]string{"backend"},
)

// Access key metrics

// AccessKeysIssued counts keys issued, by granted role.
var AccessKeysIssued = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_keys_issued_total",
		Help:      "Total number of access keys issued",
	},
	[]string{"role"},
)

// AccessKeysRevoked counts deleted keys.
var AccessKeysRevoked = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_keys_revoked_total",
		Help:      "Total number of access keys deleted",
	},
)

// AccessKeyCollisions counts generated tokens that were already taken.
var AccessKeyCollisions = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_key_collisions_total",
		Help:      "Total number of generated access key tokens that collided with an existing key",
	},
)

// User metrics

// Registrations counts registration attempts by outcome.
var Registrations = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts",
	},
	[]string{"outcome"}, // outcome: success|invalid_key|key_used|already_registered|error
)

// Logins counts login attempts by outcome.
var Logins = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts",
	},
	[]string{"outcome"}, // outcome: success|invalid_credentials|error
)

// Content metrics

// PhotoSections counts photo section mutations.
var PhotoSections = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "photo_sections_total",
		Help:      "Total number of photo section mutations",
	},
	[]string{"operation"}, // operation: create|delete
)

// PageContentUpdates counts page content upserts.
var PageContentUpdates = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "page_content_updates_total",
		Help:      "Total number of page content upserts",
	},
)

// Notifications counts webhook notifications by outcome.
var Notifications = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of webhook notifications",
	},
	[]string{"outcome"}, // outcome: sent|failed|dropped
)

var initOnce sync.Once

// Init registers the runtime collectors and sets version information. Calls
// after the first only update AppInfo.
func Init(version, commit, buildDate string) {
	initOnce.Do(func() {
		// Register default Go metrics (memory, goroutines, GC, etc.)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

// RecordNotification matches notify.OutcomeFunc.
func RecordNotification(outcome string) {
	Notifications.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
