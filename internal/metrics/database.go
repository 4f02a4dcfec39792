package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DBConnections reports pool usage by state: open, in_use, idle, max_open.
var DBConnections = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "db_connections",
	Help:      "Database connection pool usage by state.",
}, []string{"state"})

// PoolStats is a backend-neutral snapshot of connection pool usage.
type PoolStats struct {
	Open    int
	InUse   int
	Idle    int
	MaxOpen int
}

// DBCollector copies pool statistics into DBConnections on a ticker.
type DBCollector struct {
	stats func() PoolStats
}

func NewDBCollector(stats func() PoolStats) *DBCollector {
	return &DBCollector{stats: stats}
}

// Run collects once immediately, then every interval until ctx is done.
func (c *DBCollector) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *DBCollector) collect() {
	if c.stats == nil {
		return
	}
	s := c.stats()
	DBConnections.WithLabelValues("open").Set(float64(s.Open))
	DBConnections.WithLabelValues("in_use").Set(float64(s.InUse))
	DBConnections.WithLabelValues("idle").Set(float64(s.Idle))
	DBConnections.WithLabelValues("max_open").Set(float64(s.MaxOpen))
}
