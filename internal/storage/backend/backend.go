// Package backend selects a storage.Store implementation from a database URL.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/tes-agency/portal/internal/metrics"
	"github.com/tes-agency/portal/internal/storage"
	"github.com/tes-agency/portal/internal/storage/memory"
	"github.com/tes-agency/portal/internal/storage/postgres"
	"github.com/tes-agency/portal/internal/storage/sqlite"
)

// Kind names a storage backend.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
)

// PoolStatsSource is implemented by the backends that hold a connection
// pool.
type PoolStatsSource interface {
	PoolStats() metrics.PoolStats
}

// Options configures Open.
type Options struct {
	URL            string
	MaxConnections int
	// AutoMigrate applies pending postgres migrations before returning.
	// SQLite always migrates on open.
	AutoMigrate bool
}

// Detect reports which backend url selects. An empty url selects memory.
func Detect(url string) (Kind, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return KindMemory, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return KindPostgres, nil
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "file:"):
		return KindSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database url scheme: %q", redact(url))
	}
}

// Open returns the store selected by opts.URL.
func Open(ctx context.Context, opts Options) (storage.Store, Kind, error) {
	kind, err := Detect(opts.URL)
	if err != nil {
		return nil, "", err
	}

	switch kind {
	case KindPostgres:
		if opts.AutoMigrate {
			if err := postgres.MigrateUp(opts.URL); err != nil {
				return nil, kind, err
			}
		}
		store, err := postgres.Open(ctx, opts.URL, opts.MaxConnections)
		if err != nil {
			return nil, kind, err
		}
		return store, kind, nil
	case KindSQLite:
		store, err := sqlite.Open(SQLitePath(opts.URL))
		if err != nil {
			return nil, kind, err
		}
		return store, kind, nil
	default:
		return memory.New(), kind, nil
	}
}

// SQLitePath strips the sqlite:// or file: scheme from url.
func SQLitePath(url string) string {
	url = strings.TrimSpace(url)
	if rest, ok := strings.CutPrefix(url, "sqlite://"); ok {
		return rest
	}
	rest, _ := strings.CutPrefix(url, "file:")
	return rest
}

// redact drops everything before the host so credentials never reach logs.
func redact(url string) string {
	if at := strings.LastIndex(url, "@"); at >= 0 {
		if scheme := strings.Index(url, "://"); scheme >= 0 && scheme < at {
			return url[:scheme+3] + "***" + url[at:]
		}
	}
	return url
}
