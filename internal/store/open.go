package store

import (
	"context"
	"fmt"

	"github.com/katakuxiko/vectorbrain/internal/config"
	"github.com/katakuxiko/vectorbrain/internal/vector"
)

// Open builds the backend selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	metric, err := vector.ParseMetric(cfg.Distance)
	if err != nil {
		return nil, err
	}
	opts := Options{Dimension: cfg.EmbedDim, Metric: metric}

	var s Store
	switch cfg.StoreDriver {
	case "postgres":
		s, err = NewPgStore(ctx, cfg.PgConn, opts)
	case "sqlite":
		s, err = NewSQLiteStore(ctx, cfg.SQLitePath, opts)
	case "memory":
		s, err = NewMemoryStore(opts)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
