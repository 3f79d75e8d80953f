// Package cache persists the most recent raw payload fetched for each
// category so ingestion can fall back to it when a source is unreachable.
package cache

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/emissions-service/internal/model"
)

// Cache stores one payload per (category, format). Put is a full overwrite.
// Get returns (nil, nil) when nothing has been stored yet.
type Cache interface {
	Put(ctx context.Context, category model.Category, format string, data []byte) error
	Get(ctx context.Context, category model.Category, format string) ([]byte, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options configures Open.
type Options struct {
	Driver      string
	Dir         string
	DatabaseURL string
}

// Open creates the cache backend named by opts.Driver and runs its migration.
// An empty driver selects the file backend. The sqlite backend stores its
// database under Dir when no DatabaseURL is given.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverFile:
		return NewFile(opts.Dir)

	case DriverSQLite:
		dsn := opts.DatabaseURL
		if dsn == "" {
			dsn = filepath.Join(opts.Dir, "payload_cache.db")
		}
		c, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := c.Migrate(ctx); err != nil {
			c.Close() //nolint:errcheck
			return nil, err
		}
		return c, nil

	case DriverPostgres:
		if opts.DatabaseURL == "" {
			return nil, eris.New("cache: postgres driver requires a database url")
		}
		c, err := NewPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := c.Migrate(ctx); err != nil {
			c.Close() //nolint:errcheck
			return nil, err
		}
		return c, nil

	default:
		return nil, eris.Errorf("cache: unknown driver %q", opts.Driver)
	}
}
