package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/emissions-service/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresCache.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresCache implements Cache using pgxpool.
type PostgresCache struct {
	pool Pool
}

// NewPostgres creates a PostgresCache with a small connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresCache, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresCache{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS payload_cache (
	id        TEXT NOT NULL,
	category  TEXT NOT NULL,
	format    TEXT NOT NULL,
	data      BYTEA NOT NULL,
	stored_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (category, format)
);
`

func (c *PostgresCache) Migrate(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (c *PostgresCache) Close() error {
	c.pool.Close()
	return nil
}

func (c *PostgresCache) Put(ctx context.Context, category model.Category, format string, data []byte) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO payload_cache (id, category, format, data, stored_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (category, format) DO UPDATE SET id = $1, data = $4, stored_at = $5`,
		uuid.New().String(), string(category), format, data, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: put payload")
}

func (c *PostgresCache) Get(ctx context.Context, category model.Category, format string) ([]byte, error) {
	var data []byte
	err := c.pool.QueryRow(ctx,
		`SELECT data FROM payload_cache WHERE category = $1 AND format = $2`,
		string(category), format,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get payload")
	}
	return data, nil
}
