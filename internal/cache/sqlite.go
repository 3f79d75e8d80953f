package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/emissions-service/internal/model"
)

// SQLiteCache implements Cache using modernc.org/sqlite.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteCache{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS payload_cache (
	id        TEXT NOT NULL,
	category  TEXT NOT NULL,
	format    TEXT NOT NULL,
	data      BLOB NOT NULL,
	stored_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (category, format)
);
`

func (c *SQLiteCache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) Put(ctx context.Context, category model.Category, format string, data []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO payload_cache (id, category, format, data, stored_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (category, format) DO UPDATE SET id = excluded.id, data = excluded.data, stored_at = excluded.stored_at`,
		uuid.New().String(), string(category), format, data, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put payload")
}

func (c *SQLiteCache) Get(ctx context.Context, category model.Category, format string) ([]byte, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM payload_cache WHERE category = ? AND format = ?`,
		string(category), format,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get payload")
	}
	return data, nil
}
