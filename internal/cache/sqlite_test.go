package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/emissions-service/internal/model"
)

func newTestSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()
	c, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck
	require.NoError(t, c.Migrate(context.Background()))
	return c
}

func TestSQLite_PutAndGet(t *testing.T) {
	c := newTestSQLiteCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, model.CategoryTransport, "csv", []byte("mode,co2\nbus,0.1\n")))

	data, err := c.Get(ctx, model.CategoryTransport, "csv")
	require.NoError(t, err)
	assert.Equal(t, "mode,co2\nbus,0.1\n", string(data))
}

func TestSQLite_Overwrite(t *testing.T) {
	c := newTestSQLiteCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, model.CategoryFood, "csv", []byte("v1")))
	require.NoError(t, c.Put(ctx, model.CategoryFood, "csv", []byte("v2")))

	data, err := c.Get(ctx, model.CategoryFood, "csv")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestSQLite_FormatsAreSeparate(t *testing.T) {
	c := newTestSQLiteCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, model.CategoryEnergy, "xlsx", []byte("binary")))

	data, err := c.Get(ctx, model.CategoryEnergy, "csv")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_Miss(t *testing.T) {
	c := newTestSQLiteCache(t)

	data, err := c.Get(context.Background(), model.CategoryWater, "csv")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	c := newTestSQLiteCache(t)
	require.NoError(t, c.Migrate(context.Background()))
}
