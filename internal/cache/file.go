package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/emissions-service/internal/model"
)

// FileCache keeps payloads as plain files, one per category and format.
type FileCache struct {
	dir string
}

// NewFile creates a FileCache rooted at dir, creating the directory if needed.
func NewFile(dir string) (*FileCache, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create dir %s", dir)
	}
	return &FileCache{dir: dir}, nil
}

// Path returns the file holding the payload for category and format,
// e.g. "<dir>/food_factors.csv".
func (c *FileCache) Path(category model.Category, format string) string {
	if format == "" {
		format = "csv"
	}
	name := fmt.Sprintf("%s_factors.%s", strings.ToLower(string(category)), strings.ToLower(format))
	return filepath.Join(c.dir, name)
}

// Put writes data to a temp file in the cache dir and renames it over the
// previous payload, so readers never observe a partial write.
func (c *FileCache) Put(_ context.Context, category model.Category, format string, data []byte) error {
	dst := c.Path(category, format)

	tmp, err := os.CreateTemp(c.dir, filepath.Base(dst)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "cache: create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "cache: write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "cache: close %s", tmpName)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "cache: rename to %s", dst)
	}
	return nil
}

// Get reads the cached payload. A missing file is a miss, not an error.
func (c *FileCache) Get(_ context.Context, category model.Category, format string) ([]byte, error) {
	path := c.Path(category, format)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "cache: read %s", path)
	}
	return data, nil
}

func (c *FileCache) Close() error { return nil }
