package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kingrea/sectorpages/internal/content"
)

// Cache remembers resolved assets by target name so repeated runs skip the
// remote lookup.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// OpenCache opens or creates the SQLite cache at path.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("media: create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("media: open cache: %w", err)
	}
	// One writer keeps SQLite from reporting busy under parallel workers.
	db.SetMaxOpenConns(1)
	cache := &Cache{db: db, now: time.Now}
	if err := cache.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return cache, nil
}

func (c *Cache) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS assets (
		name TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		url TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("media: create cache schema: %w", err)
	}
	return nil
}

// Get returns the cached asset for name.
func (c *Cache) Get(ctx context.Context, name string) (content.Asset, bool, error) {
	var asset content.Asset
	err := c.db.QueryRowContext(ctx, `SELECT id, url FROM assets WHERE name = ?`, name).Scan(&asset.ID, &asset.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Asset{}, false, nil
	}
	if err != nil {
		return content.Asset{}, false, fmt.Errorf("media: read cache %s: %w", name, err)
	}
	return asset, true, nil
}

// Put stores or replaces the asset for name.
func (c *Cache) Put(ctx context.Context, name string, asset content.Asset) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO assets (name, id, url, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET id = excluded.id, url = excluded.url, updated_at = excluded.updated_at`,
		name, asset.ID, asset.URL, c.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("media: write cache %s: %w", name, err)
	}
	return nil
}

// Forget drops name from the cache.
func (c *Cache) Forget(ctx context.Context, name string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM assets WHERE name = ?`, name); err != nil {
		return fmt.Errorf("media: forget %s: %w", name, err)
	}
	return nil
}

// Len reports how many assets are cached.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("media: count cache: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
