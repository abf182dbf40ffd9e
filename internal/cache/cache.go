// Package cache stores rendered Mermaid blocks keyed by source content.
//
// Lookups hit an in-memory LRU first. A cache opened with Open also persists
// entries in .touml/cache.db so later runs can skip unchanged files.
package cache

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
)

// DefaultSize is the number of keys held in memory when no size is given.
const DefaultSize = 1024

// DBFileName is the name of the database file inside the config directory.
const DBFileName = "cache.db"

// Cache maps cache keys (see Key) to the rendered blocks of one source file.
// It is safe for concurrent use.
type Cache struct {
	mem    *lru.Cache[string, []string]
	db     *sql.DB
	dbPath string

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns a memory-only cache holding up to size keys.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	mem, err := lru.New[string, []string](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{mem: mem}, nil
}

// Open opens or creates the cache database in dir (normally the .touml
// directory) and fronts it with a memory cache of size keys.
func Open(dir string, size int) (*Cache, error) {
	c, err := New(size)
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, DBFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// Files are converted in parallel; a single connection serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c.db = db
	c.dbPath = dbPath
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return c, nil
}

// Close closes the database connection, if any.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Persistent reports whether entries are written to disk.
func (c *Cache) Persistent() bool {
	return c != nil && c.db != nil
}

// Path returns the database file path, or "" for a memory-only cache.
func (c *Cache) Path() string {
	return c.dbPath
}

// Clear removes every entry from memory and from disk.
func (c *Cache) Clear() error {
	c.mem.Purge()
	if c.db == nil {
		return nil
	}
	if _, err := c.db.Exec("DELETE FROM blocks"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Stats summarises cache usage.
type Stats struct {
	MemoryEntries int
	StoredEntries int64
	Hits          int64
	Misses        int64
}

// GetStats returns statistics about the cache contents.
func (c *Cache) GetStats() (*Stats, error) {
	stats := &Stats{
		MemoryEntries: c.mem.Len(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
	}
	if c.db == nil {
		return stats, nil
	}
	if err := c.db.QueryRow("SELECT COUNT(*) FROM blocks").Scan(&stats.StoredEntries); err != nil {
		return nil, fmt.Errorf("count blocks: %w", err)
	}
	return stats, nil
}
