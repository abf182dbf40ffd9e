package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Get returns the blocks stored under key. A nil *Cache never hits.
// A stored entry with no blocks (a file without classes) is a hit.
func (c *Cache) Get(key string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	if blocks, ok := c.mem.Get(key); ok {
		c.hits.Add(1)
		return slices.Clone(blocks), true
	}

	if c.db != nil {
		blocks, err := c.load(key)
		if err == nil {
			c.mem.Add(key, blocks)
			c.hits.Add(1)
			return slices.Clone(blocks), true
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Put stores blocks under key, replacing any previous entry.
func (c *Cache) Put(key string, blocks []string) error {
	if c == nil {
		return nil
	}
	stored := slices.Clone(blocks)
	if stored == nil {
		stored = []string{}
	}
	c.mem.Add(key, stored)

	if c.db == nil {
		return nil
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode blocks: %w", err)
	}
	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO blocks (cache_key, blocks, stored_at)
		VALUES (?, ?, ?)`,
		key, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store blocks %s: %w", key, err)
	}
	return nil
}

// Delete removes key from memory and from disk.
func (c *Cache) Delete(key string) error {
	if c == nil {
		return nil
	}
	c.mem.Remove(key)
	if c.db == nil {
		return nil
	}
	if _, err := c.db.Exec("DELETE FROM blocks WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("delete blocks %s: %w", key, err)
	}
	return nil
}

// PruneBefore removes stored entries older than cutoff and returns how many
// were removed. Memory entries are left alone.
func (c *Cache) PruneBefore(cutoff time.Time) (int64, error) {
	if c == nil || c.db == nil {
		return 0, nil
	}
	res, err := c.db.Exec("DELETE FROM blocks WHERE stored_at < ?", cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("prune blocks: %w", err)
	}
	return res.RowsAffected()
}

// load returns sql.ErrNoRows when key is not stored.
func (c *Cache) load(key string) ([]string, error) {
	var data string
	err := c.db.QueryRow("SELECT blocks FROM blocks WHERE cache_key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("load blocks %s: %w", key, err)
	}
	var blocks []string
	if err := json.Unmarshal([]byte(data), &blocks); err != nil {
		return nil, fmt.Errorf("decode blocks %s: %w", key, err)
	}
	if blocks == nil {
		blocks = []string{}
	}
	return blocks, nil
}
