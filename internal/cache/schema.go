package cache

// schemaSQL defines the SQLite schema for the persistent block store.
// Tables:
//   - blocks: rendered Mermaid blocks keyed by source content and render options
const schemaSQL = `
CREATE TABLE IF NOT EXISTS blocks (
    cache_key TEXT PRIMARY KEY,
    blocks TEXT NOT NULL,
    stored_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_blocks_stored_at ON blocks(stored_at);
`

// initSchema creates the database tables and indexes if they don't exist.
func (c *Cache) initSchema() error {
	_, err := c.db.Exec(schemaSQL)
	return err
}
