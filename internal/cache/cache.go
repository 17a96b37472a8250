// Package cache is the incremental-build store. It remembers, per ruleset
// fingerprint, the input and output hashes of every file written, so re-runs
// into an existing destination can skip unchanged work. Skipping never
// changes output bytes: a stale or missing destination file is always
// rewritten.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Cache wraps the SQLite store. Safe for concurrent use by applier workers.
type Cache struct {
	db      *sql.DB
	stmtGet *sql.Stmt
	stmtPut *sql.Stmt
	mu      sync.Mutex
}

// Entry is one recorded transform result.
type Entry struct {
	SrcHash  string
	DestPath string
	OutHash  string
}

// Open creates or opens the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	// A cache can always be rebuilt; trade durability for write speed.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		fingerprint TEXT NOT NULL,
		src_path    TEXT NOT NULL,
		src_hash    TEXT NOT NULL,
		dest_path   TEXT NOT NULL,
		out_hash    TEXT NOT NULL,
		PRIMARY KEY (fingerprint, src_path)
	) WITHOUT ROWID;
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	stmtGet, err := db.Prepare(`SELECT src_hash, dest_path, out_hash FROM entries WHERE fingerprint = ? AND src_path = ?`)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	stmtPut, err := db.Prepare(`INSERT OR REPLACE INTO entries (fingerprint, src_path, src_hash, dest_path, out_hash) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Cache{db: db, stmtGet: stmtGet, stmtPut: stmtPut}, nil
}

// Lookup returns the recorded entry for (fingerprint, srcPath), or nil when
// the file has not been seen under this fingerprint.
func (c *Cache) Lookup(fingerprint, srcPath string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var e Entry
	err := c.stmtGet.QueryRow(fingerprint, srcPath).Scan(&e.SrcHash, &e.DestPath, &e.OutHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup %s: %w", srcPath, err)
	}
	return &e, nil
}

// Store records a transform result.
func (c *Cache) Store(fingerprint, srcPath string, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.stmtPut.Exec(fingerprint, srcPath, e.SrcHash, e.DestPath, e.OutHash); err != nil {
		return fmt.Errorf("cache store %s: %w", srcPath, err)
	}
	return nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	_ = c.stmtGet.Close()
	_ = c.stmtPut.Close()
	return c.db.Close()
}

// HashBytes returns the hex content hash used for cache keys.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
