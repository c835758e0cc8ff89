// Package cache stores build outputs in SQLite, keyed by a hash of the
// source and every setting that affects the generated code.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("bfc.cache")

// ErrNotFound indicates the requested artifact isn't cached.
var ErrNotFound = errors.New("artifact not found")

// Artifact is one cached build output.
type Artifact struct {
	Key       string `cbor:"1,keyasint"`
	Format    string `cbor:"2,keyasint"`
	Triple    string `cbor:"3,keyasint,omitempty"`
	Output    []byte `cbor:"4,keyasint"`
	CreatedAt int64  `cbor:"5,keyasint"` // Unix seconds
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Key hashes its parts into a cache key. Parts are length-prefixed so
// ("ab", "c") and ("a", "bc") differ.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache is an artifact store backed by a SQLite database.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent builds
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		key TEXT PRIMARY KEY,
		entry BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened %s", path)
	return &Cache{db: db, path: path}, nil
}

// Path returns the database file location.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the artifact stored under key.
func (c *Cache) Get(key string) (*Artifact, error) {
	var entry []byte
	err := c.db.QueryRow("SELECT entry FROM artifacts WHERE key = ?", key).Scan(&entry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}

	var a Artifact
	if err := cbor.Unmarshal(entry, &a); err != nil {
		return nil, fmt.Errorf("cache: unmarshal artifact: %w", err)
	}
	log.Debugf("hit %s", key)
	return &a, nil
}

// Put stores a, replacing any artifact with the same key. A zero CreatedAt
// is set to the current time.
func (c *Cache) Put(a *Artifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().Unix()
	}
	entry, err := encMode.Marshal(a)
	if err != nil {
		return fmt.Errorf("cache: marshal artifact: %w", err)
	}

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO artifacts (key, entry, created) VALUES (?, ?, ?)",
		a.Key, entry, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	log.Debugf("stored %s (%d bytes)", a.Key, len(a.Output))
	return nil
}

// Delete removes the artifact stored under key, if any.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM artifacts WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}

// Clear removes every artifact and reports how many were removed.
func (c *Cache) Clear() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec("DELETE FROM artifacts")
	if err != nil {
		return 0, fmt.Errorf("clearing artifacts: %w", err)
	}
	return res.RowsAffected()
}

// Prune removes artifacts created before cutoff and reports how many were
// removed.
func (c *Cache) Prune(cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec("DELETE FROM artifacts WHERE created < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning artifacts: %w", err)
	}
	return res.RowsAffected()
}
