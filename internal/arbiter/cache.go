package arbiter

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentstation/contactsync/pkg/errors"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS decisions (
	fingerprint1 TEXT NOT NULL,
	fingerprint2 TEXT NOT NULL,
	decision     TEXT NOT NULL,
	confidence   REAL NOT NULL,
	reasoning    TEXT NOT NULL,
	model        TEXT NOT NULL,
	decided_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (fingerprint1, fingerprint2)
);
`

// CachedDecision is one previously arbitrated pair, keyed by the content
// fingerprints of both contacts so any edit to either side invalidates it.
type CachedDecision struct {
	Decision   string
	Confidence float64
	Reasoning  string
	Model      string
	DecidedAt  time.Time
}

// Cache persists arbiter decisions across cycles in a local sqlite file.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if needed) the decision cache at path.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.WrapIO("create", path, err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, errors.WrapIO("migrate", path, err)
	}
	return &Cache{db: db}, nil
}

// Get returns the cached decision for a fingerprint pair, or ok=false when
// the pair has never been arbitrated.
func (c *Cache) Get(fp1, fp2 string) (CachedDecision, bool, error) {
	if c == nil || c.db == nil {
		return CachedDecision{}, false, nil
	}
	row := c.db.QueryRow(
		`SELECT decision, confidence, reasoning, model, decided_at
		 FROM decisions WHERE fingerprint1 = ? AND fingerprint2 = ?`, fp1, fp2)
	var d CachedDecision
	err := row.Scan(&d.Decision, &d.Confidence, &d.Reasoning, &d.Model, &d.DecidedAt)
	if err == sql.ErrNoRows {
		return CachedDecision{}, false, nil
	}
	if err != nil {
		return CachedDecision{}, false, err
	}
	return d, true, nil
}

// Put records a decision, replacing any prior entry for the pair.
func (c *Cache) Put(fp1, fp2 string, d CachedDecision) error {
	if c == nil || c.db == nil {
		return nil
	}
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO decisions
		 (fingerprint1, fingerprint2, decision, confidence, reasoning, model, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fp1, fp2, d.Decision, d.Confidence, d.Reasoning, d.Model, d.DecidedAt)
	return err
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
