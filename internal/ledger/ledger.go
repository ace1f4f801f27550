// Package ledger persists the cross-cycle record of confirmed matches.
// Each entry links one account1 resource to one account2 resource together
// with the content fingerprint at last sync. The ledger is the engine's
// memory: pairs it records skip rescoring and re-arbitration, and in full
// mode it is the evidence for mirroring deletions.
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/contactsync/pkg/errors"
)

// FormatVersion is the on-disk schema version.
const FormatVersion = 1

// Entry links one contact on each account. Invariant: each resource id
// appears in at most one entry.
type Entry struct {
	Account1ID   string    `json:"account1_id"`
	Account2ID   string    `json:"account2_id"`
	Fingerprint  string    `json:"content_fingerprint"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// file is the on-disk shape.
type file struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Ledger is the in-memory ledger for one cycle. It is safe for concurrent
// use: the executor commits entries from both account workers.
type Ledger struct {
	mu   sync.Mutex
	path string
	by1  map[string]*Entry
	by2  map[string]*Entry
}

// Load reads the ledger file at path. A missing file yields an empty
// ledger. An unreadable or schema-invalid file also yields an empty ledger
// with a warning, forcing a full rematch rather than aborting the cycle.
func Load(path string, log *zerolog.Logger) *Ledger {
	l := &Ledger{
		path: path,
		by1:  make(map[string]*Entry),
		by2:  make(map[string]*Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).
				Msg("Ledger unreadable, starting from an empty ledger")
		}
		return l
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil || f.Version != FormatVersion {
		log.Warn().Err(err).Str("path", path).Int("version", f.Version).
			Msg("Ledger corrupt or from an unknown version, starting from an empty ledger")
		return l
	}

	for i := range f.Entries {
		e := f.Entries[i]
		l.put(&e)
	}
	return l
}

// Get1 looks up the entry holding the given account1 resource.
func (l *Ledger) Get1(resource string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.by1[resource]; ok {
		return *e, true
	}
	return Entry{}, false
}

// Get2 looks up the entry holding the given account2 resource.
func (l *Ledger) Get2(resource string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.by2[resource]; ok {
		return *e, true
	}
	return Entry{}, false
}

// Upsert records a confirmed pair. Any existing entry sharing either
// resource id is displaced first, keeping the 1:1 invariant.
func (l *Ledger) Upsert(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.put(&e)
}

// put assumes l.mu is held.
func (l *Ledger) put(e *Entry) {
	if prev, ok := l.by1[e.Account1ID]; ok {
		delete(l.by2, prev.Account2ID)
	}
	if prev, ok := l.by2[e.Account2ID]; ok {
		delete(l.by1, prev.Account1ID)
	}
	l.by1[e.Account1ID] = e
	l.by2[e.Account2ID] = e
}

// Remove deletes the entry holding the given pair, if present.
func (l *Ledger) Remove(account1ID, account2ID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.by1[account1ID]; ok && e.Account2ID == account2ID {
		delete(l.by1, account1ID)
		delete(l.by2, account2ID)
	}
}

// Entries returns a sorted snapshot of all entries.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.by1))
	for _, e := range l.by1 {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Account1ID < out[j].Account1ID
	})
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.by1)
}

// Save writes the ledger atomically: marshal to a temp file in the target
// directory, fsync, then rename over the destination. A crash mid-save
// never leaves a partially written ledger on disk.
func (l *Ledger) Save() error {
	entries := l.Entries()

	data, err := json.MarshalIndent(file{Version: FormatVersion, Entries: entries}, "", "  ")
	if err != nil {
		return &errors.LedgerError{Operation: "save", Path: l.path, Err: err}
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &errors.LedgerError{Operation: "save", Path: l.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return &errors.LedgerError{Operation: "save", Path: l.path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &errors.LedgerError{Operation: "save", Path: l.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &errors.LedgerError{Operation: "save", Path: l.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &errors.LedgerError{Operation: "save", Path: l.path, Err: err}
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		return &errors.LedgerError{Operation: "save", Path: l.path, Err: err}
	}
	return nil
}
