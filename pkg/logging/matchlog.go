package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/agentstation/contactsync/pkg/errors"
)

// MatchLog is the structured matching log: a JSON event stream recording
// every keying, scoring, assignment, and arbiter decision made during a sync
// cycle, for audit and debugging. Events are timestamped and stamped with
// the cycle ID.
type MatchLog struct {
	logger zerolog.Logger
	closer io.Closer
}

// OpenMatchLog opens (appending) the matching log file at path.
func OpenMatchLog(path, cycleID string) (*MatchLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.WrapIO("create", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	ml := NewMatchLog(f, cycleID)
	ml.closer = f
	return ml, nil
}

// NewMatchLog creates a matching log writing JSON events to w.
func NewMatchLog(w io.Writer, cycleID string) *MatchLog {
	logger := zerolog.New(w).With().Timestamp().Str("cycle_id", cycleID).Logger()
	return &MatchLog{logger: logger}
}

// NopMatchLog returns a matching log that discards all events.
func NopMatchLog() *MatchLog {
	return &MatchLog{logger: zerolog.Nop()}
}

// Keying records the matching keys derived for a contact.
func (m *MatchLog) Keying(account, resource, displayName string, keys []string) {
	m.logger.Info().
		Str("event", "keying").
		Str("account", account).
		Str("resource", resource).
		Str("display_name", displayName).
		Strs("keys", keys).
		Send()
}

// Score records a candidate pair's similarity score and classification.
func (m *MatchLog) Score(resource1, resource2 string, score float64, class, reason string) {
	m.logger.Info().
		Str("event", "score").
		Str("account1_id", resource1).
		Str("account2_id", resource2).
		Float64("score", score).
		Str("class", class).
		Str("reason", reason).
		Send()
}

// Assignment records a confirmed 1:1 pairing and how it was made.
func (m *MatchLog) Assignment(resource1, resource2, tier string, score float64) {
	m.logger.Info().
		Str("event", "assignment").
		Str("account1_id", resource1).
		Str("account2_id", resource2).
		Str("tier", tier).
		Float64("score", score).
		Send()
}

// Arbiter records an arbiter decision for an uncertain pair. Source is
// "service" for a live classification, "cache" for a replayed decision, and
// "default" when a failure forced the conservative unmatched fallback.
func (m *MatchLog) Arbiter(resource1, resource2, decision string, confidence float64, reasoning, source string) {
	m.logger.Info().
		Str("event", "arbiter").
		Str("account1_id", resource1).
		Str("account2_id", resource2).
		Str("decision", decision).
		Float64("confidence", confidence).
		Str("reasoning", reasoning).
		Str("source", source).
		Send()
}

// Operation records an applied (or failed) plan operation.
func (m *MatchLog) Operation(account, kind, resource string, err error) {
	evt := m.logger.Info()
	if err != nil {
		evt = m.logger.Error().Err(err)
	}
	evt.
		Str("event", "operation").
		Str("account", account).
		Str("kind", kind).
		Str("resource", resource).
		Send()
}

// Close releases the underlying file, if any.
func (m *MatchLog) Close() error {
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}
