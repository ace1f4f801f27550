package match

import (
	"fmt"
	"sort"

	"github.com/agentstation/contactsync/internal/ledger"
	"github.com/agentstation/contactsync/pkg/accounts"
	"github.com/agentstation/contactsync/pkg/contacts"
	"github.com/agentstation/contactsync/pkg/errors"
	"github.com/agentstation/contactsync/pkg/logging"
)

// Config holds the classification thresholds. Scores are in [0,1].
type Config struct {
	// NameSimilarity is the minimum name score for a match backed by a
	// shared email or phone identifier.
	NameSimilarity float64

	// NameOnly is the minimum name score for a match with no shared
	// identifier.
	NameOnly float64

	// Uncertain is the floor of the uncertain band; pairs scoring below it
	// are unmatched outright.
	Uncertain float64
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		NameSimilarity: 0.85,
		NameOnly:       0.95,
		Uncertain:      0.70,
	}
}

// Validate checks threshold ranges and ordering.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"name_similarity_threshold": c.NameSimilarity,
		"name_only_threshold":       c.NameOnly,
		"uncertain_threshold":       c.Uncertain,
	} {
		if v <= 0 || v > 1 {
			return errors.NewValidationError(name, v, "threshold must be in (0, 1]")
		}
	}
	if c.Uncertain > c.NameSimilarity {
		return errors.NewValidationError("uncertain_threshold", c.Uncertain,
			"must not exceed name_similarity_threshold")
	}
	return nil
}

// Engine produces candidate pairs and classifies them.
type Engine struct {
	cfg Config
	log *logging.MatchLog
}

// NewEngine creates a match engine. A nil match log discards audit events.
func NewEngine(cfg Config, log *logging.MatchLog) *Engine {
	if log == nil {
		log = logging.NopMatchLog()
	}
	return &Engine{cfg: cfg, log: log}
}

// Outcome is the engine's output for one cycle. Matched holds confirmed
// 1:1 pairs; Uncertain holds pairs pending arbitration (a contact may sit
// in several uncertain pairs until the arbiter and assignment settle it).
type Outcome struct {
	Matched   []Pair
	Uncertain []Pair

	pool1, pool2         []*contacts.Contact
	assigned1, assigned2 map[string]bool
}

// Match links the two filtered contact sets. Contacts referenced by a
// ledger entry never re-enter scoring: their pair is either re-confirmed on
// the fast path or held for the planner's deletion analysis, so a pair whose
// contact is merely filtered out this cycle is left untouched.
func (e *Engine) Match(set1, set2 []contacts.Contact, led *ledger.Ledger) *Outcome {
	o := &Outcome{
		assigned1: make(map[string]bool),
		assigned2: make(map[string]bool),
	}

	by1 := make(map[string]*contacts.Contact, len(set1))
	by2 := make(map[string]*contacts.Contact, len(set2))
	for i := range set1 {
		c := &set1[i]
		by1[c.Resource] = c
		e.log.Keying(accounts.Account1.String(), c.Resource, c.Name(), c.MatchKeys())
	}
	for i := range set2 {
		c := &set2[i]
		by2[c.Resource] = c
		e.log.Keying(accounts.Account2.String(), c.Resource, c.Name(), c.MatchKeys())
	}

	// Ledger fast path: previously confirmed pairs are matched without
	// rescoring. Any contact referenced by a ledger entry stays out of the
	// candidate pools — either its pair is re-confirmed here, or it is held
	// for the planner's deletion analysis.
	inLedger1 := make(map[string]bool)
	inLedger2 := make(map[string]bool)
	for _, entry := range led.Entries() {
		inLedger1[entry.Account1ID] = true
		inLedger2[entry.Account2ID] = true

		a, okA := by1[entry.Account1ID]
		b, okB := by2[entry.Account2ID]
		if okA && okB {
			pair := Pair{A: a, B: b, Score: 1.0, Class: ClassMatched, Tier: TierLedger,
				Reason: "confirmed in a previous cycle"}
			o.Matched = append(o.Matched, pair)
			o.assigned1[a.Resource] = true
			o.assigned2[b.Resource] = true
			e.log.Assignment(a.Resource, b.Resource, string(TierLedger), 1.0)
		}
	}

	for i := range set1 {
		if c := &set1[i]; !inLedger1[c.Resource] {
			o.pool1 = append(o.pool1, c)
		}
	}
	for i := range set2 {
		if c := &set2[i]; !inLedger2[c.Resource] {
			o.pool2 = append(o.pool2, c)
		}
	}

	candidates := e.score(e.block(o.pool1, o.pool2))

	// Stable greedy assignment: descending score, ties broken by resource
	// ids so runs are reproducible.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].A.Resource != candidates[j].A.Resource {
			return candidates[i].A.Resource < candidates[j].A.Resource
		}
		return candidates[i].B.Resource < candidates[j].B.Resource
	})

	for _, cand := range candidates {
		switch cand.Class {
		case ClassMatched:
			if o.assigned1[cand.A.Resource] || o.assigned2[cand.B.Resource] {
				continue
			}
			o.assigned1[cand.A.Resource] = true
			o.assigned2[cand.B.Resource] = true
			o.Matched = append(o.Matched, cand)
			e.log.Assignment(cand.A.Resource, cand.B.Resource, string(cand.Tier), cand.Score)
		case ClassUncertain:
			o.Uncertain = append(o.Uncertain, cand)
		}
	}

	// Drop uncertain pairs whose endpoints were consumed by a stronger match.
	pending := o.Uncertain[:0]
	for _, cand := range o.Uncertain {
		if !o.assigned1[cand.A.Resource] && !o.assigned2[cand.B.Resource] {
			pending = append(pending, cand)
		}
	}
	o.Uncertain = pending

	return o
}

// block buckets contacts by normalized email keys, phone keys, and name
// tokens; only pairs sharing at least one bucket are ever compared. This
// bounds candidate generation well below the n·m cross product.
func (e *Engine) block(pool1, pool2 []*contacts.Contact) []Pair {
	index2 := make(map[string][]*contacts.Contact)
	for _, c := range pool2 {
		for _, key := range blockingKeys(c) {
			index2[key] = append(index2[key], c)
		}
	}

	seen := make(map[string]bool)
	var pairs []Pair
	for _, a := range pool1 {
		for _, key := range blockingKeys(a) {
			for _, b := range index2[key] {
				id := a.Resource + "\x00" + b.Resource
				if seen[id] {
					continue
				}
				seen[id] = true
				pairs = append(pairs, Pair{A: a, B: b})
			}
		}
	}
	return pairs
}

// blockingKeys returns the bucket keys for a contact: every email and phone
// key, plus name tokens of three or more characters so that near-miss names
// with no shared identifier can still reach the uncertain band.
func blockingKeys(c *contacts.Contact) []string {
	var keys []string
	for _, k := range c.EmailKeys() {
		keys = append(keys, "e:"+k)
	}
	for _, k := range c.PhoneKeys() {
		keys = append(keys, "p:"+k)
	}
	for _, tok := range c.NameTokens() {
		if len(tok) >= 3 {
			keys = append(keys, "n:"+tok)
		}
	}
	if nk := c.NameKey(); nk != "" {
		keys = append(keys, "nk:"+nk)
	}
	return keys
}

// score computes each candidate's similarity and classification band.
func (e *Engine) score(pairs []Pair) []Pair {
	out := pairs[:0]
	for _, p := range pairs {
		scored := e.scorePair(p)
		e.log.Score(scored.A.Resource, scored.B.Resource, scored.Score, string(scored.Class), scored.Reason)
		if scored.Class == ClassUnmatched {
			continue
		}
		out = append(out, scored)
	}
	return out
}

func (e *Engine) scorePair(p Pair) Pair {
	emailShared := intersects(p.A.EmailKeys(), p.B.EmailKeys())
	phoneShared := intersects(p.A.PhoneKeys(), p.B.PhoneKeys())
	nameScore := tokenOverlap(p.A.NameTokens(), p.B.NameTokens())

	p.Score = nameScore
	if emailShared || phoneShared {
		p.Score = 1.0
	}

	switch {
	case emailShared:
		p.Class, p.Tier = ClassMatched, TierEmail
		p.Reason = fmt.Sprintf("shared email key (name %.2f)", nameScore)
	case phoneShared:
		p.Class, p.Tier = ClassMatched, TierPhone
		p.Reason = fmt.Sprintf("shared phone key (name %.2f)", nameScore)
	case nameScore >= e.cfg.NameOnly:
		p.Class, p.Tier = ClassMatched, TierNameOnly
		p.Reason = fmt.Sprintf("name similarity %.2f with no identifiers", nameScore)
	case nameScore >= e.cfg.Uncertain:
		p.Class = ClassUncertain
		p.Reason = fmt.Sprintf("name similarity %.2f, no shared identifiers", nameScore)
	default:
		p.Class = ClassUnmatched
		p.Reason = fmt.Sprintf("name similarity %.2f", nameScore)
	}
	return p
}

// ApplyArbiter folds arbiter decisions into the outcome, highest confidence
// first, still honoring 1:1 assignment. Pairs the arbiter did not positively
// confirm stay unmatched.
func (o *Outcome) ApplyArbiter(decisions []Decision, log *logging.MatchLog) {
	if log == nil {
		log = logging.NopMatchLog()
	}
	sorted := append([]Decision(nil), decisions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		if sorted[i].Pair.A.Resource != sorted[j].Pair.A.Resource {
			return sorted[i].Pair.A.Resource < sorted[j].Pair.A.Resource
		}
		return sorted[i].Pair.B.Resource < sorted[j].Pair.B.Resource
	})

	for _, d := range sorted {
		if d.Class != ClassMatched {
			continue
		}
		a, b := d.Pair.A, d.Pair.B
		if o.assigned1[a.Resource] || o.assigned2[b.Resource] {
			continue
		}
		o.assigned1[a.Resource] = true
		o.assigned2[b.Resource] = true
		pair := d.Pair
		pair.Class = ClassMatched
		pair.Tier = TierArbiter
		pair.Score = d.Confidence
		pair.Reason = d.Reasoning
		o.Matched = append(o.Matched, pair)
		log.Assignment(a.Resource, b.Resource, string(TierArbiter), d.Confidence)
	}
	o.Uncertain = nil
}

// Unmatched1 returns account1 contacts left without a partner.
func (o *Outcome) Unmatched1() []*contacts.Contact {
	return unassigned(o.pool1, o.assigned1)
}

// Unmatched2 returns account2 contacts left without a partner.
func (o *Outcome) Unmatched2() []*contacts.Contact {
	return unassigned(o.pool2, o.assigned2)
}

func unassigned(pool []*contacts.Contact, assigned map[string]bool) []*contacts.Contact {
	var out []*contacts.Contact
	for _, c := range pool {
		if !assigned[c.Resource] {
			out = append(out, c)
		}
	}
	return out
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, k := range a {
		set[k] = true
	}
	for _, k := range b {
		if set[k] {
			return true
		}
	}
	return false
}

// tokenOverlap is the Jaccard similarity of the two normalized name token
// sets. Equal names in any word order score 1.0.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	union := len(set)
	shared := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}
