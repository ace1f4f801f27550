// Package planner turns a match outcome into an ordered change plan:
// updates that converge matched pairs under the configured conflict
// strategy, creates that mirror unmatched contacts, and, in full mode,
// deletes that propagate removals recorded in the ledger.
package planner

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/contactsync/internal/ledger"
	"github.com/agentstation/contactsync/internal/match"
	"github.com/agentstation/contactsync/pkg/accounts"
	"github.com/agentstation/contactsync/pkg/contacts"
	"github.com/agentstation/contactsync/pkg/groups"
	syncpkg "github.com/agentstation/contactsync/pkg/sync"
)

// Input carries everything the planner needs for one cycle.
type Input struct {
	Outcome *match.Outcome
	Ledger  *ledger.Ledger
	Config  *groups.Config

	// Raw1 and Raw2 index every contact fetched this cycle by resource id,
	// before group filtering. Deletion analysis must see the unfiltered
	// sets: a contact that merely left a synced group has not been deleted.
	Raw1, Raw2 map[string]*contacts.Contact

	Strategy syncpkg.Strategy
	Full     bool
}

// Output is the planner's result for one cycle.
type Output struct {
	Plan      *syncpkg.Plan
	Conflicts []syncpkg.Conflict

	// Confirm holds pairs matched this cycle whose contents already agree;
	// they need a ledger entry but no remote operation.
	Confirm []ledger.Entry

	// Stale holds ledger entries whose contacts are gone from both
	// accounts; full mode retires them without any remote operation.
	Stale []ledger.Entry
}

// Planner builds change plans.
type Planner struct {
	log zerolog.Logger
}

// New creates a planner.
func New(log zerolog.Logger) *Planner {
	return &Planner{log: log}
}

// Plan computes the cycle's operations. The returned plan holds at most one
// operation per (account, resource) and orders creates before updates
// before deletes.
func (p *Planner) Plan(in Input) (*Output, error) {
	out := &Output{Plan: syncpkg.NewPlan()}

	for _, pair := range in.Outcome.Matched {
		if err := p.planPair(in, out, pair); err != nil {
			return nil, err
		}
	}

	for _, c := range in.Outcome.Unmatched1() {
		if err := planCreate(in, out, accounts.Account2, c); err != nil {
			return nil, err
		}
	}
	for _, c := range in.Outcome.Unmatched2() {
		if err := planCreate(in, out, accounts.Account1, c); err != nil {
			return nil, err
		}
	}

	if in.Full {
		if err := p.planDeletes(in, out); err != nil {
			return nil, err
		}
	}

	p.log.Debug().
		Int("operations", out.Plan.Size()).
		Int("conflicts", len(out.Conflicts)).
		Int("confirmations", len(out.Confirm)).
		Int("stale_entries", len(out.Stale)).
		Msg("plan built")
	return out, nil
}

// planPair converges one matched pair. With a ledger baseline, a change on
// one side propagates to the other; divergence on both sides is a conflict
// resolved by strategy. A pair matched for the first time has no baseline,
// so any difference is treated as a conflict.
func (p *Planner) planPair(in Input, out *Output, pair match.Pair) error {
	a, b := pair.A, pair.B
	fp1, fp2 := a.Fingerprint(), b.Fingerprint()

	entry, hasEntry := in.Ledger.Get1(a.Resource)
	if hasEntry && entry.Account2ID != b.Resource {
		hasEntry = false
	}

	if hasEntry {
		changed1 := fp1 != entry.Fingerprint
		changed2 := fp2 != entry.Fingerprint
		switch {
		case !changed1 && !changed2:
			return nil
		case changed1 && !changed2:
			return planUpdate(out, a, b, accounts.Account2)
		case changed2 && !changed1:
			return planUpdate(out, b, a, accounts.Account1)
		}
	}

	// Both sides diverged, or the pair is new. Identical content needs only
	// a ledger confirmation.
	if fp1 == fp2 {
		if !hasEntry {
			out.Confirm = append(out.Confirm, ledger.Entry{
				Account1ID:  a.Resource,
				Account2ID:  b.Resource,
				Fingerprint: fp1,
			})
		}
		return nil
	}

	winner, loser, loserAccount := resolve(in.Strategy, a, b)
	if winner == nil {
		var fields []string
		for _, f := range contacts.Fields(contacts.Diff(a, b)) {
			fields = append(fields, string(f))
		}
		out.Conflicts = append(out.Conflicts, syncpkg.Conflict{
			Account1ID: a.Resource,
			Account2ID: b.Resource,
			Fields:     fields,
		})
		p.log.Info().
			Str("account1_id", a.Resource).
			Str("account2_id", b.Resource).
			Strs("fields", fields).
			Msg("conflict recorded for manual resolution")
		return nil
	}
	return planUpdate(out, winner, loser, loserAccount)
}

// resolve picks the surviving side under the strategy. A nil winner means
// the conflict is deferred to manual resolution.
func resolve(s syncpkg.Strategy, a, b *contacts.Contact) (winner, loser *contacts.Contact, loserAccount accounts.ID) {
	switch s {
	case syncpkg.StrategyAccount1Wins:
		return a, b, accounts.Account2
	case syncpkg.StrategyAccount2Wins:
		return b, a, accounts.Account1
	case syncpkg.StrategyNewestWins:
		// Missing timestamps and exact ties fall back to account1.
		if b.LastModified.After(a.LastModified) {
			return b, a, accounts.Account1
		}
		return a, b, accounts.Account2
	default: // StrategyManual
		return nil, nil, ""
	}
}

// planUpdate writes the winner's content onto the loser, keeping the
// loser's identity fields.
func planUpdate(out *Output, winner, loser *contacts.Contact, loserAccount accounts.ID) error {
	changes := contacts.Diff(loser, winner)
	if len(changes) == 0 {
		return nil
	}
	merged := winner.Mirror()
	merged.Resource = loser.Resource
	merged.Etag = loser.Etag
	merged.Groups = append([]string(nil), loser.Groups...)

	return out.Plan.Add(syncpkg.Operation{
		Kind:              syncpkg.OpUpdate,
		Account:           loserAccount,
		Resource:          loser.Resource,
		Etag:              loser.Etag,
		Contact:           &merged,
		Changes:           changes,
		Source:            winner.Resource,
		SourceFingerprint: winner.Fingerprint(),
	})
}

// planCreate mirrors an unmatched contact into the target account,
// assigning the target's default group when one is configured and admitted
// by its own filter.
func planCreate(in Input, out *Output, target accounts.ID, src *contacts.Contact) error {
	mirror := src.Mirror()
	if in.Config != nil {
		var ac groups.AccountConfig
		var filter *groups.Filter
		if target == accounts.Account1 {
			ac, filter = in.Config.Account1, in.Config.Filter1()
		} else {
			ac, filter = in.Config.Account2, in.Config.Filter2()
		}
		if ac.DefaultGroup != "" && filter.ShouldSync(ac.DefaultGroup) {
			mirror.Groups = []string{ac.DefaultGroup}
		}
	}

	return out.Plan.Add(syncpkg.Operation{
		Kind:              syncpkg.OpCreate,
		Account:           target,
		Contact:           &mirror,
		Source:            src.Resource,
		SourceFingerprint: src.Fingerprint(),
	})
}

// planDeletes propagates removals. A ledger entry whose contact is absent
// from one account's unfiltered fetch means the user deleted it there; the
// counterpart is deleted in turn. Entries gone from both sides are retired
// without remote work.
func (p *Planner) planDeletes(in Input, out *Output) error {
	for _, entry := range in.Ledger.Entries() {
		c1, ok1 := in.Raw1[entry.Account1ID]
		c2, ok2 := in.Raw2[entry.Account2ID]
		switch {
		case ok1 && ok2:
			continue
		case !ok1 && !ok2:
			out.Stale = append(out.Stale, entry)
		case ok1:
			if err := planDelete(out, accounts.Account1, c1, entry.Account2ID); err != nil {
				return err
			}
		default:
			if err := planDelete(out, accounts.Account2, c2, entry.Account1ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func planDelete(out *Output, account accounts.ID, target *contacts.Contact, removedID string) error {
	return out.Plan.Add(syncpkg.Operation{
		Kind:     syncpkg.OpDelete,
		Account:  account,
		Resource: target.Resource,
		Etag:     target.Etag,
		Source:   removedID,
	})
}
