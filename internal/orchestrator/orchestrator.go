// Package orchestrator drives one sync cycle end to end: fetch, filter,
// match, arbitrate, plan, apply, persist. Fetching is fail-closed — if
// either account cannot be listed completely, the cycle aborts before any
// mutation.
package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/contactsync/internal/executor"
	"github.com/agentstation/contactsync/internal/ledger"
	"github.com/agentstation/contactsync/internal/match"
	"github.com/agentstation/contactsync/internal/planner"
	"github.com/agentstation/contactsync/pkg/accounts"
	"github.com/agentstation/contactsync/pkg/contacts"
	"github.com/agentstation/contactsync/pkg/groups"
	"github.com/agentstation/contactsync/pkg/logging"
	syncpkg "github.com/agentstation/contactsync/pkg/sync"
)

// Arbiter resolves uncertain pairs. A nil Arbiter leaves them unmatched.
type Arbiter interface {
	Resolve(ctx context.Context, pairs []match.Pair, mlog *logging.MatchLog) []match.Decision
}

// Options configures an Orchestrator.
type Options struct {
	Clients     map[accounts.ID]accounts.Client
	Groups      *groups.Config
	MatchConfig match.Config
	Arbiter     Arbiter // optional
	Executor    executor.Config
	Strategy    syncpkg.Strategy

	LedgerPath  string
	MatchLogDir string
	PageSize    int

	Logger zerolog.Logger
}

// Orchestrator runs sync cycles.
type Orchestrator struct {
	opts  Options
	stats syncpkg.Stats
	mu    sync.Mutex // serializes cycles and guards stats
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	return &Orchestrator{opts: opts}
}

// Stats returns cumulative statistics across cycles.
func (o *Orchestrator) Stats() syncpkg.Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

type fetched struct {
	account  accounts.ID
	contacts []contacts.Contact
	groups   []contacts.Group
	err      error
}

// RunCycle executes one sync cycle. Cycles never overlap; a second caller
// blocks until the first finishes.
func (o *Orchestrator) RunCycle(ctx context.Context, opts ...syncpkg.Option) (*syncpkg.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var cycleOpts syncpkg.Options
	cycleOpts.Apply(opts...)
	strategy := o.opts.Strategy
	if cycleOpts.Strategy != "" {
		strategy = cycleOpts.Strategy
	}

	cycleID := uuid.NewString()
	ctx = logging.WithLogger(ctx, &o.opts.Logger)
	ctx = logging.WithCycleID(ctx, cycleID)
	log := logging.Ctx(ctx)
	result := &syncpkg.Result{
		CycleID: cycleID,
		Started: time.Now().UTC(),
		DryRun:  cycleOpts.DryRun,
		Full:    cycleOpts.Full,
	}

	mlog := o.openMatchLog(ctx)
	defer mlog.Close()

	led := ledger.Load(o.opts.LedgerPath, log)
	log.Info().
		Bool("dry_run", cycleOpts.DryRun).
		Bool("full", cycleOpts.Full).
		Str("strategy", string(strategy)).
		Int("ledger_entries", led.Len()).
		Msg("cycle started")

	// Both accounts fetch concurrently; either failure aborts the cycle
	// before any mutation.
	results := make(chan fetched, 2)
	var wg sync.WaitGroup
	for _, account := range accounts.IDs() {
		wg.Add(1)
		go func(account accounts.ID) {
			defer wg.Done()
			results <- o.fetchAccount(ctx, account)
		}(account)
	}
	wg.Wait()
	close(results)

	byAccount := make(map[accounts.ID]fetched, 2)
	for f := range results {
		if f.err != nil {
			log.Error().Err(f.err).Str("account", f.account.String()).Msg("fetch failed; cycle aborted")
			return nil, f.err
		}
		byAccount[f.account] = f
	}

	f1 := byAccount[accounts.Account1]
	f2 := byAccount[accounts.Account2]
	raw1 := indexByResource(f1.contacts)
	raw2 := indexByResource(f2.contacts)

	set1 := o.filter(ctx, f1, accounts.Account1, result)
	set2 := o.filter(ctx, f2, accounts.Account2, result)
	log.Info().
		Int("account1_total", len(f1.contacts)).Int("account1_syncable", len(set1)).
		Int("account2_total", len(f2.contacts)).Int("account2_syncable", len(set2)).
		Msg("contacts fetched")

	engine := match.NewEngine(o.opts.MatchConfig, mlog)
	outcome := engine.Match(set1, set2, led)
	result.Uncertain = len(outcome.Uncertain)

	if len(outcome.Uncertain) > 0 && o.opts.Arbiter != nil {
		decisions := o.opts.Arbiter.Resolve(ctx, outcome.Uncertain, mlog)
		outcome.ApplyArbiter(decisions, mlog)
	} else {
		outcome.ApplyArbiter(nil, mlog)
	}
	result.Matched = len(outcome.Matched)

	plan, err := planner.New(*log).Plan(planner.Input{
		Outcome:  outcome,
		Ledger:   led,
		Config:   o.opts.Groups,
		Raw1:     raw1,
		Raw2:     raw2,
		Strategy: strategy,
		Full:     cycleOpts.Full,
	})
	if err != nil {
		return nil, err
	}
	result.Conflicts = plan.Conflicts
	result.Conflicted = len(plan.Conflicts)

	if cycleOpts.DryRun {
		result.Plan = plan.Plan
		result.Finished = time.Now().UTC()
		log.Info().Str("summary", result.Summary()).Msg("dry run complete")
		o.stats.Add(result)
		return result, nil
	}

	for _, entry := range plan.Confirm {
		entry.LastSyncedAt = result.Started
		led.Upsert(entry)
	}
	for _, entry := range plan.Stale {
		led.Remove(entry.Account1ID, entry.Account2ID)
	}

	exec := executor.New(o.opts.Clients, led, o.opts.Executor, *log, mlog)
	exec.Apply(ctx, plan.Plan, result)

	if err := led.Save(); err != nil {
		log.Error().Err(err).Msg("ledger save failed")
		return nil, err
	}

	result.Finished = time.Now().UTC()
	log.Info().Str("summary", result.Summary()).Msg("cycle complete")
	o.stats.Add(result)
	return result, nil
}

func (o *Orchestrator) openMatchLog(ctx context.Context) *logging.MatchLog {
	if o.opts.MatchLogDir == "" {
		return logging.NopMatchLog()
	}
	cycleID := logging.CycleID(ctx)
	path := filepath.Join(o.opts.MatchLogDir, cycleID+".jsonl")
	mlog, err := logging.OpenMatchLog(path, cycleID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("path", path).
			Msg("match log unavailable; auditing disabled for this cycle")
		return logging.NopMatchLog()
	}
	return mlog
}

// fetchAccount lists every contact page and the account's groups. Only
// syncable groups are kept; system and tombstoned groups never scope a
// cycle.
func (o *Orchestrator) fetchAccount(ctx context.Context, account accounts.ID) fetched {
	ctx = logging.WithAccount(ctx, account.String())
	f := fetched{account: account}
	client := o.opts.Clients[account]

	pageToken := ""
	pages := 0
	for {
		page, err := client.ListContacts(ctx, pageToken, o.opts.PageSize)
		if err != nil {
			f.err = err
			return f
		}
		f.contacts = append(f.contacts, page.Contacts...)
		pages++
		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	groupList, err := client.ListGroups(ctx)
	if err != nil {
		f.err = err
		return f
	}
	for _, g := range groupList {
		if g.IsSyncable() {
			f.groups = append(f.groups, g)
		}
	}
	logging.Ctx(ctx).Debug().
		Int("pages", pages).
		Int("contacts", len(f.contacts)).
		Int("groups", len(f.groups)).
		Msg("account listed")
	return f
}

// filter drops tombstones, invalid contacts, and contacts outside the
// configured groups.
func (o *Orchestrator) filter(ctx context.Context, f fetched, account accounts.ID, result *syncpkg.Result) []contacts.Contact {
	log := logging.Ctx(ctx)
	var filter *groups.Filter
	if o.opts.Groups != nil {
		if account == accounts.Account1 {
			filter = o.opts.Groups.Filter1()
		} else {
			filter = o.opts.Groups.Filter2()
		}
	} else {
		filter = groups.NewFilter(nil)
	}

	var out []contacts.Contact
	for i := range f.contacts {
		c := &f.contacts[i]
		if c.Deleted {
			continue
		}
		if !c.IsValid() {
			result.Skipped++
			log.Debug().Str("account", account.String()).Str("resource", c.Resource).
				Msg("skipping contact with neither name nor email")
			continue
		}
		if !filter.AdmitsContact(c, f.groups) {
			continue
		}
		out = append(out, *c)
	}
	return out
}

func indexByResource(list []contacts.Contact) map[string]*contacts.Contact {
	m := make(map[string]*contacts.Contact, len(list))
	for i := range list {
		c := &list[i]
		if c.Deleted {
			continue
		}
		m[c.Resource] = c
	}
	return m
}
