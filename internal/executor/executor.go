// Package executor applies a sync plan against the account APIs. The two
// accounts proceed concurrently; within an account, batches are strictly
// serialized so version tokens stay coherent. Every applied item commits its
// ledger entry immediately, so an interrupted cycle never loses confirmed
// work.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/agentstation/contactsync/internal/ledger"
	"github.com/agentstation/contactsync/pkg/accounts"
	"github.com/agentstation/contactsync/pkg/contacts"
	"github.com/agentstation/contactsync/pkg/errors"
	"github.com/agentstation/contactsync/pkg/logging"
	syncpkg "github.com/agentstation/contactsync/pkg/sync"
)

// Config controls batching and retry behavior.
type Config struct {
	BatchSize    int           // items per batch API call
	MaxRetries   int           // retries per item on transient failure
	InitialDelay time.Duration // first backoff delay
	MaxDelay     time.Duration // backoff cap
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:    50,
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Executor applies plans.
type Executor struct {
	clients map[accounts.ID]accounts.Client
	led     *ledger.Ledger
	cfg     Config
	log     zerolog.Logger
	mlog    *logging.MatchLog
}

// New creates an executor. A nil match log discards audit events.
func New(clients map[accounts.ID]accounts.Client, led *ledger.Ledger, cfg Config, log zerolog.Logger, mlog *logging.MatchLog) *Executor {
	if mlog == nil {
		mlog = logging.NopMatchLog()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig().InitialDelay
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	return &Executor{clients: clients, led: led, cfg: cfg, log: log, mlog: mlog}
}

// Apply executes the plan, accumulating counters and failures into result.
// Cancellation is honored between batches: in-flight batches finish and
// commit, remaining operations are counted as skipped.
func (e *Executor) Apply(ctx context.Context, plan *syncpkg.Plan, result *syncpkg.Result) {
	ctx = logging.WithLogger(ctx, &e.log)

	var wg sync.WaitGroup
	var mu sync.Mutex // guards result

	for _, account := range accounts.IDs() {
		ops := plan.Operations(account)
		if len(ops) == 0 {
			continue
		}
		wg.Add(1)
		go func(account accounts.ID, ops []syncpkg.Operation) {
			defer wg.Done()
			e.applyAccount(ctx, account, ops, result, &mu)
		}(account, ops)
	}
	wg.Wait()
}

func (e *Executor) applyAccount(ctx context.Context, account accounts.ID, ops []syncpkg.Operation, result *syncpkg.Result, mu *sync.Mutex) {
	client := e.clients[account]
	ctx = logging.WithAccount(ctx, account.String())
	log := logging.Ctx(ctx)

	for start := 0; start < len(ops); start += e.cfg.BatchSize {
		if ctx.Err() != nil {
			mu.Lock()
			result.Skipped += len(ops) - start
			mu.Unlock()
			log.Warn().Int("skipped", len(ops)-start).Msg("cycle canceled; remaining operations skipped")
			return
		}

		end := start + e.cfg.BatchSize
		if end > len(ops) {
			end = len(ops)
		}
		batch := ops[start:end]

		// Operations returns creates, then updates, then deletes, so a
		// batch can straddle a kind boundary.
		for _, group := range splitByKind(batch) {
			e.applyGroup(ctx, client, account, group, result, mu)
		}
	}
}

func splitByKind(ops []syncpkg.Operation) [][]syncpkg.Operation {
	var groups [][]syncpkg.Operation
	for i := 0; i < len(ops); {
		j := i
		for j < len(ops) && ops[j].Kind == ops[i].Kind {
			j++
		}
		groups = append(groups, ops[i:j])
		i = j
	}
	return groups
}

// applyGroup applies one same-kind group, retrying transient per-item
// failures with exponential backoff until the retry budget runs out.
func (e *Executor) applyGroup(ctx context.Context, client accounts.Client, account accounts.ID, ops []syncpkg.Operation, result *syncpkg.Result, mu *sync.Mutex) {
	ctx = logging.WithOperation(ctx, string(ops[0].Kind))
	log := logging.Ctx(ctx)

	pending := ops
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.InitialDelay
	bo.MaxInterval = e.cfg.MaxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()

	for attempt := 0; ; attempt++ {
		var retry []syncpkg.Operation
		results, callErr := e.call(ctx, client, pending)

		for i, op := range pending {
			var itemErr error
			var applied *accounts.BatchResult
			if callErr != nil {
				itemErr = callErr
			} else {
				r := results[i]
				itemErr = r.Err
				applied = &r
			}

			if itemErr == nil {
				e.commit(op, applied)
				mu.Lock()
				bump(result, op.Kind)
				mu.Unlock()
				e.mlog.Operation(account.String(), string(op.Kind), op.Resource, nil)
				continue
			}

			if errors.IsTransient(itemErr) && attempt < e.cfg.MaxRetries && ctx.Err() == nil {
				retry = append(retry, op)
				continue
			}

			opErr := &errors.OperationError{
				Account:  account.String(),
				Kind:     string(op.Kind),
				Resource: op.Resource,
				Err:      itemErr,
			}
			mu.Lock()
			result.Failures = append(result.Failures, syncpkg.Failure{Op: op, Err: opErr})
			mu.Unlock()
			e.mlog.Operation(account.String(), string(op.Kind), op.Resource, itemErr)
			log.Error().Err(itemErr).Str("resource", op.Resource).Msg("operation failed")
		}

		if len(retry) == 0 {
			return
		}
		pending = retry

		delay := bo.NextBackOff()
		log.Warn().
			Int("retrying", len(retry)).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("transient failures; backing off before retry")
		select {
		case <-ctx.Done():
			// The next iteration fails the retries permanently via the
			// attempt guard on ctx.Err.
		case <-time.After(delay):
		}
	}
}

// call issues one batch API call for a same-kind group.
func (e *Executor) call(ctx context.Context, client accounts.Client, ops []syncpkg.Operation) ([]accounts.BatchResult, error) {
	switch ops[0].Kind {
	case syncpkg.OpCreate:
		create := make([]contacts.Contact, len(ops))
		for i, op := range ops {
			create[i] = *op.Contact
		}
		return client.BatchCreate(ctx, create)
	case syncpkg.OpUpdate:
		updates := make([]accounts.Update, len(ops))
		for i, op := range ops {
			updates[i] = accounts.Update{
				Resource: op.Resource,
				Etag:     op.Etag,
				Contact:  *op.Contact,
				Fields:   changedFields(op),
			}
		}
		return client.BatchUpdate(ctx, updates)
	default:
		resources := make([]string, len(ops))
		for i, op := range ops {
			resources[i] = op.Resource
		}
		return client.BatchDelete(ctx, resources)
	}
}

func changedFields(op syncpkg.Operation) []contacts.Field {
	fields := make([]contacts.Field, len(op.Changes))
	for i, ch := range op.Changes {
		fields[i] = ch.Field
	}
	return fields
}

// commit records the ledger effect of one applied operation. Entries are
// written per item, not per batch.
func (e *Executor) commit(op syncpkg.Operation, applied *accounts.BatchResult) {
	now := time.Now().UTC()
	switch op.Kind {
	case syncpkg.OpCreate:
		created := op.Resource
		if applied != nil && applied.Contact != nil {
			created = applied.Contact.Resource
		} else if applied != nil && applied.Resource != "" {
			created = applied.Resource
		}
		entry := ledger.Entry{Fingerprint: op.SourceFingerprint, LastSyncedAt: now}
		if op.Account == accounts.Account1 {
			entry.Account1ID, entry.Account2ID = created, op.Source
		} else {
			entry.Account1ID, entry.Account2ID = op.Source, created
		}
		e.led.Upsert(entry)
	case syncpkg.OpUpdate:
		entry := ledger.Entry{Fingerprint: op.SourceFingerprint, LastSyncedAt: now}
		if op.Account == accounts.Account1 {
			entry.Account1ID, entry.Account2ID = op.Resource, op.Source
		} else {
			entry.Account1ID, entry.Account2ID = op.Source, op.Resource
		}
		e.led.Upsert(entry)
	case syncpkg.OpDelete:
		if op.Account == accounts.Account1 {
			e.led.Remove(op.Resource, op.Source)
		} else {
			e.led.Remove(op.Source, op.Resource)
		}
	}
}

func bump(result *syncpkg.Result, kind syncpkg.OpKind) {
	switch kind {
	case syncpkg.OpCreate:
		result.Created++
	case syncpkg.OpUpdate:
		result.Updated++
	case syncpkg.OpDelete:
		result.Deleted++
	}
}
