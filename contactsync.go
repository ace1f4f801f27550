// Package contactsync keeps the contact lists of two accounts converged.
// Each cycle fetches both accounts, links contacts across them without any
// shared key, resolves field conflicts under a configurable strategy, and
// applies the resulting changes idempotently through a persistent match
// ledger.
package contactsync

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/contactsync/internal/arbiter"
	"github.com/agentstation/contactsync/internal/config"
	"github.com/agentstation/contactsync/internal/executor"
	"github.com/agentstation/contactsync/internal/match"
	"github.com/agentstation/contactsync/internal/orchestrator"
	"github.com/agentstation/contactsync/internal/sources/people"
	"github.com/agentstation/contactsync/internal/transport"
	"github.com/agentstation/contactsync/pkg/accounts"
	"github.com/agentstation/contactsync/pkg/groups"
	"github.com/agentstation/contactsync/pkg/logging"
	"github.com/agentstation/contactsync/pkg/sync"
)

// Engine runs sync cycles between the two configured accounts.
type Engine interface {
	// Sync runs one cycle. Cycles never overlap.
	Sync(ctx context.Context, opts ...sync.Option) (*sync.Result, error)

	// Stats returns cumulative statistics across cycles.
	Stats() sync.Stats

	// Close releases persistent resources.
	Close() error
}

type engine struct {
	orch  *orchestrator.Orchestrator
	cache *arbiter.Cache
	log   zerolog.Logger
}

// New builds an Engine from configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (Engine, error) {
	e := &engine{log: *logging.Default()}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		e.log = *o.logger
	}

	groupCfg, err := groups.LoadConfig(cfg.GroupsConfigPath())
	if err != nil {
		return nil, err
	}
	if err := groupCfg.Validate(); err != nil {
		return nil, err
	}

	clients := o.clients
	if clients == nil {
		clients = map[accounts.ID]accounts.Client{
			accounts.Account1: people.NewClient(accounts.Account1, transport.EnvToken(cfg.Account1Token())),
			accounts.Account2: people.NewClient(accounts.Account2, transport.EnvToken(cfg.Account2Token())),
		}
	}

	arb := o.arbiter
	if arb == nil && cfg.Arbiter.Enabled {
		key := cfg.ArbiterAPIKey()
		if key == "" {
			e.log.Warn().Msg("arbiter enabled but no API key set; uncertain pairs will stay unmatched")
		} else {
			cache, err := arbiter.OpenCache(cfg.ArbiterCachePath())
			if err != nil {
				e.log.Warn().Err(err).Msg("decision cache unavailable; arbitrating without it")
			} else {
				e.cache = cache
			}
			classifier, err := arbiter.New(ctx, arbiter.Config{
				Model:           cfg.Arbiter.Model,
				APIKey:          key,
				MaxBatchPairs:   cfg.Arbiter.MaxBatchPairs,
				MaxPromptTokens: cfg.Arbiter.MaxPromptTokens,
				MaxOutputTokens: int32(cfg.Arbiter.MaxOutputTokens),
				Concurrency:     cfg.Arbiter.Concurrency,
				MaxRetries:      uint64(cfg.Arbiter.MaxRetries),
				RequestTimeout:  cfg.Arbiter.RequestTimeout,
			}, e.cache, e.log)
			if err != nil {
				return nil, err
			}
			arb = classifier
		}
	}

	e.orch = orchestrator.New(orchestrator.Options{
		Clients: clients,
		Groups:  groupCfg,
		MatchConfig: match.Config{
			NameSimilarity: cfg.Matching.NameSimilarityThreshold,
			NameOnly:       cfg.Matching.NameOnlyThreshold,
			Uncertain:      cfg.Matching.UncertainThreshold,
		},
		Arbiter: arb,
		Executor: executor.Config{
			BatchSize:    cfg.API.BatchSize,
			MaxRetries:   cfg.API.MaxRetries,
			InitialDelay: cfg.API.InitialDelay,
			MaxDelay:     cfg.API.MaxDelay,
		},
		Strategy:    cfg.Strategy(),
		LedgerPath:  cfg.LedgerPath(),
		MatchLogDir: cfg.MatchLogDir(),
		PageSize:    cfg.API.PageSize,
		Logger:      e.log,
	})
	return e, nil
}

func (e *engine) Sync(ctx context.Context, opts ...sync.Option) (*sync.Result, error) {
	return e.orch.RunCycle(ctx, opts...)
}

func (e *engine) Stats() sync.Stats {
	return e.orch.Stats()
}

func (e *engine) Close() error {
	return e.cache.Close()
}
