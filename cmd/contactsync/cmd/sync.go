package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/contactsync"
	"github.com/agentstation/contactsync/pkg/accounts"
	"github.com/agentstation/contactsync/pkg/contacts"
	"github.com/agentstation/contactsync/pkg/logging"
	"github.com/agentstation/contactsync/pkg/sync"
)

var (
	dryRun   bool
	full     bool
	strategy string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization cycle",
	Long: `Sync runs a single cycle: fetch both accounts, match contacts,
resolve conflicts, and apply the changes.

With --dry-run the plan is computed and printed but nothing is modified.
With --full, deletions recorded in the match ledger are propagated; the
default mode never deletes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		engine, err := contactsync.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer engine.Close()

		var opts []sync.Option
		if dryRun {
			opts = append(opts, sync.WithDryRun())
		}
		if full {
			opts = append(opts, sync.WithFull())
		}
		if strategy != "" {
			s, err := sync.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			logging.Info().Str("strategy", string(s)).Msg("conflict strategy overridden")
			opts = append(opts, sync.WithStrategy(s))
		}

		result, err := engine.Sync(ctx, opts...)
		if err != nil {
			return err
		}

		printResult(cmd, result)
		if !result.Success() {
			return fmt.Errorf("%d operations failed", len(result.Failures))
		}
		return nil
	},
}

func printResult(cmd *cobra.Command, r *sync.Result) {
	cmd.Printf("cycle %s: %s\n", r.CycleID, r.Summary())

	if r.DryRun && r.Plan != nil {
		for _, account := range accounts.IDs() {
			for _, op := range r.Plan.Operations(account) {
				switch op.Kind {
				case sync.OpCreate:
					cmd.Printf("would create on %s: %q (from %s %s)\n", account, op.Contact.Name(), account.Other(), op.Source)
				case sync.OpUpdate:
					cmd.Printf("would update %s on %s: %v\n", op.Resource, account, contacts.Fields(op.Changes))
				case sync.OpDelete:
					cmd.Printf("would delete %s on %s\n", op.Resource, account)
				}
			}
		}
	}
	if len(r.Conflicts) > 0 {
		logging.Warn().Int("conflicts", len(r.Conflicts)).Msg("manual resolution required")
	}
	for _, c := range r.Conflicts {
		cmd.Printf("conflict: %s <-> %s (%v) left for manual resolution\n",
			c.Account1ID, c.Account2ID, c.Fields)
	}
	for _, f := range r.Failures {
		cmd.Printf("failed: %s %s on %s: %v\n", f.Op.Kind, f.Op.Resource, f.Op.Account, f.Err)
		logging.Error().Err(f.Err).
			Str("kind", string(f.Op.Kind)).
			Str("account", f.Op.Account.String()).
			Str("resource", f.Op.Resource).
			Msg("operation failed")
	}
}

func init() {
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute and print the plan without applying it")
	syncCmd.Flags().BoolVar(&full, "full", false, "propagate deletions recorded in the ledger")
	syncCmd.Flags().StringVar(&strategy, "strategy", "", "conflict strategy override (account1-wins, account2-wins, newest-wins, manual)")
	rootCmd.AddCommand(syncCmd)
}
