package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/contactsync/internal/ledger"
	"github.com/agentstation/contactsync/pkg/logging"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		led := ledger.Load(cfg.LedgerPath(), logging.Default())
		cmd.Printf("ledger:            %s (%d linked pairs)\n", cfg.LedgerPath(), led.Len())
		cmd.Printf("conflict strategy: %s\n", cfg.ConflictStrategy)
		cmd.Printf("groups config:     %s\n", cfg.GroupsConfigPath())
		cmd.Printf("match logs:        %s\n", cfg.MatchLogDir())
		if cfg.Arbiter.Enabled {
			cmd.Printf("arbiter:           %s (cache %s)\n", cfg.Arbiter.Model, cfg.ArbiterCachePath())
		} else {
			cmd.Println("arbiter:           disabled")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
