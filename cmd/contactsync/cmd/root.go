package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/contactsync/internal/config"
	"github.com/agentstation/contactsync/pkg/logging"
)

var (
	configFile string
	verbose    bool

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "contactsync",
	Short: "Bidirectional contact synchronization between two accounts",
	Long: `Contactsync keeps the contact lists of two accounts converged.

Each cycle fetches both accounts, links contacts across them using
normalized emails, phone numbers, and names, resolves conflicting edits
under a configurable strategy, and applies the resulting changes through
a persistent match ledger so repeated runs are idempotent.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Best effort: a .env is a convenience, not a requirement.
		_ = godotenv.Load()

		// The package default logger is built before the .env and flags
		// are seen; rebuild it with them applied.
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		logger := logging.NewConsole()
		if os.Getenv("LOG_FORMAT") == "json" {
			logger = logging.NewJSON(os.Stderr)
		}
		logging.SetDefault(logger)
		logging.Debug().Bool("verbose", verbose).Msg("logger configured")
	},
}

// Execute runs the CLI with signal-aware cancellation.
func Execute(version, commit, date string) {
	Version, Commit, Date = version, commit, date

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
