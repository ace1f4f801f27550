// Package config loads and validates engine configuration from a YAML file
// and environment variables. Validation is fail-fast: a cycle never starts
// on a config that cannot finish.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/agentstation/contactsync/pkg/errors"
	syncpkg "github.com/agentstation/contactsync/pkg/sync"
)

const appName = "contactsync"

// Config is the full engine configuration.
type Config struct {
	// Accounts holds the credential sources for both sides.
	Accounts AccountsConfig `mapstructure:"accounts"`

	// Matching holds the classification thresholds.
	Matching MatchingConfig `mapstructure:"matching"`

	// Arbiter configures the escalation service.
	Arbiter ArbiterConfig `mapstructure:"arbiter"`

	// API configures batching and retry against the account APIs.
	API APIConfig `mapstructure:"api"`

	// Paths locates the engine's on-disk state.
	Paths PathsConfig `mapstructure:"paths"`

	// ConflictStrategy resolves pairs modified on both sides. One of
	// "account1-wins", "account2-wins", "newest-wins", "manual".
	ConflictStrategy string `mapstructure:"conflict_strategy"`

	strategy syncpkg.Strategy
}

// AccountsConfig names the environment variables carrying each account's
// bearer token. Token acquisition and refresh live outside the engine.
type AccountsConfig struct {
	Account1TokenEnv string `mapstructure:"account1_token_env"`
	Account2TokenEnv string `mapstructure:"account2_token_env"`
}

// MatchingConfig holds classification thresholds, all in (0, 1].
type MatchingConfig struct {
	NameSimilarityThreshold float64 `mapstructure:"name_similarity_threshold"`
	NameOnlyThreshold       float64 `mapstructure:"name_only_threshold"`
	UncertainThreshold      float64 `mapstructure:"uncertain_threshold"`
}

// ArbiterConfig configures the escalation service.
type ArbiterConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Model           string        `mapstructure:"model"`
	APIKeyEnv       string        `mapstructure:"api_key_env"`
	MaxBatchPairs   int           `mapstructure:"max_batch_pairs"`
	MaxPromptTokens int           `mapstructure:"max_prompt_tokens"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Concurrency     int           `mapstructure:"concurrency"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// APIConfig configures account API paging, batching, and retries.
type APIConfig struct {
	PageSize     int           `mapstructure:"page_size"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_retry_delay"`
	MaxDelay     time.Duration `mapstructure:"max_retry_delay"`
}

// PathsConfig locates persistent state. Empty values fall back to XDG
// locations under the app's directory.
type PathsConfig struct {
	Ledger       string `mapstructure:"ledger"`
	ArbiterCache string `mapstructure:"arbiter_cache"`
	MatchLogDir  string `mapstructure:"match_log_dir"`
	GroupsConfig string `mapstructure:"groups_config"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("accounts.account1_token_env", "CONTACTSYNC_ACCOUNT1_TOKEN")
	v.SetDefault("accounts.account2_token_env", "CONTACTSYNC_ACCOUNT2_TOKEN")

	v.SetDefault("matching.name_similarity_threshold", 0.85)
	v.SetDefault("matching.name_only_threshold", 0.95)
	v.SetDefault("matching.uncertain_threshold", 0.70)

	v.SetDefault("arbiter.enabled", true)
	v.SetDefault("arbiter.model", "gemini-2.0-flash")
	v.SetDefault("arbiter.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("arbiter.max_batch_pairs", 20)
	v.SetDefault("arbiter.max_prompt_tokens", 6000)
	v.SetDefault("arbiter.max_output_tokens", 4096)
	v.SetDefault("arbiter.concurrency", 3)
	v.SetDefault("arbiter.max_retries", 3)
	v.SetDefault("arbiter.request_timeout", time.Minute)

	v.SetDefault("api.page_size", 100)
	v.SetDefault("api.batch_size", 50)
	v.SetDefault("api.max_retries", 5)
	v.SetDefault("api.initial_retry_delay", time.Second)
	v.SetDefault("api.max_retry_delay", time.Minute)

	v.SetDefault("conflict_strategy", "newest-wins")
}

// Load reads configuration from path, or from the default XDG location when
// path is empty. A missing file yields the defaults. Environment variables
// prefixed CONTACTSYNC_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "read "+path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, appName))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.NewConfigError("config", "read", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError("config", "unmarshal", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every setting a cycle depends on.
func (c *Config) Validate() error {
	strategy, err := syncpkg.ParseStrategy(c.ConflictStrategy)
	if err != nil {
		return err
	}
	c.strategy = strategy

	for name, v := range map[string]float64{
		"matching.name_similarity_threshold": c.Matching.NameSimilarityThreshold,
		"matching.name_only_threshold":       c.Matching.NameOnlyThreshold,
		"matching.uncertain_threshold":       c.Matching.UncertainThreshold,
	} {
		if v <= 0 || v > 1 {
			return errors.NewValidationError(name, v, "must be in (0, 1]")
		}
	}
	if c.Matching.UncertainThreshold > c.Matching.NameSimilarityThreshold {
		return errors.NewValidationError("matching.uncertain_threshold", c.Matching.UncertainThreshold,
			"must not exceed matching.name_similarity_threshold")
	}

	if c.API.PageSize <= 0 || c.API.PageSize > 1000 {
		return errors.NewValidationError("api.page_size", c.API.PageSize, "must be in [1, 1000]")
	}
	if c.API.BatchSize <= 0 || c.API.BatchSize > 200 {
		return errors.NewValidationError("api.batch_size", c.API.BatchSize, "must be in [1, 200]")
	}
	if c.API.MaxRetries < 0 {
		return errors.NewValidationError("api.max_retries", c.API.MaxRetries, "must not be negative")
	}
	if c.Arbiter.Enabled && c.Arbiter.Model == "" {
		return errors.NewValidationError("arbiter.model", "", "required when the arbiter is enabled")
	}
	return nil
}

// Strategy returns the parsed conflict strategy.
func (c *Config) Strategy() syncpkg.Strategy {
	return c.strategy
}

// ArbiterAPIKey reads the arbiter key from the configured environment
// variable.
func (c *Config) ArbiterAPIKey() string {
	return strings.TrimSpace(os.Getenv(c.Arbiter.APIKeyEnv))
}

// Account1Token and Account2Token read each account's bearer token
// environment variable name.
func (c *Config) Account1Token() string { return c.Accounts.Account1TokenEnv }

// Account2Token returns the env var name carrying account2's token.
func (c *Config) Account2Token() string { return c.Accounts.Account2TokenEnv }

// LedgerPath returns the configured or default ledger location.
func (c *Config) LedgerPath() string {
	if c.Paths.Ledger != "" {
		return c.Paths.Ledger
	}
	return filepath.Join(xdg.DataHome, appName, "ledger.json")
}

// ArbiterCachePath returns the configured or default decision cache
// location.
func (c *Config) ArbiterCachePath() string {
	if c.Paths.ArbiterCache != "" {
		return c.Paths.ArbiterCache
	}
	return filepath.Join(xdg.DataHome, appName, "arbiter.db")
}

// MatchLogDir returns the configured or default match log directory.
func (c *Config) MatchLogDir() string {
	if c.Paths.MatchLogDir != "" {
		return c.Paths.MatchLogDir
	}
	return filepath.Join(xdg.StateHome, appName, "matchlogs")
}

// GroupsConfigPath returns the configured or default group selection file.
func (c *Config) GroupsConfigPath() string {
	if c.Paths.GroupsConfig != "" {
		return c.Paths.GroupsConfig
	}
	return filepath.Join(xdg.ConfigHome, appName, "groups.yaml")
}
