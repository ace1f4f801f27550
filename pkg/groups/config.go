package groups

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/contactsync/pkg/contacts"
	"github.com/agentstation/contactsync/pkg/errors"
)

// ConfigVersion is the current group-filter configuration schema version.
const ConfigVersion = "v1"

// Config is the persisted per-account group-filter configuration.
//
// Example:
//
//	version: v1
//	account1:
//	  groups: ["Family", "contactGroups/3a7f21c20e2b8d9"]
//	account2:
//	  groups: ["Family"]
//	  default_group: "Synced"
type Config struct {
	Version  string        `yaml:"version"`
	Account1 AccountConfig `yaml:"account1"`
	Account2 AccountConfig `yaml:"account2"`
}

// AccountConfig is one account's filter settings.
type AccountConfig struct {
	// Groups lists the groups in scope; empty means no filtering.
	Groups []string `yaml:"groups"`

	// DefaultGroup, when set, names the group newly mirrored contacts are
	// created into on this account. It must itself pass the filter.
	DefaultGroup string `yaml:"default_group,omitempty"`
}

// LoadConfig reads a group-filter configuration file. A missing path yields
// the empty configuration (no filtering).
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return &Config{Version: ConfigVersion}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Version: ConfigVersion}, nil
		}
		return nil, errors.WrapIO("read", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfigError("groups", "invalid group filter file "+path, err)
	}
	if cfg.Version == "" {
		cfg.Version = ConfigVersion
	}
	return &cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Version != ConfigVersion {
		return errors.NewConfigError("groups", "unsupported group filter version "+c.Version, nil)
	}
	for _, acct := range []AccountConfig{c.Account1, c.Account2} {
		for _, entry := range acct.Groups {
			if contacts.IsSystemGroupResource(entry) {
				return errors.NewConfigError("groups",
					"system group "+entry+" cannot be a sync filter target", nil)
			}
		}
		if acct.DefaultGroup == "" || len(acct.Groups) == 0 {
			continue
		}
		if !NewFilter(acct.Groups).ShouldSync(acct.DefaultGroup) {
			return errors.NewConfigError("groups",
				"default_group "+acct.DefaultGroup+" is excluded by the account's own filter", nil)
		}
	}
	return nil
}

// Filter1 returns the filter for account1.
func (c *Config) Filter1() *Filter {
	return NewFilter(c.Account1.Groups)
}

// Filter2 returns the filter for account2.
func (c *Config) Filter2() *Filter {
	return NewFilter(c.Account2.Groups)
}
