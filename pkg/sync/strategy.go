// Package sync defines the public surface of a sync cycle: the conflict
// strategy, the operation plan produced by the planner, the options accepted
// by the orchestrator, and the result reported back to the caller.
package sync

import (
	"github.com/agentstation/contactsync/pkg/errors"
)

// Strategy is the conflict-resolution policy applied to matched pairs whose
// content differs. The string-keyed configuration value is mapped to a
// Strategy once at load time; the planner dispatches on the typed value.
type Strategy string

const (
	// StrategyAccount1Wins copies every differing field from account1 to account2.
	StrategyAccount1Wins Strategy = "account1-wins"

	// StrategyAccount2Wins copies every differing field from account2 to account1.
	StrategyAccount2Wins Strategy = "account2-wins"

	// StrategyNewestWins copies from the side with the newer last-modified
	// timestamp; exact ties fall back to account1.
	StrategyNewestWins Strategy = "newest-wins"

	// StrategyManual emits no operation and reports the pair as a conflict
	// for user review.
	StrategyManual Strategy = "manual"
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	return string(s)
}

// ParseStrategy maps a configuration string to a Strategy, accepting the
// canonical hyphenated names and their underscore variants.
func ParseStrategy(value string) (Strategy, error) {
	switch value {
	case "account1-wins", "account1_wins":
		return StrategyAccount1Wins, nil
	case "account2-wins", "account2_wins":
		return StrategyAccount2Wins, nil
	case "newest-wins", "newest_wins", "last-modified-wins", "last_modified_wins":
		return StrategyNewestWins, nil
	case "manual":
		return StrategyManual, nil
	}
	return "", errors.NewValidationError("strategy", value, "unknown conflict strategy")
}
