// Package match links contacts across the two accounts. It classifies
// candidate pairs as matched, uncertain, or unmatched using normalized keys,
// a blocking index to bound comparisons, and stable greedy 1:1 assignment.
package match

import (
	"github.com/agentstation/contactsync/pkg/contacts"
)

// Class is a candidate pair's classification.
type Class string

const (
	// ClassMatched marks a pair confirmed as the same logical contact.
	ClassMatched Class = "matched"
	// ClassUncertain marks a pair needing arbiter review.
	ClassUncertain Class = "uncertain"
	// ClassUnmatched marks a pair ruled out.
	ClassUnmatched Class = "unmatched"
)

// Tier records how a match was made, for the audit log.
type Tier string

const (
	// TierLedger marks pairs confirmed in a previous cycle.
	TierLedger Tier = "ledger"
	// TierEmail marks pairs sharing a normalized email key.
	TierEmail Tier = "exact_email"
	// TierPhone marks pairs sharing a normalized phone key.
	TierPhone Tier = "exact_phone"
	// TierNameOnly marks pairs matched on name similarity alone.
	TierNameOnly Tier = "name_only"
	// TierArbiter marks pairs confirmed by the external arbiter.
	TierArbiter Tier = "arbiter"
)

// Pair is an unordered candidate pair with its similarity score and
// classification. A is always the account1 side, B the account2 side.
type Pair struct {
	A      *contacts.Contact
	B      *contacts.Contact
	Score  float64
	Class  Class
	Tier   Tier
	Reason string
}

// Decision is the arbiter's verdict on an uncertain pair.
type Decision struct {
	Pair       Pair
	Class      Class
	Confidence float64
	Reasoning  string
}
