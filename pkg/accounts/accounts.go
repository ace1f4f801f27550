// Package accounts defines the contract the sync engine consumes from each
// account's contacts API. The engine never talks HTTP directly; it sees two
// Client implementations, one per account, and treats them symmetrically.
package accounts

import (
	"context"

	"github.com/agentstation/contactsync/pkg/contacts"
)

// ID identifies one of the two synchronized accounts.
type ID string

const (
	// Account1 is the first synchronized account.
	Account1 ID = "account1"
	// Account2 is the second synchronized account.
	Account2 ID = "account2"
)

// String returns the string representation of the account ID.
func (id ID) String() string {
	return string(id)
}

// Other returns the opposite account.
func (id ID) Other() ID {
	if id == Account1 {
		return Account2
	}
	return Account1
}

// IDs returns both account IDs in canonical order.
func IDs() []ID {
	return []ID{Account1, Account2}
}

// Page is one page of a paginated contact listing.
type Page struct {
	Contacts      []contacts.Contact
	NextPageToken string
}

// Update describes a field-scoped update to an existing contact. Fields
// names the contact fields to overwrite from Contact; everything else is
// left untouched on the remote side.
type Update struct {
	Resource string
	Etag     string
	Contact  contacts.Contact
	Fields   []contacts.Field
}

// BatchResult is the per-item outcome of a batch call. Exactly one of
// Contact or Err is meaningful: Contact carries the created/updated resource
// (with its server-assigned identifier and version token), Err the per-item
// failure.
type BatchResult struct {
	Index    int
	Resource string
	Contact  *contacts.Contact
	Err      error
}

// Client is the per-account contacts API consumed by the engine.
// Implementations must return per-item results for batch calls: a batch may
// partially succeed, and the engine commits ledger state item by item.
type Client interface {
	// ListContacts returns one page of contacts. An empty pageToken
	// requests the first page; an empty NextPageToken ends pagination.
	ListContacts(ctx context.Context, pageToken string, pageSize int) (*Page, error)

	// ListGroups returns the account's contact groups.
	ListGroups(ctx context.Context) ([]contacts.Group, error)

	// BatchCreate creates the given contacts, returning one result per input
	// in input order.
	BatchCreate(ctx context.Context, create []contacts.Contact) ([]BatchResult, error)

	// BatchUpdate applies field-scoped updates, returning one result per
	// input in input order.
	BatchUpdate(ctx context.Context, updates []Update) ([]BatchResult, error)

	// BatchDelete deletes the given resources, returning one result per
	// input in input order.
	BatchDelete(ctx context.Context, resources []string) ([]BatchResult, error)
}
