// Package groups decides per-account sync scope from group configuration.
// A filter lists the groups a user wants synced for one account; contacts
// outside those groups never enter a cycle for that account.
package groups

import (
	"strings"

	"github.com/agentstation/contactsync/pkg/contacts"
)

// Filter scopes one account's contacts to a configured set of groups.
// The zero value (no entries) syncs everything.
type Filter struct {
	entries []string
}

// NewFilter creates a filter from configured group entries. Entries may be
// group resource names or display names.
func NewFilter(entries []string) *Filter {
	return &Filter{entries: entries}
}

// IsEmpty reports whether the filter passes everything.
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.entries) == 0
}

// ShouldSync reports whether a group identifier is in scope. An empty
// filter admits everything. Otherwise the identifier must exactly equal a
// configured entry (resource-name match) or equal one case-insensitively
// (display-name match).
func (f *Filter) ShouldSync(identifier string) bool {
	if f.IsEmpty() {
		return true
	}
	for _, entry := range f.entries {
		if identifier == entry || strings.EqualFold(identifier, entry) {
			return true
		}
	}
	return false
}

// AdmitsContact reports whether a contact is in scope: an empty filter
// admits every contact; otherwise at least one of the contact's group
// memberships must pass, checked by resource name and, when the account's
// groups are known, by display name. System group memberships never
// satisfy a filter, even when the filter names one.
func (f *Filter) AdmitsContact(c *contacts.Contact, accountGroups []contacts.Group) bool {
	if f.IsEmpty() {
		return true
	}
	byResource := make(map[string]contacts.Group, len(accountGroups))
	for _, g := range accountGroups {
		byResource[g.Resource] = g
	}
	for _, membership := range c.Groups {
		if g, known := byResource[membership]; known {
			if !g.IsSyncable() {
				continue
			}
			if f.ShouldSync(membership) || f.ShouldSync(g.Name) {
				return true
			}
			continue
		}
		if contacts.IsSystemGroupResource(membership) {
			continue
		}
		if f.ShouldSync(membership) {
			return true
		}
	}
	return false
}
