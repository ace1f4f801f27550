// Package contacts holds the normalized contact and group models shared by
// both accounts, plus the derived matching keys, content fingerprints, and
// field diffs the reconciliation engine is built on.
package contacts

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/agentstation/contactsync/pkg/normalize"
)

// Contact is the normalized representation of one contact as held by one
// account. Resource and Etag are owned by the issuing account and are never
// carried across accounts; everything else is logical content.
type Contact struct {
	Resource string `json:"resource"`       // Account-opaque identifier (e.g. "people/c12345")
	Etag     string `json:"etag,omitempty"` // Version token required for updates

	DisplayName string `json:"display_name"`
	GivenName   string `json:"given_name,omitempty"`
	FamilyName  string `json:"family_name,omitempty"`

	Emails        []string `json:"emails,omitempty"`
	Phones        []string `json:"phones,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	Notes         string   `json:"notes,omitempty"`

	// Groups holds the contact's group memberships as group resource names.
	Groups []string `json:"groups,omitempty"`

	LastModified time.Time `json:"last_modified,omitzero"`
	Deleted      bool      `json:"deleted,omitempty"`
}

// Name returns the display name, falling back to given + family name.
func (c *Contact) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	parts := make([]string, 0, 2)
	if c.GivenName != "" {
		parts = append(parts, c.GivenName)
	}
	if c.FamilyName != "" {
		parts = append(parts, c.FamilyName)
	}
	return strings.Join(parts, " ")
}

// NameKey returns the word-order-insensitive name matching key.
func (c *Contact) NameKey() string {
	return normalize.Name(c.Name())
}

// NameTokens returns the normalized name split into tokens, used for the
// token-overlap similarity score and for blocking.
func (c *Contact) NameTokens() []string {
	key := normalize.String(c.Name(), normalize.Options{KeepSpaces: true})
	if key == "" {
		return nil
	}
	return strings.Split(key, " ")
}

// EmailKeys returns the normalized email matching keys, empties dropped.
func (c *Contact) EmailKeys() []string {
	keys := make([]string, 0, len(c.Emails))
	for _, e := range c.Emails {
		if k := normalize.Email(e); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// PhoneKeys returns the digits-only phone matching keys, empties dropped.
func (c *Contact) PhoneKeys() []string {
	keys := make([]string, 0, len(c.Phones))
	for _, p := range c.Phones {
		if k := normalize.Phone(p); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// MatchKeys returns every matching key for the contact, prefixed by kind.
// A contact with no email or phone identifiers gets a name key so it can
// still be blocked against exact-name counterparts.
func (c *Contact) MatchKeys() []string {
	var keys []string
	for _, k := range c.EmailKeys() {
		keys = append(keys, "email:"+k)
	}
	for _, k := range c.PhoneKeys() {
		keys = append(keys, "phone:"+k)
	}
	if len(keys) == 0 {
		keys = append(keys, "name:"+c.NameKey())
	}
	return keys
}

// Fingerprint returns a SHA-256 hash of the contact's logical content.
// Identifiers, version tokens, and timestamps are excluded; list fields are
// sorted first so ordering differences between accounts do not register as
// changes. Phone numbers are hashed in normalized form for the same reason.
func (c *Contact) Fingerprint() string {
	emails := append([]string(nil), c.Emails...)
	sort.Strings(emails)

	phones := make([]string, 0, len(c.Phones))
	for _, p := range c.Phones {
		phones = append(phones, normalize.Phone(p))
	}
	sort.Strings(phones)

	orgs := append([]string(nil), c.Organizations...)
	sort.Strings(orgs)

	var b strings.Builder
	b.WriteString("display_name:" + c.DisplayName + "\n")
	b.WriteString("given_name:" + c.GivenName + "\n")
	b.WriteString("family_name:" + c.FamilyName + "\n")
	b.WriteString("emails:" + strings.Join(emails, ",") + "\n")
	b.WriteString("phones:" + strings.Join(phones, ",") + "\n")
	b.WriteString("organizations:" + strings.Join(orgs, ",") + "\n")
	b.WriteString("notes:" + c.Notes)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// IsValid reports whether the contact carries enough information to be
// synced: at least a name or one email address.
func (c *Contact) IsValid() bool {
	return c.Name() != "" || len(c.Emails) > 0
}

// Mirror returns a copy of the contact suitable for creation on the other
// account: logical content only, with no identifier, version token, or
// group memberships carried over.
func (c *Contact) Mirror() Contact {
	return Contact{
		DisplayName:   c.DisplayName,
		GivenName:     c.GivenName,
		FamilyName:    c.FamilyName,
		Emails:        append([]string(nil), c.Emails...),
		Phones:        append([]string(nil), c.Phones...),
		Organizations: append([]string(nil), c.Organizations...),
		Notes:         c.Notes,
	}
}
