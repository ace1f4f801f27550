package contacts

import (
	"sort"
	"strings"
)

// Field names a syncable contact field for field-scoped updates.
type Field string

// Syncable contact fields.
const (
	FieldDisplayName   Field = "display_name"
	FieldGivenName     Field = "given_name"
	FieldFamilyName    Field = "family_name"
	FieldEmails        Field = "emails"
	FieldPhones        Field = "phones"
	FieldOrganizations Field = "organizations"
	FieldNotes         Field = "notes"
)

// FieldChange represents a difference in a single field between the two
// sides of a matched pair. Old and New are string renderings for reporting;
// the planner copies the actual values from the winning contact.
type FieldChange struct {
	Field Field
	Old   string
	New   string
}

// Diff computes the field-level differences between two contacts. Each
// change reads from -> to: Old carries from's value, New carries to's.
// List fields are compared as sets (order-insensitive, phones in normalized
// form). An empty result means the pair is content identical and needs no
// operation.
func Diff(from, to *Contact) []FieldChange {
	var changes []FieldChange

	addString := func(f Field, a, b string) {
		if a != b {
			changes = append(changes, FieldChange{Field: f, Old: a, New: b})
		}
	}

	addString(FieldDisplayName, from.DisplayName, to.DisplayName)
	addString(FieldGivenName, from.GivenName, to.GivenName)
	addString(FieldFamilyName, from.FamilyName, to.FamilyName)
	addString(FieldNotes, from.Notes, to.Notes)

	if !sameSet(from.Emails, to.Emails) {
		changes = append(changes, FieldChange{
			Field: FieldEmails,
			Old:   strings.Join(from.Emails, ","),
			New:   strings.Join(to.Emails, ","),
		})
	}
	if !sameSet(normalizedPhones(from), normalizedPhones(to)) {
		changes = append(changes, FieldChange{
			Field: FieldPhones,
			Old:   strings.Join(from.Phones, ","),
			New:   strings.Join(to.Phones, ","),
		})
	}
	if !sameSet(from.Organizations, to.Organizations) {
		changes = append(changes, FieldChange{
			Field: FieldOrganizations,
			Old:   strings.Join(from.Organizations, ","),
			New:   strings.Join(to.Organizations, ","),
		})
	}

	return changes
}

// Fields extracts the field names from a set of changes.
func Fields(changes []FieldChange) []Field {
	fields := make([]Field, len(changes))
	for i, ch := range changes {
		fields[i] = ch.Field
	}
	return fields
}

func normalizedPhones(c *Contact) []string {
	return c.PhoneKeys()
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
