package contacts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	tests := []struct {
		name    string
		contact Contact
		want    string
	}{
		{"display name wins", Contact{DisplayName: "John Doe", GivenName: "Jonathan"}, "John Doe"},
		{"falls back to given family", Contact{GivenName: "John", FamilyName: "Doe"}, "John Doe"},
		{"given only", Contact{GivenName: "John"}, "John"},
		{"empty", Contact{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.contact.Name())
		})
	}
}

func TestMatchKeys(t *testing.T) {
	c := Contact{
		DisplayName: "John Doe",
		Emails:      []string{"John.Doe@Example.com"},
		Phones:      []string{"(555) 123-4567"},
	}
	keys := c.MatchKeys()
	assert.Contains(t, keys, "email:johndoe@examplecom")
	assert.Contains(t, keys, "phone:5551234567")
	assert.NotContains(t, keys, "name:doejohn", "name key only appears without identifiers")

	nameOnly := Contact{DisplayName: "John Doe"}
	assert.Equal(t, []string{"name:doejohn"}, nameOnly.MatchKeys())
}

func TestFingerprint(t *testing.T) {
	base := Contact{
		DisplayName: "John Doe",
		Emails:      []string{"a@x.com", "b@y.com"},
		Phones:      []string{"(555) 123-4567"},
	}

	t.Run("identity fields excluded", func(t *testing.T) {
		a := base
		a.Resource, a.Etag = "people/c1", "etag1"
		b := base
		b.Resource, b.Etag = "people/c2", "etag2"
		b.LastModified = time.Now()
		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("list order ignored", func(t *testing.T) {
		a := base
		b := base
		b.Emails = []string{"b@y.com", "a@x.com"}
		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("phone formatting ignored", func(t *testing.T) {
		a := base
		b := base
		b.Phones = []string{"+1 555 123 4567"}
		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("content change detected", func(t *testing.T) {
		a := base
		b := base
		b.Notes = "met at conference"
		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	})
}

func TestIsValid(t *testing.T) {
	assert.True(t, (&Contact{DisplayName: "X"}).IsValid())
	assert.True(t, (&Contact{Emails: []string{"a@b.c"}}).IsValid())
	assert.False(t, (&Contact{Phones: []string{"5551234567"}}).IsValid(),
		"phone alone is not enough")
	assert.False(t, (&Contact{}).IsValid())
}

func TestMirror(t *testing.T) {
	src := Contact{
		Resource:    "people/c1",
		Etag:        "v1",
		DisplayName: "John Doe",
		Emails:      []string{"a@b.c"},
		Groups:      []string{"contactGroups/work"},
	}
	m := src.Mirror()
	assert.Empty(t, m.Resource)
	assert.Empty(t, m.Etag)
	assert.Empty(t, m.Groups)
	assert.Equal(t, src.DisplayName, m.DisplayName)
	assert.Equal(t, src.Emails, m.Emails)
	assert.Equal(t, src.Fingerprint(), m.Fingerprint(), "mirror preserves content fingerprint")
}

func TestDiff(t *testing.T) {
	from := &Contact{
		DisplayName: "John Doe",
		Emails:      []string{"a@x.com"},
		Phones:      []string{"(555) 123-4567"},
		Notes:       "old",
	}

	t.Run("identical contacts produce no changes", func(t *testing.T) {
		to := &Contact{
			DisplayName: "John Doe",
			Emails:      []string{"a@x.com"},
			Phones:      []string{"+1 555 123 4567"}, // same number, different format
			Notes:       "old",
		}
		assert.Empty(t, Diff(from, to))
	})

	t.Run("changed fields reported once each", func(t *testing.T) {
		to := &Contact{
			DisplayName: "John Doe",
			Emails:      []string{"a@x.com", "new@x.com"},
			Phones:      []string{"(555) 123-4567"},
			Notes:       "new",
		}
		changes := Diff(from, to)
		fields := Fields(changes)
		require.Len(t, changes, 2)
		assert.Contains(t, fields, FieldEmails)
		assert.Contains(t, fields, FieldNotes)
	})

	t.Run("email order ignored", func(t *testing.T) {
		a := &Contact{Emails: []string{"a@x.com", "b@y.com"}}
		b := &Contact{Emails: []string{"b@y.com", "a@x.com"}}
		assert.Empty(t, Diff(a, b))
	})

	t.Run("old and new oriented source to target", func(t *testing.T) {
		to := &Contact{
			DisplayName: "John Doe",
			Emails:      []string{"b@y.com"},
			Phones:      []string{"(555) 123-4567"},
			Notes:       "new",
		}
		changes := Diff(from, to)
		require.Len(t, changes, 2)
		for _, ch := range changes {
			switch ch.Field {
			case FieldNotes:
				assert.Equal(t, "old", ch.Old)
				assert.Equal(t, "new", ch.New)
			case FieldEmails:
				assert.Equal(t, "a@x.com", ch.Old)
				assert.Equal(t, "b@y.com", ch.New)
			default:
				t.Fatalf("unexpected field %s", ch.Field)
			}
		}
	})
}
