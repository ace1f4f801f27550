package people

import (
	"strings"
	"time"

	"github.com/agentstation/contactsync/pkg/contacts"
)

// personFields selects everything the engine reads from a person.
const personFields = "names,emailAddresses,phoneNumbers,organizations,biographies,metadata,memberships"

// updateFields selects what batch updates may overwrite. Photos cannot be
// written through batchUpdateContacts.
const updateFields = "names,emailAddresses,phoneNumbers,organizations,biographies"

// person is the People API wire shape, reduced to the fields the engine
// uses.
type person struct {
	ResourceName   string          `json:"resourceName,omitempty"`
	Etag           string          `json:"etag,omitempty"`
	Names          []personName    `json:"names,omitempty"`
	EmailAddresses []typedValue    `json:"emailAddresses,omitempty"`
	PhoneNumbers   []typedValue    `json:"phoneNumbers,omitempty"`
	Organizations  []organization  `json:"organizations,omitempty"`
	Biographies    []biography     `json:"biographies,omitempty"`
	Memberships    []membership    `json:"memberships,omitempty"`
	Metadata       *personMetadata `json:"metadata,omitempty"`
}

type personName struct {
	DisplayName string `json:"displayName,omitempty"`
	GivenName   string `json:"givenName,omitempty"`
	FamilyName  string `json:"familyName,omitempty"`
}

type typedValue struct {
	Value string `json:"value,omitempty"`
}

type organization struct {
	Name string `json:"name,omitempty"`
}

type biography struct {
	Value       string `json:"value,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

type membership struct {
	ContactGroupMembership *contactGroupMembership `json:"contactGroupMembership,omitempty"`
}

type contactGroupMembership struct {
	ContactGroupResourceName string `json:"contactGroupResourceName,omitempty"`
}

type personMetadata struct {
	Deleted bool     `json:"deleted,omitempty"`
	Sources []source `json:"sources,omitempty"`
}

type source struct {
	UpdateTime string `json:"updateTime,omitempty"`
}

// toContact converts a wire person to the engine's contact shape.
func (p *person) toContact() contacts.Contact {
	c := contacts.Contact{
		Resource: p.ResourceName,
		Etag:     p.Etag,
	}

	if len(p.Names) > 0 {
		n := p.Names[0]
		c.DisplayName = n.DisplayName
		c.GivenName = n.GivenName
		c.FamilyName = n.FamilyName
		if c.DisplayName == "" {
			var parts []string
			if n.GivenName != "" {
				parts = append(parts, n.GivenName)
			}
			if n.FamilyName != "" {
				parts = append(parts, n.FamilyName)
			}
			c.DisplayName = strings.Join(parts, " ")
		}
	}

	for _, e := range p.EmailAddresses {
		if e.Value != "" {
			c.Emails = append(c.Emails, e.Value)
		}
	}
	for _, ph := range p.PhoneNumbers {
		if ph.Value != "" {
			c.Phones = append(c.Phones, ph.Value)
		}
	}
	for _, o := range p.Organizations {
		if o.Name != "" {
			c.Organizations = append(c.Organizations, o.Name)
		}
	}
	if len(p.Biographies) > 0 {
		c.Notes = p.Biographies[0].Value
	}
	for _, m := range p.Memberships {
		if m.ContactGroupMembership != nil && m.ContactGroupMembership.ContactGroupResourceName != "" {
			c.Groups = append(c.Groups, m.ContactGroupMembership.ContactGroupResourceName)
		}
	}

	if p.Metadata != nil {
		c.Deleted = p.Metadata.Deleted
		if len(p.Metadata.Sources) > 0 {
			if t, err := time.Parse(time.RFC3339, p.Metadata.Sources[0].UpdateTime); err == nil {
				c.LastModified = t
			}
		}
	}
	return c
}

// fromContact converts an engine contact to the wire shape for writes.
// Identity fields (resourceName, etag) are set by the caller where the
// operation needs them; only non-empty content fields are emitted.
func fromContact(c *contacts.Contact) person {
	var p person

	if c.GivenName != "" || c.FamilyName != "" || c.DisplayName != "" {
		n := personName{GivenName: c.GivenName, FamilyName: c.FamilyName}
		if c.GivenName == "" && c.FamilyName == "" {
			n.DisplayName = c.DisplayName
		}
		p.Names = []personName{n}
	}
	for _, e := range c.Emails {
		p.EmailAddresses = append(p.EmailAddresses, typedValue{Value: e})
	}
	for _, ph := range c.Phones {
		p.PhoneNumbers = append(p.PhoneNumbers, typedValue{Value: ph})
	}
	for _, o := range c.Organizations {
		p.Organizations = append(p.Organizations, organization{Name: o})
	}
	if c.Notes != "" {
		p.Biographies = []biography{{Value: c.Notes, ContentType: "TEXT_PLAIN"}}
	}
	for _, g := range c.Groups {
		p.Memberships = append(p.Memberships, membership{
			ContactGroupMembership: &contactGroupMembership{ContactGroupResourceName: g},
		})
	}
	return p
}

// updateMaskFor maps changed engine fields to People API field names.
func updateMaskFor(fields []contacts.Field) string {
	if len(fields) == 0 {
		return updateFields
	}
	seen := make(map[string]bool)
	var mask []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			mask = append(mask, name)
		}
	}
	for _, f := range fields {
		switch f {
		case contacts.FieldDisplayName, contacts.FieldGivenName, contacts.FieldFamilyName:
			add("names")
		case contacts.FieldEmails:
			add("emailAddresses")
		case contacts.FieldPhones:
			add("phoneNumbers")
		case contacts.FieldOrganizations:
			add("organizations")
		case contacts.FieldNotes:
			add("biographies")
		}
	}
	if len(mask) == 0 {
		return updateFields
	}
	return strings.Join(mask, ",")
}
