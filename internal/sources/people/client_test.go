package people

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/contactsync/internal/transport"
	"github.com/agentstation/contactsync/pkg/accounts"
	"github.com/agentstation/contactsync/pkg/contacts"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(accounts.Account1, transport.StaticToken("tok")).WithBaseURL(srv.URL)
}

func TestListContactsPaging(t *testing.T) {
	var tokens []string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/people/me/connections", r.URL.Path)
		assert.Equal(t, personFields, r.URL.Query().Get("personFields"))
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))
		tokens = append(tokens, r.URL.Query().Get("pageToken"))

		json.NewEncoder(w).Encode(map[string]any{
			"connections": []map[string]any{
				{
					"resourceName": "people/c1",
					"etag":         "e1",
					"names":        []map[string]any{{"displayName": "John Doe", "givenName": "John", "familyName": "Doe"}},
					"emailAddresses": []map[string]any{
						{"value": "john@example.com"},
					},
					"biographies": []map[string]any{{"value": "note", "contentType": "TEXT_PLAIN"}},
					"memberships": []map[string]any{
						{"contactGroupMembership": map[string]any{"contactGroupResourceName": "contactGroups/family"}},
					},
					"metadata": map[string]any{
						"sources": []map[string]any{{"updateTime": "2026-01-02T15:04:05Z"}},
					},
				},
			},
			"nextPageToken": "",
		})
	}))

	page, err := c.ListContacts(context.Background(), "", 100)
	require.NoError(t, err)
	require.Len(t, page.Contacts, 1)
	assert.Equal(t, []string{""}, tokens)

	got := page.Contacts[0]
	assert.Equal(t, "people/c1", got.Resource)
	assert.Equal(t, "e1", got.Etag)
	assert.Equal(t, "John Doe", got.DisplayName)
	assert.Equal(t, []string{"john@example.com"}, got.Emails)
	assert.Equal(t, "note", got.Notes)
	assert.Equal(t, []string{"contactGroups/family"}, got.Groups)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), got.LastModified)
}

func TestListGroupsFollowsPages(t *testing.T) {
	calls := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/contactGroups", r.URL.Path)
		calls++
		if calls == 1 {
			json.NewEncoder(w).Encode(map[string]any{
				"contactGroups": []map[string]any{
					{"resourceName": "contactGroups/family", "name": "Family", "groupType": "USER_CONTACT_GROUP"},
				},
				"nextPageToken": "page2",
			})
			return
		}
		assert.Equal(t, "page2", r.URL.Query().Get("pageToken"))
		json.NewEncoder(w).Encode(map[string]any{
			"contactGroups": []map[string]any{
				{"resourceName": "contactGroups/work", "name": "Work"},
			},
		})
	}))

	groups, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "Family", groups[0].Name)
	assert.Equal(t, "contactGroups/work", groups[1].Resource)
}

func TestBatchCreateMapsResultsInOrder(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/people:batchCreateContacts", r.URL.Path)

		var req batchCreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contacts, 2)
		assert.Equal(t, personFields, req.ReadMask)
		assert.Equal(t, "Ann", req.Contacts[0].ContactPerson.Names[0].GivenName)

		json.NewEncoder(w).Encode(map[string]any{
			"createdPeople": []map[string]any{
				{"person": map[string]any{"resourceName": "people/n1", "etag": "e1",
					"names": []map[string]any{{"givenName": "Ann"}}}},
				{"person": map[string]any{"resourceName": "people/n2", "etag": "e2",
					"names": []map[string]any{{"givenName": "Bob"}}}},
			},
		})
	}))

	results, err := c.BatchCreate(context.Background(), []contacts.Contact{
		{GivenName: "Ann"},
		{GivenName: "Bob"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "people/n1", results[0].Resource)
	require.NotNil(t, results[1].Contact)
	assert.Equal(t, "people/n2", results[1].Contact.Resource)
}

func TestBatchUpdateSendsEtagAndUnionMask(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/people:batchUpdateContacts", r.URL.Path)

		var req batchUpdateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contacts, 2)
		assert.Equal(t, "etag-1", req.Contacts["people/u1"].Etag)

		mask := strings.Split(req.UpdateMask, ",")
		assert.ElementsMatch(t, []string{"emailAddresses", "biographies"}, mask)

		json.NewEncoder(w).Encode(map[string]any{
			"updateResult": map[string]any{
				"people/u1": map[string]any{"person": map[string]any{"resourceName": "people/u1", "etag": "etag-1b"}},
				"people/u2": map[string]any{"person": map[string]any{"resourceName": "people/u2", "etag": "etag-2b"}},
			},
		})
	}))

	results, err := c.BatchUpdate(context.Background(), []accounts.Update{
		{Resource: "people/u1", Etag: "etag-1", Contact: contacts.Contact{Emails: []string{"a@x.com"}},
			Fields: []contacts.Field{contacts.FieldEmails}},
		{Resource: "people/u2", Etag: "etag-2", Contact: contacts.Contact{Notes: "n"},
			Fields: []contacts.Field{contacts.FieldNotes}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NotNil(t, results[0].Contact)
	assert.Equal(t, "etag-1b", results[0].Contact.Etag)
}

func TestBatchDelete(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/people:batchDeleteContacts", r.URL.Path)

		var req batchDeleteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"people/d1", "people/d2"}, req.ResourceNames)
		w.WriteHeader(http.StatusOK)
	}))

	results, err := c.BatchDelete(context.Background(), []string{"people/d1", "people/d2"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "people/d1", results[0].Resource)
}

func TestEmptyBatchesSkipTheWire(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	}))

	for _, call := range []func() ([]accounts.BatchResult, error){
		func() ([]accounts.BatchResult, error) { return c.BatchCreate(context.Background(), nil) },
		func() ([]accounts.BatchResult, error) { return c.BatchUpdate(context.Background(), nil) },
		func() ([]accounts.BatchResult, error) { return c.BatchDelete(context.Background(), nil) },
	} {
		results, err := call()
		require.NoError(t, err)
		assert.Nil(t, results)
	}
}

func TestPersonRoundTripFallbacks(t *testing.T) {
	t.Run("display name assembled from parts", func(t *testing.T) {
		p := person{Names: []personName{{GivenName: "Jane", FamilyName: "Roe"}}}
		c := p.toContact()
		assert.Equal(t, "Jane Roe", c.DisplayName)
	})

	t.Run("display name only emitted without structured parts", func(t *testing.T) {
		c := contacts.Contact{DisplayName: "Acme Support"}
		p := fromContact(&c)
		require.Len(t, p.Names, 1)
		assert.Equal(t, "Acme Support", p.Names[0].DisplayName)

		c = contacts.Contact{DisplayName: "Jane Roe", GivenName: "Jane", FamilyName: "Roe"}
		p = fromContact(&c)
		require.Len(t, p.Names, 1)
		assert.Empty(t, p.Names[0].DisplayName)
	})

	t.Run("mask defaults to all writable fields", func(t *testing.T) {
		assert.Equal(t, updateFields, updateMaskFor(nil))
		assert.Equal(t, "names", updateMaskFor([]contacts.Field{contacts.FieldGivenName, contacts.FieldFamilyName}))
	})
}
