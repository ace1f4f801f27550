// Package people implements the account client contract against the Google
// People API: paginated connection listing, contact group listing, and the
// batch mutation endpoints.
package people

import (
	"context"
	"fmt"
	"net/url"

	"github.com/agentstation/contactsync/internal/transport"
	"github.com/agentstation/contactsync/pkg/accounts"
	"github.com/agentstation/contactsync/pkg/contacts"
)

const defaultBaseURL = "https://people.googleapis.com/v1"

// Client talks to the People API for one account.
type Client struct {
	transport *transport.Client
	baseURL   string
}

// NewClient creates a People API client for the named account.
func NewClient(account accounts.ID, tokens transport.TokenSource) *Client {
	return &Client{
		transport: transport.New(account.String(), tokens),
		baseURL:   defaultBaseURL,
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// WithTransport overrides the transport client, for tests.
func (c *Client) WithTransport(t *transport.Client) *Client {
	c.transport = t
	return c
}

type connectionsResponse struct {
	Connections   []person `json:"connections"`
	NextPageToken string   `json:"nextPageToken"`
	TotalItems    int      `json:"totalItems"`
}

// ListContacts implements accounts.Client.
func (c *Client) ListContacts(ctx context.Context, pageToken string, pageSize int) (*accounts.Page, error) {
	q := url.Values{}
	q.Set("personFields", personFields)
	q.Set("pageSize", fmt.Sprintf("%d", pageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var resp connectionsResponse
	u := fmt.Sprintf("%s/people/me/connections?%s", c.baseURL, q.Encode())
	if err := c.transport.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	page := &accounts.Page{NextPageToken: resp.NextPageToken}
	for i := range resp.Connections {
		page.Contacts = append(page.Contacts, resp.Connections[i].toContact())
	}
	return page, nil
}

type contactGroup struct {
	ResourceName string `json:"resourceName"`
	Etag         string `json:"etag"`
	Name         string `json:"name"`
	GroupType    string `json:"groupType"`
	Metadata     *struct {
		Deleted bool `json:"deleted"`
	} `json:"metadata"`
}

type groupsResponse struct {
	ContactGroups []contactGroup `json:"contactGroups"`
	NextPageToken string         `json:"nextPageToken"`
}

// ListGroups implements accounts.Client.
func (c *Client) ListGroups(ctx context.Context) ([]contacts.Group, error) {
	var groups []contacts.Group
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("pageSize", "200")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var resp groupsResponse
		u := fmt.Sprintf("%s/contactGroups?%s", c.baseURL, q.Encode())
		if err := c.transport.GetJSON(ctx, u, &resp); err != nil {
			return nil, err
		}

		for _, g := range resp.ContactGroups {
			group := contacts.Group{
				Resource: g.ResourceName,
				Etag:     g.Etag,
				Name:     g.Name,
				Type:     g.GroupType,
			}
			if g.Metadata != nil {
				group.Deleted = g.Metadata.Deleted
			}
			groups = append(groups, group)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return groups, nil
		}
	}
}

type batchCreateRequest struct {
	Contacts []contactToCreate `json:"contacts"`
	ReadMask string            `json:"readMask"`
}

type contactToCreate struct {
	ContactPerson person `json:"contactPerson"`
}

type batchCreateResponse struct {
	CreatedPeople []struct {
		Person person `json:"person"`
	} `json:"createdPeople"`
}

// BatchCreate implements accounts.Client. The People API applies the batch
// atomically: a call-level error fails every item, and success yields the
// created people in input order.
func (c *Client) BatchCreate(ctx context.Context, create []contacts.Contact) ([]accounts.BatchResult, error) {
	if len(create) == 0 {
		return nil, nil
	}

	req := batchCreateRequest{ReadMask: personFields}
	for i := range create {
		req.Contacts = append(req.Contacts, contactToCreate{ContactPerson: fromContact(&create[i])})
	}

	var resp batchCreateResponse
	u := c.baseURL + "/people:batchCreateContacts"
	if err := c.transport.PostJSON(ctx, u, req, &resp); err != nil {
		return nil, err
	}

	results := make([]accounts.BatchResult, len(create))
	for i := range create {
		results[i].Index = i
		if i < len(resp.CreatedPeople) {
			created := resp.CreatedPeople[i].Person.toContact()
			results[i].Resource = created.Resource
			results[i].Contact = &created
		}
	}
	return results, nil
}

type batchUpdateRequest struct {
	Contacts   map[string]person `json:"contacts"`
	UpdateMask string            `json:"updateMask"`
	ReadMask   string            `json:"readMask"`
}

type batchUpdateResponse struct {
	UpdateResult map[string]struct {
		Person person `json:"person"`
	} `json:"updateResult"`
}

// BatchUpdate implements accounts.Client. All updates in one call share an
// update mask, so the mask is the union of every item's changed fields.
func (c *Client) BatchUpdate(ctx context.Context, updates []accounts.Update) ([]accounts.BatchResult, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	req := batchUpdateRequest{
		Contacts: make(map[string]person, len(updates)),
		ReadMask: personFields,
	}
	var allFields []contacts.Field
	for i := range updates {
		u := &updates[i]
		p := fromContact(&u.Contact)
		p.Etag = u.Etag
		req.Contacts[u.Resource] = p
		allFields = append(allFields, u.Fields...)
	}
	req.UpdateMask = updateMaskFor(allFields)

	var resp batchUpdateResponse
	u := c.baseURL + "/people:batchUpdateContacts"
	if err := c.transport.PostJSON(ctx, u, req, &resp); err != nil {
		return nil, err
	}

	results := make([]accounts.BatchResult, len(updates))
	for i := range updates {
		results[i].Index = i
		results[i].Resource = updates[i].Resource
		if r, ok := resp.UpdateResult[updates[i].Resource]; ok {
			updated := r.Person.toContact()
			results[i].Contact = &updated
		}
	}
	return results, nil
}

type batchDeleteRequest struct {
	ResourceNames []string `json:"resourceNames"`
}

// BatchDelete implements accounts.Client.
func (c *Client) BatchDelete(ctx context.Context, resources []string) ([]accounts.BatchResult, error) {
	if len(resources) == 0 {
		return nil, nil
	}

	req := batchDeleteRequest{ResourceNames: resources}
	u := c.baseURL + "/people:batchDeleteContacts"
	if err := c.transport.PostJSON(ctx, u, req, nil); err != nil {
		return nil, err
	}

	results := make([]accounts.BatchResult, len(resources))
	for i, r := range resources {
		results[i] = accounts.BatchResult{Index: i, Resource: r}
	}
	return results, nil
}

var _ accounts.Client = (*Client)(nil)
