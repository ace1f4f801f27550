package contactsync_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/contactsync"
	"github.com/agentstation/contactsync/internal/config"
	"github.com/agentstation/contactsync/pkg/accounts"
	"github.com/agentstation/contactsync/pkg/contacts"
	"github.com/agentstation/contactsync/pkg/logging"
	"github.com/agentstation/contactsync/pkg/sync"
)

// stubClient serves a fixed contact list and records mutations.
type stubClient struct {
	contacts []contacts.Contact
	created  []contacts.Contact
	prefix   string
}

func (s *stubClient) ListContacts(context.Context, string, int) (*accounts.Page, error) {
	return &accounts.Page{Contacts: s.contacts}, nil
}

func (s *stubClient) ListGroups(context.Context) ([]contacts.Group, error) {
	return nil, nil
}

func (s *stubClient) BatchCreate(_ context.Context, create []contacts.Contact) ([]accounts.BatchResult, error) {
	results := make([]accounts.BatchResult, len(create))
	for i, c := range create {
		c.Resource = fmt.Sprintf("%s/created-%d", s.prefix, len(s.created))
		s.created = append(s.created, c)
		stored := c
		results[i] = accounts.BatchResult{Index: i, Resource: c.Resource, Contact: &stored}
	}
	return results, nil
}

func (s *stubClient) BatchUpdate(_ context.Context, updates []accounts.Update) ([]accounts.BatchResult, error) {
	results := make([]accounts.BatchResult, len(updates))
	for i := range updates {
		results[i] = accounts.BatchResult{Index: i, Resource: updates[i].Resource}
	}
	return results, nil
}

func (s *stubClient) BatchDelete(_ context.Context, resources []string) ([]accounts.BatchResult, error) {
	results := make([]accounts.BatchResult, len(resources))
	for i, r := range resources {
		results[i] = accounts.BatchResult{Index: i, Resource: r}
	}
	return results, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
arbiter:
  enabled: false
paths:
  ledger: %s
  match_log_dir: %s
  groups_config: %s
`, filepath.Join(dir, "ledger.json"), filepath.Join(dir, "matchlogs"), filepath.Join(dir, "groups.yaml"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestEngineSync(t *testing.T) {
	c1 := &stubClient{prefix: "a", contacts: []contacts.Contact{
		{Resource: "a/1", DisplayName: "Ada Lovelace", Emails: []string{"ada@example.com"}},
	}}
	c2 := &stubClient{prefix: "b"}

	engine, err := contactsync.New(context.Background(), testConfig(t),
		contactsync.WithClients(map[accounts.ID]accounts.Client{
			accounts.Account1: c1,
			accounts.Account2: c2,
		}),
		contactsync.WithLogger(&logging.Nop),
	)
	require.NoError(t, err)
	defer engine.Close()

	result, err := engine.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	require.Len(t, c2.created, 1)
	assert.Equal(t, "Ada Lovelace", c2.created[0].DisplayName)

	stats := engine.Stats()
	assert.Equal(t, 1, stats.Cycles)
	assert.NoError(t, engine.Close())
}

func TestEngineSyncDryRun(t *testing.T) {
	c1 := &stubClient{prefix: "a", contacts: []contacts.Contact{
		{Resource: "a/1", DisplayName: "Ada Lovelace", Emails: []string{"ada@example.com"}},
	}}
	c2 := &stubClient{prefix: "b"}

	engine, err := contactsync.New(context.Background(), testConfig(t),
		contactsync.WithClients(map[accounts.ID]accounts.Client{
			accounts.Account1: c1,
			accounts.Account2: c2,
		}),
		contactsync.WithLogger(&logging.Nop),
	)
	require.NoError(t, err)
	defer engine.Close()

	result, err := engine.Sync(context.Background(), sync.WithDryRun())
	require.NoError(t, err)
	require.NotNil(t, result.Plan)
	assert.Equal(t, 1, result.Plan.Count(sync.OpCreate))
	assert.Empty(t, c2.created)
}
