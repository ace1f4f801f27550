package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/contactsync/internal/executor"
	"github.com/agentstation/contactsync/internal/match"
	"github.com/agentstation/contactsync/pkg/accounts"
	"github.com/agentstation/contactsync/pkg/contacts"
	"github.com/agentstation/contactsync/pkg/errors"
	"github.com/agentstation/contactsync/pkg/groups"
	"github.com/agentstation/contactsync/pkg/logging"
	syncpkg "github.com/agentstation/contactsync/pkg/sync"
)

// memClient is an in-memory account backed by a map, so applied operations
// are visible to the next cycle.
type memClient struct {
	mu       sync.Mutex
	account  accounts.ID
	contacts map[string]contacts.Contact
	groups   []contacts.Group
	nextID   int
	listErr  error

	creates, updates, deletes int
}

func newMemClient(account accounts.ID, seed ...contacts.Contact) *memClient {
	m := &memClient{account: account, contacts: make(map[string]contacts.Contact)}
	for _, c := range seed {
		m.contacts[c.Resource] = c
	}
	return m
}

func (m *memClient) ListContacts(_ context.Context, pageToken string, _ int) (*accounts.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	page := &accounts.Page{}
	for _, c := range m.contacts {
		page.Contacts = append(page.Contacts, c)
	}
	return page, nil
}

func (m *memClient) ListGroups(context.Context) ([]contacts.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groups, m.listErr
}

func (m *memClient) BatchCreate(_ context.Context, create []contacts.Contact) ([]accounts.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]accounts.BatchResult, len(create))
	for i, c := range create {
		m.nextID++
		m.creates++
		c.Resource = string(m.account) + "/new" + string(rune('0'+m.nextID))
		m.contacts[c.Resource] = c
		stored := c
		results[i] = accounts.BatchResult{Index: i, Resource: c.Resource, Contact: &stored}
	}
	return results, nil
}

func (m *memClient) BatchUpdate(_ context.Context, updates []accounts.Update) ([]accounts.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]accounts.BatchResult, len(updates))
	for i, u := range updates {
		m.updates++
		stored := u.Contact
		stored.Resource = u.Resource
		m.contacts[u.Resource] = stored
		results[i] = accounts.BatchResult{Index: i, Resource: u.Resource, Contact: &stored}
	}
	return results, nil
}

func (m *memClient) BatchDelete(_ context.Context, resources []string) ([]accounts.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]accounts.BatchResult, len(resources))
	for i, r := range resources {
		m.deletes++
		delete(m.contacts, r)
		results[i] = accounts.BatchResult{Index: i, Resource: r}
	}
	return results, nil
}

func (m *memClient) snapshot() map[string]contacts.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]contacts.Contact, len(m.contacts))
	for k, v := range m.contacts {
		out[k] = v
	}
	return out
}

func newOrchestrator(t *testing.T, c1, c2 *memClient) *Orchestrator {
	t.Helper()
	return New(Options{
		Clients: map[accounts.ID]accounts.Client{
			accounts.Account1: c1,
			accounts.Account2: c2,
		},
		MatchConfig: match.DefaultConfig(),
		Executor:    executor.Config{BatchSize: 10, MaxRetries: 0},
		Strategy:    syncpkg.StrategyNewestWins,
		LedgerPath:  filepath.Join(t.TempDir(), "ledger.json"),
		PageSize:    100,
		Logger:      logging.Nop,
	})
}

func TestRunCycleMirrorsBothDirections(t *testing.T) {
	c1 := newMemClient(accounts.Account1,
		contacts.Contact{Resource: "a/1", DisplayName: "Only In One", Emails: []string{"one@x.com"}})
	c2 := newMemClient(accounts.Account2,
		contacts.Contact{Resource: "b/1", DisplayName: "Only In Two", Emails: []string{"two@x.com"}})
	o := newOrchestrator(t, c1, c2)

	result, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.True(t, result.Success())
	assert.Len(t, c1.snapshot(), 2)
	assert.Len(t, c2.snapshot(), 2)
}

func TestRunCycleIdempotent(t *testing.T) {
	c1 := newMemClient(accounts.Account1,
		contacts.Contact{Resource: "a/1", DisplayName: "John Doe", Emails: []string{"john@x.com"}})
	c2 := newMemClient(accounts.Account2)
	o := newOrchestrator(t, c1, c2)

	first, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, second.HasChanges(), "second cycle must be a no-op")
	assert.Equal(t, 1, second.Matched, "pair confirmed from the ledger")
	assert.Len(t, c2.snapshot(), 1)
}

func TestRunCycleDryRunMutatesNothing(t *testing.T) {
	c1 := newMemClient(accounts.Account1,
		contacts.Contact{Resource: "a/1", DisplayName: "John Doe", Emails: []string{"john@x.com"}})
	c2 := newMemClient(accounts.Account2)
	o := newOrchestrator(t, c1, c2)

	result, err := o.RunCycle(context.Background(), syncpkg.WithDryRun())
	require.NoError(t, err)
	require.NotNil(t, result.Plan)
	assert.Equal(t, 1, result.Plan.Count(syncpkg.OpCreate))
	assert.Equal(t, 0, result.Created)
	assert.Empty(t, c2.snapshot())

	// The ledger must be untouched too: a later real run still creates.
	real, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, real.Created)
}

func TestRunCycleFetchFailureAborts(t *testing.T) {
	c1 := newMemClient(accounts.Account1,
		contacts.Contact{Resource: "a/1", DisplayName: "John Doe", Emails: []string{"john@x.com"}})
	c2 := newMemClient(accounts.Account2)
	c2.listErr = errors.NewAPIError("account2", 503, "unavailable")
	o := newOrchestrator(t, c1, c2)

	_, err := o.RunCycle(context.Background())
	require.Error(t, err)
	assert.Empty(t, c2.snapshot(), "no mutation after a failed fetch")
}

func TestRunCycleUpdatePropagates(t *testing.T) {
	shared := contacts.Contact{DisplayName: "John Doe", Emails: []string{"john@x.com"}}
	a := shared
	a.Resource = "a/1"
	b := shared
	b.Resource = "b/1"

	c1 := newMemClient(accounts.Account1, a)
	c2 := newMemClient(accounts.Account2, b)
	o := newOrchestrator(t, c1, c2)

	// First cycle links the pair.
	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	// Edit on account1 only.
	edited := a
	edited.Notes = "updated"
	c1.mu.Lock()
	c1.contacts["a/1"] = edited
	c1.mu.Unlock()

	result, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, "updated", c2.snapshot()["b/1"].Notes)
}

func TestRunCycleFullModePropagatesDeletion(t *testing.T) {
	shared := contacts.Contact{DisplayName: "John Doe", Emails: []string{"john@x.com"}}
	a := shared
	a.Resource = "a/1"
	b := shared
	b.Resource = "b/1"

	c1 := newMemClient(accounts.Account1, a)
	c2 := newMemClient(accounts.Account2, b)
	o := newOrchestrator(t, c1, c2)

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	// User deletes on account1.
	c1.mu.Lock()
	delete(c1.contacts, "a/1")
	c1.mu.Unlock()

	t.Run("incremental cycle leaves the orphan", func(t *testing.T) {
		result, err := o.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Deleted)
		assert.Len(t, c2.snapshot(), 1)
	})

	t.Run("full cycle mirrors the deletion", func(t *testing.T) {
		result, err := o.RunCycle(context.Background(), syncpkg.WithFull())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Deleted)
		assert.Empty(t, c2.snapshot())
	})
}

// scriptedArbiter confirms every pair it is asked about.
type scriptedArbiter struct{ calls int }

func (s *scriptedArbiter) Resolve(_ context.Context, pairs []match.Pair, _ *logging.MatchLog) []match.Decision {
	s.calls++
	out := make([]match.Decision, len(pairs))
	for i, p := range pairs {
		out[i] = match.Decision{Pair: p, Class: match.ClassMatched, Confidence: 0.9, Reasoning: "confirmed"}
	}
	return out
}

func TestRunCycleEscalatesUncertainPairs(t *testing.T) {
	c1 := newMemClient(accounts.Account1,
		contacts.Contact{Resource: "a/1", DisplayName: "John Michael Doe Smith"})
	c2 := newMemClient(accounts.Account2,
		contacts.Contact{Resource: "b/1", DisplayName: "John Michael Doe"})

	arb := &scriptedArbiter{}
	o := newOrchestrator(t, c1, c2)
	o.opts.Arbiter = arb

	result, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, arb.calls)
	assert.Equal(t, 1, result.Uncertain)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 0, result.Created, "confirmed pair needs no create")
}

func TestStatsAccumulate(t *testing.T) {
	c1 := newMemClient(accounts.Account1,
		contacts.Contact{Resource: "a/1", DisplayName: "John Doe", Emails: []string{"john@x.com"}})
	c2 := newMemClient(accounts.Account2)
	o := newOrchestrator(t, c1, c2)

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	_, err = o.RunCycle(context.Background())
	require.NoError(t, err)

	stats := o.Stats()
	assert.Equal(t, 2, stats.Cycles)
	assert.Equal(t, 1, stats.Created)
}

func TestRunCycleSkipsInvalidContacts(t *testing.T) {
	c1 := newMemClient(accounts.Account1,
		contacts.Contact{Resource: "a/1", Phones: []string{"5551234567"}}) // no name, no email
	c2 := newMemClient(accounts.Account2)
	o := newOrchestrator(t, c1, c2)

	result, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Created)
}

func TestRunCycleSystemGroupsNeverScope(t *testing.T) {
	c1 := newMemClient(accounts.Account1,
		contacts.Contact{Resource: "a/1", DisplayName: "Starred Sam",
			Emails: []string{"sam@x.com"}, Groups: []string{"contactGroups/starred"}},
		contacts.Contact{Resource: "a/2", DisplayName: "Family Fay",
			Emails: []string{"fay@x.com"}, Groups: []string{"contactGroups/fam1"}})
	c1.groups = []contacts.Group{
		{Resource: "contactGroups/starred", Name: "Starred", Type: contacts.GroupTypeSystem},
		{Resource: "contactGroups/fam1", Name: "Family", Type: contacts.GroupTypeUser},
	}
	c2 := newMemClient(accounts.Account2)
	o := newOrchestrator(t, c1, c2)
	o.opts.Groups = &groups.Config{
		Version:  groups.ConfigVersion,
		Account1: groups.AccountConfig{Groups: []string{"Starred", "Family"}},
	}

	result, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created, "the starred membership must not put Sam in scope")
	snap := c2.snapshot()
	require.Len(t, snap, 1)
	for _, c := range snap {
		assert.Equal(t, "Family Fay", c.DisplayName)
	}
}
