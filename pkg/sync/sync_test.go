package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/contactsync/pkg/accounts"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input string
		want  Strategy
		ok    bool
	}{
		{"account1-wins", StrategyAccount1Wins, true},
		{"account1_wins", StrategyAccount1Wins, true},
		{"account2-wins", StrategyAccount2Wins, true},
		{"newest-wins", StrategyNewestWins, true},
		{"last-modified-wins", StrategyNewestWins, true},
		{"manual", StrategyManual, true},
		{"", "", false},
		{"Account1-Wins", "", false},
		{"coin-flip", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStrategy(tt.input)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanRejectsDuplicateTarget(t *testing.T) {
	p := NewPlan()
	require.NoError(t, p.Add(Operation{Kind: OpUpdate, Account: accounts.Account1, Resource: "people/1"}))

	err := p.Add(Operation{Kind: OpDelete, Account: accounts.Account1, Resource: "people/1"})
	require.Error(t, err)

	// Same resource on the other account is a different target.
	require.NoError(t, p.Add(Operation{Kind: OpDelete, Account: accounts.Account2, Resource: "people/1"}))
	assert.Equal(t, 2, p.Size())
}

func TestPlanOperationsOrdered(t *testing.T) {
	p := NewPlan()
	require.NoError(t, p.Add(Operation{Kind: OpDelete, Account: accounts.Account1, Resource: "people/9"}))
	require.NoError(t, p.Add(Operation{Kind: OpUpdate, Account: accounts.Account1, Resource: "people/5"}))
	require.NoError(t, p.Add(Operation{Kind: OpCreate, Account: accounts.Account1, Source: "people/b"}))
	require.NoError(t, p.Add(Operation{Kind: OpCreate, Account: accounts.Account1, Source: "people/a"}))
	require.NoError(t, p.Add(Operation{Kind: OpUpdate, Account: accounts.Account1, Resource: "people/2"}))

	ops := p.Operations(accounts.Account1)
	require.Len(t, ops, 5)
	assert.Equal(t, OpCreate, ops[0].Kind)
	assert.Equal(t, "people/a", ops[0].Source)
	assert.Equal(t, "people/b", ops[1].Source)
	assert.Equal(t, "people/2", ops[2].Resource)
	assert.Equal(t, "people/5", ops[3].Resource)
	assert.Equal(t, OpDelete, ops[4].Kind)

	assert.Empty(t, p.Operations(accounts.Account2))
	assert.Equal(t, 2, p.Count(OpCreate))
	assert.Equal(t, 2, p.Count(OpUpdate))
	assert.Equal(t, 1, p.Count(OpDelete))
	assert.False(t, p.IsEmpty())
}

func TestResultSummaryAndSuccess(t *testing.T) {
	r := &Result{Created: 2, Updated: 1, DryRun: true}
	assert.True(t, r.Success())
	assert.Contains(t, r.Summary(), "2 created")
	assert.Contains(t, r.Summary(), "(dry run)")

	r.Failures = append(r.Failures, Failure{})
	assert.False(t, r.Success())
	assert.Contains(t, r.Summary(), "1 failed")
}

func TestStatsSkipDryRunCounts(t *testing.T) {
	var s Stats
	s.Add(&Result{Created: 3})
	s.Add(&Result{Created: 5, DryRun: true})

	assert.Equal(t, 2, s.Cycles)
	assert.Equal(t, 3, s.Created)
}
