package sync

import (
	"sort"

	"github.com/agentstation/contactsync/pkg/accounts"
	"github.com/agentstation/contactsync/pkg/contacts"
	"github.com/agentstation/contactsync/pkg/errors"
)

// OpKind is the type of a plan operation.
type OpKind string

const (
	// OpCreate creates a new contact on the target account.
	OpCreate OpKind = "create"
	// OpUpdate overwrites specific fields of an existing contact.
	OpUpdate OpKind = "update"
	// OpDelete removes a contact from the target account.
	OpDelete OpKind = "delete"
)

// Operation is one unit of work in a sync plan, targeting exactly one
// account.
type Operation struct {
	Kind    OpKind
	Account accounts.ID // Target account

	// Resource is the target resource for updates and deletes.
	Resource string

	// Etag is the target's version token for updates.
	Etag string

	// Contact is the payload: the mirror shape for creates, the winning
	// side's content for updates.
	Contact *contacts.Contact

	// Changes is the field diff an update applies.
	Changes []contacts.FieldChange

	// Source is the resource id on the opposite account this operation
	// originates from, used to register or update the ledger entry once the
	// operation is confirmed applied. Empty for operations with no pair.
	Source string

	// SourceFingerprint is the content fingerprint of the originating side,
	// recorded into the ledger on success.
	SourceFingerprint string
}

// Plan is the ordered set of operations for one cycle, partitioned by
// target account. A plan never holds two operations for the same
// (account, resource), and creates always precede updates and deletes.
type Plan struct {
	ops    map[accounts.ID][]Operation
	byID   map[accounts.ID]map[string]OpKind
	counts map[OpKind]int
}

// NewPlan creates an empty plan.
func NewPlan() *Plan {
	return &Plan{
		ops:    make(map[accounts.ID][]Operation),
		byID:   make(map[accounts.ID]map[string]OpKind),
		counts: make(map[OpKind]int),
	}
}

// Add appends an operation, rejecting a second operation for the same
// target resource.
func (p *Plan) Add(op Operation) error {
	if op.Kind != OpCreate {
		if p.byID[op.Account] == nil {
			p.byID[op.Account] = make(map[string]OpKind)
		}
		if prev, ok := p.byID[op.Account][op.Resource]; ok {
			return errors.NewValidationError("plan", op.Resource,
				"conflicting operations "+string(prev)+" and "+string(op.Kind)+" for one resource")
		}
		p.byID[op.Account][op.Resource] = op.Kind
	}
	p.ops[op.Account] = append(p.ops[op.Account], op)
	p.counts[op.Kind]++
	return nil
}

// Operations returns the operations targeting one account, creates first,
// then updates, then deletes, each group in deterministic order.
func (p *Plan) Operations(account accounts.ID) []Operation {
	ops := append([]Operation(nil), p.ops[account]...)
	rank := map[OpKind]int{OpCreate: 0, OpUpdate: 1, OpDelete: 2}
	sort.SliceStable(ops, func(i, j int) bool {
		if rank[ops[i].Kind] != rank[ops[j].Kind] {
			return rank[ops[i].Kind] < rank[ops[j].Kind]
		}
		if ops[i].Resource != ops[j].Resource {
			return ops[i].Resource < ops[j].Resource
		}
		return ops[i].Source < ops[j].Source
	})
	return ops
}

// Size returns the total number of operations in the plan.
func (p *Plan) Size() int {
	return len(p.ops[accounts.Account1]) + len(p.ops[accounts.Account2])
}

// IsEmpty reports whether the plan contains no operations.
func (p *Plan) IsEmpty() bool {
	return p.Size() == 0
}

// Count returns the number of operations of one kind across both accounts.
func (p *Plan) Count(kind OpKind) int {
	return p.counts[kind]
}
