package contactsync

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/contactsync/internal/orchestrator"
	"github.com/agentstation/contactsync/pkg/accounts"
)

type options struct {
	clients map[accounts.ID]accounts.Client
	arbiter orchestrator.Arbiter
	logger  *zerolog.Logger
}

// Option configures engine construction.
type Option func(*options)

// WithClients overrides the account clients, for tests and alternative
// backends.
func WithClients(clients map[accounts.ID]accounts.Client) Option {
	return func(o *options) { o.clients = clients }
}

// WithArbiter overrides the uncertain-pair arbiter.
func WithArbiter(a orchestrator.Arbiter) Option {
	return func(o *options) { o.arbiter = a }
}

// WithLogger overrides the engine logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}
