package sync

// Options controls one sync cycle.
type Options struct {
	// DryRun computes and reports the plan without executing it.
	DryRun bool

	// Full additionally propagates deletions via the ledger. Outside full
	// mode the engine never deletes.
	Full bool

	// Strategy overrides the configured conflict strategy for this cycle.
	// Empty means use the configured strategy.
	Strategy Strategy
}

// Option is a function that configures cycle Options.
type Option func(*Options)

// Apply applies the given options.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDryRun enables dry-run mode.
func WithDryRun() Option {
	return func(o *Options) { o.DryRun = true }
}

// WithFull enables full mode (deletion propagation).
func WithFull() Option {
	return func(o *Options) { o.Full = true }
}

// WithStrategy overrides the conflict strategy for this cycle.
func WithStrategy(s Strategy) Option {
	return func(o *Options) { o.Strategy = s }
}
