// Package arbiter escalates uncertain contact pairs to a language model for
// a match / no-match ruling. Rulings are batched, cached by content
// fingerprint, and fail conservative: any error, timeout, or malformed
// response leaves the affected pairs unmatched.
package arbiter

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/agentstation/contactsync/internal/match"
	"github.com/agentstation/contactsync/pkg/errors"
	"github.com/agentstation/contactsync/pkg/logging"
)

// Config controls batching, concurrency, and retry behavior.
type Config struct {
	Model           string        // model identifier, e.g. "gemini-2.0-flash"
	APIKey          string        // Gemini API key
	MaxBatchPairs   int           // max pairs per request
	MaxPromptTokens int           // approximate prompt token budget per request
	MaxOutputTokens int32         // response token cap
	Concurrency     int           // concurrent in-flight requests
	MaxRetries      uint64        // retries per batch on transient failure
	RequestTimeout  time.Duration // per-attempt deadline
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Model:           "gemini-2.0-flash",
		MaxBatchPairs:   20,
		MaxPromptTokens: 6000,
		MaxOutputTokens: 4096,
		Concurrency:     3,
		MaxRetries:      3,
		RequestTimeout:  60 * time.Second,
	}
}

// generator is the slice of the genai client the classifier needs. The
// indirection keeps tests offline.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

type genaiGenerator struct {
	client *genai.Client
	cfg    Config
}

func (g *genaiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			MaxOutputTokens:  g.cfg.MaxOutputTokens,
			Temperature:      genai.Ptr[float32](0.1),
		})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Classifier resolves uncertain pairs through the model, consulting and
// feeding the decision cache.
type Classifier struct {
	cfg   Config
	gen   generator
	cache *Cache
	log   zerolog.Logger
}

// New builds a Classifier backed by the Gemini API. The cache may be nil,
// in which case every pair is sent to the service.
func New(ctx context.Context, cfg Config, cache *Cache, log zerolog.Logger) (*Classifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.ErrAPIKeyRequired
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, &errors.ArbiterError{Message: "create client", Err: err}
	}
	return newWith(cfg, &genaiGenerator{client: client, cfg: cfg}, cache, log), nil
}

func newWith(cfg Config, gen generator, cache *Cache, log zerolog.Logger) *Classifier {
	if cfg.MaxBatchPairs <= 0 {
		cfg.MaxBatchPairs = DefaultConfig().MaxBatchPairs
	}
	if cfg.MaxPromptTokens <= 0 {
		cfg.MaxPromptTokens = DefaultConfig().MaxPromptTokens
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	return &Classifier{cfg: cfg, gen: gen, cache: cache, log: log}
}

// Resolve classifies every uncertain pair and returns one decision per
// pair, in no particular order. It never returns an error: pairs the
// service cannot rule on come back unmatched.
func (c *Classifier) Resolve(ctx context.Context, pairs []match.Pair, mlog *logging.MatchLog) []match.Decision {
	if len(pairs) == 0 {
		return nil
	}
	if mlog == nil {
		mlog = logging.NopMatchLog()
	}

	decisions := make([]match.Decision, len(pairs))
	var remaining []int

	// Cache pass first; only misses go to the service.
	for i, p := range pairs {
		if d, ok := c.cached(p); ok {
			decisions[i] = d
			mlog.Arbiter(p.A.Resource, p.B.Resource, string(d.Class), d.Confidence, d.Reasoning, "cache")
			continue
		}
		remaining = append(remaining, i)
	}

	batches := c.batch(pairs, remaining)
	c.log.Debug().
		Int("pairs", len(pairs)).
		Int("cached", len(pairs)-len(remaining)).
		Int("batches", len(batches)).
		Msg("arbitrating uncertain pairs")

	var wg sync.WaitGroup
	sem := make(chan struct{}, c.cfg.Concurrency)
	var mu sync.Mutex // guards decisions and mlog across workers

	for _, b := range batches {
		wg.Add(1)
		go func(indexes []int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			got := c.classifyBatch(ctx, pairs, indexes)
			mu.Lock()
			defer mu.Unlock()
			for _, i := range indexes {
				d := got[i]
				decisions[i] = d
				src := "service"
				if d.Reasoning == defaultReasoning {
					src = "default"
				}
				mlog.Arbiter(pairs[i].A.Resource, pairs[i].B.Resource, string(d.Class), d.Confidence, d.Reasoning, src)
			}
		}(b)
	}
	wg.Wait()
	return decisions
}

const defaultReasoning = "no usable ruling; defaulting to unmatched"

func (c *Classifier) cached(p match.Pair) (match.Decision, bool) {
	if c.cache == nil {
		return match.Decision{}, false
	}
	d, ok, err := c.cache.Get(p.A.Fingerprint(), p.B.Fingerprint())
	if err != nil {
		c.log.Warn().Err(err).Msg("decision cache read failed")
		return match.Decision{}, false
	}
	if !ok {
		return match.Decision{}, false
	}
	return match.Decision{Pair: p, Class: classOf(d.Decision), Confidence: d.Confidence, Reasoning: d.Reasoning}, true
}

// batch groups pair indexes by count and by an approximate prompt token
// budget (4 bytes per token heuristic).
func (c *Classifier) batch(pairs []match.Pair, indexes []int) [][]int {
	headerTokens := len(promptHeader) / 4
	var batches [][]int
	var cur []int
	tokens := headerTokens
	for _, i := range indexes {
		cost := pairTokens(pairs[i])
		if len(cur) > 0 && (len(cur) >= c.cfg.MaxBatchPairs || tokens+cost > c.cfg.MaxPromptTokens) {
			batches = append(batches, cur)
			cur = nil
			tokens = headerTokens
		}
		cur = append(cur, i)
		tokens += cost
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

func pairTokens(p match.Pair) int {
	n := len(p.A.Name()) + len(p.B.Name()) + len(p.A.Notes) + len(p.B.Notes)
	for _, s := range p.A.Emails {
		n += len(s)
	}
	for _, s := range p.B.Emails {
		n += len(s)
	}
	for _, s := range p.A.Phones {
		n += len(s)
	}
	for _, s := range p.B.Phones {
		n += len(s)
	}
	for _, s := range p.A.Organizations {
		n += len(s)
	}
	for _, s := range p.B.Organizations {
		n += len(s)
	}
	// Field labels and framing add roughly 50 tokens per pair.
	return n/4 + 50
}

// classifyBatch sends one batch, retrying transient failures, and returns
// a decision per index. Pairs with no usable verdict default to unmatched.
func (c *Classifier) classifyBatch(ctx context.Context, pairs []match.Pair, indexes []int) map[int]match.Decision {
	out := make(map[int]match.Decision, len(indexes))
	for _, i := range indexes {
		out[i] = match.Decision{Pair: pairs[i], Class: match.ClassUnmatched, Reasoning: defaultReasoning}
	}

	batch := make([]match.Pair, len(indexes))
	for n, i := range indexes {
		batch[n] = pairs[i]
	}
	prompt := buildPrompt(batch)

	var raw string
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
		var err error
		raw, err = c.gen.generate(attemptCtx, prompt)
		if err != nil {
			if ctx.Err() != nil || !errors.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		c.log.Warn().Err(err).Int("pairs", len(indexes)).Msg("arbiter batch failed; pairs left unmatched")
		return out
	}

	verdicts, err := parseResponse(raw, len(batch))
	if err != nil {
		c.log.Warn().Err(err).Int("pairs", len(indexes)).Msg("arbiter response unparseable; pairs left unmatched")
		return out
	}

	for n, i := range indexes {
		v, ok := verdicts[n]
		if !ok {
			continue
		}
		d := match.Decision{Pair: pairs[i], Class: classOf(v.Decision), Confidence: v.Confidence, Reasoning: v.Reasoning}
		out[i] = d
		c.store(pairs[i], v)
	}
	return out
}

func (c *Classifier) store(p match.Pair, v verdict) {
	if c.cache == nil {
		return
	}
	err := c.cache.Put(p.A.Fingerprint(), p.B.Fingerprint(), CachedDecision{
		Decision:   v.Decision,
		Confidence: v.Confidence,
		Reasoning:  v.Reasoning,
		Model:      c.cfg.Model,
		DecidedAt:  time.Now().UTC(),
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("decision cache write failed")
	}
}
