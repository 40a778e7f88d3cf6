package embedding

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/docuchat/docuchat/internal/domain"
)

const (
	// DefaultMaxTextChars bounds a single input text. Longer inputs are
	// rejected up front; the API would truncate or reject them anyway.
	DefaultMaxTextChars = 8000

	// DefaultMaxBatchSize bounds one batch call.
	DefaultMaxBatchSize = 100

	// DefaultMaxRetries is the total number of attempts per batch.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the first backoff interval; attempt n waits
	// baseDelay * 2^n.
	DefaultBaseDelay = 500 * time.Millisecond
)

// api is the transport the Embedder retries against. *Client implements it;
// tests substitute a fake to exercise retry semantics without the network.
type api interface {
	createEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Options tunes validation limits and the retry policy. Zero values take the
// package defaults.
type Options struct {
	MaxTextChars int
	MaxBatchSize int
	MaxRetries   int
	BaseDelay    time.Duration
}

// Embedder validates inputs and retries transient failures with exponential
// backoff. It holds no mutable state and is safe for concurrent use.
type Embedder struct {
	api          api
	maxTextChars int
	maxBatchSize int
	maxRetries   int
	baseDelay    time.Duration
}

// NewEmbedder creates an Embedder over the given client.
func NewEmbedder(client *Client, opts Options) *Embedder {
	return newEmbedder(client, opts)
}

func newEmbedder(a api, opts Options) *Embedder {
	if opts.MaxTextChars <= 0 {
		opts.MaxTextChars = DefaultMaxTextChars
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	return &Embedder{
		api:          a,
		maxTextChars: opts.MaxTextChars,
		maxBatchSize: opts.MaxBatchSize,
		maxRetries:   opts.MaxRetries,
		baseDelay:    opts.BaseDelay,
	}
}

// MaxBatchSize returns the configured batch limit so callers can pre-split.
func (e *Embedder) MaxBatchSize() int { return e.maxBatchSize }

// EmbedOne embeds a single text. Validation failures surface immediately with
// no attempt made.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts, returning vectors in 1:1 positional
// correspondence with the input. The whole batch is one API call, retried as
// a unit on transient failures.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, domain.Validationf("embedding batch is empty")
	}
	if len(texts) > e.maxBatchSize {
		return nil, domain.Validationf("embedding batch has %d texts, maximum is %d", len(texts), e.maxBatchSize)
	}
	for i, text := range texts {
		if text == "" {
			return nil, domain.Validationf("embedding input %d is empty", i)
		}
		if len(text) > e.maxTextChars {
			return nil, domain.Validationf("embedding input %d has %d chars, maximum is %d", i, len(text), e.maxTextChars)
		}
	}

	var vectors [][]float32
	operation := func() error {
		result, err := e.api.createEmbeddings(ctx, texts)
		if err != nil {
			if domain.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(result) != len(texts) {
			return backoff.Permanent(domain.NewError(domain.KindPermanent, "embedding count does not match input count"))
		}
		vectors = result
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(e.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// newBackOff builds the per-call policy: delays baseDelay, 2·baseDelay, ...,
// capped at maxRetries total attempts. No jitter, so total wait is bounded by
// baseDelay * (2^maxRetries - 1).
func (e *Embedder) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = e.baseDelay * time.Duration(1<<uint(e.maxRetries))
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(e.maxRetries-1))
}
