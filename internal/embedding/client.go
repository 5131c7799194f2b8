// Package embedding turns text into fixed-size vectors through an external
// provider, memoizing results in a content-addressed cache.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kataras/golog"
	"golang.org/x/sync/singleflight"

	"github.com/katakuxiko/vectorbrain/internal/apperr"
	"github.com/katakuxiko/vectorbrain/internal/vector"
)

const probeText = "dimension probe"

// Options настраивают Client.
type Options struct {
	Model     string
	Dimension int
	Normalize bool
	// Timeout bounds every single provider call.
	Timeout time.Duration
	// Retries is the number of extra attempts after the first failure.
	Retries int
	// Backoff is the initial retry interval; it doubles on each attempt.
	Backoff time.Duration
}

// Client — кэширующий клиент эмбеддингов.
type Client struct {
	provider Provider
	cache    Cache
	opts     Options
	group    singleflight.Group
	log      *golog.Logger
}

// NewClient wires a provider and a cache.
func NewClient(provider Provider, cache Cache, opts Options, log *golog.Logger) (*Client, error) {
	if provider == nil || cache == nil {
		return nil, errors.New("embedding: provider and cache are required")
	}
	if opts.Model == "" {
		return nil, errors.New("embedding: model is required")
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("embedding: dimension must be positive, got %d", opts.Dimension)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Client{provider: provider, cache: cache, opts: opts, log: log}, nil
}

// Model returns the default model identifier.
func (c *Client) Model() string { return c.opts.Model }

// Dimension returns the configured vector length.
func (c *Client) Dimension() int { return c.opts.Dimension }

// Embed returns the vector for text using the default model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.EmbedWithModel(ctx, c.opts.Model, text)
}

// EmbedWithModel returns the cached vector for (model, text) or asks the
// provider. Concurrent misses for the same key share a single provider call.
func (c *Client) EmbedWithModel(ctx context.Context, model, text string) ([]float32, error) {
	key := Digest(model, text)
	if v, ok := c.cache.Get(ctx, key); ok {
		c.log.Debugf("embedding cache hit %s", key)
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// The shared call must not die with whichever caller started it.
		shared := context.WithoutCancel(ctx)
		// Another caller may have filled the cache while we waited.
		if v, ok := c.cache.Get(shared, key); ok {
			return v, nil
		}
		v, err := c.fetch(shared, model, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(shared, key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.ProviderUnavailable, ctx.Err(), "embedding request cancelled")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]float32)), nil
	}
}

// fetch calls the provider with a per-attempt timeout and bounded
// exponential backoff between attempts.
func (c *Client) fetch(ctx context.Context, model, text string) ([]float32, error) {
	var out []float32
	attempt := 0

	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		v, err := c.provider.Embed(callCtx, model, text)
		if err != nil {
			if errors.Is(err, ErrMalformedResponse) {
				return backoff.Permanent(err)
			}
			c.log.Warnf("embedding attempt %d/%d failed: %v", attempt, c.opts.Retries+1, err)
			return err
		}
		if len(v) != c.opts.Dimension {
			return backoff.Permanent(fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
				ErrMalformedResponse, model, len(v), c.opts.Dimension))
		}
		if c.opts.Normalize {
			v = vector.Normalize(v)
		}
		out = v
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.Backoff
	b.MaxInterval = 8 * c.opts.Backoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.Retries)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, err, "embedding provider failed")
	}
	return out, nil
}

// Probe embeds a fixed string and fails when the provider's dimension does
// not match the configured one. Call it once at startup.
func (c *Client) Probe(ctx context.Context) error {
	v, err := c.fetch(ctx, c.opts.Model, probeText)
	if err != nil {
		return fmt.Errorf("embedding probe: %w", err)
	}
	c.log.Infof("embedding model %s ready, dimension %d", c.opts.Model, len(v))
	return nil
}
