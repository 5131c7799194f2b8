package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katakuxiko/vectorbrain/internal/apperr"
	"github.com/katakuxiko/vectorbrain/internal/logging"
	"github.com/katakuxiko/vectorbrain/internal/vector"
)

// stubProvider counts calls and fails the first failures calls.
type stubProvider struct {
	calls    atomic.Int32
	failures int32
	delay    time.Duration
	vec      []float32
	err      error
}

func (p *stubProvider) Embed(ctx context.Context, _, _ string) ([]float32, error) {
	n := p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	if n <= p.failures {
		return nil, errors.New("connection refused")
	}
	return append([]float32(nil), p.vec...), nil
}

func newTestClient(t *testing.T, p Provider, opts Options) *Client {
	t.Helper()
	cache, err := NewLRUCache(16)
	require.NoError(t, err)
	if opts.Model == "" {
		opts.Model = "nomic-embed-text"
	}
	if opts.Dimension == 0 {
		opts.Dimension = 2
	}
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	c, err := NewClient(p, cache, opts, logging.Discard())
	require.NoError(t, err)
	return c
}

func TestEmbed_CacheHitSkipsProvider(t *testing.T) {
	p := &stubProvider{vec: []float32{0.5, 0.25}}
	c := newTestClient(t, p, Options{})

	first, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestEmbed_CachedVectorIsNotAliased(t *testing.T) {
	p := &stubProvider{vec: []float32{1, 2}}
	c := newTestClient(t, p, Options{})

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	v[0] = 42

	again, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, again)
}

func TestEmbed_ConcurrentMissesShareOneCall(t *testing.T) {
	p := &stubProvider{vec: []float32{1, 0}, delay: 20 * time.Millisecond}
	c := newTestClient(t, p, Options{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Embed(context.Background(), "same text")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, p.calls.Load())
}

func TestEmbed_DifferentModelsAreCachedSeparately(t *testing.T) {
	p := &stubProvider{vec: []float32{1, 0}}
	c := newTestClient(t, p, Options{})

	_, err := c.EmbedWithModel(context.Background(), "a", "text")
	require.NoError(t, err)
	_, err = c.EmbedWithModel(context.Background(), "b", "text")
	require.NoError(t, err)

	assert.EqualValues(t, 2, p.calls.Load())
}

func TestEmbed_RetriesThenSucceeds(t *testing.T) {
	p := &stubProvider{vec: []float32{1, 0}, failures: 2}
	c := newTestClient(t, p, Options{Retries: 3})

	v, err := c.Embed(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	assert.EqualValues(t, 3, p.calls.Load())
}

func TestEmbed_ProviderFailure(t *testing.T) {
	p := &stubProvider{err: errors.New("503 service unavailable")}
	c := newTestClient(t, p, Options{Retries: 2})

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrProviderUnavailable)
	assert.EqualValues(t, 3, p.calls.Load())

	// failures are not cached
	p.err = nil
	p.vec = []float32{0, 1}
	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, v)
}

func TestEmbed_MalformedResponseIsNotRetried(t *testing.T) {
	p := &stubProvider{err: ErrMalformedResponse}
	c := newTestClient(t, p, Options{Retries: 5})

	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, apperr.ErrProviderUnavailable)
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	p := &stubProvider{vec: []float32{1, 2, 3}}
	c := newTestClient(t, p, Options{Dimension: 2, Retries: 3})

	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, apperr.ErrProviderUnavailable)
	assert.EqualValues(t, 1, p.calls.Load())

	assert.Error(t, c.Probe(context.Background()))
}

func TestEmbed_Timeout(t *testing.T) {
	p := &stubProvider{vec: []float32{1, 0}, delay: time.Second}
	c := newTestClient(t, p, Options{Timeout: 10 * time.Millisecond})

	start := time.Now()
	_, err := c.Embed(context.Background(), "slow")
	assert.ErrorIs(t, err, apperr.ErrProviderUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestEmbed_CallerCancellation(t *testing.T) {
	p := &stubProvider{vec: []float32{1, 0}, delay: 200 * time.Millisecond}
	c := newTestClient(t, p, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Embed(ctx, "slow")
	assert.ErrorIs(t, err, apperr.ErrProviderUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmbed_Normalize(t *testing.T) {
	p := &stubProvider{vec: []float32{3, 4}}
	c := newTestClient(t, p, Options{Normalize: true})

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vector.Norm(v), 1e-6)
}

func TestProbe(t *testing.T) {
	p := &stubProvider{vec: []float32{1, 0}}
	c := newTestClient(t, p, Options{})

	assert.NoError(t, c.Probe(context.Background()))
}

func TestNewClient_Validation(t *testing.T) {
	cache, _ := NewLRUCache(1)
	_, err := NewClient(nil, cache, Options{Model: "m", Dimension: 2}, logging.Discard())
	assert.Error(t, err)
	_, err = NewClient(&stubProvider{}, cache, Options{Model: "m"}, logging.Discard())
	assert.Error(t, err)
	_, err = NewClient(&stubProvider{}, cache, Options{Dimension: 2}, logging.Discard())
	assert.Error(t, err)
}
