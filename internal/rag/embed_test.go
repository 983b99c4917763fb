package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/rangecoach/internal/logging"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(0)
	assert.Equal(t, DefaultDimensions, e.Dimensions)

	a, err := e.Embed(context.Background(), []string{"nmap scan of the target subnet"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"nmap scan of the target subnet"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := e.Embed(context.Background(), []string{"completely different text"})
	require.NoError(t, err)
	assert.NotEqual(t, a[0], c[0])
}

func TestHashEmbedderUnitNorm(t *testing.T) {
	e := NewHashEmbedder(64)
	vectors, err := e.Embed(context.Background(), []string{"alpha beta gamma delta"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)

	var norm float64
	for _, v := range vectors[0] {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestHashEmbedderEmptyText(t *testing.T) {
	e := NewHashEmbedder(16)
	vectors, err := e.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	for _, v := range vectors[0] {
		assert.Zero(t, v)
	}
}

// fakeKV counts cache traffic and can be forced to fail.
type fakeKV struct {
	entries  map[string][]byte
	getErr   error
	setErr   error
	pruned   int
	getCalls int
}

func newFakeKV() *fakeKV {
	return &fakeKV{entries: map[string][]byte{}}
}

func (f *fakeKV) GetJSON(key string, out any) (bool, error) {
	f.getCalls++
	if f.getErr != nil {
		return false, f.getErr
	}
	data, ok := f.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func (f *fakeKV) SetJSON(key string, value any, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = data
	return nil
}

func (f *fakeKV) Prune(int) error {
	f.pruned++
	return nil
}

// countingEmbedder wraps an embedder and records call count.
type countingEmbedder struct {
	base  Embedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	c.calls++
	return c.base.Embed(ctx, texts)
}

func TestCachedEmbedderMemoizes(t *testing.T) {
	base := &countingEmbedder{base: NewHashEmbedder(32)}
	kv := newFakeKV()
	cached := NewCachedEmbedder(base, kv, "test", 0, 100, logging.New(io.Discard, "silent"))

	first, err := cached.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, 1, base.calls)

	second, err := cached.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, 1, base.calls, "fully cached batch must not reach the base embedder")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, kv.pruned)
}

func TestCachedEmbedderPartialHit(t *testing.T) {
	base := &countingEmbedder{base: NewHashEmbedder(32)}
	kv := newFakeKV()
	cached := NewCachedEmbedder(base, kv, "test", 0, 0, logging.New(io.Discard, "silent"))

	_, err := cached.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)

	out, err := cached.Embed(context.Background(), []string{"alpha", "gamma"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2, base.calls)
	for _, vec := range out {
		assert.Len(t, vec, 32)
	}
}

func TestCachedEmbedderCacheFailureDegrades(t *testing.T) {
	base := &countingEmbedder{base: NewHashEmbedder(32)}
	kv := newFakeKV()
	kv.getErr = fmt.Errorf("cache offline")
	kv.setErr = fmt.Errorf("cache offline")
	cached := NewCachedEmbedder(base, kv, "test", 0, 0, logging.New(io.Discard, "silent"))

	out, err := cached.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, base.calls)
}

// truncatingEmbedder returns fewer vectors than texts.
type truncatingEmbedder struct{}

func (truncatingEmbedder) Embed(context.Context, []string) ([][]float64, error) {
	return [][]float64{{1, 0}}, nil
}

func TestCachedEmbedderRejectsShortBatch(t *testing.T) {
	cached := NewCachedEmbedder(truncatingEmbedder{}, newFakeKV(), "test", 0, 0, logging.New(io.Discard, "silent"))

	_, err := cached.Embed(context.Background(), []string{"alpha", "beta"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestCachedEmbedderKeyNormalizesWhitespace(t *testing.T) {
	base := &countingEmbedder{base: NewHashEmbedder(32)}
	kv := newFakeKV()
	cached := NewCachedEmbedder(base, kv, "test", 0, 0, logging.New(io.Discard, "silent"))

	_, err := cached.Embed(context.Background(), []string{"alpha   beta"})
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), []string{"alpha beta"})
	require.NoError(t, err)
	assert.Equal(t, 1, base.calls)
}
