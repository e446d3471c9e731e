package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder records calls and embeds each text as [first byte, 0].
type fakeEmbedder struct {
	name       string
	dims       int
	embedCalls int
	batchIn    [][]string
	err        error
}

var _ Embedder = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) vec(text string) []float32 {
	v := make([]float32, f.dims)
	if len(text) > 0 {
		v[0] = float32(text[0])
	}
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.embedCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchIn = append(f.batchIn, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vec(text)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) Name() string    { return f.name }
func (f *fakeEmbedder) Close() error    { return nil }

func TestCached_EmbedHitsCache(t *testing.T) {
	fake := &fakeEmbedder{name: "fake", dims: 2}
	c := NewCached(fake, 16)

	first, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.embedCalls)
}

func TestCached_EmbedBatchForwardsOnlyMisses(t *testing.T) {
	fake := &fakeEmbedder{name: "fake", dims: 2}
	c := NewCached(fake, 16)

	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(context.Background(), []string{"b", "c", "a"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, fake.vec("b"), vecs[0])
	assert.Equal(t, fake.vec("c"), vecs[1])
	assert.Equal(t, fake.vec("a"), vecs[2])

	require.Len(t, fake.batchIn, 2)
	assert.Equal(t, []string{"c"}, fake.batchIn[1])
}

func TestCached_AllHitsSkipProvider(t *testing.T) {
	fake := &fakeEmbedder{name: "fake", dims: 2}
	c := NewCached(fake, 16)

	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	_, err = c.EmbedBatch(context.Background(), []string{"b", "a"})
	require.NoError(t, err)

	assert.Len(t, fake.batchIn, 1)
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	fake := &fakeEmbedder{name: "fake", dims: 2}
	c := NewCached(fake, 16)

	fake.err = assert.AnError
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)

	fake.err = nil
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, fake.vec("hello"), vec)
	assert.Equal(t, 2, fake.embedCalls)
}

func TestCached_Passthrough(t *testing.T) {
	fake := &fakeEmbedder{name: "fake-model", dims: 7}
	c := NewCached(fake, 16)

	assert.Equal(t, 7, c.Dimensions())
	assert.Equal(t, "fake-model", c.Name())
	assert.Same(t, Embedder(fake), c.Inner())
}
