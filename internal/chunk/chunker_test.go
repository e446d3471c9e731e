package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memmcp/memmcp/internal/errors"
)

func newChunker(t *testing.T, size, overlap int) *Chunker {
	t.Helper()
	c, err := New(size, overlap)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "defaults", size: DefaultSize, overlap: DefaultOverlap},
		{name: "minimal", size: 1, overlap: 0},
		{name: "zero size", size: 0, overlap: 0, wantErr: true},
		{name: "negative overlap", size: 10, overlap: -1, wantErr: true},
		{name: "overlap equals size", size: 10, overlap: 10, wantErr: true},
		{name: "overlap just under size", size: 10, overlap: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.size, tt.overlap)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsKind(err, errors.KindInvalidArgument))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
		})
	}
}

func TestChunker_Split_SingleSection(t *testing.T) {
	c := newChunker(t, DefaultSize, DefaultOverlap)

	chunks := c.Split("# P1\n\nAlpha.")
	require.Len(t, chunks, 1)

	assert.Equal(t, "# P1\n\nAlpha.", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, []string{"P1"}, chunks[0].HeaderPath)
	assert.Equal(t, 1, chunks[0].SectionLevel)
}

func TestChunker_Split_HeaderBasedSections(t *testing.T) {
	c := newChunker(t, DefaultSize, DefaultOverlap)

	content := `# Title

Welcome to the project.

## Section 1

Content for section 1.

## Section 2

Content for section 2.
`

	chunks := c.Split(content)
	require.Len(t, chunks, 3)

	assert.Contains(t, chunks[0].Content, "# Title")
	assert.Contains(t, chunks[0].Content, "Welcome to the project")
	assert.Contains(t, chunks[1].Content, "## Section 1")
	assert.Contains(t, chunks[2].Content, "## Section 2")

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}

func TestChunker_Split_HeaderPathTracking(t *testing.T) {
	c := newChunker(t, DefaultSize, DefaultOverlap)

	content := `# Top

Intro.

## Middle

Middle content.

### Deep

Deep content.

## Sibling

Sibling content.
`

	chunks := c.Split(content)
	require.Len(t, chunks, 4)

	assert.Equal(t, []string{"Top"}, chunks[0].HeaderPath)
	assert.Equal(t, []string{"Top", "Middle"}, chunks[1].HeaderPath)
	assert.Equal(t, []string{"Top", "Middle", "Deep"}, chunks[2].HeaderPath)
	assert.Equal(t, []string{"Top", "Sibling"}, chunks[3].HeaderPath)

	assert.Equal(t, 1, chunks[0].SectionLevel)
	assert.Equal(t, 2, chunks[1].SectionLevel)
	assert.Equal(t, 3, chunks[2].SectionLevel)
	assert.Equal(t, 2, chunks[3].SectionLevel)
}

func TestChunker_Split_SkippedHeaderLevels(t *testing.T) {
	c := newChunker(t, DefaultSize, DefaultOverlap)

	chunks := c.Split("# A\n\nintro\n\n### C\n\ndeep\n")
	require.Len(t, chunks, 2)

	// The empty level-2 slot collapses out of the path.
	assert.Equal(t, []string{"A", "C"}, chunks[1].HeaderPath)
	assert.Equal(t, 2, chunks[1].SectionLevel)
}

func TestChunker_Split_PreHeaderText(t *testing.T) {
	c := newChunker(t, DefaultSize, DefaultOverlap)

	chunks := c.Split("intro line\n\n# A\n\nbody\n")
	require.Len(t, chunks, 2)

	assert.Equal(t, "intro line", chunks[0].Content)
	assert.Empty(t, chunks[0].HeaderPath)
	assert.Equal(t, 0, chunks[0].SectionLevel)

	assert.Equal(t, []string{"A"}, chunks[1].HeaderPath)
}

func TestChunker_Split_HeaderOnlySection(t *testing.T) {
	c := newChunker(t, DefaultSize, DefaultOverlap)

	chunks := c.Split("# A\n## B\nbody\n")
	require.Len(t, chunks, 2)

	assert.Equal(t, "# A", chunks[0].Content)
	assert.Equal(t, []string{"A"}, chunks[0].HeaderPath)
	assert.Equal(t, "## B\nbody", chunks[1].Content)
	assert.Equal(t, []string{"A", "B"}, chunks[1].HeaderPath)
}

func TestChunker_Split_SingleCharBudget(t *testing.T) {
	c := newChunker(t, 1, 0)

	chunks := c.Split("0123456789")
	require.Len(t, chunks, 10)

	for i, ch := range chunks {
		assert.Equal(t, string(rune('0'+i)), ch.Content)
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, 0, ch.SectionLevel)
	}
}

func TestChunker_Split_LongHeaderLineEmittedWhole(t *testing.T) {
	c := newChunker(t, 10, 0)

	chunks := c.Split("# a very long header title\nbody text here")
	require.NotEmpty(t, chunks)

	assert.Equal(t, "# a very long header title", chunks[0].Content)
	for _, ch := range chunks[1:] {
		assert.LessOrEqual(t, len(ch.Content), 10)
	}
}

func TestChunker_Split_SentenceBreaks(t *testing.T) {
	c := newChunker(t, 25, 0)

	chunks := c.Split("One sentence. Two sentence. Three.")
	require.Len(t, chunks, 2)

	assert.Equal(t, "One sentence.", chunks[0].Content)
	assert.Equal(t, "Two sentence. Three.", chunks[1].Content)
}

func TestChunker_Split_OverlapWithinSection(t *testing.T) {
	c := newChunker(t, 20, 5)

	chunks := c.Split(strings.Repeat("abcde", 20))
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		tail := prev[len(prev)-5:]
		assert.True(t, strings.HasPrefix(chunks[i].Content, tail),
			"chunk %d should start with the previous chunk's tail", i)
	}
}

func TestChunker_Split_NoOverlapAcrossSections(t *testing.T) {
	c := newChunker(t, 50, 20)

	chunks := c.Split("# A\n\naaaa aaaa\n\n# B\n\nbbbb bbbb\n")
	require.Len(t, chunks, 2)

	assert.NotContains(t, chunks[1].Content, "aaaa")
}

func TestChunker_Split_CodeFenceNotAHeader(t *testing.T) {
	c := newChunker(t, DefaultSize, DefaultOverlap)

	content := "# Guide\n\n```\n# not a header\n```\n\nafter\n"
	chunks := c.Split(content)
	require.Len(t, chunks, 1)

	assert.Equal(t, []string{"Guide"}, chunks[0].HeaderPath)
	assert.Contains(t, chunks[0].Content, "# not a header")
}

func TestChunker_Split_EmptyContent(t *testing.T) {
	c := newChunker(t, DefaultSize, DefaultOverlap)

	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\n\t\n"))
}

func TestChunker_Split_CRLFNormalized(t *testing.T) {
	c := newChunker(t, DefaultSize, DefaultOverlap)

	chunks := c.Split("# A\r\n\r\nbody\r\n")
	require.Len(t, chunks, 1)
	assert.Equal(t, "# A\n\nbody", chunks[0].Content)
}

func TestChunker_Split_Deterministic(t *testing.T) {
	c := newChunker(t, 40, 10)

	content := "# A\n\n" + strings.Repeat("some words here. ", 30) + "\n\n## B\n\nmore text\n"
	first := c.Split(content)
	second := c.Split(content)

	require.Equal(t, first, second)
}
