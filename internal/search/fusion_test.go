package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memmcp/memmcp/internal/store"
)

// ranked builds a backend result list with ranks assigned 1..n.
func ranked(ids ...int64) []store.RankedChunk {
	out := make([]store.RankedChunk, len(ids))
	for i, id := range ids {
		out[i] = store.RankedChunk{
			ChunkID:  id,
			FileID:   id,
			Rank:     i + 1,
			Content:  "chunk",
			FilePath: "projects/p1.md",
		}
	}
	return out
}

func rankedN(n int) []store.RankedChunk {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ranked(ids...)
}

func fusedIDs(results []*FusedResult) []int64 {
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.Chunk.ChunkID
	}
	return ids
}

func TestFuse_ChunkInBothListsRanksFirst(t *testing.T) {
	vec := ranked(1, 2, 3)
	ft := ranked(3, 4, 5)

	results := NewRRFFusion().Fuse(vec, ft)

	require.Len(t, results, 5)
	// Chunk 3 holds vector rank 3 and fulltext rank 1; two
	// contributions beat any single one.
	assert.Equal(t, int64(3), results[0].Chunk.ChunkID)
	assert.InDelta(t, 1.0/63+1.0/61, results[0].RRFScore, 1e-12)
	assert.Equal(t, 3, results[0].VecRank)
	assert.Equal(t, 1, results[0].TextRank)
}

func TestFuse_DeterministicOrder(t *testing.T) {
	vec := ranked(1, 2, 3)
	ft := ranked(3, 4, 5)

	results := NewRRFFusion().Fuse(vec, ft)

	// Chunks 2 and 4 tie at 1/62 and share best rank 2, so the chunk
	// id decides.
	assert.Equal(t, []int64{3, 1, 2, 4, 5}, fusedIDs(results))
}

func TestFuse_SingleListContributesOneTerm(t *testing.T) {
	results := NewRRFFusion().Fuse(ranked(7), nil)

	require.Len(t, results, 1)
	assert.InDelta(t, 1.0/61, results[0].RRFScore, 1e-12)
	assert.Equal(t, 1, results[0].VecRank)
	assert.Zero(t, results[0].TextRank)
}

func TestFuse_MirroredRanksTieBreakByChunkID(t *testing.T) {
	vec := ranked(9, 4)
	ft := ranked(4, 9)

	results := NewRRFFusion().Fuse(vec, ft)

	require.Len(t, results, 2)
	assert.Equal(t, []int64{4, 9}, fusedIDs(results))
	assert.InDelta(t, results[0].RRFScore, results[1].RRFScore, 1e-12)
}

func TestFuse_Empty(t *testing.T) {
	results := NewRRFFusion().Fuse(nil, nil)
	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFuse_CustomK(t *testing.T) {
	results := NewRRFFusionWithK(1).Fuse(ranked(1), ranked(1))

	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].RRFScore, 1e-12)
}

func TestNewRRFFusionWithK_DefaultsNonPositive(t *testing.T) {
	assert.Equal(t, DefaultRRFConstant, NewRRFFusionWithK(0).K)
	assert.Equal(t, DefaultRRFConstant, NewRRFFusionWithK(-5).K)
}

func TestCompare_MinRankBreaksTies(t *testing.T) {
	f := NewRRFFusion()
	a := &FusedResult{Chunk: store.RankedChunk{ChunkID: 2}, RRFScore: 0.5, VecRank: 1, TextRank: 9}
	b := &FusedResult{Chunk: store.RankedChunk{ChunkID: 1}, RRFScore: 0.5, VecRank: 4, TextRank: 6}

	assert.True(t, f.compare(a, b), "best single-list position wins the tie")
	assert.False(t, f.compare(b, a))
}

func TestMinRank(t *testing.T) {
	tests := []struct {
		name     string
		vec, txt int
		want     int
	}{
		{"both present", 3, 5, 3},
		{"fulltext better", 5, 2, 2},
		{"vector only", 4, 0, 4},
		{"fulltext only", 0, 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &FusedResult{VecRank: tt.vec, TextRank: tt.txt}
			assert.Equal(t, tt.want, r.minRank())
		})
	}
}
