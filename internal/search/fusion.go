package search

import (
	"sort"

	"github.com/memmcp/memmcp/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// FusedResult represents a single chunk after RRF fusion.
type FusedResult struct {
	Chunk    store.RankedChunk // payload from whichever backend saw it
	RRFScore float64           // combined RRF score
	VecRank  int               // position in the vector list (1-indexed, 0 if absent)
	TextRank int               // position in the fulltext list (1-indexed, 0 if absent)
}

// minRank is the best position the chunk reached in either list.
func (r *FusedResult) minRank() int {
	switch {
	case r.VecRank == 0:
		return r.TextRank
	case r.TextRank == 0:
		return r.VecRank
	case r.VecRank < r.TextRank:
		return r.VecRank
	}
	return r.TextRank
}

// RRFFusion combines vector and fulltext results using Reciprocal Rank
// Fusion.
//
// Algorithm: RRF_score(c) = Σ 1 / (k + rank_i)
//
// Where rank_i is the chunk's 1-indexed position in ranked list i.
// Chunks present in only one list contribute only that list's term.
type RRFFusion struct {
	K int // RRF smoothing constant (default: 60)
}

// NewRRFFusion creates a new RRF fusion instance with default k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates a new RRF fusion with custom k value.
// If k <= 0, defaults to 60.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse combines vector and fulltext results.
//
// Results are sorted by: RRFScore (desc) → min(VecRank, TextRank)
// (asc) → ChunkID (asc).
func (f *RRFFusion) Fuse(vec, fulltext []store.RankedChunk) []*FusedResult {
	if len(vec) == 0 && len(fulltext) == 0 {
		return []*FusedResult{}
	}

	scores := make(map[int64]*FusedResult, len(vec)+len(fulltext))

	for _, rc := range vec {
		result := f.getOrCreate(scores, rc)
		result.VecRank = rc.Rank
		result.RRFScore += 1.0 / float64(f.K+rc.Rank)
	}

	for _, rc := range fulltext {
		result := f.getOrCreate(scores, rc)
		result.TextRank = rc.Rank
		result.RRFScore += 1.0 / float64(f.K+rc.Rank)
	}

	return f.toSortedSlice(scores)
}

// getOrCreate returns the existing result or creates one for the chunk.
func (f *RRFFusion) getOrCreate(m map[int64]*FusedResult, rc store.RankedChunk) *FusedResult {
	if r, ok := m[rc.ChunkID]; ok {
		return r
	}
	r := &FusedResult{Chunk: rc}
	m[rc.ChunkID] = r
	return r
}

// toSortedSlice converts the map to a deterministically sorted slice.
func (f *RRFFusion) toSortedSlice(m map[int64]*FusedResult) []*FusedResult {
	results := make([]*FusedResult, 0, len(m))
	for _, r := range m {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return f.compare(results[i], results[j])
	})

	return results
}

// compare implements deterministic comparison for sorting.
// Returns true if a should rank before b.
//
// Priority:
//  1. Higher RRF score
//  2. Smaller best rank in either list
//  3. Smaller ChunkID (deterministic)
func (f *RRFFusion) compare(a, b *FusedResult) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}

	if ar, br := a.minRank(), b.minRank(); ar != br {
		return ar < br
	}

	return a.Chunk.ChunkID < b.Chunk.ChunkID
}
