// Package search provides hybrid memory search combining vector and
// fulltext retrieval. Results are fused using Reciprocal Rank Fusion
// (RRF) for robust rank-based scoring.
package search

import (
	"context"

	"github.com/memmcp/memmcp/internal/store"
)

// Mode selects the search algorithm.
type Mode string

const (
	ModeVector   Mode = "vector"
	ModeFulltext Mode = "fulltext"
	ModeHybrid   Mode = "hybrid"
)

// Query describes one search request.
type Query struct {
	// Text is the search text. Must not be blank.
	Text string

	// Mode selects the algorithm. Empty means hybrid.
	Mode Mode

	// Limit is the maximum number of hits. 0 returns no hits, negative
	// uses the configured default, and values above MaxLimit are capped.
	Limit int

	// FilePath scopes the search to one file.
	FilePath string

	// Categories keeps hits from files in any of these categories.
	Categories []string

	// Tags keeps hits from files carrying all of these tags.
	Tags []string
}

// Hit is a single search result.
type Hit struct {
	ChunkID    int64    `json:"chunk_id"`
	FilePath   string   `json:"file_path"`
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Content    string   `json:"content"`
	HeaderPath []string `json:"header_path"`

	// Score is mode-specific: cosine similarity rescaled to [0,1] for
	// vector, ts_rank_cd for fulltext, and the raw RRF sum for hybrid.
	Score float64 `json:"score"`
}

// Results is the outcome of one search.
type Results struct {
	Hits []Hit `json:"hits"`

	// Degraded reports that a hybrid search lost one of its backends
	// and fell back to the other.
	Degraded bool `json:"degraded,omitempty"`
}

// SearchEngine executes memory searches.
type SearchEngine interface {
	Search(ctx context.Context, q Query) (*Results, error)
}

// Searcher is the slice of the index store the engine needs.
type Searcher interface {
	VectorSearch(ctx context.Context, queryVec []float32, k int, f store.Filters) ([]store.RankedChunk, error)
	FulltextSearch(ctx context.Context, query string, k int, f store.Filters) ([]store.RankedChunk, error)
}

// Config configures the search engine.
type Config struct {
	// DefaultLimit is the result count when a query does not specify
	// one (default: 20).
	DefaultLimit int

	// MaxLimit caps per-query limits (default: 100).
	MaxLimit int

	// RRFConstant is the RRF fusion constant k (default: 60).
	RRFConstant int

	// CandidateFloor is the minimum per-backend candidate count, so
	// fusion has headroom beyond the requested limit (default: 50).
	CandidateFloor int
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:   20,
		MaxLimit:       100,
		RRFConstant:    DefaultRRFConstant,
		CandidateFloor: 50,
	}
}
