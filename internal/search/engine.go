package search

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/memmcp/memmcp/internal/embed"
	"github.com/memmcp/memmcp/internal/errors"
	"github.com/memmcp/memmcp/internal/store"
)

// Engine implements hybrid search over the Postgres index store,
// combining pgvector cosine search and tsvector fulltext search.
type Engine struct {
	store    Searcher
	embedder embed.Embedder
	config   Config
	fusion   *RRFFusion
}

// Ensure Engine implements the SearchEngine interface.
var _ SearchEngine = (*Engine)(nil)

// NewEngine creates a hybrid search engine. embedder may be nil, in
// which case vector and hybrid queries fall back to fulltext.
func NewEngine(st Searcher, embedder embed.Embedder, config Config) (*Engine, error) {
	if st == nil {
		return nil, errors.New(errors.KindInvalidArgument, "search store is required")
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultConfig().DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = DefaultConfig().MaxLimit
	}
	if config.CandidateFloor <= 0 {
		config.CandidateFloor = DefaultConfig().CandidateFloor
	}

	fusion := NewRRFFusionWithK(config.RRFConstant)
	slog.Info("search_engine_initialized",
		"has_embeddings", embedder != nil,
		"rrf_k", fusion.K)
	return &Engine{
		store:    st,
		embedder: embedder,
		config:   config,
		fusion:   fusion,
	}, nil
}

// Search executes one query in the requested mode.
func (e *Engine) Search(ctx context.Context, q Query) (*Results, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, errors.New(errors.KindInvalidArgument, "search query must not be empty")
	}

	mode := q.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	switch mode {
	case ModeVector, ModeFulltext, ModeHybrid:
	default:
		return nil, errors.Newf(errors.KindInvalidArgument, "unknown search mode %q", q.Mode)
	}

	limit := q.Limit
	switch {
	case limit == 0:
		return &Results{Hits: []Hit{}}, nil
	case limit < 0:
		limit = e.config.DefaultLimit
	case limit > e.config.MaxLimit:
		limit = e.config.MaxLimit
	}
	k := limit
	if k < e.config.CandidateFloor {
		k = e.config.CandidateFloor
	}

	filters := store.Filters{
		Categories: q.Categories,
		Tags:       q.Tags,
		FilePath:   q.FilePath,
	}

	// Without an embedder only fulltext can run.
	degraded := false
	if e.embedder == nil && mode != ModeFulltext {
		slog.Warn("no_embedder_falling_back_to_fulltext", "requested_mode", string(mode))
		mode = ModeFulltext
		degraded = true
	}

	var res *Results
	var err error
	switch mode {
	case ModeVector:
		res, err = e.vectorSearch(ctx, text, limit, k, filters)
	case ModeFulltext:
		res, err = e.fulltextSearch(ctx, text, limit, k, filters)
	case ModeHybrid:
		res, err = e.hybridSearch(ctx, text, limit, k, filters)
	}
	if err != nil {
		return nil, err
	}
	if degraded {
		res.Degraded = true
	}

	slog.Debug("search_completed",
		"mode", string(mode),
		"hits", len(res.Hits),
		"degraded", res.Degraded)
	return res, nil
}

func (e *Engine) vectorSearch(ctx context.Context, text string, limit, k int, filters store.Filters) (*Results, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.VectorSearch(ctx, vec, k, filters)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, min(limit, len(rows)))
	for _, rc := range rows[:min(limit, len(rows))] {
		hits = append(hits, hitFromChunk(rc, rescaleCosine(rc.Score)))
	}
	return &Results{Hits: hits}, nil
}

func (e *Engine) fulltextSearch(ctx context.Context, text string, limit, k int, filters store.Filters) (*Results, error) {
	rows, err := e.store.FulltextSearch(ctx, text, k, filters)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, min(limit, len(rows)))
	for _, rc := range rows[:min(limit, len(rows))] {
		hits = append(hits, hitFromChunk(rc, rc.Score))
	}
	return &Results{Hits: hits}, nil
}

func (e *Engine) hybridSearch(ctx context.Context, text string, limit, k int, filters store.Filters) (*Results, error) {
	vecRows, ftRows, vecErr, ftErr := e.parallelSearch(ctx, text, k, filters)

	if vecErr != nil && ftErr != nil {
		return nil, stderrors.Join(vecErr, ftErr)
	}

	degraded := false
	if vecErr != nil {
		slog.Warn("hybrid_degraded_to_fulltext", "error", vecErr.Error())
		degraded = true
	}
	if ftErr != nil {
		slog.Warn("hybrid_degraded_to_vector", "error", ftErr.Error())
		degraded = true
	}

	fused := e.fusion.Fuse(vecRows, ftRows)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	hits := make([]Hit, 0, len(fused))
	for _, fr := range fused {
		hits = append(hits, hitFromChunk(fr.Chunk, fr.RRFScore))
	}
	return &Results{Hits: hits, Degraded: degraded}, nil
}

// parallelSearch runs both backends concurrently. A failure on one side
// is captured rather than cancelling the other.
func (e *Engine) parallelSearch(ctx context.Context, text string, k int, filters store.Filters) (vecRows, ftRows []store.RankedChunk, vecErr, ftErr error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vec, err := e.embedder.Embed(gctx, text)
		if err != nil {
			vecErr = err
			return nil
		}
		rows, err := e.store.VectorSearch(gctx, vec, k, filters)
		if err != nil {
			vecErr = err
			return nil
		}
		vecRows = rows
		return nil
	})

	g.Go(func() error {
		rows, err := e.store.FulltextSearch(gctx, text, k, filters)
		if err != nil {
			ftErr = err
			return nil
		}
		ftRows = rows
		return nil
	})

	// The goroutines never return errors; Wait just orders the writes.
	_ = g.Wait()
	return vecRows, ftRows, vecErr, ftErr
}

func hitFromChunk(rc store.RankedChunk, score float64) Hit {
	return Hit{
		ChunkID:    rc.ChunkID,
		FilePath:   rc.FilePath,
		Title:      rc.Title,
		Category:   rc.Category,
		Content:    rc.Content,
		HeaderPath: rc.HeaderPath,
		Score:      score,
	}
}

// rescaleCosine maps cosine similarity from [-1,1] onto [0,1].
func rescaleCosine(sim float64) float64 {
	s := (sim + 1) / 2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
