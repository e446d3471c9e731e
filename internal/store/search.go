package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// VectorSearch returns the k nearest chunks to queryVec by cosine
// distance. Score is raw cosine similarity; chunks without embeddings
// are never candidates.
func (p *Postgres) VectorSearch(ctx context.Context, queryVec []float32, k int, f Filters) ([]RankedChunk, error) {
	conds, args := f.clauses("mf.", 3)
	filter := ""
	if len(conds) > 0 {
		filter = " AND " + strings.Join(conds, " AND ")
	}

	sql := fmt.Sprintf(`
		SELECT
			mc.id, mc.file_id, mc.content, mc.header_path,
			mf.file_path, mf.title, mf.category,
			1 - (mc.embedding <=> $1) AS similarity
		FROM memory_chunks mc
		JOIN memory_files mf ON mc.file_id = mf.id
		WHERE mc.embedding IS NOT NULL%s
		ORDER BY mc.embedding <=> $1
		LIMIT $2`, filter)

	allArgs := append([]any{pgvector.NewVector(queryVec), k}, args...)
	return p.rankedQuery(ctx, "vector search", sql, allArgs)
}

// FulltextSearch returns the k best chunks for query using the english
// text search configuration, ranked by ts_rank_cd.
func (p *Postgres) FulltextSearch(ctx context.Context, query string, k int, f Filters) ([]RankedChunk, error) {
	conds, args := f.clauses("mf.", 3)
	filter := ""
	if len(conds) > 0 {
		filter = " AND " + strings.Join(conds, " AND ")
	}

	sql := fmt.Sprintf(`
		SELECT
			mc.id, mc.file_id, mc.content, mc.header_path,
			mf.file_path, mf.title, mf.category,
			ts_rank_cd(mc.content_tsvector, plainto_tsquery('english', $1)) AS rank
		FROM memory_chunks mc
		JOIN memory_files mf ON mc.file_id = mf.id
		WHERE mc.content_tsvector @@ plainto_tsquery('english', $1)%s
		ORDER BY rank DESC, mc.id
		LIMIT $2`, filter)

	allArgs := append([]any{query, k}, args...)
	return p.rankedQuery(ctx, "fulltext search", sql, allArgs)
}

// rankedQuery runs a backend search and assigns 1-based ranks in result
// order.
func (p *Postgres) rankedQuery(ctx context.Context, op, sql string, args []any) ([]RankedChunk, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDB(err, op)
	}
	defer rows.Close()

	var out []RankedChunk
	for rows.Next() {
		var rc RankedChunk
		err := rows.Scan(&rc.ChunkID, &rc.FileID, &rc.Content, &rc.HeaderPath,
			&rc.FilePath, &rc.Title, &rc.Category, &rc.Score)
		if err != nil {
			return nil, wrapDB(err, op)
		}
		rc.Rank = len(out) + 1
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB(err, op)
	}
	return out, nil
}
