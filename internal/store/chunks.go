package store

import (
	"context"
	"log/slog"

	"github.com/pgvector/pgvector-go"
)

// ReplaceChunks swaps the indexed chunk set for a file in a single
// transaction, so readers never observe a partially chunked file.
func (p *Postgres) ReplaceChunks(ctx context.Context, fileID int64, chunks []ChunkRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return wrapDB(err, "begin chunk replace")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM memory_chunks WHERE file_id = $1`, fileID); err != nil {
		return wrapDB(err, "delete stale chunks")
	}

	for _, ch := range chunks {
		var emb any
		if ch.Embedding != nil {
			emb = pgvector.NewVector(ch.Embedding)
		}
		headers := ch.HeaderPath
		if headers == nil {
			headers = []string{}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO memory_chunks (file_id, chunk_index, content, content_hash, embedding, header_path, section_level)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			fileID, ch.ChunkIndex, ch.Content, ch.ContentHash, emb, headers, ch.SectionLevel,
		)
		if err != nil {
			return wrapDB(err, "insert chunk")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapDB(err, "commit chunk replace")
	}

	slog.Debug("chunks_replaced", "file_id", fileID, "count", len(chunks))
	return nil
}

// ChunksByFile returns a file's chunks in index order. Embeddings are
// not loaded.
func (p *Postgres) ChunksByFile(ctx context.Context, fileID int64) ([]ChunkRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT chunk_index, content, content_hash, header_path, section_level
		FROM memory_chunks
		WHERE file_id = $1
		ORDER BY chunk_index`, fileID)
	if err != nil {
		return nil, wrapDB(err, "load chunks")
	}
	defer rows.Close()

	var chunks []ChunkRecord
	for rows.Next() {
		var ch ChunkRecord
		if err := rows.Scan(&ch.ChunkIndex, &ch.Content, &ch.ContentHash, &ch.HeaderPath, &ch.SectionLevel); err != nil {
			return nil, wrapDB(err, "scan chunk row")
		}
		chunks = append(chunks, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB(err, "load chunks")
	}
	return chunks, nil
}
