package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memmcp/memmcp/internal/errors"
)

// Postgres is the index store backed by Postgres + pgvector.
type Postgres struct {
	pool *pgxpool.Pool
}

// New connects a pool and verifies the server is reachable. minConns
// and maxConns bound the pool; non-positive values keep pgx defaults.
func New(ctx context.Context, connString string, minConns, maxConns int) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidArgument, "parse database url", err)
	}
	if minConns > 0 {
		cfg.MinConns = int32(minConns)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorageUnavailable, "connect to database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(errors.KindStorageUnavailable, "ping database", err)
	}

	slog.Info("database_connected",
		"min_conns", cfg.MinConns,
		"max_conns", cfg.MaxConns)
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping verifies the database is still reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return errors.Wrap(errors.KindStorageUnavailable, "ping database", err)
	}
	return nil
}

// EnsureSchema creates the pgvector extension, tables, indexes, and the
// rrf_score function if they are missing. dim fixes the embedding
// column width; changing providers to a different dimension requires a
// reset.
func (p *Postgres) EnsureSchema(ctx context.Context, dim int) error {
	if dim <= 0 {
		return errors.Newf(errors.KindInvalidArgument, "embedding dimension must be positive, got %d", dim)
	}

	_, err := p.pool.Exec(ctx, schemaSQL(dim))
	if err != nil && strings.Contains(err.Error(), "ivfflat") {
		// IVFFlat creation can fail on tiny or empty tables; search
		// still works through a sequential scan.
		slog.Warn("ivfflat_index_skipped", "error", err.Error())
		err = nil
	}
	if err != nil {
		return wrapDB(err, "ensure schema")
	}

	slog.Info("schema_ensured", "dimension", dim)
	return nil
}

// schemaSQL renders the full DDL for one embedding dimension. Executed
// as a single multi-statement simple-protocol exec.
func schemaSQL(dim int) string {
	const statements = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memory_files (
	id BIGSERIAL PRIMARY KEY,
	file_path VARCHAR(512) NOT NULL UNIQUE,
	title VARCHAR(255) NOT NULL,
	category VARCHAR(50) NOT NULL DEFAULT 'other',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	file_hash VARCHAR(64) NOT NULL,
	word_count INTEGER NOT NULL DEFAULT 0,
	tags TEXT[] NOT NULL DEFAULT '{}',
	metadata JSONB NOT NULL DEFAULT '{}',
	CONSTRAINT valid_category CHECK (category IN ('main', 'project', 'concept', 'conversation', 'preference', 'other'))
);

CREATE TABLE IF NOT EXISTS memory_chunks (
	id BIGSERIAL PRIMARY KEY,
	file_id BIGINT NOT NULL REFERENCES memory_files(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	content_hash VARCHAR(64) NOT NULL,
	embedding vector(%[1]d),
	header_path TEXT[] NOT NULL DEFAULT '{}',
	section_level INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	content_tsvector TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
);

CREATE TABLE IF NOT EXISTS sync_status (
	id BIGSERIAL PRIMARY KEY,
	file_id BIGINT NOT NULL UNIQUE REFERENCES memory_files(id) ON DELETE CASCADE,
	last_synced_at TIMESTAMPTZ,
	last_synced_hash VARCHAR(64),
	sync_status VARCHAR(20) NOT NULL DEFAULT 'pending',
	error_message TEXT,
	CONSTRAINT valid_sync_status CHECK (sync_status IN ('pending', 'syncing', 'completed', 'failed'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_file_chunk ON memory_chunks (file_id, chunk_index);
CREATE INDEX IF NOT EXISTS idx_memory_files_category ON memory_files (category);
CREATE INDEX IF NOT EXISTS idx_memory_files_updated ON memory_files (updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_memory_files_tags ON memory_files USING GIN (tags);
CREATE INDEX IF NOT EXISTS idx_memory_files_metadata ON memory_files USING GIN (metadata);
CREATE INDEX IF NOT EXISTS idx_chunks_tsvector ON memory_chunks USING GIN (content_tsvector);
CREATE INDEX IF NOT EXISTS idx_chunks_header ON memory_chunks USING GIN (header_path);

CREATE OR REPLACE FUNCTION rrf_score(rank BIGINT, k INTEGER DEFAULT 60)
RETURNS NUMERIC AS $$
	SELECT 1.0 / (rank + k);
$$ LANGUAGE SQL IMMUTABLE PARALLEL SAFE;

-- Create the IVFFlat index only if it is missing; the guard keeps
-- re-running this schema idempotent.
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1
		FROM pg_indexes
		WHERE schemaname = current_schema()
			AND indexname = 'idx_chunks_embedding_ivfflat'
	) THEN
		EXECUTE 'CREATE INDEX idx_chunks_embedding_ivfflat ON memory_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);';
	END IF;
END
$$;
`
	return fmt.Sprintf(statements, dim)
}

// TruncateAll removes every indexed row. Used by memory reset.
func (p *Postgres) TruncateAll(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `TRUNCATE memory_files, memory_chunks, sync_status RESTART IDENTITY CASCADE`)
	if err != nil {
		return wrapDB(err, "truncate index store")
	}
	slog.Info("index_truncated")
	return nil
}

// Stats reports row counts for the status surface.
func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := p.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM memory_files),
			(SELECT COUNT(*) FROM memory_chunks),
			(SELECT COUNT(*) FROM memory_chunks WHERE embedding IS NOT NULL),
			(SELECT COUNT(*) FROM sync_status WHERE sync_status = 'pending'),
			(SELECT COUNT(*) FROM sync_status WHERE sync_status = 'failed')
	`).Scan(&st.Files, &st.Chunks, &st.EmbeddedChunks, &st.PendingFiles, &st.FailedFiles)
	if err != nil {
		return Stats{}, wrapDB(err, "collect index stats")
	}
	return st, nil
}

// wrapDB wraps a database error, classifying it as StorageUnavailable
// when the server cannot be reached or is shedding load, Internal for
// everything else the server itself rejected.
func wrapDB(err error, msg string) error {
	return errors.Wrap(dbKind(err), msg, err)
}

func dbKind(err error) errors.Kind {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.KindCancelled
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		// SQLSTATE classes: 08 connection exception, 53 insufficient
		// resources, 57 operator intervention.
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "53"),
			strings.HasPrefix(pgErr.Code, "57"):
			return errors.KindStorageUnavailable
		}
		return errors.KindInternal
	}
	// Dial, TLS, and closed-pool failures arrive as plain errors.
	return errors.KindStorageUnavailable
}
