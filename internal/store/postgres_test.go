package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memmcp/memmcp/internal/errors"
)

func TestSchemaSQL_InterpolatesDimension(t *testing.T) {
	sql := schemaSQL(768)
	assert.Contains(t, sql, "embedding vector(768)")
	assert.NotContains(t, sql, "%[1]d")
}

func TestSchemaSQL_DeclaresAllObjects(t *testing.T) {
	sql := schemaSQL(4)
	for _, want := range []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"CREATE TABLE IF NOT EXISTS memory_files",
		"CREATE TABLE IF NOT EXISTS memory_chunks",
		"CREATE TABLE IF NOT EXISTS sync_status",
		"CONSTRAINT valid_category",
		"CONSTRAINT valid_sync_status",
		"GENERATED ALWAYS AS (to_tsvector('english', content)) STORED",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_file_chunk",
		"USING GIN (content_tsvector)",
		"USING GIN (header_path)",
		"FUNCTION rrf_score",
		"ivfflat (embedding vector_cosine_ops) WITH (lists = 100)",
	} {
		assert.Contains(t, sql, want)
	}
}

func TestEnsureSchema_RejectsBadDimension(t *testing.T) {
	err := (&Postgres{}).EnsureSchema(context.Background(), 0)
	assert.True(t, errors.IsKind(err, errors.KindInvalidArgument))
}

func TestNew_RejectsMalformedURL(t *testing.T) {
	_, err := New(context.Background(), "://not-a-url", 5, 20)
	assert.True(t, errors.IsKind(err, errors.KindInvalidArgument))
}

func TestDBKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.Kind
	}{
		{"connection exception", &pgconn.PgError{Code: "08006"}, errors.KindStorageUnavailable},
		{"too many connections", &pgconn.PgError{Code: "53300"}, errors.KindStorageUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, errors.KindStorageUnavailable},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errors.KindInternal},
		{"check violation", &pgconn.PgError{Code: "23514"}, errors.KindInternal},
		{"syntax error", &pgconn.PgError{Code: "42601"}, errors.KindInternal},
		{"wrapped pg error", fmt.Errorf("query: %w", &pgconn.PgError{Code: "08001"}), errors.KindStorageUnavailable},
		{"dial failure", stderrors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), errors.KindStorageUnavailable},
		{"cancelled", context.Canceled, errors.KindCancelled},
		{"deadline", context.DeadlineExceeded, errors.KindCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dbKind(tt.err))
		})
	}
}

func TestWrapDB_KeepsCauseInChain(t *testing.T) {
	cause := &pgconn.PgError{Code: "08006", Message: "broken pipe"}
	err := wrapDB(cause, "list files")

	assert.True(t, errors.IsKind(err, errors.KindStorageUnavailable))
	var pgErr *pgconn.PgError
	require.True(t, stderrors.As(err, &pgErr))
	assert.Equal(t, "08006", pgErr.Code)
}

func TestUpsertSyncStatus_RejectsUnknownState(t *testing.T) {
	err := (&Postgres{}).UpsertSyncStatus(context.Background(), 1, "bogus", "", "")
	assert.True(t, errors.IsKind(err, errors.KindInvalidArgument))
}

func TestFiltersClauses_Empty(t *testing.T) {
	conds, args := Filters{}.clauses("", 1)
	assert.Empty(t, conds)
	assert.Empty(t, args)
}

func TestFiltersClauses_AllConditions(t *testing.T) {
	f := Filters{
		Categories: []string{"project", "concept"},
		Tags:       []string{"go", "search"},
		FilePath:   "projects/p1.md",
	}

	conds, args := f.clauses("mf.", 3)

	assert.Equal(t, []string{
		"mf.category = ANY($3)",
		"mf.tags @> $4",
		"mf.file_path = $5",
	}, conds)
	require.Len(t, args, 3)
	assert.Equal(t, []string{"project", "concept"}, args[0])
	assert.Equal(t, []string{"go", "search"}, args[1])
	assert.Equal(t, "projects/p1.md", args[2])
}

func TestFiltersClauses_SkipsUnsetFields(t *testing.T) {
	conds, args := Filters{FilePath: "main.md"}.clauses("", 2)
	assert.Equal(t, []string{"file_path = $2"}, conds)
	assert.Equal(t, []any{"main.md"}, args)
}
