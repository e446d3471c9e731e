package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/memmcp/memmcp/internal/errors"
)

const fileColumns = `id, file_path, title, category, created_at, updated_at, file_hash, word_count, tags, metadata`

// UpsertFile inserts or updates one memory_files row keyed by file_path
// and returns its id.
func (p *Postgres) UpsertFile(ctx context.Context, meta FileMeta) (int64, error) {
	tags := meta.Tags
	if tags == nil {
		tags = []string{}
	}
	md := meta.Metadata
	if md == nil {
		md = map[string]any{}
	}

	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO memory_files (file_path, title, category, file_hash, word_count, tags, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (file_path) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			file_hash = EXCLUDED.file_hash,
			word_count = EXCLUDED.word_count,
			tags = EXCLUDED.tags,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id`,
		meta.FilePath, meta.Title, meta.Category, meta.FileHash, meta.WordCount, tags, md,
	).Scan(&id)
	if err != nil {
		return 0, wrapDB(err, "upsert file")
	}

	slog.Debug("index_file_upserted", "file_id", id, "file_path", meta.FilePath)
	return id, nil
}

// GetFileByPath loads one memory_files row. Returns NotFound when the
// path is not indexed.
func (p *Postgres) GetFileByPath(ctx context.Context, filePath string) (*FileMeta, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM memory_files WHERE file_path = $1`, filePath)
	meta, err := scanFile(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Newf(errors.KindNotFound, "no index entry for %s", filePath)
		}
		return nil, wrapDB(err, "load file by path")
	}
	return meta, nil
}

// ListFiles returns indexed files matching f, most recently updated
// first.
func (p *Postgres) ListFiles(ctx context.Context, f Filters) ([]*FileMeta, error) {
	sql := `SELECT ` + fileColumns + ` FROM memory_files`
	conds, args := f.clauses("", 1)
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY updated_at DESC"

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDB(err, "list files")
	}
	defer rows.Close()

	var files []*FileMeta
	for rows.Next() {
		meta, err := scanFile(rows)
		if err != nil {
			return nil, wrapDB(err, "scan file row")
		}
		files = append(files, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB(err, "list files")
	}
	return files, nil
}

// DeleteFile removes a file row; chunks and sync status cascade.
func (p *Postgres) DeleteFile(ctx context.Context, fileID int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM memory_files WHERE id = $1`, fileID)
	if err != nil {
		return wrapDB(err, "delete file")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.KindNotFound, "no index entry for file id %d", fileID)
	}
	slog.Info("index_file_deleted", "file_id", fileID)
	return nil
}

// DeleteFileByPath removes a file row by path; chunks and sync status
// cascade.
func (p *Postgres) DeleteFileByPath(ctx context.Context, filePath string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM memory_files WHERE file_path = $1`, filePath)
	if err != nil {
		return wrapDB(err, "delete file by path")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.KindNotFound, "no index entry for %s", filePath)
	}
	slog.Info("index_file_deleted", "file_path", filePath)
	return nil
}

func scanFile(row pgx.Row) (*FileMeta, error) {
	var f FileMeta
	err := row.Scan(&f.ID, &f.FilePath, &f.Title, &f.Category, &f.CreatedAt,
		&f.UpdatedAt, &f.FileHash, &f.WordCount, &f.Tags, &f.Metadata)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// clauses renders WHERE conditions for f with parameters numbered from
// next. prefix qualifies column references when the query joins tables.
func (f Filters) clauses(prefix string, next int) ([]string, []any) {
	var conds []string
	var args []any
	if len(f.Categories) > 0 {
		conds = append(conds, fmt.Sprintf("%scategory = ANY($%d)", prefix, next))
		args = append(args, f.Categories)
		next++
	}
	if len(f.Tags) > 0 {
		conds = append(conds, fmt.Sprintf("%stags @> $%d", prefix, next))
		args = append(args, f.Tags)
		next++
	}
	if f.FilePath != "" {
		conds = append(conds, fmt.Sprintf("%sfile_path = $%d", prefix, next))
		args = append(args, f.FilePath)
		next++
	}
	return conds, args
}
