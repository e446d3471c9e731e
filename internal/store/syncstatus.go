package store

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/memmcp/memmcp/internal/errors"
)

// UpsertSyncStatus records the sync state for a file, inserting the row
// on first contact. A completed status stamps last_synced_at, stores
// syncedHash, and clears any prior error; a failed status records
// errMsg but leaves the last successful hash in place.
func (p *Postgres) UpsertSyncStatus(ctx context.Context, fileID int64, status, syncedHash, errMsg string) error {
	var sql string
	var args []any
	switch status {
	case SyncCompleted:
		sql = `
			INSERT INTO sync_status (file_id, sync_status, last_synced_at, last_synced_hash, error_message)
			VALUES ($1, $2, NOW(), $3, NULL)
			ON CONFLICT (file_id) DO UPDATE SET
				sync_status = EXCLUDED.sync_status,
				last_synced_at = EXCLUDED.last_synced_at,
				last_synced_hash = EXCLUDED.last_synced_hash,
				error_message = NULL`
		args = []any{fileID, status, syncedHash}
	case SyncFailed:
		sql = `
			INSERT INTO sync_status (file_id, sync_status, error_message)
			VALUES ($1, $2, $3)
			ON CONFLICT (file_id) DO UPDATE SET
				sync_status = EXCLUDED.sync_status,
				error_message = EXCLUDED.error_message`
		args = []any{fileID, status, errMsg}
	case SyncPending, SyncSyncing:
		sql = `
			INSERT INTO sync_status (file_id, sync_status)
			VALUES ($1, $2)
			ON CONFLICT (file_id) DO UPDATE SET
				sync_status = EXCLUDED.sync_status`
		args = []any{fileID, status}
	default:
		return errors.Newf(errors.KindInvalidArgument, "unknown sync status %q", status)
	}

	if _, err := p.pool.Exec(ctx, sql, args...); err != nil {
		return wrapDB(err, "update sync status")
	}
	slog.Debug("sync_status_updated", "file_id", fileID, "status", status)
	return nil
}

// MarkSyncing flags a file as being reconciled.
func (p *Postgres) MarkSyncing(ctx context.Context, fileID int64) error {
	return p.UpsertSyncStatus(ctx, fileID, SyncSyncing, "", "")
}

// MarkCompleted records a successful reconcile of syncedHash.
func (p *Postgres) MarkCompleted(ctx context.Context, fileID int64, syncedHash string) error {
	return p.UpsertSyncStatus(ctx, fileID, SyncCompleted, syncedHash, "")
}

// MarkFailed records a failed reconcile. Chunks from the last
// successful sync stay in place.
func (p *Postgres) MarkFailed(ctx context.Context, fileID int64, errMsg string) error {
	return p.UpsertSyncStatus(ctx, fileID, SyncFailed, "", errMsg)
}

const syncColumns = `ss.file_id, mf.file_path, ss.last_synced_at,
		COALESCE(ss.last_synced_hash, ''), ss.sync_status, COALESCE(ss.error_message, '')`

// GetSyncStatus loads the sync record for one file. Returns NotFound
// when the file has never been touched by sync.
func (p *Postgres) GetSyncStatus(ctx context.Context, fileID int64) (*SyncRecord, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+syncColumns+`
		FROM sync_status ss
		JOIN memory_files mf ON ss.file_id = mf.id
		WHERE ss.file_id = $1`, fileID)

	var rec SyncRecord
	err := row.Scan(&rec.FileID, &rec.FilePath, &rec.LastSyncedAt,
		&rec.LastSyncedHash, &rec.Status, &rec.ErrorMessage)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Newf(errors.KindNotFound, "no sync record for file id %d", fileID)
		}
		return nil, wrapDB(err, "load sync status")
	}
	return &rec, nil
}

// ListSyncStatus returns every sync record ordered by file path.
func (p *Postgres) ListSyncStatus(ctx context.Context) ([]SyncRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+syncColumns+`
		FROM sync_status ss
		JOIN memory_files mf ON ss.file_id = mf.id
		ORDER BY mf.file_path`)
	if err != nil {
		return nil, wrapDB(err, "list sync status")
	}
	defer rows.Close()

	var recs []SyncRecord
	for rows.Next() {
		var rec SyncRecord
		err := rows.Scan(&rec.FileID, &rec.FilePath, &rec.LastSyncedAt,
			&rec.LastSyncedHash, &rec.Status, &rec.ErrorMessage)
		if err != nil {
			return nil, wrapDB(err, "scan sync row")
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB(err, "list sync status")
	}
	return recs, nil
}
