// Package store persists indexed memory files, chunks, and sync state in
// Postgres, using pgvector for embeddings and tsvector for keyword search.
// This is the persistence layer for all indexed data.
package store

import "time"

// Sync states recorded in the sync_status table.
const (
	SyncPending   = "pending"
	SyncSyncing   = "syncing"
	SyncCompleted = "completed"
	SyncFailed    = "failed"
)

// FileMeta is one memory_files row. UpsertFile reads only the writable
// fields; ID, CreatedAt, and UpdatedAt are assigned by the database.
type FileMeta struct {
	ID        int64
	FilePath  string
	Title     string
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
	FileHash  string
	WordCount int
	Tags      []string
	Metadata  map[string]any
}

// ChunkRecord is one chunk bound for memory_chunks. A nil Embedding is
// stored as SQL NULL and the chunk stays out of vector search until it
// is re-embedded.
type ChunkRecord struct {
	ChunkIndex   int
	Content      string
	ContentHash  string
	Embedding    []float32
	HeaderPath   []string
	SectionLevel int
}

// RankedChunk is a single search backend hit. Rank is the 1-based
// position within that backend's result list; Score is the backend's
// raw relevance (cosine similarity for vector, ts_rank_cd for fulltext).
type RankedChunk struct {
	ChunkID    int64
	FileID     int64
	Rank       int
	Score      float64
	Content    string
	HeaderPath []string
	FilePath   string
	Title      string
	Category   string
}

// SyncRecord mirrors one sync_status row, joined with the file path for
// display.
type SyncRecord struct {
	FileID         int64
	FilePath       string
	LastSyncedAt   *time.Time
	LastSyncedHash string
	Status         string
	ErrorMessage   string
}

// Filters narrows searches and listings to matching files. The zero
// value matches everything.
type Filters struct {
	// Categories keeps files whose category is any of these.
	Categories []string
	// Tags keeps files carrying all of these tags.
	Tags []string
	// FilePath scopes to exactly one file.
	FilePath string
}

// Stats summarizes index contents for the status surface.
type Stats struct {
	Files          int64
	Chunks         int64
	EmbeddedChunks int64
	PendingFiles   int64
	FailedFiles    int64
}
