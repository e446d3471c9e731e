// Package sync keeps the Postgres index consistent with the markdown
// tree: every tracked file's chunk set must equal the chunker's output
// on its current bytes. Reconciles are queued, coalesced per path, and
// drained by a bounded worker pool.
package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memmcp/memmcp/internal/chunk"
	"github.com/memmcp/memmcp/internal/embed"
	"github.com/memmcp/memmcp/internal/errors"
	"github.com/memmcp/memmcp/internal/files"
	"github.com/memmcp/memmcp/internal/store"
)

// IndexStore is the slice of the index store the sync service needs.
type IndexStore interface {
	UpsertFile(ctx context.Context, meta store.FileMeta) (int64, error)
	GetFileByPath(ctx context.Context, filePath string) (*store.FileMeta, error)
	ListFiles(ctx context.Context, f store.Filters) ([]*store.FileMeta, error)
	DeleteFileByPath(ctx context.Context, filePath string) error
	ReplaceChunks(ctx context.Context, fileID int64, chunks []store.ChunkRecord) error
	GetSyncStatus(ctx context.Context, fileID int64) (*store.SyncRecord, error)
	ListSyncStatus(ctx context.Context) ([]store.SyncRecord, error)
	MarkSyncing(ctx context.Context, fileID int64) error
	MarkCompleted(ctx context.Context, fileID int64, syncedHash string) error
	MarkFailed(ctx context.Context, fileID int64, errMsg string) error
}

// Syncer is the sync surface the memory manager and tool layer depend
// on. The file-only implementation is Noop.
type Syncer interface {
	// Enabled reports whether writes actually reach an index. Callers
	// surface this as the sync_pending flag on write results.
	Enabled() bool

	// Enqueue schedules a reconcile for path. Duplicate requests for a
	// path already queued are coalesced; the reconcile always reads the
	// latest bytes from disk, so the newest hash wins.
	Enqueue(path string)

	// Delete removes path from the index unconditionally.
	Delete(ctx context.Context, path string) error

	// SyncFile reconciles one path immediately, bypassing the queue.
	SyncFile(ctx context.Context, path string) error

	// SyncAll sweeps the whole tree: reconciles every markdown file on
	// disk and deletes index rows for files that no longer exist.
	SyncAll(ctx context.Context) error

	// Status returns the per-file sync records.
	Status(ctx context.Context) ([]store.SyncRecord, error)
}

// Config tunes the sync service.
type Config struct {
	// Workers is the reconcile pool size (default 4).
	Workers int
	// QueueSize bounds the pending queue (default 1024).
	QueueSize int
	// Interval is the periodic sweep cadence (default 60s). Zero or
	// negative disables the sweep ticker.
	Interval time.Duration
	// Retry governs transient store failures inside a reconcile.
	Retry errors.RetryConfig
}

// WithDefaults fills zero values.
func (c Config) WithDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry = errors.DefaultRetryConfig()
	}
	return c
}

// Service reconciles file changes into the index store.
type Service struct {
	st       IndexStore
	embedder embed.Embedder
	chunker  *chunk.Chunker
	fs       *files.Store
	index    *files.Index
	cfg      Config
	logger   *slog.Logger

	queue   chan string
	mu      sync.Mutex
	queued  map[string]struct{}
	locks   map[string]*sync.Mutex
	backoff map[string]time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

var _ Syncer = (*Service)(nil)

// NewService creates a sync service. embedder may be nil; chunks are
// then stored without embeddings and only fulltext search sees them.
func NewService(st IndexStore, embedder embed.Embedder, chunker *chunk.Chunker, fs *files.Store, index *files.Index, cfg Config) *Service {
	cfg = cfg.WithDefaults()
	return &Service{
		st:       st,
		embedder: embedder,
		chunker:  chunker,
		fs:       fs,
		index:    index,
		cfg:      cfg,
		logger:   slog.Default(),
		queue:    make(chan string, cfg.QueueSize),
		queued:   make(map[string]struct{}),
		locks:    make(map[string]*sync.Mutex),
		backoff:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Enabled always reports true for the indexed service.
func (s *Service) Enabled() bool { return true }

// Enqueue schedules a reconcile for path. A path already queued is
// coalesced; a full queue drops its oldest entry to make room.
func (s *Service) Enqueue(path string) {
	s.mu.Lock()
	if _, dup := s.queued[path]; dup {
		s.mu.Unlock()
		return
	}
	s.queued[path] = struct{}{}
	s.mu.Unlock()

	for {
		select {
		case s.queue <- path:
			return
		default:
		}
		select {
		case dropped := <-s.queue:
			s.mu.Lock()
			delete(s.queued, dropped)
			s.mu.Unlock()
			s.logger.Warn("sync queue full, dropping oldest", "dropped", dropped, "enqueued", path)
		default:
		}
	}
}

// Start launches the worker pool and the periodic sweep. It returns
// immediately; Stop drains and joins the workers.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.workerLoop(ctx)
		}()
	}
	if s.cfg.Interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sweepLoop(ctx)
		}()
	}
	go func() {
		wg.Wait()
		cancel()
		close(s.doneCh)
	}()
}

// Stop signals the workers to finish and waits for them.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

func (s *Service) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-s.queue:
			s.mu.Lock()
			delete(s.queued, path)
			s.mu.Unlock()
			if err := s.SyncFile(ctx, path); err != nil {
				s.logger.Warn("reconcile failed", "file_path", path, "error", err)
			}
		}
	}
}

func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncAll(ctx); err != nil {
				s.logger.Warn("periodic sweep failed", "error", err)
			}
		}
	}
}

// lockFor returns the per-path mutex, creating it on first use. At
// most one reconcile runs per file; concurrent attempts serialize and
// the later one no-ops on the already-synced hash.
func (s *Service) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// SyncFile reconciles one file: read, hash, compare with the sync
// record, re-chunk, re-embed, replace chunks, mark completed. A file
// missing on disk is removed from the index instead.
func (s *Service) SyncFile(ctx context.Context, path string) error {
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()

	data, err := s.fs.Read(path)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return s.Delete(ctx, path)
		}
		return err
	}
	content := string(data)
	newHash := files.HashBytes(data)

	existing, err := s.st.GetFileByPath(ctx, path)
	if err != nil && !errors.IsKind(err, errors.KindNotFound) {
		return err
	}
	if existing != nil {
		rec, serr := s.st.GetSyncStatus(ctx, existing.ID)
		if serr == nil && rec != nil && rec.Status == store.SyncCompleted && rec.LastSyncedHash == newHash {
			return nil
		}
	}

	meta := s.buildMeta(path, content, newHash)
	fileID, err := s.st.UpsertFile(ctx, meta)
	if err != nil {
		return err
	}
	if err := s.st.MarkSyncing(ctx, fileID); err != nil {
		return err
	}

	if err := s.reindex(ctx, fileID, content); err != nil {
		s.markFailed(ctx, path, fileID, err)
		return err
	}
	if err := s.st.MarkCompleted(ctx, fileID, newHash); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.backoff, path)
	s.mu.Unlock()
	s.logger.Debug("file synced", "file_path", path, "hash", newHash[:12])
	return nil
}

// reindex chunks the content, embeds the chunk texts, and swaps the
// chunk set in one transaction. Prior chunks stay intact on failure.
func (s *Service) reindex(ctx context.Context, fileID int64, content string) error {
	pieces := s.chunker.Split(content)
	records := make([]store.ChunkRecord, len(pieces))
	texts := make([]string, len(pieces))
	for i, c := range pieces {
		records[i] = store.ChunkRecord{
			ChunkIndex:   c.Index,
			Content:      c.Content,
			ContentHash:  files.HashString(c.Content),
			HeaderPath:   c.HeaderPath,
			SectionLevel: c.SectionLevel,
		}
		texts[i] = c.Content
	}

	if s.embedder != nil && len(texts) > 0 {
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i := range records {
			records[i].Embedding = vecs[i]
		}
	}

	return errors.Retry(ctx, s.cfg.Retry, func() error {
		return s.st.ReplaceChunks(ctx, fileID, records)
	})
}

// markFailed records the failure on the sync record, using a context
// that survives cancellation so a cancelled reconcile is still visible
// as failed.
func (s *Service) markFailed(ctx context.Context, path string, fileID int64, cause error) {
	msg := errors.MessageOf(cause)
	if errors.KindOf(cause) == errors.KindCancelled {
		msg = "cancelled"
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.st.MarkFailed(bg, fileID, msg); err != nil {
		s.logger.Error("failed to record sync failure", "file_path", path, "error", err)
	}
	s.mu.Lock()
	s.backoff[path] = time.Now().Add(s.retryDelay(path))
	s.mu.Unlock()
}

// retryDelay grows the sweep backoff for a repeatedly failing file.
func (s *Service) retryDelay(path string) time.Duration {
	delay := s.cfg.Retry.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	if until, ok := s.backoff[path]; ok && time.Until(until) > 0 {
		delay = 2 * time.Until(until)
	}
	if max := s.cfg.Retry.MaxDelay; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// SyncAll reconciles every markdown file under the root with bounded
// parallelism, then removes index rows for files gone from disk.
// Files inside their failure backoff window are skipped.
func (s *Service) SyncAll(ctx context.Context) error {
	paths, err := s.fs.List()
	if err != nil {
		return err
	}
	onDisk := make(map[string]struct{}, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	now := time.Now()
	for _, p := range paths {
		onDisk[p] = struct{}{}
		s.mu.Lock()
		until, deferred := s.backoff[p]
		s.mu.Unlock()
		if deferred && now.Before(until) {
			continue
		}
		g.Go(func() error {
			if err := s.SyncFile(gctx, p); err != nil {
				s.logger.Warn("sweep reconcile failed", "file_path", p, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rows, err := s.st.ListFiles(ctx, store.Filters{})
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, ok := onDisk[row.FilePath]; ok {
			continue
		}
		if err := s.st.DeleteFileByPath(ctx, row.FilePath); err != nil {
			s.logger.Warn("orphan cleanup failed", "file_path", row.FilePath, "error", err)
		} else {
			s.logger.Info("removed orphan index rows", "file_path", row.FilePath)
		}
	}
	return nil
}

// Delete removes path from the index. Missing rows are a no-op.
func (s *Service) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	delete(s.backoff, path)
	s.mu.Unlock()
	err := s.st.DeleteFileByPath(ctx, path)
	if err != nil && errors.IsKind(err, errors.KindNotFound) {
		return nil
	}
	return err
}

// Status returns the sync record for every indexed file.
func (s *Service) Status(ctx context.Context) ([]store.SyncRecord, error) {
	return s.st.ListSyncStatus(ctx)
}

// buildMeta assembles the memory_files row for a path. Title, tags and
// metadata come from the JSON index entry when one exists; otherwise
// they are derived from the path.
func (s *Service) buildMeta(path, content, hash string) store.FileMeta {
	meta := store.FileMeta{
		FilePath:  path,
		Title:     files.TitleFromPath(path),
		Category:  files.CategoryFromPath(path),
		FileHash:  hash,
		WordCount: files.WordCount(content),
	}
	if s.index != nil {
		if entry, ok, err := s.index.Get(path); err == nil && ok {
			if entry.Title != "" {
				meta.Title = entry.Title
			}
			meta.Tags = entry.Tags
			meta.Metadata = entry.Metadata
		}
	}
	return meta
}
