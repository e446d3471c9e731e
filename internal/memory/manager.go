// Package memory orchestrates the file store, the JSON index, the
// main.md index, and the sync service behind the high-level memory
// operations. Every mutation runs File Store, then JSON Index, then
// Sync enqueue; index failures after a successful file write are
// logged and left for the next sweep rather than failing the write.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/memmcp/memmcp/internal/errors"
	"github.com/memmcp/memmcp/internal/files"
	"github.com/memmcp/memmcp/internal/markdown"
	filesync "github.com/memmcp/memmcp/internal/sync"
)

// Truncater is the slice of the index store reset needs. Nil in
// file-only mode.
type Truncater interface {
	TruncateAll(ctx context.Context) error
}

// Entry is the metadata view of one memory file returned by write and
// list operations.
type Entry struct {
	FilePath    string         `json:"file_path"`
	Title       string         `json:"title"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	WordCount   int            `json:"word_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// SyncPending reports that the index has not yet caught up with
	// this write. Searches may miss the new content until sync
	// completes.
	SyncPending bool `json:"sync_pending,omitempty"`
}

// ListResult is the outcome of a file listing: a flat list plus a
// category-keyed tree. Total excludes main.md.
type ListResult struct {
	Total int                `json:"total"`
	Files []Entry            `json:"files"`
	Tree  map[string][]Entry `json:"tree"`
}

// Manager enforces the cross-component invariants of the memory tree.
type Manager struct {
	store  *files.Store
	index  *files.Index
	main   *markdown.MainIndex
	syncer filesync.Syncer
	idx    Truncater
	locks  *pathLocks
	logger *slog.Logger
}

// NewManager wires the memory manager. idx may be nil in file-only
// mode; syncer must not be nil (use filesync.Noop).
func NewManager(store *files.Store, index *files.Index, main *markdown.MainIndex, syncer filesync.Syncer, idx Truncater) *Manager {
	return &Manager{
		store:  store,
		index:  index,
		main:   main,
		syncer: syncer,
		idx:    idx,
		locks:  newPathLocks(),
		logger: slog.Default(),
	}
}

// Store exposes the underlying file store for read-only collaborators.
func (m *Manager) Store() *files.Store { return m.store }

// Initialized reports whether the base state exists.
func (m *Manager) Initialized() bool {
	return m.store.Exists(files.MainFile)
}

// Initialize creates the base state (main.md skeleton plus
// files_index.json) when absent, then runs a full sync sweep.
// Idempotent; returns whether anything was created.
func (m *Manager) Initialize(ctx context.Context) (bool, error) {
	created := false

	unlock := m.locks.lock(files.MainFile)
	if !m.store.Exists(files.MainFile) {
		content := markdown.BaseTemplate(time.Now())
		if _, err := m.store.Write(files.MainFile, content); err != nil {
			unlock()
			return false, err
		}
		created = true
	}
	unlock()

	doc, err := m.index.LoadOrRebuild(m.store)
	if err != nil {
		return created, err
	}
	if created || !hasEntry(doc.Files, files.MainFile) {
		if err := m.refreshEntry(files.MainFile, nil, nil); err != nil {
			return created, err
		}
	}

	if err := m.syncer.SyncAll(ctx); err != nil {
		m.logger.Warn("initial sync sweep failed", "error", err)
	}
	return created, nil
}

// Reset returns the tree to its base state: every file except main.md
// is deleted under its path lock, the index store is truncated, and
// main.md is rewritten to the base template.
func (m *Manager) Reset(ctx context.Context) error {
	paths, err := m.store.List()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if p == files.MainFile {
			continue
		}
		unlock := m.locks.lock(p)
		if err := m.store.Delete(p); err != nil && !errors.IsKind(err, errors.KindNotFound) {
			unlock()
			return err
		}
		unlock()
	}

	unlock := m.locks.lock(files.MainFile)
	_, err = m.store.Write(files.MainFile, markdown.BaseTemplate(time.Now()))
	unlock()
	if err != nil {
		return err
	}

	if m.idx != nil {
		if err := m.idx.TruncateAll(ctx); err != nil {
			return err
		}
	}

	if _, err := m.index.Rebuild(m.store); err != nil {
		return err
	}
	m.syncer.Enqueue(files.MainFile)
	return nil
}

// Create writes a new memory file derived from title and category.
func (m *Manager) Create(ctx context.Context, title, category, content string, tags []string, metadata map[string]any) (*Entry, error) {
	if !files.ValidCategory(category) {
		return nil, errors.Newf(errors.KindInvalidArgument,
			"invalid category %q (want one of project, concept, conversation, preference, other)", category)
	}
	if files.Slug(title) == "" {
		return nil, errors.Newf(errors.KindInvalidArgument, "title %q produces an empty file name", title)
	}
	path := files.PathFor(category, title)

	unlock := m.locks.lock(path)
	defer unlock()
	if _, err := m.store.Create(path, content); err != nil {
		return nil, err
	}
	return m.afterWrite(ctx, path, &title, tags, metadata)
}

// Read returns the content of a memory file.
func (m *Manager) Read(ctx context.Context, path string) (string, error) {
	data, err := m.store.Read(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Update rewrites a memory file with the given mode.
func (m *Manager) Update(ctx context.Context, path, content string, mode files.UpdateMode) (*Entry, error) {
	unlock := m.locks.lock(path)
	defer unlock()
	if _, _, err := m.store.Update(path, content, mode); err != nil {
		return nil, err
	}
	return m.afterWrite(ctx, path, nil, nil, nil)
}

// Rewrite applies fn to the current content of path and persists the
// result. Used by the section and find/replace edit operations so the
// read-modify-write cycle runs under the path lock.
func (m *Manager) Rewrite(ctx context.Context, path string, fn func(content string) (string, error)) (*Entry, error) {
	unlock := m.locks.lock(path)
	defer unlock()
	data, err := m.store.Read(path)
	if err != nil {
		return nil, err
	}
	updated, err := fn(string(data))
	if err != nil {
		return nil, err
	}
	if _, err := m.store.Write(path, updated); err != nil {
		return nil, err
	}
	return m.afterWrite(ctx, path, nil, nil, nil)
}

// Delete removes a memory file and all of its index state. main.md is
// not deletable.
func (m *Manager) Delete(ctx context.Context, path string) error {
	if path == files.MainFile {
		return errors.New(errors.KindInvalidArgument, "main.md cannot be deleted; use memory reset")
	}
	unlock := m.locks.lock(path)
	defer unlock()
	if err := m.store.Delete(path); err != nil {
		return err
	}
	if err := m.index.Remove(path); err != nil {
		m.logger.Warn("json index remove failed", "file_path", path, "error", err)
	}
	if err := m.syncer.Delete(ctx, path); err != nil {
		m.logger.Warn("index store delete failed", "file_path", path, "error", err)
	}
	unlockMain := m.locks.lock(files.MainFile)
	if err := m.main.RemoveFileEntry(path); err != nil {
		m.logger.Warn("main index update failed", "file_path", path, "error", err)
	} else {
		m.refreshMain()
	}
	unlockMain()
	return nil
}

// Rename derives a new slug from newTitle, moves the file within its
// category, and rewrites the main.md link.
func (m *Manager) Rename(ctx context.Context, path, newTitle string) (*Entry, error) {
	if path == files.MainFile {
		return nil, errors.New(errors.KindInvalidArgument, "main.md cannot be renamed")
	}
	if files.Slug(newTitle) == "" {
		return nil, errors.Newf(errors.KindInvalidArgument, "title %q produces an empty file name", newTitle)
	}
	category := files.CategoryFromPath(path)
	newPath := files.PathFor(category, newTitle)
	if newPath == path {
		return nil, errors.Newf(errors.KindAlreadyExists, "rename target equals source: %s", path)
	}
	return m.relocate(ctx, path, newPath, &newTitle)
}

// Move changes a file's category directory, preserving its slug.
func (m *Manager) Move(ctx context.Context, path, newCategory string) (*Entry, error) {
	if path == files.MainFile {
		return nil, errors.New(errors.KindInvalidArgument, "main.md cannot be moved")
	}
	if !files.ValidCategory(newCategory) {
		return nil, errors.Newf(errors.KindInvalidArgument, "invalid category %q", newCategory)
	}
	base := files.CategoryDir(newCategory)
	newPath := base + "/" + pathBase(path)
	if newPath == path {
		entry, err := m.entryFor(path)
		return entry, err
	}
	return m.relocate(ctx, path, newPath, nil)
}

// Copy duplicates a file under a new title, optionally into another
// category. Tags and metadata carry over from the source entry.
func (m *Manager) Copy(ctx context.Context, sourcePath, newTitle, newCategory string) (*Entry, error) {
	if newCategory == "" {
		newCategory = files.CategoryFromPath(sourcePath)
	}
	if !files.ValidCategory(newCategory) {
		return nil, errors.Newf(errors.KindInvalidArgument, "invalid category %q", newCategory)
	}
	if files.Slug(newTitle) == "" {
		return nil, errors.Newf(errors.KindInvalidArgument, "title %q produces an empty file name", newTitle)
	}
	dstPath := files.PathFor(newCategory, newTitle)
	if dstPath == sourcePath {
		return nil, errors.Newf(errors.KindAlreadyExists, "copy target equals source: %s", sourcePath)
	}

	first, second := orderPaths(sourcePath, dstPath)
	unlockA := m.locks.lock(first)
	defer unlockA()
	unlockB := m.locks.lock(second)
	defer unlockB()

	if err := m.store.Copy(sourcePath, dstPath); err != nil {
		return nil, err
	}
	var tags []string
	var metadata map[string]any
	if src, ok, err := m.index.Get(sourcePath); err == nil && ok {
		tags = src.Tags
		metadata = src.Metadata
	}
	return m.afterWrite(ctx, dstPath, &newTitle, tags, metadata)
}

// relocate moves path to newPath on disk and in every index.
func (m *Manager) relocate(ctx context.Context, path, newPath string, newTitle *string) (*Entry, error) {
	first, second := orderPaths(path, newPath)
	unlockA := m.locks.lock(first)
	defer unlockA()
	unlockB := m.locks.lock(second)
	defer unlockB()

	prior, hadPrior, _ := m.index.Get(path)
	if err := m.store.Move(path, newPath); err != nil {
		return nil, err
	}

	entry, err := m.buildEntry(newPath, newTitle, nil, nil)
	if err != nil {
		return nil, err
	}
	if hadPrior {
		if newTitle == nil {
			entry.Title = prior.Title
		}
		entry.Tags = prior.Tags
		entry.Metadata = prior.Metadata
		entry.CreatedAt = prior.CreatedAt
	}
	if err := m.index.Replace(path, entry); err != nil {
		m.logger.Warn("json index replace failed", "file_path", newPath, "error", err)
	}
	unlockMain := m.locks.lock(files.MainFile)
	if err := m.main.RenameFileEntry(path, newPath, entry.Title, entry.Description); err != nil {
		m.logger.Warn("main index rename failed", "file_path", newPath, "error", err)
	} else {
		m.refreshMain()
	}
	unlockMain()
	if err := m.syncer.Delete(ctx, path); err != nil {
		m.logger.Warn("index store delete failed", "file_path", path, "error", err)
	}
	m.syncer.Enqueue(newPath)
	return m.result(entry), nil
}

// AddTags adds tags to a file's set. Idempotent; returns the sorted
// resulting set. File bytes are untouched.
func (m *Manager) AddTags(ctx context.Context, path string, tags []string) ([]string, error) {
	return m.mutateTags(ctx, path, func(current map[string]struct{}) {
		for _, t := range tags {
			if t != "" {
				current[t] = struct{}{}
			}
		}
	})
}

// RemoveTags removes tags from a file's set. Removing an absent tag is
// a no-op success.
func (m *Manager) RemoveTags(ctx context.Context, path string, tags []string) ([]string, error) {
	return m.mutateTags(ctx, path, func(current map[string]struct{}) {
		for _, t := range tags {
			delete(current, t)
		}
	})
}

// GetTags returns the sorted tag set of a file.
func (m *Manager) GetTags(path string) ([]string, error) {
	entry, err := m.entryFor(path)
	if err != nil {
		return nil, err
	}
	return entry.Tags, nil
}

func (m *Manager) mutateTags(ctx context.Context, path string, mutate func(map[string]struct{})) ([]string, error) {
	unlock := m.locks.lock(path)
	defer unlock()
	if !m.store.Exists(path) {
		return nil, errors.Newf(errors.KindNotFound, "file not found: %s", path)
	}
	entry, ok, err := m.index.Get(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		built, berr := m.buildEntry(path, nil, nil, nil)
		if berr != nil {
			return nil, berr
		}
		entry = built
	}

	set := make(map[string]struct{}, len(entry.Tags))
	for _, t := range entry.Tags {
		set[t] = struct{}{}
	}
	mutate(set)
	entry.Tags = make([]string, 0, len(set))
	for t := range set {
		entry.Tags = append(entry.Tags, t)
	}
	sort.Strings(entry.Tags)
	entry.UpdatedAt = time.Now().UTC()

	if err := m.index.Upsert(entry); err != nil {
		return nil, err
	}
	m.syncer.Enqueue(path)
	return entry.Tags, nil
}

// List returns all files, optionally narrowed to one category, as a
// flat list and a category tree. main.md is excluded from Total.
func (m *Manager) List(category string) (*ListResult, error) {
	doc, err := m.index.LoadOrRebuild(m.store)
	if err != nil {
		return nil, err
	}
	out := &ListResult{Files: []Entry{}, Tree: map[string][]Entry{}}
	for _, e := range doc.Files {
		if category != "" && e.Category != category {
			continue
		}
		entry := fromIndexEntry(e)
		out.Files = append(out.Files, entry)
		out.Tree[e.Category] = append(out.Tree[e.Category], entry)
		if e.FilePath != files.MainFile {
			out.Total++
		}
	}
	return out, nil
}

// WithMain runs fn against the main.md index under the main.md path
// lock, then refreshes main.md's own index state.
func (m *Manager) WithMain(ctx context.Context, fn func(*markdown.MainIndex) error) error {
	unlock := m.locks.lock(files.MainFile)
	defer unlock()
	if !m.store.Exists(files.MainFile) {
		return errors.New(errors.KindNotFound, "main.md not found; run memory initialize first")
	}
	if err := fn(m.main); err != nil {
		return err
	}
	if err := m.refreshEntry(files.MainFile, nil, nil); err != nil {
		m.logger.Warn("json index update failed", "file_path", files.MainFile, "error", err)
	}
	m.syncer.Enqueue(files.MainFile)
	return nil
}

// SyncPending reports whether writes leave the index behind.
func (m *Manager) SyncPending() bool { return m.syncer.Enabled() }

// afterWrite updates the JSON index, the main.md File Index, and the
// sync queue after a successful file write. Index failures are logged,
// not returned: the filesystem write already committed.
func (m *Manager) afterWrite(ctx context.Context, path string, title *string, tags []string, metadata map[string]any) (*Entry, error) {
	entry, err := m.buildEntry(path, title, tags, metadata)
	if err != nil {
		return nil, err
	}
	if prior, ok, gerr := m.index.Get(path); gerr == nil && ok {
		if title == nil {
			entry.Title = prior.Title
		}
		if tags == nil {
			entry.Tags = prior.Tags
		}
		if metadata == nil {
			entry.Metadata = prior.Metadata
		}
		entry.CreatedAt = prior.CreatedAt
	}
	if err := m.index.Upsert(entry); err != nil {
		m.logger.Warn("json index update failed", "file_path", path, "error", err)
	}
	if path != files.MainFile {
		unlock := m.locks.lock(files.MainFile)
		if err := m.main.UpdateFileEntry(entry.Title, path, entry.Description); err != nil {
			m.logger.Warn("main index update failed", "file_path", path, "error", err)
		} else {
			m.refreshMain()
		}
		unlock()
	}
	m.syncer.Enqueue(path)
	return m.result(entry), nil
}

// refreshEntry rebuilds the JSON index entry for path from its bytes,
// preserving tags and metadata unless overridden.
func (m *Manager) refreshEntry(path string, tags []string, metadata map[string]any) error {
	entry, err := m.buildEntry(path, nil, tags, metadata)
	if err != nil {
		return err
	}
	if prior, ok, gerr := m.index.Get(path); gerr == nil && ok {
		entry.Title = prior.Title
		if tags == nil {
			entry.Tags = prior.Tags
		}
		if metadata == nil {
			entry.Metadata = prior.Metadata
		}
		entry.CreatedAt = prior.CreatedAt
	}
	return m.index.Upsert(entry)
}

// refreshMain re-mirrors main.md's metadata after the main index
// touched it, and queues its re-sync.
func (m *Manager) refreshMain() {
	if err := m.refreshEntry(files.MainFile, nil, nil); err != nil {
		m.logger.Warn("json index update failed", "file_path", files.MainFile, "error", err)
	}
	m.syncer.Enqueue(files.MainFile)
}

// buildEntry derives an index entry from the file's current bytes.
func (m *Manager) buildEntry(path string, title *string, tags []string, metadata map[string]any) (files.IndexEntry, error) {
	data, err := m.store.Read(path)
	if err != nil {
		return files.IndexEntry{}, err
	}
	content := string(data)
	entry := files.IndexEntry{
		FilePath:    path,
		Title:       files.TitleFromPath(path),
		Category:    files.CategoryFromPath(path),
		Description: files.Description(content),
		Tags:        tags,
		Metadata:    metadata,
		WordCount:   files.WordCount(content),
		UpdatedAt:   time.Now().UTC(),
	}
	if title != nil {
		entry.Title = *title
	}
	return entry, nil
}

// entryFor loads the JSON index entry for path, deriving one from disk
// when the index has none.
func (m *Manager) entryFor(path string) (*Entry, error) {
	if entry, ok, err := m.index.Get(path); err == nil && ok {
		e := fromIndexEntry(entry)
		return &e, nil
	}
	if !m.store.Exists(path) {
		return nil, errors.Newf(errors.KindNotFound, "file not found: %s", path)
	}
	entry, err := m.buildEntry(path, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	e := fromIndexEntry(entry)
	return &e, nil
}

func (m *Manager) result(entry files.IndexEntry) *Entry {
	e := fromIndexEntry(entry)
	e.SyncPending = m.syncer.Enabled()
	return &e
}

func fromIndexEntry(e files.IndexEntry) Entry {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return Entry{
		FilePath:    e.FilePath,
		Title:       e.Title,
		Category:    e.Category,
		Description: e.Description,
		Tags:        tags,
		Metadata:    e.Metadata,
		WordCount:   e.WordCount,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func hasEntry(entries []files.IndexEntry, path string) bool {
	for _, e := range entries {
		if e.FilePath == path {
			return true
		}
	}
	return false
}

func pathBase(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

func orderPaths(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}
