package files

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/memmcp/memmcp/internal/errors"
)

// IndexVersion is the schema version written to files_index.json.
const IndexVersion = "1.0"

// IndexEntry mirrors one file's metadata in files_index.json.
type IndexEntry struct {
	FilePath    string         `json:"file_path"`
	Title       string         `json:"title"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	WordCount   int            `json:"word_count"`
}

// IndexDocument is the full files_index.json document.
type IndexDocument struct {
	Version     string       `json:"version"`
	LastUpdated time.Time    `json:"last_updated"`
	Files       []IndexEntry `json:"files"`
}

// Index maintains files_index.json. The document is rewritten atomically
// on every change, so readers always observe either the prior or the
// next fully valid document. Writers are serialized by a process mutex
// plus a cross-process flock; readers need neither because rename is
// atomic.
type Index struct {
	path     string
	lockPath string
	flock    *flock.Flock
	mu       sync.Mutex
}

// NewIndex returns the Index stored at root/files_index.json.
func NewIndex(root string) *Index {
	p := filepath.Join(root, IndexFile)
	lockPath := filepath.Join(root, ".files_index.lock")
	return &Index{
		path:     p,
		lockPath: lockPath,
		flock:    flock.New(lockPath),
	}
}

// Path returns the absolute path of the index document.
func (ix *Index) Path() string {
	return ix.path
}

// Load reads the current document. A missing file yields an empty
// document; malformed or schema-invalid JSON yields an error so the
// caller can rebuild.
func (ix *Index) Load() (*IndexDocument, error) {
	data, err := os.ReadFile(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &IndexDocument{Version: IndexVersion, Files: []IndexEntry{}}, nil
		}
		return nil, errors.Wrapf(errors.KindInternal, err, "read %s", ix.path)
	}
	var doc IndexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(errors.KindInternal, err, "parse %s", ix.path)
	}
	if doc.Version == "" {
		return nil, errors.Newf(errors.KindInternal, "index %s has no version", ix.path)
	}
	if doc.Files == nil {
		doc.Files = []IndexEntry{}
	}
	return &doc, nil
}

// LoadOrRebuild loads the document, regenerating it from the files on
// disk when the index is missing or invalid.
func (ix *Index) LoadOrRebuild(store *Store) (*IndexDocument, error) {
	if _, err := os.Stat(ix.path); os.IsNotExist(err) {
		return ix.Rebuild(store)
	}
	doc, err := ix.Load()
	if err != nil {
		slog.Warn("files index invalid, rebuilding from disk", "path", ix.path, "error", err)
		return ix.Rebuild(store)
	}
	return doc, nil
}

// Get returns the entry for filePath, if present.
func (ix *Index) Get(filePath string) (IndexEntry, bool, error) {
	doc, err := ix.Load()
	if err != nil {
		return IndexEntry{}, false, err
	}
	for _, e := range doc.Files {
		if e.FilePath == filePath {
			return e, true, nil
		}
	}
	return IndexEntry{}, false, nil
}

// Entries returns all entries sorted by file path.
func (ix *Index) Entries() ([]IndexEntry, error) {
	doc, err := ix.Load()
	if err != nil {
		return nil, err
	}
	return doc.Files, nil
}

// Upsert inserts or updates the entry for entry.FilePath. The CreatedAt
// of an existing entry is preserved when the incoming value is zero.
func (ix *Index) Upsert(entry IndexEntry) error {
	return ix.withLock(func() error {
		doc, err := ix.Load()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if entry.Tags == nil {
			entry.Tags = []string{}
		}
		if entry.Metadata == nil {
			entry.Metadata = map[string]any{}
		}
		if entry.UpdatedAt.IsZero() {
			entry.UpdatedAt = now
		}
		found := false
		for i, e := range doc.Files {
			if e.FilePath == entry.FilePath {
				if entry.CreatedAt.IsZero() {
					entry.CreatedAt = e.CreatedAt
				}
				doc.Files[i] = entry
				found = true
				break
			}
		}
		if !found {
			if entry.CreatedAt.IsZero() {
				entry.CreatedAt = now
			}
			doc.Files = append(doc.Files, entry)
		}
		return ix.save(doc)
	})
}

// Replace removes oldPath and upserts entry in a single write, for move
// and rename operations.
func (ix *Index) Replace(oldPath string, entry IndexEntry) error {
	return ix.withLock(func() error {
		doc, err := ix.Load()
		if err != nil {
			return err
		}
		kept := doc.Files[:0]
		for _, e := range doc.Files {
			if e.FilePath == oldPath {
				if entry.CreatedAt.IsZero() {
					entry.CreatedAt = e.CreatedAt
				}
				continue
			}
			if e.FilePath == entry.FilePath {
				continue
			}
			kept = append(kept, e)
		}
		if entry.Tags == nil {
			entry.Tags = []string{}
		}
		if entry.Metadata == nil {
			entry.Metadata = map[string]any{}
		}
		now := time.Now().UTC()
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if entry.UpdatedAt.IsZero() {
			entry.UpdatedAt = now
		}
		doc.Files = append(kept, entry)
		return ix.save(doc)
	})
}

// Remove drops the entry for filePath. Removing an absent entry is a
// no-op success.
func (ix *Index) Remove(filePath string) error {
	return ix.withLock(func() error {
		doc, err := ix.Load()
		if err != nil {
			return err
		}
		kept := doc.Files[:0]
		for _, e := range doc.Files {
			if e.FilePath != filePath {
				kept = append(kept, e)
			}
		}
		doc.Files = kept
		return ix.save(doc)
	})
}

// Rebuild regenerates the document from the markdown files on disk and
// saves it. Recovery path for a missing or corrupt index.
func (ix *Index) Rebuild(store *Store) (*IndexDocument, error) {
	paths, err := store.List()
	if err != nil {
		return nil, err
	}
	doc := &IndexDocument{Version: IndexVersion, Files: make([]IndexEntry, 0, len(paths))}
	for _, p := range paths {
		data, err := store.Read(p)
		if err != nil {
			slog.Warn("skipping unreadable file during index rebuild", "file_path", p, "error", err)
			continue
		}
		content := string(data)
		entry := IndexEntry{
			FilePath:    p,
			Title:       TitleFromPath(p),
			Category:    CategoryFromPath(p),
			Description: Description(content),
			Tags:        []string{},
			Metadata:    map[string]any{},
			WordCount:   WordCount(content),
		}
		if abs, aerr := store.Abs(p); aerr == nil {
			if st, serr := os.Stat(abs); serr == nil {
				entry.CreatedAt = st.ModTime().UTC()
				entry.UpdatedAt = st.ModTime().UTC()
			}
		}
		doc.Files = append(doc.Files, entry)
	}
	if err := ix.withLock(func() error { return ix.save(doc) }); err != nil {
		return nil, err
	}
	return doc, nil
}

// withLock serializes a load-modify-save cycle against writers in this
// process and in other processes.
func (ix *Index) withLock(fn func() error) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.flock.Lock(); err != nil {
		return errors.Wrapf(errors.KindInternal, err, "acquire %s", ix.lockPath)
	}
	defer func() { _ = ix.flock.Unlock() }()
	return fn()
}

// save stamps and writes the document. Callers must hold the lock.
func (ix *Index) save(doc *IndexDocument) error {
	doc.Version = IndexVersion
	doc.LastUpdated = time.Now().UTC()
	if doc.Files == nil {
		doc.Files = []IndexEntry{}
	}
	sort.Slice(doc.Files, func(i, j int) bool {
		return doc.Files[i].FilePath < doc.Files[j].FilePath
	})
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrapf(errors.KindInternal, err, "marshal files index")
	}
	if err := writeAtomic(ix.path, data); err != nil {
		return errors.Wrapf(errors.KindInternal, err, "write %s", ix.path)
	}
	return nil
}
