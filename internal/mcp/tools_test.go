package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memmcp/memmcp/internal/errors"
	"github.com/memmcp/memmcp/internal/files"
	"github.com/memmcp/memmcp/internal/markdown"
	"github.com/memmcp/memmcp/internal/memory"
	"github.com/memmcp/memmcp/internal/search"
	filesync "github.com/memmcp/memmcp/internal/sync"
)

// fakeEngine records queries and serves canned results.
type fakeEngine struct {
	res *search.Results
	err error
	got []search.Query
}

func (f *fakeEngine) Search(_ context.Context, q search.Query) (*search.Results, error) {
	f.got = append(f.got, q)
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		return f.res, nil
	}
	return &search.Results{Hits: []search.Hit{}}, nil
}

func newTestServer(t *testing.T, engine search.SearchEngine) *Server {
	t.Helper()
	root := t.TempDir()
	fs, err := files.NewStore(root)
	require.NoError(t, err)
	manager := memory.NewManager(fs, files.NewIndex(root), markdown.NewMainIndex(fs), filesync.Noop{}, nil)
	_, err = manager.Initialize(context.Background())
	require.NoError(t, err)

	s, err := NewServer(manager, engine, filesync.Noop{})
	require.NoError(t, err)
	return s
}

func TestNewServerRequiresManager(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.True(t, errors.IsKind(err, errors.KindInvalidArgument))
}

func TestFilesCreateReadRoundTrip(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, out, err := s.handleFiles(ctx, nil, FilesInput{
		Operation: "create",
		Items: []FileItem{{
			Title:    "P1",
			Category: "project",
			Content:  "# P1\n\nAlpha.",
		}},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	require.True(t, out.Results[0].OK)
	entry, ok := out.Results[0].Value.(*memory.Entry)
	require.True(t, ok)
	assert.Equal(t, "projects/p1.md", entry.FilePath)
	assert.Equal(t, 2, entry.WordCount)

	_, out, err = s.handleFiles(ctx, nil, FilesInput{
		Operation: "read",
		Items:     []FileItem{{FilePath: "projects/p1.md"}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)
	read := out.Results[0].Value.(ReadValue)
	assert.Equal(t, "# P1\n\nAlpha.", read.Content)
}

func TestFilesBatchIsolatesInvalidItems(t *testing.T) {
	s := newTestServer(t, nil)

	_, out, err := s.handleFiles(context.Background(), nil, FilesInput{
		Operation: "create",
		Items: []FileItem{
			{Title: "Valid", Category: "project", Content: "ok"},
			{Title: "Broken", Category: "journal", Content: "bad category"},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)

	assert.True(t, out.Results[0].OK)
	assert.False(t, out.Results[1].OK)
	require.NotNil(t, out.Results[1].Error)
	assert.Equal(t, string(errors.KindInvalidArgument), out.Results[1].Error.Kind)

	// the valid file persisted despite the failing sibling
	content, rerr := s.manager.Read(context.Background(), "projects/valid.md")
	require.NoError(t, rerr)
	assert.Equal(t, "ok", content)
}

func TestFilesUnknownOperationIsEnvelopeError(t *testing.T) {
	s := newTestServer(t, nil)
	_, _, err := s.handleFiles(context.Background(), nil, FilesInput{Operation: "truncate"})
	assert.True(t, errors.IsKind(err, errors.KindInvalidArgument))
}

func TestFilesListDefaultsToSingleItem(t *testing.T) {
	s := newTestServer(t, nil)
	_, out, err := s.handleFiles(context.Background(), nil, FilesInput{Operation: "list"})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	require.True(t, out.Results[0].OK)
	res := out.Results[0].Value.(*memory.ListResult)
	assert.Equal(t, 0, res.Total)
}

func TestFilesRenameAndDelete(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, out, err := s.handleFiles(ctx, nil, FilesInput{
		Operation: "create",
		Items:     []FileItem{{Title: "Draft", Category: "concept", Content: "wip"}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)

	_, out, err = s.handleFiles(ctx, nil, FilesInput{
		Operation: "rename",
		Items:     []FileItem{{OldFilePath: "concepts/draft.md", NewTitle: "Final"}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)
	assert.Equal(t, "concepts/final.md", out.Results[0].Value.(*memory.Entry).FilePath)

	_, out, err = s.handleFiles(ctx, nil, FilesInput{
		Operation: "delete",
		Items:     []FileItem{{FilePath: "concepts/final.md"}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)
	assert.Equal(t, DeleteValue{FilePath: "concepts/final.md", Deleted: true}, out.Results[0].Value)
}

func TestFilesCopySameDestinationSerializes(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, out, err := s.handleFiles(ctx, nil, FilesInput{
		Operation: "create",
		Items:     []FileItem{{Title: "P1", Category: "project", Content: "# P1\n\nAlpha."}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)

	// both items resolve to the same destination path, one via the
	// defaulted category; they must run in order, not race
	_, out, err = s.handleFiles(ctx, nil, FilesInput{
		Operation: "copy",
		Items: []FileItem{
			{SourceFilePath: "projects/p1.md", NewTitle: "P1 Copy"},
			{SourceFilePath: "projects/p1.md", NewTitle: "P1 Copy", NewCategory: "project"},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)

	require.True(t, out.Results[0].OK)
	assert.Equal(t, "projects/p1-copy.md", out.Results[0].Value.(*memory.Entry).FilePath)

	require.False(t, out.Results[1].OK)
	require.NotNil(t, out.Results[1].Error)
	assert.Equal(t, string(errors.KindAlreadyExists), out.Results[1].Error.Kind)
}

func TestSearchMapsQueryFields(t *testing.T) {
	engine := &fakeEngine{res: &search.Results{
		Hits: []search.Hit{{ChunkID: 1, FilePath: "projects/p1.md", Content: "Alpha."}},
	}}
	s := newTestServer(t, engine)

	limit := 5
	_, out, err := s.handleSearch(context.Background(), nil, SearchInput{
		Queries: []SearchQueryItem{{
			Query:          "Alpha",
			SearchMode:     "fulltext",
			Limit:          &limit,
			CategoryFilter: []string{"project"},
			TagFilter:      []string{"x"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	require.True(t, out.Results[0].OK)

	val := out.Results[0].Value.(SearchValue)
	assert.Equal(t, 1, val.Total)
	assert.Equal(t, "fulltext", val.Mode)
	assert.Equal(t, "projects/p1.md", val.Hits[0].FilePath)

	require.Len(t, engine.got, 1)
	q := engine.got[0]
	assert.Equal(t, search.ModeFulltext, q.Mode)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, []string{"project"}, q.Categories)
	assert.Equal(t, []string{"x"}, q.Tags)
}

func TestSearchOmittedLimitUsesEngineDefault(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine)

	_, out, err := s.handleSearch(context.Background(), nil, SearchInput{
		Queries: []SearchQueryItem{{Query: "anything"}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)
	require.Len(t, engine.got, 1)
	assert.Equal(t, -1, engine.got[0].Limit)
	assert.Equal(t, search.ModeHybrid, engine.got[0].Mode)
}

func TestSearchDegradedFlagSurfaces(t *testing.T) {
	engine := &fakeEngine{res: &search.Results{Hits: []search.Hit{}, Degraded: true}}
	s := newTestServer(t, engine)

	_, out, err := s.handleSearch(context.Background(), nil, SearchInput{
		Queries: []SearchQueryItem{{Query: "x"}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)
	assert.True(t, out.Results[0].Value.(SearchValue).Degraded)
}

func TestSearchFileOnlyModeReportsStorageUnavailable(t *testing.T) {
	s := newTestServer(t, search.Unavailable{})

	_, out, err := s.handleSearch(context.Background(), nil, SearchInput{
		Queries: []SearchQueryItem{{Query: "x"}},
	})
	require.NoError(t, err)
	require.False(t, out.Results[0].OK)
	assert.Equal(t, string(errors.KindStorageUnavailable), out.Results[0].Error.Kind)
}

func TestEditFindReplace(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, _, err := s.handleFiles(ctx, nil, FilesInput{
		Operation: "create",
		Items:     []FileItem{{Title: "P1", Category: "project", Content: "# P1\n\nAlpha."}},
	})
	require.NoError(t, err)

	_, out, err := s.handleEdit(ctx, nil, EditInput{
		Operations: []EditItem{{
			FilePath: "projects/p1.md",
			EditType: "find_replace",
			Find:     "Alpha",
			Replace:  "Beta",
		}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)
	val := out.Results[0].Value.(EditValue)
	assert.Equal(t, 1, val.Replacements)

	content, err := s.manager.Read(ctx, "projects/p1.md")
	require.NoError(t, err)
	assert.Equal(t, "# P1\n\nBeta.", content)
}

func TestEditSectionAndInsert(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, _, err := s.handleFiles(ctx, nil, FilesInput{
		Operation: "create",
		Items: []FileItem{{
			Title:    "Doc",
			Category: "concept",
			Content:  "# Doc\n\n## Status\n\nold\n\n## Next",
		}},
	})
	require.NoError(t, err)

	_, out, err := s.handleEdit(ctx, nil, EditInput{
		Operations: []EditItem{
			{FilePath: "concepts/doc.md", EditType: "section", SectionHeader: "## Status", Content: "new"},
			{FilePath: "concepts/doc.md", EditType: "insert", Position: "end", Content: "tail"},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].OK)
	assert.True(t, out.Results[1].OK)

	content, err := s.manager.Read(ctx, "concepts/doc.md")
	require.NoError(t, err)
	assert.Contains(t, content, "new")
	assert.NotContains(t, content, "old")
	assert.Contains(t, content, "tail")
}

func TestEditMissingSectionIsNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, _, err := s.handleFiles(ctx, nil, FilesInput{
		Operation: "create",
		Items:     []FileItem{{Title: "Doc", Category: "concept", Content: "# Doc"}},
	})
	require.NoError(t, err)

	_, out, err := s.handleEdit(ctx, nil, EditInput{
		Operations: []EditItem{{
			FilePath:      "concepts/doc.md",
			EditType:      "section",
			SectionHeader: "## Ghost",
			Content:       "x",
		}},
	})
	require.NoError(t, err)
	require.False(t, out.Results[0].OK)
	assert.Equal(t, string(errors.KindNotFound), out.Results[0].Error.Kind)
}

func TestTagsHandlerLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, _, err := s.handleFiles(ctx, nil, FilesInput{
		Operation: "create",
		Items:     []FileItem{{Title: "P1", Category: "project", Content: "x"}},
	})
	require.NoError(t, err)

	_, out, err := s.handleTags(ctx, nil, TagsInput{
		Operation: "add",
		Items:     []TagItem{{FilePath: "projects/p1.md", Tags: []string{"y", "x"}}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)
	assert.Equal(t, TagsValue{FilePath: "projects/p1.md", Tags: []string{"x", "y"}}, out.Results[0].Value)

	_, out, err = s.handleTags(ctx, nil, TagsInput{
		Operation: "get",
		Items:     []TagItem{{FilePath: "projects/p1.md"}},
	})
	require.NoError(t, err)
	assert.Equal(t, TagsValue{FilePath: "projects/p1.md", Tags: []string{"x", "y"}}, out.Results[0].Value)

	_, out, err = s.handleTags(ctx, nil, TagsInput{
		Operation: "remove",
		Items:     []TagItem{{FilePath: "projects/p1.md", Tags: []string{"x", "absent"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, TagsValue{FilePath: "projects/p1.md", Tags: []string{"y"}}, out.Results[0].Value)
}

func TestMainGoalWorkflow(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, out, err := s.handleMain(ctx, nil, MainInput{
		Operation: "goal",
		Items:     []MainItem{{Goal: "ship v1"}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)

	main, err := s.manager.Read(ctx, files.MainFile)
	require.NoError(t, err)
	assert.Contains(t, main, "- [ ] ship v1")

	_, out, err = s.handleMain(ctx, nil, MainInput{
		Operation: "goal",
		Items:     []MainItem{{Goal: "ship v1", Action: "complete"}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)

	main, err = s.manager.Read(ctx, files.MainFile)
	require.NoError(t, err)
	assert.NotContains(t, main, "- [ ] ship v1")
	assert.Contains(t, main, "- [x] ship v1")
}

func TestMainAppendDefaultsToRecentNotes(t *testing.T) {
	s := newTestServer(t, nil)

	_, out, err := s.handleMain(context.Background(), nil, MainInput{
		Operation: "append",
		Items:     []MainItem{{Content: "observed a flaky test"}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)

	body, err := s.manager.Read(context.Background(), files.MainFile)
	require.NoError(t, err)
	section, err := markdown.ExtractSection(body, markdown.SectionRecentNotes)
	require.NoError(t, err)
	assert.Contains(t, section, "observed a flaky test")
}

func TestMemoryInitializeAndReset(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, out, err := s.handleMemory(ctx, nil, MemoryInput{Operation: "initialize"})
	require.NoError(t, err)
	assert.False(t, out.Created) // test server already initialized
	assert.False(t, out.Indexed)

	_, _, err = s.handleFiles(ctx, nil, FilesInput{
		Operation: "create",
		Items:     []FileItem{{Title: "Temp", Category: "other", Content: "x"}},
	})
	require.NoError(t, err)

	_, out, err = s.handleMemory(ctx, nil, MemoryInput{Operation: "reset"})
	require.NoError(t, err)
	assert.Contains(t, out.Message, "reset")

	res, err := s.manager.List("")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)

	_, _, err = s.handleMemory(ctx, nil, MemoryInput{Operation: "drop"})
	assert.True(t, errors.IsKind(err, errors.KindInvalidArgument))
}

func TestExtractSectionBody(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, _, err := s.handleFiles(ctx, nil, FilesInput{
		Operation: "create",
		Items: []FileItem{{
			Title:    "Doc",
			Category: "concept",
			Content:  "# Doc\n\n## Status\n\ngreen\n\n## Next\n\nlater",
		}},
	})
	require.NoError(t, err)

	_, out, err := s.handleExtract(ctx, nil, ExtractInput{
		Requests: []ExtractItem{{FilePath: "concepts/doc.md", SectionHeader: "## Status"}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)
	assert.Equal(t, ExtractValue{
		FilePath:      "concepts/doc.md",
		SectionHeader: "## Status",
		Content:       "green",
	}, out.Results[0].Value)
}

func TestListSectionsOutline(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, _, err := s.handleFiles(ctx, nil, FilesInput{
		Operation: "create",
		Items:     []FileItem{{Title: "Doc", Category: "concept", Content: "# Doc\n\n## Part"}},
	})
	require.NoError(t, err)

	_, out, err := s.handleList(ctx, nil, ListInput{
		Requests: []ListItem{{Type: "sections", FilePath: "concepts/doc.md"}},
	})
	require.NoError(t, err)
	require.True(t, out.Results[0].OK)
	val := out.Results[0].Value.(SectionsValue)
	require.Len(t, val.Sections, 2)
	assert.Equal(t, "Doc", val.Sections[0].Title)
	assert.Equal(t, 2, val.Sections[1].Level)
}

func TestHelpTopics(t *testing.T) {
	s := newTestServer(t, nil)

	_, out, err := s.handleHelp(context.Background(), nil, HelpInput{})
	require.NoError(t, err)
	assert.Equal(t, "overview", out.Topic)
	assert.Contains(t, out.Content, "Agent Memory")

	for _, topic := range []string{"files", "search", "edit", "tags", "main", "memory", "extract", "list"} {
		_, out, err := s.handleHelp(context.Background(), nil, HelpInput{Topic: topic})
		require.NoError(t, err, topic)
		assert.Equal(t, topic, out.Topic)
		assert.NotEmpty(t, out.Content)
		assert.NotContains(t, out.Content, "—", "help text stays plain ASCII")
	}

	_, _, err = s.handleHelp(context.Background(), nil, HelpInput{Topic: "plumbing"})
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}
