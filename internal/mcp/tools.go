package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memmcp/memmcp/internal/errors"
	"github.com/memmcp/memmcp/internal/files"
	"github.com/memmcp/memmcp/internal/markdown"
	"github.com/memmcp/memmcp/internal/search"
)

// registerTools registers the nine batch tools with the SDK server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "files",
		Description: "Batch file operations on memory files: create, read, update, delete, move, copy, rename, list. Each item succeeds or fails independently.",
	}, s.handleFiles)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search memory content. Each query runs hybrid (semantic + keyword) retrieval by default; search_mode selects vector, fulltext, or hybrid. Supports category, tag, and single-file filters.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "edit",
		Description: "Targeted edits inside memory files: replace or extend a named section, find and replace text (literal or regex), or insert at start, end, or after a marker.",
	}, s.handleEdit)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "tags",
		Description: "Manage file tags as a set: add, remove, get. Adding an existing tag or removing an absent one is a no-op success.",
	}, s.handleTags)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "main",
		Description: "Update the structured sections of main.md: append free-form notes, and manage goals, completed tasks, and future plans.",
	}, s.handleMain)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory",
		Description: "Memory lifecycle: initialize creates the base main.md and index if absent; reset deletes every file except main.md and restores the base template.",
	}, s.handleMemory)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "extract",
		Description: "Extract the body of a named section from a memory file without reading the whole document.",
	}, s.handleExtract)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list",
		Description: "List memory files (flat plus category tree) or the header outline of one file.",
	}, s.handleList)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "help",
		Description: "Documentation for the memory tools. Pass a topic (files, search, edit, tags, main, memory, extract, list) or omit it for the overview.",
	}, s.handleHelp)

	s.logger.Debug("MCP tools registered", slog.Int("count", 9))
}

// FileItem is one operand of the files tool. The fields used depend on
// the operation.
type FileItem struct {
	Title          string         `json:"title,omitempty" jsonschema:"title for create and the new title for rename/copy"`
	Category       string         `json:"category,omitempty" jsonschema:"category: project, concept, conversation, preference, other"`
	Content        string         `json:"content,omitempty" jsonschema:"markdown content for create and update"`
	Tags           []string       `json:"tags,omitempty" jsonschema:"initial tags for create"`
	Metadata       map[string]any `json:"metadata,omitempty" jsonschema:"opaque metadata for create"`
	FilePath       string         `json:"file_path,omitempty" jsonschema:"target path for read, update, delete, move"`
	UpdateMode     string         `json:"update_mode,omitempty" jsonschema:"update mode: replace (default), append, prepend"`
	NewCategory    string         `json:"new_category,omitempty" jsonschema:"destination category for move and copy"`
	SourceFilePath string         `json:"source_file_path,omitempty" jsonschema:"source path for copy"`
	OldFilePath    string         `json:"old_file_path,omitempty" jsonschema:"current path for rename"`
	NewTitle       string         `json:"new_title,omitempty" jsonschema:"new title for rename and copy"`
}

// FilesInput is the files tool envelope.
type FilesInput struct {
	Operation string     `json:"operation" jsonschema:"one of create, read, update, delete, move, copy, rename, list"`
	Items     []FileItem `json:"items,omitempty" jsonschema:"operands; results come back one per item in order"`
}

// ReadValue is the files(read) per-item result.
type ReadValue struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

// DeleteValue is the files(delete) per-item result.
type DeleteValue struct {
	FilePath string `json:"file_path"`
	Deleted  bool   `json:"deleted"`
}

func (s *Server) handleFiles(ctx context.Context, _ *mcp.CallToolRequest, in FilesInput) (*mcp.CallToolResult, BatchOutput, error) {
	done := s.logCall("files", slog.String("operation", in.Operation))

	switch in.Operation {
	case "create", "read", "update", "delete", "move", "copy", "rename":
		if len(in.Items) == 0 {
			return nil, BatchOutput{}, errors.Newf(errors.KindInvalidArgument,
				"files %s requires at least one item", in.Operation)
		}
	case "list":
		if len(in.Items) == 0 {
			in.Items = []FileItem{{}}
		}
	default:
		return nil, BatchOutput{}, errors.Newf(errors.KindInvalidArgument,
			"unknown files operation %q", in.Operation)
	}

	results := runBatch(ctx, in.Items, func(it FileItem) string {
		switch in.Operation {
		case "create":
			return files.PathFor(it.Category, it.Title)
		case "update", "delete", "move":
			return it.FilePath
		case "rename":
			return it.OldFilePath
		case "copy":
			// serialize on the write target, mirroring how the copy
			// defaults its destination category
			category := it.NewCategory
			if category == "" {
				category = files.CategoryFromPath(it.SourceFilePath)
			}
			return files.PathFor(category, it.NewTitle)
		default: // read, list commute
			return ""
		}
	}, func(ctx context.Context, it FileItem) (any, error) {
		switch in.Operation {
		case "create":
			return s.manager.Create(ctx, it.Title, it.Category, it.Content, it.Tags, it.Metadata)
		case "read":
			content, err := s.manager.Read(ctx, it.FilePath)
			if err != nil {
				return nil, err
			}
			return ReadValue{FilePath: it.FilePath, Content: content}, nil
		case "update":
			return s.manager.Update(ctx, it.FilePath, it.Content, files.UpdateMode(it.UpdateMode))
		case "delete":
			if err := s.manager.Delete(ctx, it.FilePath); err != nil {
				return nil, err
			}
			return DeleteValue{FilePath: it.FilePath, Deleted: true}, nil
		case "move":
			return s.manager.Move(ctx, it.FilePath, it.NewCategory)
		case "copy":
			return s.manager.Copy(ctx, it.SourceFilePath, it.NewTitle, it.NewCategory)
		case "rename":
			return s.manager.Rename(ctx, it.OldFilePath, it.NewTitle)
		default: // list
			return s.manager.List(it.Category)
		}
	})

	done(len(results))
	return nil, BatchOutput{Results: results}, nil
}

// SearchQueryItem is one query of the search tool.
type SearchQueryItem struct {
	Query          string   `json:"query" jsonschema:"the search text"`
	SearchMode     string   `json:"search_mode,omitempty" jsonschema:"vector, fulltext, or hybrid (default)"`
	Limit          *int     `json:"limit,omitempty" jsonschema:"maximum hits; omitted uses the configured default"`
	FilePath       string   `json:"file_path,omitempty" jsonschema:"scope the query to one file"`
	CategoryFilter []string `json:"category_filter,omitempty" jsonschema:"keep hits from files in any of these categories"`
	TagFilter      []string `json:"tag_filter,omitempty" jsonschema:"keep hits from files carrying all of these tags"`
}

// SearchInput is the search tool envelope.
type SearchInput struct {
	Queries []SearchQueryItem `json:"queries" jsonschema:"queries to run; results come back one per query in order"`
}

// SearchValue is the per-query result.
type SearchValue struct {
	Query    string       `json:"query"`
	Mode     string       `json:"mode"`
	Total    int          `json:"total"`
	Degraded bool         `json:"degraded,omitempty"`
	Hits     []search.Hit `json:"hits"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, BatchOutput, error) {
	done := s.logCall("search", slog.Int("queries", len(in.Queries)))
	if len(in.Queries) == 0 {
		return nil, BatchOutput{}, errors.New(errors.KindInvalidArgument, "search requires at least one query")
	}

	results := runBatch(ctx, in.Queries, nil, func(ctx context.Context, item SearchQueryItem) (any, error) {
		q := search.Query{
			Text:       item.Query,
			Mode:       search.Mode(item.SearchMode),
			Limit:      -1,
			FilePath:   item.FilePath,
			Categories: item.CategoryFilter,
			Tags:       item.TagFilter,
		}
		if item.Limit != nil {
			q.Limit = *item.Limit
		}
		if q.Mode == "" {
			q.Mode = search.ModeHybrid
		}
		res, err := s.engine.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		return SearchValue{
			Query:    item.Query,
			Mode:     string(q.Mode),
			Total:    len(res.Hits),
			Degraded: res.Degraded,
			Hits:     res.Hits,
		}, nil
	})

	done(len(results))
	return nil, BatchOutput{Results: results}, nil
}

// EditItem is one operation of the edit tool.
type EditItem struct {
	FilePath string `json:"file_path" jsonschema:"file to edit"`
	EditType string `json:"edit_type" jsonschema:"section, find_replace, or insert"`

	// section
	SectionHeader string `json:"section_header,omitempty" jsonschema:"exact header line addressing the section, e.g. '## Status'"`
	Mode          string `json:"mode,omitempty" jsonschema:"section mode: replace (default), append, prepend"`

	// find_replace
	Find            string `json:"find,omitempty" jsonschema:"text or pattern to find; must not be empty"`
	Replace         string `json:"replace,omitempty" jsonschema:"replacement text; regex mode may reference captures as $1"`
	UseRegex        bool   `json:"use_regex,omitempty" jsonschema:"treat find as a Go regular expression"`
	MaxReplacements *int   `json:"max_replacements,omitempty" jsonschema:"cap on replacements; omitted or -1 means unlimited"`

	// insert
	Position string `json:"position,omitempty" jsonschema:"start, end (default), or after_marker"`
	Marker   string `json:"marker,omitempty" jsonschema:"marker text required for after_marker"`

	// shared payload for section and insert
	Content string `json:"content,omitempty" jsonschema:"text to write"`
}

// EditInput is the edit tool envelope.
type EditInput struct {
	Operations []EditItem `json:"operations" jsonschema:"edits to apply; edits to the same file are serialized"`
}

// EditValue is the per-edit result.
type EditValue struct {
	FilePath     string `json:"file_path"`
	EditType     string `json:"edit_type"`
	Replacements int    `json:"replacements,omitempty"`
	WordCount    int    `json:"word_count"`
	SyncPending  bool   `json:"sync_pending,omitempty"`
}

func (s *Server) handleEdit(ctx context.Context, _ *mcp.CallToolRequest, in EditInput) (*mcp.CallToolResult, BatchOutput, error) {
	done := s.logCall("edit", slog.Int("operations", len(in.Operations)))
	if len(in.Operations) == 0 {
		return nil, BatchOutput{}, errors.New(errors.KindInvalidArgument, "edit requires at least one operation")
	}

	results := runBatch(ctx, in.Operations, func(it EditItem) string { return it.FilePath },
		func(ctx context.Context, it EditItem) (any, error) {
			replacements := 0
			entry, err := s.manager.Rewrite(ctx, it.FilePath, func(content string) (string, error) {
				switch it.EditType {
				case "section":
					return markdown.EditSection(content, it.SectionHeader, it.Content, markdown.SectionMode(it.Mode))
				case "find_replace":
					max := -1
					if it.MaxReplacements != nil {
						max = *it.MaxReplacements
					}
					updated, n, err := markdown.FindReplace(content, it.Find, it.Replace, it.UseRegex, max)
					replacements = n
					return updated, err
				case "insert":
					return markdown.Insert(content, it.Content, markdown.InsertPosition(it.Position), it.Marker)
				default:
					return "", errors.Newf(errors.KindInvalidArgument, "unknown edit type %q", it.EditType)
				}
			})
			if err != nil {
				return nil, err
			}
			return EditValue{
				FilePath:     it.FilePath,
				EditType:     it.EditType,
				Replacements: replacements,
				WordCount:    entry.WordCount,
				SyncPending:  entry.SyncPending,
			}, nil
		})

	done(len(results))
	return nil, BatchOutput{Results: results}, nil
}

// TagItem is one operand of the tags tool.
type TagItem struct {
	FilePath string   `json:"file_path" jsonschema:"file whose tags to change or read"`
	Tags     []string `json:"tags,omitempty" jsonschema:"tags to add or remove; unused for get"`
}

// TagsInput is the tags tool envelope.
type TagsInput struct {
	Operation string    `json:"operation" jsonschema:"add, remove, or get"`
	Items     []TagItem `json:"items" jsonschema:"operands; results come back one per item in order"`
}

// TagsValue is the per-item result: the full tag set after the
// operation, sorted.
type TagsValue struct {
	FilePath string   `json:"file_path"`
	Tags     []string `json:"tags"`
}

func (s *Server) handleTags(ctx context.Context, _ *mcp.CallToolRequest, in TagsInput) (*mcp.CallToolResult, BatchOutput, error) {
	done := s.logCall("tags", slog.String("operation", in.Operation))
	if len(in.Items) == 0 {
		return nil, BatchOutput{}, errors.New(errors.KindInvalidArgument, "tags requires at least one item")
	}
	switch in.Operation {
	case "add", "remove", "get":
	default:
		return nil, BatchOutput{}, errors.Newf(errors.KindInvalidArgument, "unknown tags operation %q", in.Operation)
	}

	results := runBatch(ctx, in.Items, func(it TagItem) string { return it.FilePath },
		func(ctx context.Context, it TagItem) (any, error) {
			var tags []string
			var err error
			switch in.Operation {
			case "add":
				tags, err = s.manager.AddTags(ctx, it.FilePath, it.Tags)
			case "remove":
				tags, err = s.manager.RemoveTags(ctx, it.FilePath, it.Tags)
			default:
				tags, err = s.manager.GetTags(it.FilePath)
			}
			if err != nil {
				return nil, err
			}
			return TagsValue{FilePath: it.FilePath, Tags: tags}, nil
		})

	done(len(results))
	return nil, BatchOutput{Results: results}, nil
}

// MainItem is one operand of the main tool.
type MainItem struct {
	Content string `json:"content,omitempty" jsonschema:"text for the append operation"`
	Section string `json:"section,omitempty" jsonschema:"target section for append; defaults to Recent Notes"`
	Goal    string `json:"goal,omitempty" jsonschema:"goal text for the goal operation"`
	Task    string `json:"task,omitempty" jsonschema:"task text for the task operation"`
	Plan    string `json:"plan,omitempty" jsonschema:"plan text for the plan operation"`
	Action  string `json:"action,omitempty" jsonschema:"goal: add, complete, remove; plan: add, complete; default add"`
}

// MainInput is the main tool envelope.
type MainInput struct {
	Operation string     `json:"operation" jsonschema:"append, goal, task, or plan"`
	Items     []MainItem `json:"items" jsonschema:"operands applied to main.md in order"`
}

// MainValue is the per-item result.
type MainValue struct {
	Operation string `json:"operation"`
	Detail    string `json:"detail"`
}

func (s *Server) handleMain(ctx context.Context, _ *mcp.CallToolRequest, in MainInput) (*mcp.CallToolResult, BatchOutput, error) {
	done := s.logCall("main", slog.String("operation", in.Operation))
	if len(in.Items) == 0 {
		return nil, BatchOutput{}, errors.New(errors.KindInvalidArgument, "main requires at least one item")
	}

	results := runBatch(ctx, in.Items, func(MainItem) string { return files.MainFile },
		func(ctx context.Context, it MainItem) (any, error) {
			detail, err := s.applyMainItem(ctx, in.Operation, it)
			if err != nil {
				return nil, err
			}
			return MainValue{Operation: in.Operation, Detail: detail}, nil
		})

	done(len(results))
	return nil, BatchOutput{Results: results}, nil
}

func (s *Server) applyMainItem(ctx context.Context, operation string, it MainItem) (string, error) {
	action := it.Action
	if action == "" {
		action = "add"
	}
	var detail string
	err := s.manager.WithMain(ctx, func(mi *markdown.MainIndex) error {
		switch operation {
		case "append":
			if it.Content == "" {
				return errors.New(errors.KindInvalidArgument, "append requires content")
			}
			detail = "appended"
			return mi.AppendToSection(it.Section, it.Content)
		case "goal":
			switch action {
			case "add":
				detail = "goal added"
				return mi.AddGoal(it.Goal)
			case "complete":
				detail = "goal completed"
				return mi.CompleteGoal(it.Goal)
			case "remove":
				detail = "goal removed"
				return mi.RemoveGoal(it.Goal)
			default:
				return errors.Newf(errors.KindInvalidArgument, "unknown goal action %q", action)
			}
		case "task":
			detail = "task recorded"
			return mi.AddTask(it.Task)
		case "plan":
			switch action {
			case "add":
				detail = "plan added"
				return mi.AddPlan(it.Plan)
			case "complete":
				detail = "plan completed"
				return mi.CompletePlan(it.Plan)
			default:
				return errors.Newf(errors.KindInvalidArgument, "unknown plan action %q", action)
			}
		default:
			return errors.Newf(errors.KindInvalidArgument, "unknown main operation %q", operation)
		}
	})
	return detail, err
}

// MemoryInput is the memory tool envelope.
type MemoryInput struct {
	Operation string `json:"operation" jsonschema:"initialize or reset"`
}

// MemoryOutput reports the lifecycle outcome.
type MemoryOutput struct {
	Operation string `json:"operation"`
	Created   bool   `json:"created,omitempty"`
	Indexed   bool   `json:"indexed"`
	Message   string `json:"message"`
}

func (s *Server) handleMemory(ctx context.Context, _ *mcp.CallToolRequest, in MemoryInput) (*mcp.CallToolResult, MemoryOutput, error) {
	done := s.logCall("memory", slog.String("operation", in.Operation))
	defer done(1)

	switch in.Operation {
	case "initialize":
		created, err := s.manager.Initialize(ctx)
		if err != nil {
			return nil, MemoryOutput{}, err
		}
		msg := "memory already initialized"
		if created {
			msg = "memory initialized"
		}
		return nil, MemoryOutput{
			Operation: in.Operation,
			Created:   created,
			Indexed:   s.syncer.Enabled(),
			Message:   msg,
		}, nil
	case "reset":
		if err := s.manager.Reset(ctx); err != nil {
			return nil, MemoryOutput{}, err
		}
		return nil, MemoryOutput{
			Operation: in.Operation,
			Indexed:   s.syncer.Enabled(),
			Message:   "memory reset to base state",
		}, nil
	default:
		return nil, MemoryOutput{}, errors.Newf(errors.KindInvalidArgument, "unknown memory operation %q", in.Operation)
	}
}

// ExtractItem is one request of the extract tool.
type ExtractItem struct {
	FilePath      string `json:"file_path" jsonschema:"file to extract from"`
	SectionHeader string `json:"section_header" jsonschema:"exact header line addressing the section"`
}

// ExtractInput is the extract tool envelope.
type ExtractInput struct {
	Requests []ExtractItem `json:"requests" jsonschema:"sections to extract; results come back one per request in order"`
}

// ExtractValue is the per-request result.
type ExtractValue struct {
	FilePath      string `json:"file_path"`
	SectionHeader string `json:"section_header"`
	Content       string `json:"content"`
}

func (s *Server) handleExtract(ctx context.Context, _ *mcp.CallToolRequest, in ExtractInput) (*mcp.CallToolResult, BatchOutput, error) {
	done := s.logCall("extract", slog.Int("requests", len(in.Requests)))
	if len(in.Requests) == 0 {
		return nil, BatchOutput{}, errors.New(errors.KindInvalidArgument, "extract requires at least one request")
	}

	results := runBatch(ctx, in.Requests, nil,
		func(ctx context.Context, it ExtractItem) (any, error) {
			content, err := s.manager.Read(ctx, it.FilePath)
			if err != nil {
				return nil, err
			}
			body, err := markdown.ExtractSection(content, it.SectionHeader)
			if err != nil {
				return nil, err
			}
			return ExtractValue{FilePath: it.FilePath, SectionHeader: it.SectionHeader, Content: body}, nil
		})

	done(len(results))
	return nil, BatchOutput{Results: results}, nil
}

// ListItem is one request of the list tool.
type ListItem struct {
	Type     string `json:"type" jsonschema:"files or sections"`
	Category string `json:"category,omitempty" jsonschema:"narrow a files listing to one category"`
	FilePath string `json:"file_path,omitempty" jsonschema:"file whose header outline to return for sections"`
}

// ListInput is the list tool envelope.
type ListInput struct {
	Requests []ListItem `json:"requests" jsonschema:"listings to produce; results come back one per request in order"`
}

// SectionsValue is the list(sections) per-request result.
type SectionsValue struct {
	FilePath string             `json:"file_path"`
	Sections []markdown.Section `json:"sections"`
}

func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, BatchOutput, error) {
	done := s.logCall("list", slog.Int("requests", len(in.Requests)))
	if len(in.Requests) == 0 {
		in.Requests = []ListItem{{Type: "files"}}
	}

	results := runBatch(ctx, in.Requests, nil,
		func(ctx context.Context, it ListItem) (any, error) {
			switch it.Type {
			case "files", "":
				return s.manager.List(it.Category)
			case "sections":
				content, err := s.manager.Read(ctx, it.FilePath)
				if err != nil {
					return nil, err
				}
				sections := markdown.ListSections(content)
				if sections == nil {
					sections = []markdown.Section{}
				}
				return SectionsValue{FilePath: it.FilePath, Sections: sections}, nil
			default:
				return nil, errors.Newf(errors.KindInvalidArgument, "unknown list type %q", it.Type)
			}
		})

	done(len(results))
	return nil, BatchOutput{Results: results}, nil
}

// HelpInput is the help tool envelope.
type HelpInput struct {
	Topic string `json:"topic,omitempty" jsonschema:"files, search, edit, tags, main, memory, extract, list, or empty for the overview"`
}

// HelpOutput carries one topic's documentation.
type HelpOutput struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
}

func (s *Server) handleHelp(_ context.Context, _ *mcp.CallToolRequest, in HelpInput) (*mcp.CallToolResult, HelpOutput, error) {
	done := s.logCall("help", slog.String("topic", in.Topic))
	defer done(1)

	topic := in.Topic
	if topic == "" {
		topic = "overview"
	}
	content, ok := helpTopics[topic]
	if !ok {
		return nil, HelpOutput{}, errors.Newf(errors.KindNotFound, "unknown help topic %q", in.Topic)
	}
	return nil, HelpOutput{Topic: topic, Content: content}, nil
}
