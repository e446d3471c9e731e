package mcp

// helpTopics holds the static documentation served by the help tool.
var helpTopics = map[string]string{
	"overview": `# Agent Memory

Persistent markdown memory with hybrid search. Files live in a
categorized tree (projects/, concepts/, conversations/, preferences/,
others/) plus the main.md index. Every write is indexed asynchronously
for semantic and keyword search.

Tools: files, search, edit, tags, main, memory, extract, list, help.
All batch tools take an array of items and return one result per item
in order; a failed item never aborts the rest of the batch.

Start with memory(initialize), create files with files(create), and
recall content with search. Use help with a tool name for details.`,

	"files": `# files tool

Batch file CRUD. operation selects the action, items carries the
operands.

- create: title, category, content, optional tags and metadata. The
  path is derived: <category>s/<slug>.md.
- read: file_path. Returns the raw markdown.
- update: file_path, content, update_mode (replace, append, prepend).
- delete: file_path. main.md cannot be deleted.
- move: file_path, new_category. Keeps the slug.
- rename: old_file_path, new_title. Recomputes the slug and rewrites
  the main.md File Index link.
- copy: source_file_path, new_title, optional new_category.
- list: optional category. Same shape as list(files).

Writes return the file entry plus sync_pending, which is true while
the search index has not yet caught up.`,

	"search": `# search tool

Each query item: query, search_mode (vector, fulltext, hybrid;
default hybrid), limit, and optional filters (file_path,
category_filter, tag_filter: all tags must match).

Hybrid fuses semantic and keyword rankings by reciprocal rank fusion.
If one backend fails the response carries degraded=true with the
surviving ranking. Without a database the search tool reports
StorageUnavailable; file operations keep working.

Recently written content may be missing until sync completes; writes
flag this with sync_pending.`,

	"edit": `# edit tool

Targeted edits without rewriting the whole file. Each operation:
file_path, edit_type, plus type-specific fields.

- section: section_header addresses a header line (bare names are
  treated as level 2, so "Status" matches "## Status"); mode is
  replace (default), append, or prepend. The section runs to the next
  header of equal or shallower depth. Missing header: NotFound.
- find_replace: find (literal, or Go regex with use_regex),
  replace, max_replacements (-1 or omitted = unlimited). Empty find:
  InvalidArgument.
- insert: content plus position (start, end, after_marker).
  after_marker requires marker and fails NotFound when absent.`,

	"tags": `# tags tool

Tags are a per-file set: add is idempotent, remove of an absent tag
is a no-op success, get returns the sorted set. Tag changes touch the
index only, never the file bytes, and re-queue the file for sync so
tag filters in search stay accurate.`,

	"main": `# main tool

main.md is the structured index of the memory tree. Operations:

- append: content into a named section (default Recent Notes).
- goal: action add, complete (moves to Completed Tasks with the
  date), or remove.
- task: records an already-completed task with the date.
- plan: action add or complete (checks the box in Future Plans).

The File Index section is maintained automatically by file
operations; do not edit it by hand.`,

	"memory": `# memory tool

- initialize: creates main.md and files_index.json if absent, then
  runs a full sync sweep. Idempotent.
- reset: deletes every file except main.md, truncates the search
  index, and rewrites main.md to its base template. Irreversible.`,

	"extract": `# extract tool

Returns the body of one named section without the header line. Same
section addressing as edit(section). Useful for pulling a single
section of a large file into context.`,

	"list": `# list tool

- type files: flat list plus category tree of all memory files, with
  descriptions and word counts; optional category filter. The total
  excludes main.md.
- type sections: the header outline (level, title, line) of one file.`,
}
