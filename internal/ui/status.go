package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes the health of the memory service.
type StatusInfo struct {
	MemoryPath  string `json:"memory_path"`
	Initialized bool   `json:"initialized"`
	FileCount   int    `json:"file_count"`
	Mode        string `json:"mode"` // "indexed" or "file-only"

	// Index store stats, indexed mode only.
	DatabaseStatus string `json:"database_status"` // "ready", "unreachable", "disabled"
	IndexedFiles   int64  `json:"indexed_files,omitempty"`
	IndexedChunks  int64  `json:"indexed_chunks,omitempty"`
	EmbeddedChunks int64  `json:"embedded_chunks,omitempty"`
	PendingFiles   int64  `json:"pending_files,omitempty"`
	FailedFiles    int64  `json:"failed_files,omitempty"`

	EmbeddingProvider  string `json:"embedding_provider,omitempty"`
	EmbeddingModel     string `json:"embedding_model,omitempty"`
	EmbeddingDimension int    `json:"embedding_dimension,omitempty"`

	WatcherEnabled bool `json:"watcher_enabled"`
}

// StatusRenderer displays service status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info as text.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Memory Status"))

	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Label.Render("Path:"), info.MemoryPath)
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Label.Render("Initialized:"), yesNo(info.Initialized))
	_, _ = fmt.Fprintf(r.out, "  %s %d\n", r.styles.Label.Render("Files:"), info.FileCount)
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Label.Render("Mode:"), info.Mode)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Label.Render("Database:"), r.renderDBStatus(info.DatabaseStatus))
	if info.DatabaseStatus == "ready" {
		_, _ = fmt.Fprintf(r.out, "    Indexed files:   %d\n", info.IndexedFiles)
		_, _ = fmt.Fprintf(r.out, "    Chunks:          %d\n", info.IndexedChunks)
		_, _ = fmt.Fprintf(r.out, "    Embedded chunks: %d\n", info.EmbeddedChunks)
		if info.PendingFiles > 0 {
			_, _ = fmt.Fprintf(r.out, "    Pending:         %s\n",
				r.styles.Warning.Render(fmt.Sprintf("%d", info.PendingFiles)))
		}
		if info.FailedFiles > 0 {
			_, _ = fmt.Fprintf(r.out, "    Failed:          %s\n",
				r.styles.Error.Render(fmt.Sprintf("%d", info.FailedFiles)))
		}
	}

	if info.EmbeddingProvider != "" {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Label.Render("Embedding:"))
		_, _ = fmt.Fprintf(r.out, "    Provider:  %s\n", info.EmbeddingProvider)
		_, _ = fmt.Fprintf(r.out, "    Model:     %s\n", info.EmbeddingModel)
		_, _ = fmt.Fprintf(r.out, "    Dimension: %d\n", info.EmbeddingDimension)
	}

	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Label.Render("Watcher:"), yesNo(info.WatcherEnabled))
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderDBStatus(status string) string {
	switch status {
	case "ready":
		return r.styles.Success.Render(status)
	case "unreachable":
		return r.styles.Error.Render(status)
	default:
		return r.styles.Dim.Render(status)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// FormatTime renders a timestamp relative to now, for sync records.
func FormatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return t.Format("2006-01-02 15:04")
	}
}
