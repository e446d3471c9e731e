// Package chunk splits markdown documents into bounded, header-aware
// chunks suitable for embedding and retrieval.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/memmcp/memmcp/internal/errors"
)

// Default chunking parameters, measured in characters.
const (
	DefaultSize    = 800
	DefaultOverlap = 200
)

// headerPattern matches ATX headers: "# Title" through "###### Title".
var headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Chunk is a contiguous slice of a document together with its enclosing
// header context.
type Chunk struct {
	Content      string
	Index        int
	HeaderPath   []string
	SectionLevel int
}

// Chunker splits markdown into chunks of at most Size characters, with
// Overlap characters shared between successive chunks of a section.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Size must be at least 1; overlap must be
// non-negative and strictly smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size < 1 {
		return nil, errors.Newf(errors.KindInvalidArgument, "chunk size must be at least 1, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.Newf(errors.KindInvalidArgument, "chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split chunks content in document order. Chunk indexes are dense and
// zero-based, empty-after-trim chunks are dropped, and identical input
// always yields an identical chunk sequence.
func (c *Chunker) Split(content string) []Chunk {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var chunks []Chunk
	for _, sec := range parseSections(content) {
		for _, part := range c.splitSection(sec) {
			text := strings.TrimSpace(part)
			if text == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				Content:      text,
				Index:        len(chunks),
				HeaderPath:   sec.headerPath,
				SectionLevel: len(sec.headerPath),
			})
		}
	}
	return chunks
}

// section is a run of text governed by one header, or the text before
// the first header. headerLine is empty for pre-header text.
type section struct {
	headerPath []string
	headerLine string
	text       string
}

// parseSections walks the document line by line, maintaining a stack of
// enclosing header titles. A header at level N clears all deeper stack
// entries. Header-looking lines inside fenced code blocks do not start
// a new section.
func parseSections(content string) []section {
	lines := strings.Split(content, "\n")
	headerStack := make([]string, 6)

	var sections []section
	var buf strings.Builder
	current := section{}

	flush := func() {
		current.text = buf.String()
		if strings.TrimSpace(current.text) != "" {
			sections = append(sections, current)
		}
		buf.Reset()
	}

	inFence := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if m := headerPattern.FindStringSubmatch(line); m != nil && !inFence {
			flush()

			level := len(m[1])
			title := strings.TrimSpace(m[2])
			headerStack[level-1] = title
			for i := level; i < 6; i++ {
				headerStack[i] = ""
			}

			path := make([]string, 0, level)
			for i := 0; i < level; i++ {
				if headerStack[i] != "" {
					path = append(path, headerStack[i])
				}
			}
			current = section{headerPath: path, headerLine: line}
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	flush()

	return sections
}

// splitSection slices one section into parts of at most size characters.
// The header line is atomic: when it alone exceeds the budget it is
// emitted whole rather than cut. Successive parts of the same section
// share the configured overlap; overlap never crosses sections because
// each section is split independently.
func (c *Chunker) splitSection(sec section) []string {
	text := sec.text
	if len(text) <= c.size {
		return []string{text}
	}

	var parts []string
	start := 0
	if len(sec.headerLine) > c.size {
		parts = append(parts, sec.headerLine)
		start = len(sec.headerLine)
	}

	for start < len(text) {
		if len(text)-start <= c.size {
			parts = append(parts, text[start:])
			break
		}

		cut := breakPoint(text[start : start+c.size])
		if cut == c.size {
			// Hard cut: stay on a rune boundary.
			for cut > 0 && !utf8.RuneStart(text[start+cut]) {
				cut--
			}
			if cut == 0 {
				_, w := utf8.DecodeRuneInString(text[start:])
				cut = w
			}
		}
		parts = append(parts, text[start:start+cut])

		next := start + cut - c.overlap
		if next <= start {
			next = start + cut
		} else {
			for !utf8.RuneStart(text[next]) {
				next++
			}
		}
		start = next
	}
	return parts
}

// breakPoint picks the cut position for a window that is known to be
// followed by more text: the latest paragraph break, then line break,
// then sentence end, then word boundary. With no break available the
// full window is cut.
func breakPoint(window string) int {
	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return i + 2
	}
	if i := strings.LastIndex(window, "\n"); i > 0 {
		return i + 1
	}
	if i := lastSentenceEnd(window); i > 0 {
		return i
	}
	if i := strings.LastIndex(window, " "); i > 0 {
		return i + 1
	}
	return len(window)
}

// lastSentenceEnd returns the position just past the latest ". ", "! "
// or "? " in the window, or 0 when none is present.
func lastSentenceEnd(window string) int {
	best := -1
	for _, sep := range []string{". ", "! ", "? "} {
		if i := strings.LastIndex(window, sep); i > best {
			best = i
		}
	}
	if best <= 0 {
		return 0
	}
	return best + 2
}
