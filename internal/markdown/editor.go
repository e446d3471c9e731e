// Package markdown implements section-aware editing of memory documents
// and the structured sections of main.md.
package markdown

import (
	"regexp"
	"strings"

	"github.com/memmcp/memmcp/internal/errors"
)

// SectionMode selects how EditSection combines new text with the
// existing section body.
type SectionMode string

const (
	SectionReplace SectionMode = "replace"
	SectionAppend  SectionMode = "append"
	SectionPrepend SectionMode = "prepend"
)

// InsertPosition addresses where Insert places text.
type InsertPosition string

const (
	InsertStart       InsertPosition = "start"
	InsertEnd         InsertPosition = "end"
	InsertAfterMarker InsertPosition = "after_marker"
)

// Section is one entry of a document outline.
type Section struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Line  int    `json:"line"`
}

var headerLinePattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// NormalizeHeader prefixes bare section names with a level-2 marker, so
// "Goals" and "## Goals" address the same section.
func NormalizeHeader(header string) string {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "#") {
		return "## " + header
	}
	return header
}

// locateSection finds the header line matching header exactly and the
// exclusive end of its section: the next header of equal or shallower
// depth. Line indexes refer to strings.Split(content, "\n").
func locateSection(lines []string, header string) (start, end int, ok bool) {
	want := NormalizeHeader(header)
	m := headerLinePattern.FindStringSubmatch(want)
	if m == nil {
		return 0, 0, false
	}
	level := len(m[1])
	for i, line := range lines {
		if strings.TrimSpace(line) != want {
			continue
		}
		end = len(lines)
		for j := i + 1; j < len(lines); j++ {
			if hm := headerLinePattern.FindStringSubmatch(lines[j]); hm != nil && len(hm[1]) <= level {
				end = j
				break
			}
		}
		return i, end, true
	}
	return 0, 0, false
}

// EditSection rewrites the section addressed by header. The section
// body runs from the header line to the next header of equal or
// shallower depth, so deeper subsections move with their parent.
func EditSection(content, header, text string, mode SectionMode) (string, error) {
	switch mode {
	case SectionReplace, SectionAppend, SectionPrepend, "":
	default:
		return "", errors.Newf(errors.KindInvalidArgument, "unknown section mode %q", mode)
	}

	lines := strings.Split(content, "\n")
	start, end, ok := locateSection(lines, header)
	if !ok {
		return "", errors.Newf(errors.KindNotFound, "section not found: %s", NormalizeHeader(header))
	}
	existing := strings.TrimSpace(strings.Join(lines[start+1:end], "\n"))

	var body string
	switch mode {
	case SectionAppend:
		body = joinBlocks(existing, text)
	case SectionPrepend:
		body = joinBlocks(text, existing)
	default:
		body = strings.TrimSpace(text)
	}

	var b strings.Builder
	b.WriteString(strings.Join(lines[:start], "\n"))
	if start > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(lines[start])
	b.WriteString("\n\n")
	b.WriteString(body)
	if end < len(lines) {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(lines[end:], "\n"))
	} else {
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// ExtractSection returns the body of the section addressed by header,
// without the header line, trimmed.
func ExtractSection(content, header string) (string, error) {
	lines := strings.Split(content, "\n")
	start, end, ok := locateSection(lines, header)
	if !ok {
		return "", errors.Newf(errors.KindNotFound, "section not found: %s", NormalizeHeader(header))
	}
	return strings.TrimSpace(strings.Join(lines[start+1:end], "\n")), nil
}

// FindReplace replaces occurrences of find and reports the replacement
// count. A negative max means unlimited. Regex mode uses Go regexp
// syntax; the replacement may reference captures as $1, $2, ...
func FindReplace(content, find, replace string, useRegex bool, max int) (string, int, error) {
	if find == "" {
		return "", 0, errors.New(errors.KindInvalidArgument, "find text must not be empty")
	}
	if max == 0 {
		return content, 0, nil
	}

	if !useRegex {
		n := strings.Count(content, find)
		if n == 0 {
			return content, 0, nil
		}
		if max > 0 && n > max {
			n = max
		}
		return strings.Replace(content, find, replace, n), n, nil
	}

	re, err := regexp.Compile(find)
	if err != nil {
		return "", 0, errors.Wrapf(errors.KindInvalidArgument, err, "invalid pattern %q", find)
	}
	matches := re.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, 0, nil
	}
	if max > 0 && len(matches) > max {
		matches = matches[:max]
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(content[last:m[0]])
		b.Write(re.ExpandString(nil, replace, content, m))
		last = m[1]
	}
	b.WriteString(content[last:])
	return b.String(), len(matches), nil
}

// Insert places text at the start, the end, or just after the first
// occurrence of marker.
func Insert(content, text string, position InsertPosition, marker string) (string, error) {
	switch position {
	case InsertStart:
		return text + "\n\n" + content, nil
	case InsertEnd, "":
		return strings.TrimRight(content, " \t\n") + "\n\n" + text, nil
	case InsertAfterMarker:
		if marker == "" {
			return "", errors.New(errors.KindInvalidArgument, "marker required for after_marker position")
		}
		idx := strings.Index(content, marker)
		if idx < 0 {
			return "", errors.Newf(errors.KindNotFound, "marker not found: %s", marker)
		}
		after := idx + len(marker)
		rest := strings.TrimLeft(content[after:], "\n")
		return content[:after] + "\n\n" + text + "\n\n" + rest, nil
	default:
		return "", errors.Newf(errors.KindInvalidArgument, "unknown insert position %q", position)
	}
}

// ListSections returns the header outline of a document. Headers inside
// fenced code blocks are skipped.
func ListSections(content string) []Section {
	var sections []Section
	inFence := false
	for i, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := headerLinePattern.FindStringSubmatch(line); m != nil {
			sections = append(sections, Section{
				Level: len(m[1]),
				Title: strings.TrimSpace(m[2]),
				Line:  i + 1,
			})
		}
	}
	return sections
}

// joinBlocks joins two markdown blocks with a blank line, tolerating
// either being empty.
func joinBlocks(a, b string) string {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n\n" + b
	}
}
