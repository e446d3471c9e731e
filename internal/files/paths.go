// Package files owns the markdown tree under the memory root: path and
// slug derivation, atomic file CRUD, and the files_index.json mirror.
package files

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
	"unicode/utf8"
)

// Reserved top-level names under the memory root.
const (
	MainFile  = "main.md"
	IndexFile = "files_index.json"
)

// MainCategory is the category of the main.md sentinel. It is not a
// writable category: main.md is created by initialize, never by create.
const MainCategory = "main"

// Categories writable through the tool surface, in display order.
var Categories = []string{"project", "concept", "conversation", "preference", "other"}

const maxDescriptionLen = 200

// ValidCategory reports whether category names a writable category.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// CategoryDir returns the directory name that holds files of a category.
func CategoryDir(category string) string {
	return category + "s"
}

// CategoryFromPath derives the category from a relative file path.
// main.md maps to "main"; files in an unrecognized directory map to
// "other".
func CategoryFromPath(filePath string) string {
	filePath = path.Clean(filePath)
	if filePath == MainFile {
		return MainCategory
	}
	dir := path.Dir(filePath)
	for _, c := range Categories {
		if dir == CategoryDir(c) {
			return c
		}
	}
	return "other"
}

// Slug derives a file name stem from a title: lowercased, with every run
// of non-alphanumeric characters collapsed to a single underscore and no
// leading or trailing underscores. Returns "" when the title contains no
// alphanumeric characters.
func Slug(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PathFor derives the relative path for a category and title.
func PathFor(category, title string) string {
	if category == MainCategory {
		return MainFile
	}
	return path.Join(CategoryDir(category), Slug(title)+".md")
}

// TitleFromPath recovers a display title from a file name stem, the
// inverse-ish of Slug: underscores become spaces and each word is
// capitalized.
func TitleFromPath(filePath string) string {
	stem := strings.TrimSuffix(path.Base(filePath), ".md")
	words := strings.Split(stem, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// HashBytes returns the SHA-256 hex digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashString returns the SHA-256 hex digest of s.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// WordCount counts whitespace-separated words. ATX header markers do not
// count, so "# Title" contributes one word.
func WordCount(content string) int {
	total := 0
	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimLeft(line, "#")
		if stripped != line && (stripped == "" || stripped[0] == ' ' || stripped[0] == '\t') {
			line = stripped
		}
		total += len(strings.Fields(line))
	}
	return total
}

// Description extracts the first non-header, non-blank paragraph of a
// document, collapsed to one line and capped at 200 characters.
func Description(content string) string {
	for _, para := range strings.Split(content, "\n\n") {
		var parts []string
		for _, line := range strings.Split(para, "\n") {
			t := strings.TrimSpace(line)
			if t == "" || strings.HasPrefix(t, "#") {
				continue
			}
			parts = append(parts, t)
		}
		if len(parts) == 0 {
			continue
		}
		desc := strings.Join(parts, " ")
		if len(desc) > maxDescriptionLen {
			cut := maxDescriptionLen
			for cut > 0 && !utf8.RuneStart(desc[cut]) {
				cut--
			}
			desc = desc[:cut]
		}
		return desc
	}
	return ""
}
