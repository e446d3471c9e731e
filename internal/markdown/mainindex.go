package markdown

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/memmcp/memmcp/internal/errors"
	"github.com/memmcp/memmcp/internal/files"
)

// Canonical main.md section names.
const (
	SectionFileIndex      = "File Index"
	SectionCurrentGoals   = "Current Goals"
	SectionCompletedTasks = "Completed Tasks"
	SectionFuturePlans    = "Future Plans"
	SectionRecentNotes    = "Recent Notes"
	SectionQuickReference = "Quick Reference"
)

const dateLayout = "2006-01-02"

var lastUpdatedPattern = regexp.MustCompile(`(?m)^Last Updated: .*$`)

// BaseTemplate renders the main.md skeleton written on first
// initialization of a memory directory.
func BaseTemplate(now time.Time) string {
	var b strings.Builder
	b.WriteString("# Agent Memory - Main Notes\n\n")
	b.WriteString("Last Updated: " + now.Format(dateLayout) + "\n\n")
	b.WriteString("## " + SectionFileIndex + "\n\n")
	b.WriteString("This section maintains an index of all specialized memory files with descriptions.\n\n")
	for _, category := range files.Categories {
		b.WriteString(categoryHeader(category) + "\n")
		fmt.Fprintf(&b, "<!-- Add %s files here -->\n\n", category)
	}
	b.WriteString("---\n\n")
	b.WriteString("## " + SectionCurrentGoals + "\n\n<!-- Active goals that the agent is working towards -->\n\n---\n\n")
	b.WriteString("## " + SectionCompletedTasks + "\n\n<!-- Tasks that have been completed with dates -->\n\n---\n\n")
	b.WriteString("## " + SectionFuturePlans + "\n\n<!-- Long-term plans and ideas for the future -->\n\n---\n\n")
	b.WriteString("## " + SectionRecentNotes + "\n\n<!-- Recent session notes and important observations -->\n\n---\n\n")
	b.WriteString("## " + SectionQuickReference + "\n\n<!-- Quick access to frequently needed information -->\n")
	return b.String()
}

// MainIndex maintains the structured sections of main.md through the
// file store: the per-category File Index and the goal, task, plan and
// note lists. Every mutation refreshes the Last Updated line.
type MainIndex struct {
	store *files.Store
}

func NewMainIndex(store *files.Store) *MainIndex {
	return &MainIndex{store: store}
}

// update reads main.md, applies fn and writes the result back when fn
// reports a change.
func (m *MainIndex) update(fn func(content string) (string, bool, error)) error {
	data, err := m.store.Read(files.MainFile)
	if err != nil {
		return err
	}
	updated, changed, err := fn(string(data))
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	updated = refreshLastUpdated(updated, time.Now())
	_, err = m.store.Write(files.MainFile, updated)
	return err
}

// AppendToSection appends a block to the named section of main.md. An
// empty section name targets Recent Notes.
func (m *MainIndex) AppendToSection(section, text string) error {
	if strings.TrimSpace(section) == "" {
		section = SectionRecentNotes
	}
	return m.update(func(content string) (string, bool, error) {
		body, err := ExtractSection(content, section)
		if err != nil {
			return "", false, err
		}
		updated, err := EditSection(content, section, appendToBody(body, text), SectionReplace)
		return updated, true, err
	})
}

// AddGoal adds an open checkbox entry under Current Goals.
func (m *MainIndex) AddGoal(goal string) error {
	return m.AppendToSection(SectionCurrentGoals, "- [ ] "+goal)
}

// CompleteGoal moves a goal from Current Goals to Completed Tasks,
// stamping it with the completion date.
func (m *MainIndex) CompleteGoal(goal string) error {
	return m.update(func(content string) (string, bool, error) {
		goals, err := ExtractSection(content, SectionCurrentGoals)
		if err != nil {
			return "", false, err
		}
		entry := "- [ ] " + goal
		if !containsLine(goals, entry) {
			return "", false, errors.Newf(errors.KindNotFound, "goal not found: %s", goal)
		}
		content, err = EditSection(content, SectionCurrentGoals, removeLine(goals, entry), SectionReplace)
		if err != nil {
			return "", false, err
		}
		tasks, err := ExtractSection(content, SectionCompletedTasks)
		if err != nil {
			return "", false, err
		}
		done := fmt.Sprintf("- [x] %s (completed %s)", goal, time.Now().Format(dateLayout))
		content, err = EditSection(content, SectionCompletedTasks, appendToBody(tasks, done), SectionReplace)
		return content, true, err
	})
}

// RemoveGoal deletes a goal from Current Goals without completing it.
func (m *MainIndex) RemoveGoal(goal string) error {
	return m.update(func(content string) (string, bool, error) {
		goals, err := ExtractSection(content, SectionCurrentGoals)
		if err != nil {
			return "", false, err
		}
		entry := "- [ ] " + goal
		if !containsLine(goals, entry) {
			return "", false, errors.Newf(errors.KindNotFound, "goal not found: %s", goal)
		}
		updated, err := EditSection(content, SectionCurrentGoals, removeLine(goals, entry), SectionReplace)
		return updated, true, err
	})
}

// AddTask records an already-completed task under Completed Tasks with
// the current date.
func (m *MainIndex) AddTask(task string) error {
	entry := fmt.Sprintf("- [x] %s (completed %s)", task, time.Now().Format(dateLayout))
	return m.AppendToSection(SectionCompletedTasks, entry)
}

// AddPlan adds an open checkbox entry under Future Plans.
func (m *MainIndex) AddPlan(plan string) error {
	return m.AppendToSection(SectionFuturePlans, "- [ ] "+plan)
}

// CompletePlan flips a plan's checkbox under Future Plans.
func (m *MainIndex) CompletePlan(plan string) error {
	return m.update(func(content string) (string, bool, error) {
		plans, err := ExtractSection(content, SectionFuturePlans)
		if err != nil {
			return "", false, err
		}
		entry := "- [ ] " + plan
		if !containsLine(plans, entry) {
			return "", false, errors.Newf(errors.KindNotFound, "plan not found: %s", plan)
		}
		updated, err := EditSection(content, SectionFuturePlans, strings.Replace(plans, entry, "- [x] "+plan, 1), SectionReplace)
		return updated, true, err
	})
}

// UpdateFileEntry inserts or refreshes the File Index link for filePath
// in its category subsection. New entries slot in above the placeholder
// comment when one is present. Missing subsections are left alone.
func (m *MainIndex) UpdateFileEntry(title, filePath, description string) error {
	if files.CategoryFromPath(filePath) == files.MainCategory {
		return nil
	}
	return m.update(func(content string) (string, bool, error) {
		return upsertEntry(content, title, filePath, description)
	})
}

// RemoveFileEntry drops the File Index line linking filePath.
func (m *MainIndex) RemoveFileEntry(filePath string) error {
	if files.CategoryFromPath(filePath) == files.MainCategory {
		return nil
	}
	return m.update(func(content string) (string, bool, error) {
		return removeEntry(content, filePath)
	})
}

// RenameFileEntry rewrites the File Index link when a file's path,
// title or description changes, moving it between category subsections
// as needed.
func (m *MainIndex) RenameFileEntry(oldPath, newPath, title, description string) error {
	return m.update(func(content string) (string, bool, error) {
		changed := false
		if files.CategoryFromPath(oldPath) != files.MainCategory {
			updated, ch, err := removeEntry(content, oldPath)
			if err != nil {
				return "", false, err
			}
			if ch {
				content = updated
				changed = true
			}
		}
		if files.CategoryFromPath(newPath) != files.MainCategory {
			updated, ch, err := upsertEntry(content, title, newPath, description)
			if err != nil {
				return "", false, err
			}
			if ch {
				content = updated
				changed = true
			}
		}
		return content, changed, nil
	})
}

// upsertEntry replaces or inserts the link line for filePath in its
// category subsection of content.
func upsertEntry(content, title, filePath, description string) (string, bool, error) {
	header := categoryHeader(files.CategoryFromPath(filePath))
	body, err := ExtractSection(content, header)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return content, false, nil
		}
		return "", false, err
	}
	link := fileLink(title, filePath, description)
	updated, replaced := replaceLink(body, filePath, link)
	if !replaced {
		updated = insertLink(body, link)
	}
	content, err = EditSection(content, header, updated, SectionReplace)
	return content, err == nil, err
}

// removeEntry drops the link line for filePath from its category
// subsection of content.
func removeEntry(content, filePath string) (string, bool, error) {
	header := categoryHeader(files.CategoryFromPath(filePath))
	body, err := ExtractSection(content, header)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return content, false, nil
		}
		return "", false, err
	}
	needle := "](" + filePath + ")"
	var kept []string
	removed := false
	for _, line := range strings.Split(body, "\n") {
		if !removed && strings.Contains(line, needle) {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		return content, false, nil
	}
	content, err = EditSection(content, header, strings.TrimSpace(strings.Join(kept, "\n")), SectionReplace)
	return content, err == nil, err
}

// categoryHeader returns the File Index subsection header for a
// category, e.g. "### Projects".
func categoryHeader(category string) string {
	dir := files.CategoryDir(category)
	return "### " + strings.ToUpper(dir[:1]) + dir[1:]
}

// fileLink formats a File Index entry line.
func fileLink(title, filePath, description string) string {
	if strings.TrimSpace(description) == "" {
		description = title
	}
	return fmt.Sprintf("- [%s](%s) - %s", title, filePath, description)
}

// replaceLink swaps the line linking filePath, if present.
func replaceLink(body, filePath, link string) (string, bool) {
	needle := "](" + filePath + ")"
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.Contains(line, needle) {
			lines[i] = link
			return strings.Join(lines, "\n"), true
		}
	}
	return body, false
}

// insertLink adds a link line above the subsection's placeholder
// comment when one exists, else at the end of the body.
func insertLink(body, link string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "<!-- Add") {
			out := make([]string, 0, len(lines)+1)
			out = append(out, lines[:i]...)
			out = append(out, link)
			out = append(out, lines[i:]...)
			return strings.TrimSpace(strings.Join(out, "\n"))
		}
	}
	return appendToBody(body, link)
}

// appendToBody adds a block at the end of a section body, staying above
// a trailing horizontal rule when one closes the section.
func appendToBody(body, block string) string {
	body = strings.TrimSpace(body)
	block = strings.TrimSpace(block)
	if body == "" {
		return block
	}
	if body == "---" {
		return block + "\n\n---"
	}
	if strings.HasSuffix(body, "\n---") {
		head := strings.TrimSpace(strings.TrimSuffix(body, "---"))
		return joinBlocks(head, block) + "\n\n---"
	}
	return joinBlocks(body, block)
}

// containsLine reports whether body has a line equal to want after
// trimming surrounding whitespace.
func containsLine(body, want string) bool {
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == want {
			return true
		}
	}
	return false
}

// removeLine drops the first line of body equal to want.
func removeLine(body, want string) string {
	var kept []string
	removed := false
	for _, line := range strings.Split(body, "\n") {
		if !removed && strings.TrimSpace(line) == want {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// refreshLastUpdated rewrites the Last Updated line with the given
// date, leaving documents without one untouched.
func refreshLastUpdated(content string, now time.Time) string {
	stamp := "Last Updated: " + now.Format(dateLayout)
	if !lastUpdatedPattern.MatchString(content) {
		return content
	}
	return lastUpdatedPattern.ReplaceAllString(content, stamp)
}
