package markdown

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memmcp/memmcp/internal/errors"
	"github.com/memmcp/memmcp/internal/files"
)

func newMainIndex(t *testing.T) (*files.Store, *MainIndex) {
	t.Helper()
	store, err := files.NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Write(files.MainFile, BaseTemplate(time.Now()))
	require.NoError(t, err)
	return store, NewMainIndex(store)
}

func readMain(t *testing.T, store *files.Store) string {
	t.Helper()
	data, err := store.Read(files.MainFile)
	require.NoError(t, err)
	return string(data)
}

func today() string {
	return time.Now().Format(dateLayout)
}

func TestBaseTemplate_Shape(t *testing.T) {
	content := BaseTemplate(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	assert.True(t, strings.HasPrefix(content, "# Agent Memory - Main Notes\n"))
	assert.Contains(t, content, "Last Updated: 2026-03-14")
	for _, header := range []string{"### Projects", "### Concepts", "### Conversations", "### Preferences", "### Others"} {
		assert.Contains(t, content, header)
	}
	for _, section := range []string{
		SectionFileIndex, SectionCurrentGoals, SectionCompletedTasks,
		SectionFuturePlans, SectionRecentNotes, SectionQuickReference,
	} {
		assert.Contains(t, content, "## "+section)
	}
	assert.Contains(t, content, "<!-- Add project files here -->")
	assert.Contains(t, content, "<!-- Add other files here -->")
}

func TestMainIndex_AddGoal(t *testing.T) {
	store, idx := newMainIndex(t)

	require.NoError(t, idx.AddGoal("Ship v1"))

	goals, err := ExtractSection(readMain(t, store), SectionCurrentGoals)
	require.NoError(t, err)
	assert.Contains(t, goals, "- [ ] Ship v1")
	assert.True(t, strings.HasSuffix(goals, "---"), "entries should stay above the closing rule")
}

func TestMainIndex_CompleteGoal(t *testing.T) {
	store, idx := newMainIndex(t)
	require.NoError(t, idx.AddGoal("Ship v1"))

	require.NoError(t, idx.CompleteGoal("Ship v1"))

	content := readMain(t, store)
	goals, err := ExtractSection(content, SectionCurrentGoals)
	require.NoError(t, err)
	assert.NotContains(t, goals, "Ship v1")

	tasks, err := ExtractSection(content, SectionCompletedTasks)
	require.NoError(t, err)
	assert.Contains(t, tasks, fmt.Sprintf("- [x] Ship v1 (completed %s)", today()))
}

func TestMainIndex_CompleteGoal_Missing(t *testing.T) {
	_, idx := newMainIndex(t)

	err := idx.CompleteGoal("never added")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestMainIndex_RemoveGoal(t *testing.T) {
	store, idx := newMainIndex(t)
	require.NoError(t, idx.AddGoal("Ship v1"))
	require.NoError(t, idx.AddGoal("Write docs"))

	require.NoError(t, idx.RemoveGoal("Ship v1"))

	content := readMain(t, store)
	assert.NotContains(t, content, "Ship v1")
	assert.Contains(t, content, "- [ ] Write docs")

	err := idx.RemoveGoal("Ship v1")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestMainIndex_AddTask(t *testing.T) {
	store, idx := newMainIndex(t)

	require.NoError(t, idx.AddTask("Migrated storage"))

	tasks, err := ExtractSection(readMain(t, store), SectionCompletedTasks)
	require.NoError(t, err)
	assert.Contains(t, tasks, fmt.Sprintf("- [x] Migrated storage (completed %s)", today()))
}

func TestMainIndex_Plans(t *testing.T) {
	store, idx := newMainIndex(t)

	require.NoError(t, idx.AddPlan("Add sharding"))
	plans, err := ExtractSection(readMain(t, store), SectionFuturePlans)
	require.NoError(t, err)
	assert.Contains(t, plans, "- [ ] Add sharding")

	require.NoError(t, idx.CompletePlan("Add sharding"))
	plans, err = ExtractSection(readMain(t, store), SectionFuturePlans)
	require.NoError(t, err)
	assert.Contains(t, plans, "- [x] Add sharding")
	assert.NotContains(t, plans, "- [ ] Add sharding")
}

func TestMainIndex_CompletePlan_Missing(t *testing.T) {
	_, idx := newMainIndex(t)

	err := idx.CompletePlan("never added")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestMainIndex_AppendToSection_DefaultsToRecentNotes(t *testing.T) {
	store, idx := newMainIndex(t)

	require.NoError(t, idx.AppendToSection("", "Observed a flaky test."))

	notes, err := ExtractSection(readMain(t, store), SectionRecentNotes)
	require.NoError(t, err)
	assert.Contains(t, notes, "Observed a flaky test.")
}

func TestMainIndex_AppendToSection_Missing(t *testing.T) {
	_, idx := newMainIndex(t)

	err := idx.AppendToSection("No Such Section", "text")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestMainIndex_UpdateFileEntry(t *testing.T) {
	store, idx := newMainIndex(t)

	require.NoError(t, idx.UpdateFileEntry("P1", "projects/p1.md", "Alpha beta"))

	projects, err := ExtractSection(readMain(t, store), "### Projects")
	require.NoError(t, err)
	link := "- [P1](projects/p1.md) - Alpha beta"
	assert.Contains(t, projects, link)
	assert.Less(t, strings.Index(projects, link), strings.Index(projects, "<!-- Add project files here -->"),
		"link should sit above the placeholder")
}

func TestMainIndex_UpdateFileEntry_ReplacesExisting(t *testing.T) {
	store, idx := newMainIndex(t)
	require.NoError(t, idx.UpdateFileEntry("P1", "projects/p1.md", "Alpha"))

	require.NoError(t, idx.UpdateFileEntry("P1", "projects/p1.md", "Updated description"))

	content := readMain(t, store)
	assert.Equal(t, 1, strings.Count(content, "](projects/p1.md)"))
	assert.Contains(t, content, "- [P1](projects/p1.md) - Updated description")
}

func TestMainIndex_UpdateFileEntry_MainIsNoop(t *testing.T) {
	store, idx := newMainIndex(t)
	before := readMain(t, store)

	require.NoError(t, idx.UpdateFileEntry("Main", "main.md", "the index itself"))

	assert.Equal(t, before, readMain(t, store))
}

func TestMainIndex_RemoveFileEntry(t *testing.T) {
	store, idx := newMainIndex(t)
	require.NoError(t, idx.UpdateFileEntry("P1", "projects/p1.md", "Alpha"))

	require.NoError(t, idx.RemoveFileEntry("projects/p1.md"))
	assert.NotContains(t, readMain(t, store), "](projects/p1.md)")

	before := readMain(t, store)
	require.NoError(t, idx.RemoveFileEntry("projects/p1.md"))
	assert.Equal(t, before, readMain(t, store))
}

func TestMainIndex_RenameFileEntry(t *testing.T) {
	store, idx := newMainIndex(t)
	require.NoError(t, idx.UpdateFileEntry("P1", "projects/p1.md", "Alpha"))

	require.NoError(t, idx.RenameFileEntry("projects/p1.md", "concepts/c1.md", "C1", "Alpha"))

	content := readMain(t, store)
	assert.NotContains(t, content, "](projects/p1.md)")

	concepts, err := ExtractSection(content, "### Concepts")
	require.NoError(t, err)
	assert.Contains(t, concepts, "- [C1](concepts/c1.md) - Alpha")
}

func TestMainIndex_MutationsRefreshLastUpdated(t *testing.T) {
	store, idx := newMainIndex(t)
	stale := lastUpdatedPattern.ReplaceAllString(readMain(t, store), "Last Updated: 2020-01-01")
	_, err := store.Write(files.MainFile, stale)
	require.NoError(t, err)

	require.NoError(t, idx.AddGoal("Refresh the stamp"))

	assert.Contains(t, readMain(t, store), "Last Updated: "+today())
	assert.NotContains(t, readMain(t, store), "Last Updated: 2020-01-01")
}

func TestRefreshLastUpdated_NoStampLine(t *testing.T) {
	content := "# Doc\n\nno stamp here\n"
	assert.Equal(t, content, refreshLastUpdated(content, time.Now()))
}

func TestAppendToBody(t *testing.T) {
	assert.Equal(t, "entry", appendToBody("", "entry"))
	assert.Equal(t, "entry\n\n---", appendToBody("---", "entry"))
	assert.Equal(t, "a\n\nentry\n\n---", appendToBody("a\n\n---", "entry"))
	assert.Equal(t, "a\n\nentry", appendToBody("a", "entry"))
}
