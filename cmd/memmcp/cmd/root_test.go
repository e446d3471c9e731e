package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "init", "sync", "search", "status", "version"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCmdPersistentFlags(t *testing.T) {
	root := NewRootCmd()
	for _, flag := range []string{"config", "memory-path", "debug"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCmdRejectsUnknownSubcommand(t *testing.T) {
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"no-such-thing"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestInitCmdCreatesBaseState(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEMORY_FILES_PATH", dir)
	t.Setenv("USE_DATABASE", "false")

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"init"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Memory initialized")

	data, err := os.ReadFile(filepath.Join(dir, "main.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Agent Memory - Main Notes")
	assert.FileExists(t, filepath.Join(dir, "files_index.json"))

	// second run is a no-op
	buf.Reset()
	root.SetArgs([]string{"init"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "already initialized")
}

func TestSyncCmdFailsInFileOnlyMode(t *testing.T) {
	t.Setenv("MEMORY_FILES_PATH", t.TempDir())
	t.Setenv("USE_DATABASE", "false")

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"sync"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database mode is disabled")
}

func TestStatusCmdFileOnlyJSON(t *testing.T) {
	t.Setenv("MEMORY_FILES_PATH", t.TempDir())
	t.Setenv("USE_DATABASE", "false")

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"status", "--json"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), `"mode": "file-only"`)
	assert.Contains(t, buf.String(), `"database_status": "disabled"`)
}

func TestSearchCmdFileOnlyReportsUnavailable(t *testing.T) {
	t.Setenv("MEMORY_FILES_PATH", t.TempDir())
	t.Setenv("USE_DATABASE", "false")

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search", "anything"})

	err := root.Execute()
	require.Error(t, err)
}
