package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT: 8080\n"), 0o644))

	assert.True(t, FileExists(path))
	assert.False(t, FileExists(filepath.Join(dir, "missing.yaml")))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList("a, b"))
	assert.Equal(t, []string{"a"}, SplitList("a,,"))
	assert.Nil(t, SplitList(""))
}

func TestSetupStoreSqlite(t *testing.T) {
	dir := t.TempDir()
	store, err := SetupStore("sqlite", filepath.Join(dir, "snap.db"), "")
	require.NoError(t, err)
	require.NotNil(t, store)
}
