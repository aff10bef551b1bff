package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleaner_CleanGeneratedFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/a.go":                 "package a\n",
		"a/packed_hooks.go":      "package a\n",
		"b/c/packed_hooks.go":    "package c\n",
		"d/d.go":                 "package d\n",
		"vendor/packed_hooks.go": "package vendor\n",
	})

	removed, err := NewCleaner().CleanGeneratedFiles([]string{root + "/..."})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a", "packed_hooks.go"),
		filepath.Join(root, "b", "c", "packed_hooks.go"),
	}, removed)
	assert.NoFileExists(t, filepath.Join(root, "a", "packed_hooks.go"))
	assert.FileExists(t, filepath.Join(root, "a", "a.go"))
	assert.FileExists(t, filepath.Join(root, "vendor", "packed_hooks.go"))

	removed, err = NewCleaner().CleanGeneratedFiles([]string{root + "/..."})
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestCleaner_MissingDirectory(t *testing.T) {
	_, err := NewCleaner().CleanGeneratedFiles([]string{filepath.Join(t.TempDir(), "missing")})
	assert.ErrorContains(t, err, "failed to scan directories")
}

func TestDirectoryScanner_ScanDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/a.go":         "package a\n",
		"a/a_test.go":    "package a\n",
		"b/only_test.go": "package b\n",
		"c/d/d.go":       "package d\n",
	})

	dirs, err := NewDirectoryScanner().ScanDirectories([]string{root + "/..."})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a"), filepath.Join(root, "c", "d")}, dirs)

	dirs, err = NewDirectoryScanner().ScanDirectories([]string{filepath.Join(root, "a")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a")}, dirs)

	t.Chdir(filepath.Join(root, "a"))
	dirs, err = NewDirectoryScanner().ScanDirectories(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"."}, dirs)
}
