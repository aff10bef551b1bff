package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/toyz/packed/internal/errors"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestFileProcessor_PackageDirs(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"main.go":                    "package main\n",
		"shop/shop.go":               "package shop\n",
		"shop/orders/orders.go":      "package orders\n",
		"shop/only/only_test.go":     "package only\n",
		"gen/packed_hooks.go":        "package gen\n",
		"vendor/x/x.go":              "package x\n",
		"testdata/t.go":              "package t\n",
		".hidden/h.go":               "package h\n",
		"_examples/e.go":             "package e\n",
		"shop/orders/docs/readme.md": "docs",
	})
	chdir(t, root)

	fp := NewFileProcessor()
	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{name: "single dir", patterns: []string{"shop"}, want: []string{"shop"}},
		{name: "recursive", patterns: []string{"./..."}, want: []string{".", "shop", "shop/orders"}},
		{name: "subtree", patterns: []string{"shop/..."}, want: []string{"shop", "shop/orders"}},
		{name: "dedup", patterns: []string{"shop", "shop/..."}, want: []string{"shop", "shop/orders"}},
		{name: "no sources", patterns: []string{"gen"}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fp.PackageDirs(tt.patterns)
			require.NoError(t, err)
			var clean []string
			for _, d := range got {
				clean = append(clean, filepath.ToSlash(d))
			}
			assert.Equal(t, tt.want, clean)
		})
	}

	_, err := fp.PackageDirs([]string{"missing"})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, perrors.Has(err, perrors.FileSystemErrorCode))
	_, err = fp.PackageDirs([]string{"main.go"})
	assert.ErrorContains(t, err, "not a directory")
}

func TestFileProcessor_GeneratedFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a/a.go":           "package a\n",
		"a/packed_hooks.go": "package a\n",
		"b/b.go":           "package b\n",
	})
	chdir(t, root)

	got, err := NewFileProcessor().GeneratedFiles([]string{"./..."})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join("a", GeneratedFileName), got[0])
}

func TestFileProcessor_ParseDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ok/a.go":            "package ok\n\ntype A struct{}\n",
		"ok/b.go":            "package ok\n\ntype B struct{}\n",
		"ok/a_test.go":       "package ok_test\n",
		"ok/packed_hooks.go": "package ok\n",
		"mixed/a.go":         "package a\n",
		"mixed/b.go":         "package b\n",
		"broken/a.go":        "package broken\n\nfunc {\n",
	})

	fp := NewFileProcessor()
	files, pkg, err := fp.ParseDirectory(filepath.Join(root, "ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", pkg)
	assert.Len(t, files, 2)

	_, _, err = fp.ParseDirectory(filepath.Join(root, "mixed"))
	assert.ErrorContains(t, err, "mixes packages")

	_, _, err = fp.ParseDirectory(filepath.Join(root, "broken"))
	assert.ErrorContains(t, err, "parse")

	// the second parse is served from the cache
	_, _, err = fp.ParseDirectory(filepath.Join(root, "ok"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fp.Reader().CacheStats().Hits, 2)
}

func TestSourceReader_ParseSource(t *testing.T) {
	r := NewSourceReader()
	f, err := r.ParseSource("x.go", "package x\n")
	require.NoError(t, err)
	assert.Equal(t, "x", f.Name.Name)

	_, err = r.ParseFile("x.txt")
	assert.ErrorContains(t, err, "not a Go file")
}
