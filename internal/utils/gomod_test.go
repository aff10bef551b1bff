package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGoMod = `module example.com/shop

go 1.25

require (
	github.com/toyz/packed v0.1.0
	go.uber.org/zap v1.27.0 // indirect
)
`

func TestGoModParser(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"go.mod":           testGoMod,
		"internal/a/a.go": "package a\n",
		"bad/go.mod":      "module \"example.com/bad\n",
		"empty/go.mod":    "go 1.25\n",
	})
	p := NewGoModParser()

	path, err := p.FindGoModFile(filepath.Join(root, "internal", "a"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "go.mod"), path)

	name, err := p.ParseModuleName(path)
	require.NoError(t, err)
	assert.Equal(t, "example.com/shop", name)

	ok, err := p.Requires(path, "github.com/toyz/packed")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.Requires(path, "github.com/spf13/cobra")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.ParseModuleName(filepath.Join(root, "bad", "go.mod"))
	assert.ErrorContains(t, err, "parse go.mod")
	_, err = p.ParseModuleName(filepath.Join(root, "empty", "go.mod"))
	assert.ErrorContains(t, err, "no module declaration")
	_, err = p.ParseModuleName(filepath.Join(root, "internal", "a", "a.go"))
	assert.ErrorContains(t, err, "not a go.mod")
}

func TestGoModParser_NotFound(t *testing.T) {
	_, err := NewGoModParser().FindGoModFile(filepath.Join(string(filepath.Separator), "nonexistent-packed-dir"))
	assert.ErrorIs(t, err, ErrGoModNotFound)
}
