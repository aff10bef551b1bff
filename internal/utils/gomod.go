package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// ErrGoModNotFound is returned when no go.mod encloses a directory
var ErrGoModNotFound = errors.New("go.mod file not found")

// GoModParser reads go.mod files, caching parsed results per path
type GoModParser struct {
	cache *Cache[string, *modfile.File]
}

// NewGoModParser creates a parser
func NewGoModParser() *GoModParser {
	return &GoModParser{cache: NewCache[string, *modfile.File]()}
}

// Parse parses the go.mod file at path
func (p *GoModParser) Parse(path string) (*modfile.File, error) {
	clean := filepath.Clean(path)
	if filepath.Base(clean) != "go.mod" {
		return nil, fmt.Errorf("file is not a go.mod file: %s", path)
	}
	if f, ok := p.cache.GetFile(clean, clean); ok {
		return f, nil
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read go.mod: %w", err)
	}
	f, err := modfile.ParseLax(clean, data, nil)
	if err != nil {
		return nil, fmt.Errorf("parse go.mod: %w", err)
	}
	_ = p.cache.SetFile(clean, f, clean)
	return f, nil
}

// ParseModuleName returns the module path declared in the go.mod at path
func (p *GoModParser) ParseModuleName(path string) (string, error) {
	f, err := p.Parse(path)
	if err != nil {
		return "", err
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return "", fmt.Errorf("no module declaration in %s", path)
	}
	return f.Module.Mod.Path, nil
}

// Requires reports whether the go.mod at path requires modulePath
func (p *GoModParser) Requires(path, modulePath string) (bool, error) {
	f, err := p.Parse(path)
	if err != nil {
		return false, err
	}
	if f.Module != nil && f.Module.Mod.Path == modulePath {
		return true, nil
	}
	for _, r := range f.Require {
		if r.Mod.Path == modulePath {
			return true, nil
		}
	}
	return false, nil
}

// FindGoModFile walks up from startDir to the nearest go.mod
func (p *GoModParser) FindGoModFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, "go.mod")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w above %s", ErrGoModNotFound, startDir)
		}
		dir = parent
	}
}
