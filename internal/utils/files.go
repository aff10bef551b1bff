package utils

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	perrors "github.com/toyz/packed/internal/errors"
)

// GeneratedFileName is the file packed generate writes into each package
const GeneratedFileName = "packed_hooks.go"

// SourceReader parses Go files, caching ASTs until the file changes
type SourceReader struct {
	fset  *token.FileSet
	cache *Cache[string, *ast.File]
}

// NewSourceReader creates a reader with its own file set
func NewSourceReader() *SourceReader {
	return &SourceReader{
		fset:  token.NewFileSet(),
		cache: NewCache[string, *ast.File](),
	}
}

// FileSet returns the file set positions of parsed files belong to
func (r *SourceReader) FileSet() *token.FileSet {
	return r.fset
}

// ParseFile parses path with comments
func (r *SourceReader) ParseFile(path string) (*ast.File, error) {
	clean := filepath.Clean(path)
	if !strings.HasSuffix(clean, ".go") {
		return nil, fmt.Errorf("not a Go file: %s", path)
	}
	if f, ok := r.cache.GetFile(clean, clean); ok {
		return f, nil
	}
	f, err := parser.ParseFile(r.fset, clean, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", clean, err)
	}
	_ = r.cache.SetFile(clean, f, clean)
	return f, nil
}

// ParseSource parses source text as if it were the file name
func (r *SourceReader) ParseSource(name, source string) (*ast.File, error) {
	f, err := parser.ParseFile(r.fset, name, source, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return f, nil
}

// CacheStats reports AST cache usage
func (r *SourceReader) CacheStats() CacheStats {
	return r.cache.Stats()
}

// FileFilter selects files within a directory
type FileFilter func(name string) bool

// SourceFileFilter selects non-test Go files, excluding the generated file
func SourceFileFilter(name string) bool {
	return strings.HasSuffix(name, ".go") &&
		!strings.HasSuffix(name, "_test.go") &&
		name != GeneratedFileName
}

// GeneratedFileFilter selects the generated file
func GeneratedFileFilter(name string) bool {
	return name == GeneratedFileName
}

var skipDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"testdata":     true,
}

// skipDir mirrors the go tool: hidden and underscore directories are ignored
func skipDir(name string) bool {
	return skipDirs[name] || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// FileProcessor expands package patterns and parses packages
type FileProcessor struct {
	reader *SourceReader
}

// NewFileProcessor creates a processor with a fresh SourceReader
func NewFileProcessor() *FileProcessor {
	return &FileProcessor{reader: NewSourceReader()}
}

// Reader returns the processor's source reader
func (fp *FileProcessor) Reader() *SourceReader {
	return fp.reader
}

// PackageDirs expands patterns into directories holding Go source files.
// A pattern ending in "/..." includes every directory below it.
func (fp *FileProcessor) PackageDirs(patterns []string) ([]string, error) {
	return fp.dirs(patterns, SourceFileFilter)
}

// GeneratedFiles lists generated files under patterns
func (fp *FileProcessor) GeneratedFiles(patterns []string) ([]string, error) {
	dirs, err := fp.dirs(patterns, GeneratedFileFilter)
	if err != nil {
		return nil, err
	}
	files := make([]string, len(dirs))
	for i, dir := range dirs {
		files[i] = filepath.Join(dir, GeneratedFileName)
	}
	return files, nil
}

func (fp *FileProcessor) dirs(patterns []string, filter FileFilter) ([]string, error) {
	var result []string
	seen := make(map[string]bool)
	add := func(dir string) error {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", dir, err)
		}
		if seen[abs] {
			return nil
		}
		seen[abs] = true
		ok, err := hasFiles(dir, filter)
		if err != nil {
			return err
		}
		if ok {
			result = append(result, dir)
		}
		return nil
	}

	for _, pattern := range patterns {
		root, recursive := strings.CutSuffix(pattern, "/...")
		if root == "" || root == "..." {
			root, recursive = ".", recursive || root == "..."
		}
		info, err := os.Stat(root)
		if err != nil {
			return nil, perrors.WrapFileSystemError("stat", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", root)
		}
		if !recursive {
			if err := add(root); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return add(path)
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return result, nil
}

func hasFiles(dir string, filter FileFilter) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, perrors.WrapFileSystemError("read", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && filter(e.Name()) {
			return true, nil
		}
	}
	return false, nil
}

// ParseDirectory parses the source files of the package in dir. It fails
// when the directory mixes packages.
func (fp *FileProcessor) ParseDirectory(dir string) (map[string]*ast.File, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", perrors.WrapFileSystemError("read", dir, err)
	}

	files := make(map[string]*ast.File)
	var pkgName string
	for _, e := range entries {
		if e.IsDir() || !SourceFileFilter(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, err := fp.reader.ParseFile(path)
		if err != nil {
			return nil, "", err
		}
		if pkgName != "" && f.Name.Name != pkgName {
			return nil, "", fmt.Errorf("directory %s mixes packages %s and %s", dir, pkgName, f.Name.Name)
		}
		pkgName = f.Name.Name
		files[path] = f
	}
	if len(files) == 0 {
		return nil, "", fmt.Errorf("no Go files in %s", dir)
	}
	return files, pkgName, nil
}
