package cli

import (
	"os"

	perrors "github.com/toyz/packed/internal/errors"
)

// Cleaner removes generated hook files
type Cleaner struct {
	scanner *DirectoryScanner
}

// NewCleaner creates a new cleaner
func NewCleaner() *Cleaner {
	return &Cleaner{scanner: NewDirectoryScanner()}
}

// CleanGeneratedFiles removes every packed_hooks.go under patterns and returns
// the removed paths
func (c *Cleaner) CleanGeneratedFiles(patterns []string) ([]string, error) {
	files, err := c.scanner.GeneratedFiles(patterns)
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(files))
	for _, file := range files {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			return removed, perrors.WrapFileSystemError("remove", file, err)
		}
		removed = append(removed, file)
	}
	return removed, nil
}
