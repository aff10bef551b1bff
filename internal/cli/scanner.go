package cli

import (
	"fmt"

	"github.com/toyz/packed/internal/utils"
)

// DirectoryScanner expands directory arguments into package directories
type DirectoryScanner struct {
	fileProcessor *utils.FileProcessor
}

// NewDirectoryScanner creates a new directory scanner
func NewDirectoryScanner() *DirectoryScanner {
	return &DirectoryScanner{fileProcessor: utils.NewFileProcessor()}
}

// ScanDirectories returns the directories holding Go source files. Patterns
// ending in "/..." are walked recursively.
func (s *DirectoryScanner) ScanDirectories(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	dirs, err := s.fileProcessor.PackageDirs(patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directories: %w", err)
	}
	return dirs, nil
}

// GeneratedFiles returns the generated files found under patterns
func (s *DirectoryScanner) GeneratedFiles(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	files, err := s.fileProcessor.GeneratedFiles(patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directories: %w", err)
	}
	return files, nil
}
