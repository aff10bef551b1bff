package utils

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"

	perrors "github.com/toyz/packed/internal/errors"
	"golang.org/x/tools/imports"
)

var importOptions = &imports.Options{
	Comments:   true,
	TabIndent:  true,
	TabWidth:   8,
	FormatOnly: true,
}

// FormatGoCode gofmts source and sorts its import block. Imports are never
// added or removed.
func FormatGoCode(filename string, source []byte) ([]byte, error) {
	out, err := imports.Process(filename, source, importOptions)
	if err != nil {
		if verr := ValidateGoCode(string(source)); verr != nil {
			return nil, fmt.Errorf("invalid Go syntax: %w", verr)
		}
		return nil, err
	}
	return out, nil
}

// FormatAndWriteGoFile formats source and writes it to filename
func FormatAndWriteGoFile(filename string, source []byte) error {
	out, err := FormatGoCode(filename, source)
	if err != nil {
		return fmt.Errorf("format %s: %w", filename, err)
	}
	if err := os.WriteFile(filename, out, 0o644); err != nil {
		return perrors.WrapFileSystemError("write", filename, err)
	}
	return nil
}

// ValidateGoCode checks that code parses as a Go file
func ValidateGoCode(code string) error {
	_, err := parser.ParseFile(token.NewFileSet(), "", code, parser.AllErrors)
	return err
}
