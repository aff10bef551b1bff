package models

import "fmt"

// ErrorType classifies generator errors
type ErrorType int

const (
	ErrorTypeAnnotationSyntax ErrorType = iota
	ErrorTypeValidation
	ErrorTypeGeneration
	ErrorTypeFileSystem
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeAnnotationSyntax:
		return "syntax"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeGeneration:
		return "generation"
	case ErrorTypeFileSystem:
		return "filesystem"
	}
	return fmt.Sprintf("ErrorType(%d)", int(t))
}

// GeneratorError is an error raised while scanning or generating a package
type GeneratorError struct {
	Type       ErrorType
	File       string
	Line       int
	Message    string
	Suggestion string
	Cause      error
}

func (e *GeneratorError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

func (e *GeneratorError) Unwrap() error {
	return e.Cause
}
