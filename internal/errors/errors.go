// Package errors defines the coded errors raised by the packed runtime and
// the packed command.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// PackedError is implemented by every coded error
type PackedError interface {
	error
	ErrorCode() ErrorCode
	Suggestions() []string
}

// ErrorCode classifies an error
type ErrorCode int

const (
	UnknownErrorCode ErrorCode = iota

	// annotations and hook registration
	SyntaxErrorCode
	ValidationErrorCode
	RegistrationErrorCode
	SchemaErrorCode
	HookErrorCode

	// packed generate
	TemplateErrorCode
	FileSystemErrorCode

	// assembly and runtime
	ConfigurationErrorCode
	DependencyErrorCode
	ExtensionErrorCode
	InjectionErrorCode
	LifecycleErrorCode
	BuildErrorCode
)

var codeNames = [...]string{
	UnknownErrorCode:       "UnknownError",
	SyntaxErrorCode:        "SyntaxError",
	ValidationErrorCode:    "ValidationError",
	RegistrationErrorCode:  "RegistrationError",
	SchemaErrorCode:        "SchemaError",
	HookErrorCode:          "HookError",
	TemplateErrorCode:      "TemplateError",
	FileSystemErrorCode:    "FileSystemError",
	ConfigurationErrorCode: "ConfigurationError",
	DependencyErrorCode:    "DependencyError",
	ExtensionErrorCode:     "ExtensionError",
	InjectionErrorCode:     "InjectionError",
	LifecycleErrorCode:     "LifecycleError",
	BuildErrorCode:         "BuildError",
}

func (c ErrorCode) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return codeNames[UnknownErrorCode]
	}
	return codeNames[c]
}

// Position locates an annotation in source code. File may also name a bean
// member, e.g. "shop.Users.Repo", when the annotation came from a struct tag.
type Position struct {
	File   string
	Line   int
	Column int
}

// IsValid reports whether the position names a file or member
func (p Position) IsValid() bool {
	return p.File != ""
}

func (p Position) String() string {
	switch {
	case p.File == "":
		return "<runtime>"
	case p.Line == 0:
		return p.File
	case p.Column == 0:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Error is the coded error of the framework. The builder methods modify and
// return the receiver.
type Error struct {
	Code    ErrorCode
	Message string
	Pos     Position
	Cause   error
	Fields  map[string]any
	Hints   []string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		b.WriteString(e.Pos.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) ErrorCode() ErrorCode  { return e.Code }
func (e *Error) Suggestions() []string { return e.Hints }
func (e *Error) Unwrap() error         { return e.Cause }

// At sets the source position of the error
func (e *Error) At(pos Position) *Error {
	e.Pos = pos
	return e
}

// WithContext attaches a field that is logged with the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// WithSuggestion adds a hint on how to fix the error
func (e *Error) WithSuggestion(hint string) *Error {
	if hint != "" {
		e.Hints = append(e.Hints, hint)
	}
	return e
}

// New creates an error with code and message
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error with code and message caused by cause
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Has reports whether err or any error it wraps, including every member of
// a List, carries code
func Has(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(PackedError); ok && pe.ErrorCode() == code {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if Has(e, code) {
				return true
			}
		}
		return false
	default:
		return Has(stderrors.Unwrap(err), code)
	}
}

// Hints returns the suggestions of every coded error in the tree of err
func Hints(err error) []string {
	if err == nil {
		return nil
	}
	var hints []string
	if pe, ok := err.(PackedError); ok {
		hints = append(hints, pe.Suggestions()...)
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			hints = append(hints, Hints(e)...)
		}
	default:
		hints = append(hints, Hints(stderrors.Unwrap(err))...)
	}
	return hints
}
