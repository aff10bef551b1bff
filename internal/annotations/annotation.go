// Package annotations parses hook annotations. An annotation is a name
// followed by positional values and -Name=value parameters:
//
//	route GET /users/{id} -Middleware=auth
//
// Field annotations live in `packed:"..."` struct tags, method annotations in
// "//packed::" doc comments that packed generate turns into declarations.
package annotations

import (
	"strings"
	"time"

	perrors "github.com/toyz/packed/internal/errors"
)

// AnnotationType is the name of a hook annotation, e.g. "inject" or "route"
type AnnotationType string

const (
	InjectAnnotation     AnnotationType = "inject"
	ProvideAnnotation    AnnotationType = "provide"
	InitializeAnnotation AnnotationType = "initialize"
	StartAnnotation      AnnotationType = "start"
	StopAnnotation       AnnotationType = "stop"
	ConfigAnnotation     AnnotationType = "config"
	ScheduleAnnotation   AnnotationType = "schedule"
	CommandAnnotation    AnnotationType = "command"
	TracedAnnotation     AnnotationType = "traced"
	RouteAnnotation      AnnotationType = "route"
)

func (a AnnotationType) String() string {
	return string(a)
}

// TargetKind is the kind of bean member an annotation is placed on. Schemas
// combine kinds with |.
type TargetKind int

const (
	TargetField TargetKind = 1 << iota
	TargetMethod
	TargetConstructor
	TargetFunction

	TargetAny = TargetField | TargetMethod | TargetConstructor | TargetFunction
)

var targetNames = []struct {
	kind TargetKind
	name string
}{
	{TargetField, "field"},
	{TargetMethod, "method"},
	{TargetConstructor, "constructor"},
	{TargetFunction, "function"},
}

func (k TargetKind) String() string {
	var names []string
	for _, t := range targetNames {
		if k&t.kind != 0 {
			names = append(names, t.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Allows reports whether every kind in other is permitted by k
func (k TargetKind) Allows(other TargetKind) bool {
	return other != 0 && k&other == other
}

// SourceLocation is where an annotation was declared
type SourceLocation = perrors.Position

// ParsedAnnotation is an annotation bound to its schema: positional values
// are stored under their parameter names and values have the parameter type.
type ParsedAnnotation struct {
	Type       AnnotationType
	Target     TargetKind
	Parameters map[string]any
	Positional []string
	Location   SourceLocation
	Raw        string
}

func lookup[T any](p *ParsedAnnotation, name string, def []T) T {
	if v, ok := p.Parameters[name].(T); ok {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	var zero T
	return zero
}

// GetString returns a string parameter, or def when it is not set
func (p *ParsedAnnotation) GetString(name string, def ...string) string {
	return lookup(p, name, def)
}

// GetBool returns a bool parameter, or def when it is not set
func (p *ParsedAnnotation) GetBool(name string, def ...bool) bool {
	return lookup(p, name, def)
}

// GetInt returns an int parameter, or def when it is not set
func (p *ParsedAnnotation) GetInt(name string, def ...int) int {
	return lookup(p, name, def)
}

// GetStringSlice returns a list parameter, or def when it is not set
func (p *ParsedAnnotation) GetStringSlice(name string, def ...[]string) []string {
	return lookup(p, name, def)
}

// GetDuration returns a duration parameter, or def when it is not set
func (p *ParsedAnnotation) GetDuration(name string, def ...time.Duration) time.Duration {
	return lookup(p, name, def)
}

// String returns the annotation text
func (p *ParsedAnnotation) String() string {
	if p.Raw != "" {
		return p.Raw
	}
	return string(p.Type)
}
