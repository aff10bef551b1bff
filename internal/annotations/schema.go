package annotations

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	perrors "github.com/toyz/packed/internal/errors"
)

// ParameterType is the type a parameter value is converted to
type ParameterType int

const (
	StringType ParameterType = iota
	BoolType
	IntType
	StringSliceType
	DurationType
)

type parameterKind struct {
	name  string
	parse func(string) (any, error)
	holds func(any) bool
}

var parameterKinds = [...]parameterKind{
	StringType:      {"string", func(s string) (any, error) { return s, nil }, holds[string]},
	BoolType:        {"bool", func(s string) (any, error) { return strconv.ParseBool(s) }, holds[bool]},
	IntType:         {"int", func(s string) (any, error) { return strconv.Atoi(s) }, holds[int]},
	StringSliceType: {"[]string", splitList, holds[[]string]},
	DurationType:    {"duration", func(s string) (any, error) { return time.ParseDuration(s) }, holds[time.Duration]},
}

func holds[T any](v any) bool {
	_, ok := v.(T)
	return ok
}

// splitList reads a comma separated list; empty items are dropped
func splitList(s string) (any, error) {
	items := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items, nil
}

func (t ParameterType) valid() bool {
	return t >= 0 && int(t) < len(parameterKinds)
}

func (t ParameterType) String() string {
	if !t.valid() {
		return "unknown"
	}
	return parameterKinds[t].name
}

// convert returns v as a value of t. Only strings are converted.
func (t ParameterType) convert(v any) (any, error) {
	kind := parameterKinds[t]
	if kind.holds(v) {
		return v, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("must be a %s, got %T", kind.name, v)
	}
	out, err := kind.parse(s)
	if err != nil {
		return nil, fmt.Errorf("%q is not a valid %s", s, kind.name)
	}
	return out, nil
}

// ParameterSpec describes one parameter of an annotation
type ParameterSpec struct {
	Type        ParameterType
	Required    bool
	Default     any
	Description string
	// Check validates the converted value
	Check func(any) error
}

// AnnotationSchema describes an annotation: where it may be placed, which
// parameters it takes and which extension handles it.
type AnnotationSchema struct {
	Type        AnnotationType
	Description string
	Targets     TargetKind
	// Extension is the import path of the package whose extension handles
	// the annotation. Empty when any extension may claim it.
	Extension  string
	Positional []string
	Parameters map[string]ParameterSpec
	// Check validates the combination of parameters once each is valid
	Check    func(*ParsedAnnotation) error
	Examples []string
}

// ImportHint tells users of the annotation which package to import when no
// extension handles it
func (s AnnotationSchema) ImportHint() string {
	if s.Extension == "" {
		return ""
	}
	return fmt.Sprintf("import %s to handle '%s' annotations", s.Extension, s.Type)
}

func (s AnnotationSchema) exampleHint() string {
	if len(s.Examples) > 0 {
		return "Example: " + s.Examples[0]
	}
	return "Run 'packed schemas' for usage"
}

// validate checks the schema when it is registered
func (s AnnotationSchema) validate() error {
	if s.Type == "" {
		return errors.New("annotation name cannot be empty")
	}
	if s.Targets == 0 || s.Targets&^TargetAny != 0 {
		return fmt.Errorf("invalid targets %s", s.Targets)
	}
	for name, spec := range s.Parameters {
		switch {
		case name == "":
			return errors.New("parameter name cannot be empty")
		case !spec.Type.valid():
			return fmt.Errorf("parameter %s has an invalid type", name)
		case spec.Default != nil && !parameterKinds[spec.Type].holds(spec.Default):
			return fmt.Errorf("default of %s parameter %s is a %T", spec.Type, name, spec.Default)
		}
	}
	for _, name := range s.Positional {
		if _, ok := s.Parameters[name]; !ok {
			return fmt.Errorf("positional parameter %s has no parameter spec", name)
		}
	}
	return nil
}

// bind stores the positional values and parameters of ast in parsed.
// Positional values take the parameter names of the schema, in order.
func (s AnnotationSchema) bind(parsed *ParsedAnnotation, ast *annotationAST, errs *perrors.List) {
	loc := parsed.Location
	if len(parsed.Positional) > len(s.Positional) {
		errs.Add(syntaxError(loc, fmt.Sprintf("'%s' takes %d positional value(s), got %d",
			parsed.Type, len(s.Positional), len(parsed.Positional))).
			WithSuggestion(s.exampleHint()))
		return
	}
	for i, value := range parsed.Positional {
		parsed.Parameters[s.Positional[i]] = value
	}

	for _, param := range ast.Params {
		name := strings.TrimPrefix(param.Name, "-")
		if _, dup := parsed.Parameters[name]; dup {
			errs.Add(syntaxError(loc, fmt.Sprintf("parameter %s given more than once", name)).
				WithSuggestion("Remove the duplicate parameter"))
			return
		}
		if param.Value != nil {
			parsed.Parameters[name] = param.Value.raw()
			continue
		}
		spec, known := s.Parameters[name]
		switch {
		case !known, spec.Type == BoolType:
			parsed.Parameters[name] = true
		case spec.Default != nil:
			parsed.Parameters[name] = spec.Default
		default:
			errs.Add(parameterError(loc, name, "needs a value").
				WithSuggestion(fmt.Sprintf("Write -%s=<%s>", name, spec.Type)))
		}
	}
}

// check fills defaults, converts every parameter to its type and validates
// the annotation. Every problem is added to errs.
func (s AnnotationSchema) check(parsed *ParsedAnnotation, errs *perrors.List) {
	loc := parsed.Location
	before := errs.Len()

	if parsed.Target != 0 && !s.Targets.Allows(parsed.Target) {
		errs.Add(schemaError(loc, fmt.Sprintf("'%s' cannot be placed on a %s", parsed.Type, parsed.Target)).
			WithSuggestion(fmt.Sprintf("'%s' is allowed on: %s", parsed.Type, s.Targets)))
	}

	for _, name := range sortedKeys(s.Parameters) {
		spec := s.Parameters[name]
		if _, ok := parsed.Parameters[name]; ok {
			continue
		}
		switch {
		case spec.Required:
			errs.Add(parameterError(loc, name, "is required").
				WithSuggestion(fmt.Sprintf("Add -%s=<%s>", name, spec.Type)))
		case spec.Default != nil:
			parsed.Parameters[name] = spec.Default
		}
	}

	for _, name := range sortedKeys(parsed.Parameters) {
		spec, ok := s.Parameters[name]
		if !ok {
			errs.Add(parameterError(loc, name, fmt.Sprintf("is not a parameter of '%s'", parsed.Type)).
				WithSuggestion(knownParameters(s)))
			continue
		}
		v, err := spec.Type.convert(parsed.Parameters[name])
		if err != nil {
			errs.Add(parameterError(loc, name, err.Error()))
			continue
		}
		parsed.Parameters[name] = v
		if spec.Check != nil {
			if err := spec.Check(v); err != nil {
				errs.Add(parameterError(loc, name, err.Error()))
			}
		}
	}

	if s.Check != nil && errs.Len() == before {
		if err := s.Check(parsed); err != nil {
			errs.Add(schemaError(loc, err.Error()))
		}
	}
}

func knownParameters(s AnnotationSchema) string {
	if len(s.Parameters) == 0 {
		return fmt.Sprintf("'%s' takes no parameters", s.Type)
	}
	names := sortedKeys(s.Parameters)
	for i, name := range names {
		names[i] = "-" + name
	}
	return "Known parameters: " + strings.Join(names, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
