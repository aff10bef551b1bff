// Package hooks routes hook annotations found on bean members to the
// extension that owns them. Field annotations come from `packed:"..."`
// struct tags; method annotations are declared per type, normally by
// generated code, since Go has no method annotations.
package hooks

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/toyz/packed/internal/annotations"
	"github.com/toyz/packed/internal/errors"
)

var (
	// ErrUnknownHook is returned for annotations no extension has registered
	ErrUnknownHook = stderrors.New("no extension handles annotation")

	// ErrDuplicateHook is returned when the same member carries the same annotation twice
	ErrDuplicateHook = stderrors.New("duplicate hook")

	// ErrAlreadyScanned is returned when method annotations are declared after a type was scanned
	ErrAlreadyScanned = stderrors.New("type already scanned")

	// ErrAlreadyRegistered is returned when an annotation name is registered twice
	ErrAlreadyRegistered = stderrors.New("annotation already registered")

	// ErrAggregateBuilt is returned when a site is added to a finished aggregate
	ErrAggregateBuilt = stderrors.New("aggregate already built")
)

// Spec binds an annotation name to the extension type that handles it
type Spec struct {
	Annotation annotations.AnnotationType
	Extension  reflect.Type
}

// Registry holds hook specs and declared method annotations
type Registry struct {
	schemas *annotations.Registry
	parser  *annotations.Parser

	mu      sync.Mutex
	specs   map[annotations.AnnotationType]Spec
	methods map[reflect.Type]map[string][]string
	scanned map[reflect.Type]bool
}

// NewRegistry creates a registry validating annotations against schemas
func NewRegistry(schemas *annotations.Registry) *Registry {
	return &Registry{
		schemas: schemas,
		parser:  annotations.NewParser(schemas),
		specs:   make(map[annotations.AnnotationType]Spec),
		methods: make(map[reflect.Type]map[string][]string),
		scanned: make(map[reflect.Type]bool),
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry backed by the default schema registry
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(annotations.DefaultRegistry())
	})
	return defaultRegistry
}

// Schemas returns the schema registry annotations are validated against
func (r *Registry) Schemas() *annotations.Registry {
	return r.schemas
}

// Register binds an annotation to an extension type. The annotation's schema
// must already be registered, and when the schema names an extension package
// the extension type must be declared in it.
func (r *Registry) Register(spec Spec) error {
	if spec.Extension == nil {
		return errors.New(errors.RegistrationErrorCode, fmt.Sprintf("hook %s has no extension type", spec.Annotation))
	}
	schema, ok := r.schemas.Lookup(spec.Annotation)
	if !ok {
		return errors.New(errors.RegistrationErrorCode, fmt.Sprintf("hook %s has no annotation schema", spec.Annotation)).
			WithSuggestion("register the schema first or use RegisterWithSchema")
	}
	if err := checkBinding(schema, spec.Extension); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.specs[spec.Annotation]; ok {
		return errors.Wrap(errors.RegistrationErrorCode,
			fmt.Sprintf("annotation %s is owned by %s", spec.Annotation, existing.Extension), ErrAlreadyRegistered)
	}
	r.specs[spec.Annotation] = spec
	return nil
}

// RegisterWithSchema registers the annotation schema and the hook spec
// together. A schema without extension package is bound to the package of
// the extension type.
func (r *Registry) RegisterWithSchema(spec Spec, schema annotations.AnnotationSchema) error {
	if spec.Extension == nil {
		return errors.New(errors.RegistrationErrorCode, fmt.Sprintf("hook %s has no extension type", schema.Type))
	}
	if schema.Extension == "" {
		schema.Extension = structType(spec.Extension).PkgPath()
	}
	if err := checkBinding(schema, spec.Extension); err != nil {
		return err
	}
	if err := r.schemas.Register(schema); err != nil {
		return err
	}
	spec.Annotation = schema.Type
	return r.Register(spec)
}

// checkBinding fails when schema names an extension package other than the
// one declaring ext
func checkBinding(schema annotations.AnnotationSchema, ext reflect.Type) error {
	if pkg := structType(ext).PkgPath(); schema.Extension == "" || pkg == schema.Extension {
		return nil
	}
	return errors.New(errors.RegistrationErrorCode,
		fmt.Sprintf("annotation %s is handled by an extension of %s, not %s", schema.Type, schema.Extension, ext)).
		WithContext("extension", schema.Extension).
		WithSuggestion(schema.ImportHint())
}

// Lookup returns the spec for an annotation
func (r *Registry) Lookup(annotation annotations.AnnotationType) (Spec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	spec, ok := r.specs[annotation]
	return spec, ok
}

// Specs returns all registered specs sorted by annotation
func (r *Registry) Specs() []Spec {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Spec, 0, len(r.specs))
	for _, spec := range r.specs {
		result = append(result, spec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Annotation < result[j].Annotation })
	return result
}

// DeclareMethods records method annotations for t (a struct or pointer to struct).
// Declarations for the same type merge. Declaring after t has been scanned fails.
func (r *Registry) DeclareMethods(t reflect.Type, methods map[string][]string) error {
	t = structType(t)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scanned[t] {
		return errors.Wrap(errors.HookErrorCode, fmt.Sprintf("declare methods of %s", t), ErrAlreadyScanned).
			WithSuggestion("declare method hooks from an init function")
	}

	table, ok := r.methods[t]
	if !ok {
		table = make(map[string][]string)
		r.methods[t] = table
	}
	for method, list := range methods {
		table[method] = append(table[method], list...)
	}
	return nil
}

// markScanned freezes the method table of t and returns a copy of it
func (r *Registry) markScanned(t reflect.Type) map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scanned[t] = true
	table := make(map[string][]string, len(r.methods[t]))
	for k, v := range r.methods[t] {
		table[k] = append([]string(nil), v...)
	}
	return table
}

// resolve finds the owning extension of a parsed annotation
func (r *Registry) resolve(parsed *annotations.ParsedAnnotation) (Spec, error) {
	if spec, ok := r.Lookup(parsed.Type); ok {
		return spec, nil
	}

	err := errors.Wrap(errors.HookErrorCode, fmt.Sprintf("annotation '%s'", parsed.Type), ErrUnknownHook)
	if schema, ok := r.schemas.Lookup(parsed.Type); ok {
		err = err.WithSuggestion(schema.ImportHint())
	}
	return Spec{}, err
}

func structType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}
