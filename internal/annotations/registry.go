package annotations

import (
	"fmt"
	"sort"
	"sync"

	perrors "github.com/toyz/packed/internal/errors"
)

// Registry holds the annotation schemas annotations are checked against.
// Annotation names are global: a name is registered once.
type Registry struct {
	mu      sync.RWMutex
	schemas map[AnnotationType]AnnotationSchema
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[AnnotationType]AnnotationSchema)}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry holding the builtin schemas
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		if err := RegisterBuiltinSchemas(defaultRegistry); err != nil {
			panic(err)
		}
	})
	return defaultRegistry
}

// Register adds schema under its Type
func (r *Registry) Register(schema AnnotationSchema) error {
	if err := schema.validate(); err != nil {
		return perrors.Wrap(perrors.RegistrationErrorCode, fmt.Sprintf("schema %q", schema.Type), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.schemas[schema.Type]; ok {
		err := perrors.New(perrors.RegistrationErrorCode, fmt.Sprintf("annotation %s is already registered", schema.Type))
		if prev.Extension != "" {
			err = err.WithContext("extension", prev.Extension)
		}
		return err
	}
	r.schemas[schema.Type] = schema
	return nil
}

// Lookup returns the schema of an annotation
func (r *Registry) Lookup(t AnnotationType) (AnnotationSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[t]
	return s, ok
}

// Names returns the registered annotation names, sorted
func (r *Registry) Names() []AnnotationType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]AnnotationType, 0, len(r.schemas))
	for t := range r.schemas {
		names = append(names, t)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Schemas returns the registered schemas sorted by annotation name
func (r *Registry) Schemas() []AnnotationSchema {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]AnnotationSchema, len(names))
	for i, t := range names {
		result[i] = r.schemas[t]
	}
	return result
}
