package extension

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/toyz/packed/internal/errors"
)

type phase int

const (
	phaseDependencies phase = iota + 1
	phaseConstruct
)

// NewFunc is called once for every instance right after construction
type NewFunc func(t reflect.Type, instance any) error

// Registry holds the extension instances of one container.
// It is used during the single-threaded build phase and read-only afterwards.
type Registry struct {
	instances    map[reflect.Type]any
	order        []reflect.Type
	constructing map[reflect.Type]phase
	stack        []reflect.Type
	sealed       bool
	onNew        NewFunc
}

// NewRegistry creates an empty registry; onNew may be nil
func NewRegistry(onNew NewFunc) *Registry {
	return &Registry{
		instances:    make(map[reflect.Type]any),
		constructing: make(map[reflect.Type]phase),
		onNew:        onNew,
	}
}

// Use returns the instance for t, constructing it and its dependencies on first request
func (r *Registry) Use(t reflect.Type) (any, error) {
	if inst, ok := r.instances[t]; ok {
		return inst, nil
	}

	switch r.constructing[t] {
	case phaseDependencies:
		return nil, errors.WrapExtensionError(t.String(), "resolve dependencies "+r.chain(t), ErrCyclicDependency)
	case phaseConstruct:
		return nil, errors.WrapExtensionError(t.String(), "use during construction", ErrReentrant)
	}

	if r.sealed {
		return nil, errors.WrapExtensionError(t.String(), "use", ErrSealed).
			WithSuggestion("install extensions before the container is closed")
	}

	factory, err := FactoryOf(t)
	if err != nil {
		return nil, err
	}

	r.constructing[t] = phaseDependencies
	r.stack = append(r.stack, t)
	defer func() {
		delete(r.constructing, t)
		r.stack = r.stack[:len(r.stack)-1]
	}()

	for _, dep := range factory.DependsOn() {
		if _, err := r.Use(dep); err != nil {
			return nil, fmt.Errorf("dependency of %s: %w", t, err)
		}
	}

	r.constructing[t] = phaseConstruct
	inst, err := factory.New()
	if err != nil {
		return nil, err
	}

	if r.onNew != nil {
		if err := r.onNew(t, inst); err != nil {
			return nil, errors.WrapExtensionError(t.String(), "initialize", err)
		}
	}

	r.instances[t] = inst
	r.order = append(r.order, t)
	return inst, nil
}

// Get returns the instance for t without constructing it
func (r *Registry) Get(t reflect.Type) (any, bool) {
	inst, ok := r.instances[t]
	return inst, ok
}

// Seal fixes the extension set; later Use calls for new types fail
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether the registry has been sealed
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Instances returns the instances in construction order
func (r *Registry) Instances() []any {
	result := make([]any, len(r.order))
	for i, t := range r.order {
		result[i] = r.instances[t]
	}
	return result
}

// Types returns the extension types in construction order
func (r *Registry) Types() []reflect.Type {
	return append([]reflect.Type(nil), r.order...)
}

// Len returns the number of constructed extensions
func (r *Registry) Len() int {
	return len(r.order)
}

func (r *Registry) chain(t reflect.Type) string {
	parts := make([]string, 0, len(r.stack)+1)
	for _, s := range r.stack {
		parts = append(parts, s.String())
	}
	parts = append(parts, t.String())
	return strings.Join(parts, " -> ")
}

// Use is the typed form of Registry.Use
func Use[E any](r *Registry) (E, error) {
	var zero E
	inst, err := r.Use(reflect.TypeOf((*E)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	return inst.(E), nil
}
