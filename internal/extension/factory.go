// Package extension caches extension factories per type and tracks the
// extension instances of a single container.
package extension

import (
	stderrors "errors"
	"fmt"
	"go/token"
	"reflect"
	"sync"

	"github.com/toyz/packed/internal/errors"
)

var (
	// ErrNotExtension is returned for types that are not a pointer to a struct
	ErrNotExtension = stderrors.New("not an extension type")

	// ErrInaccessible is returned for unexported extension types or failing constructors
	ErrInaccessible = stderrors.New("extension type is not accessible")

	// ErrReentrant is returned when an extension is requested while it is being constructed
	ErrReentrant = stderrors.New("reentrant extension construction")

	// ErrCyclicDependency is returned when DependsOn declarations form a cycle
	ErrCyclicDependency = stderrors.New("cyclic extension dependency")

	// ErrSealed is returned when a new extension is requested after the container closed
	ErrSealed = stderrors.New("extension registry is sealed")
)

// Dependent is implemented by extensions that need other extensions constructed first.
// It is called on a zero value.
type Dependent interface {
	DependsOn() []reflect.Type
}

// Factory creates instances of one extension type
type Factory struct {
	Type      reflect.Type
	dependsOn []reflect.Type
	construct func() (any, error)
}

// DependsOn returns the extension types that must exist before this one
func (f *Factory) DependsOn() []reflect.Type {
	return f.dependsOn
}

// New constructs a fresh instance
func (f *Factory) New() (any, error) {
	return f.construct()
}

var (
	factories    sync.Map // reflect.Type -> factoryResult
	constructors sync.Map // reflect.Type -> func() any
)

type factoryResult struct {
	factory *Factory
	err     error
}

// RegisterConstructor installs the constructor used for extension type t.
// It must be called before the type is first used.
func RegisterConstructor(t reflect.Type, fn func() any) {
	constructors.Store(t, fn)
}

// FactoryOf returns the memoised factory for t, validating it on first use.
// At most one factory is stored per type.
func FactoryOf(t reflect.Type) (*Factory, error) {
	if cached, ok := factories.Load(t); ok {
		r := cached.(factoryResult)
		return r.factory, r.err
	}

	f, err := newFactory(t)
	actual, _ := factories.LoadOrStore(t, factoryResult{factory: f, err: err})
	r := actual.(factoryResult)
	return r.factory, r.err
}

func newFactory(t reflect.Type) (*Factory, error) {
	if t == nil {
		return nil, errors.WrapExtensionError("<nil>", "validate", ErrNotExtension)
	}
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, errors.WrapExtensionError(t.String(), "validate", ErrNotExtension).
			WithSuggestion("extensions are pointers to structs, e.g. *MyExtension")
	}
	elem := t.Elem()
	if !token.IsExported(elem.Name()) {
		return nil, errors.WrapExtensionError(t.String(), "validate", ErrInaccessible).
			WithSuggestion("export the extension struct type")
	}

	f := &Factory{Type: t}

	if dep, ok := reflect.New(elem).Interface().(Dependent); ok {
		for _, d := range dep.DependsOn() {
			if d == t {
				return nil, errors.WrapExtensionError(t.String(), "depends on itself", ErrCyclicDependency)
			}
			f.dependsOn = append(f.dependsOn, d)
		}
	}

	if fn, ok := constructors.Load(t); ok {
		ctor := fn.(func() any)
		f.construct = func() (inst any, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.WrapExtensionError(t.String(), "construct", fmt.Errorf("%w: constructor panicked: %v", ErrInaccessible, r))
				}
			}()
			inst = ctor()
			if inst == nil || reflect.TypeOf(inst) != t {
				return nil, errors.WrapExtensionError(t.String(), "construct",
					fmt.Errorf("%w: constructor returned %T", ErrInaccessible, inst))
			}
			return inst, nil
		}
	} else {
		f.construct = func() (any, error) {
			return reflect.New(elem).Interface(), nil
		}
	}

	return f, nil
}
