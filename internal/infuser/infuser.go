// Package infuser builds key to parameter binding tables for invoking bean
// members. An extension describes the raw arguments it can supply for an
// operation (a context, a job descriptor, a request); the infuser maps typed
// keys onto those arguments, directly or through a transformer, and plans the
// argument list of the target function against them.
package infuser

import (
	stderrors "errors"
	"fmt"
	"reflect"

	"github.com/toyz/packed/internal/errors"
)

var (
	// ErrDuplicateKey is returned when a key is bound twice in one builder
	ErrDuplicateKey = stderrors.New("duplicate key")

	// ErrInvalidArgument is returned for bad indexes, transformers or raw arguments
	ErrInvalidArgument = stderrors.New("invalid argument")

	// ErrUnresolved is returned when a target parameter has no binding and no fallback
	ErrUnresolved = stderrors.New("unresolved parameter")

	// ErrAmbiguous is returned when several entries could satisfy one parameter
	ErrAmbiguous = stderrors.New("ambiguous parameter")

	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// Entry is a single binding of a key to raw parameters
type Entry struct {
	Key       Key
	Hidden    bool
	Indexes   []int
	transform reflect.Value
}

// IsTransformed reports whether the entry computes its value with a transformer
func (e *Entry) IsTransformed() bool {
	return e.transform.IsValid()
}

func (e *Entry) resolve(raw []reflect.Value) (reflect.Value, error) {
	if !e.transform.IsValid() {
		return raw[e.Indexes[0]], nil
	}

	args := make([]reflect.Value, len(e.Indexes))
	for i, idx := range e.Indexes {
		args[i] = raw[idx]
	}
	out := e.transform.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return reflect.Value{}, fmt.Errorf("transform %s: %w", e.Key, out[1].Interface().(error))
	}
	return out[0], nil
}

// Builder accumulates bindings over a fixed raw parameter list
type Builder struct {
	params  []reflect.Type
	entries []*Entry
	byKey   map[Key]*Entry
	err     error
	built   *Infuser
}

// New creates a builder for the given raw parameter types
func New(params ...reflect.Type) *Builder {
	return &Builder{
		params: params,
		byKey:  make(map[Key]*Entry),
	}
}

// Direct binds key to the raw parameter at index
func (b *Builder) Direct(key Key, index int) error {
	return b.direct(key, index, false)
}

// DirectHidden binds key like Direct but marks the entry hidden
func (b *Builder) DirectHidden(key Key, index int) error {
	return b.direct(key, index, true)
}

// Transform binds key to fn applied to the raw parameters at indexes.
// fn must be a func taking those parameters and returning the key type,
// optionally followed by an error.
func (b *Builder) Transform(key Key, fn any, indexes ...int) error {
	return b.transform(key, fn, indexes, false)
}

// TransformHidden binds key like Transform but marks the entry hidden
func (b *Builder) TransformHidden(key Key, fn any, indexes ...int) error {
	return b.transform(key, fn, indexes, true)
}

func (b *Builder) direct(key Key, index int, hidden bool) error {
	if err := b.checkKey(key); err != nil {
		return b.fail(err)
	}
	if err := b.checkIndex(index); err != nil {
		return b.fail(err)
	}
	if !b.params[index].AssignableTo(key.Type) {
		return b.fail(argumentError("parameter %d of type %s is not assignable to %s", index, b.params[index], key))
	}

	b.add(&Entry{Key: key, Hidden: hidden, Indexes: []int{index}})
	return nil
}

func (b *Builder) transform(key Key, fn any, indexes []int, hidden bool) error {
	if err := b.checkKey(key); err != nil {
		return b.fail(err)
	}

	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return b.fail(argumentError("transformer for %s must be a non-nil func, got %T", key, fn))
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return b.fail(argumentError("transformer for %s cannot be variadic", key))
	}
	if ft.NumIn() != len(indexes) {
		return b.fail(argumentError("transformer for %s takes %d parameters, %d indexes given", key, ft.NumIn(), len(indexes)))
	}
	for i, idx := range indexes {
		if err := b.checkIndex(idx); err != nil {
			return b.fail(err)
		}
		if !b.params[idx].AssignableTo(ft.In(i)) {
			return b.fail(argumentError("parameter %d of type %s cannot be passed as %s to transformer for %s", idx, b.params[idx], ft.In(i), key))
		}
	}

	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return b.fail(argumentError("transformer for %s must return (T) or (T, error)", key))
	}
	if !ft.Out(0).AssignableTo(key.Type) {
		return b.fail(argumentError("transformer result %s is not assignable to %s", ft.Out(0), key))
	}

	b.add(&Entry{Key: key, Hidden: hidden, Indexes: append([]int(nil), indexes...), transform: fv})
	return nil
}

func (b *Builder) checkKey(key Key) error {
	if b.built != nil {
		return argumentError("builder already built")
	}
	if key.IsZero() {
		return argumentError("key has no type")
	}
	if _, exists := b.byKey[key]; exists {
		return errors.Wrap(errors.InjectionErrorCode, fmt.Sprintf("key %s already bound", key), ErrDuplicateKey)
	}
	return nil
}

func (b *Builder) checkIndex(index int) error {
	if index < 0 || index >= len(b.params) {
		return argumentError("index %d out of range [0,%d)", index, len(b.params))
	}
	return nil
}

func (b *Builder) add(e *Entry) {
	b.entries = append(b.entries, e)
	b.byKey[e.Key] = e
}

// fail records the first error so Build reports it even when callers chain without checking
func (b *Builder) fail(err error) error {
	if b.err == nil {
		b.err = err
	}
	return err
}

// Build finalizes the table. Calling it again returns the same Infuser.
func (b *Builder) Build() (*Infuser, error) {
	if b.built != nil {
		return b.built, nil
	}
	if b.err != nil {
		return nil, b.err
	}
	b.built = &Infuser{
		params:  append([]reflect.Type(nil), b.params...),
		entries: b.entries,
		byKey:   b.byKey,
	}
	return b.built, nil
}

// Infuser is an immutable key to parameter binding table
type Infuser struct {
	params  []reflect.Type
	entries []*Entry
	byKey   map[Key]*Entry
}

// Keys returns every bound key in declaration order
func (in *Infuser) Keys() []Key {
	keys := make([]Key, len(in.entries))
	for i, e := range in.entries {
		keys[i] = e.Key
	}
	return keys
}

// VisibleKeys returns the keys of entries not marked hidden
func (in *Infuser) VisibleKeys() []Key {
	var keys []Key
	for _, e := range in.entries {
		if !e.Hidden {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

// ParameterTypes returns a copy of the raw parameter list
func (in *Infuser) ParameterTypes() []reflect.Type {
	return append([]reflect.Type(nil), in.params...)
}

// Entry returns the binding for key
func (in *Infuser) Entry(key Key) (*Entry, bool) {
	e, ok := in.byKey[key]
	return e, ok
}

// Resolve computes the value bound to key from the raw arguments
func (in *Infuser) Resolve(key Key, raw []reflect.Value) (reflect.Value, error) {
	e, ok := in.byKey[key]
	if !ok {
		return reflect.Value{}, errors.Wrap(errors.InjectionErrorCode, fmt.Sprintf("key %s", key), ErrUnresolved)
	}
	if err := in.checkRaw(raw); err != nil {
		return reflect.Value{}, err
	}
	return e.resolve(raw)
}

func (in *Infuser) checkRaw(raw []reflect.Value) error {
	if len(raw) != len(in.params) {
		return argumentError("expected %d raw arguments, got %d", len(in.params), len(raw))
	}
	for i, v := range raw {
		if !v.IsValid() {
			return argumentError("raw argument %d is invalid", i)
		}
		if !v.Type().AssignableTo(in.params[i]) {
			return argumentError("raw argument %d of type %s is not assignable to %s", i, v.Type(), in.params[i])
		}
	}
	return nil
}

// match finds the entry for a target parameter: exact key first, then a
// single unqualified entry whose type is assignable to the parameter
func (in *Infuser) match(key Key) (*Entry, error) {
	if e, ok := in.byKey[key]; ok {
		return e, nil
	}
	if key.Qualifier != "" {
		return nil, nil
	}

	var found *Entry
	for _, e := range in.entries {
		if e.Key.Qualifier != "" || !e.Key.Type.AssignableTo(key.Type) {
			continue
		}
		if found != nil {
			return nil, errors.Wrap(errors.InjectionErrorCode,
				fmt.Sprintf("%s matches both %s and %s", key.Type, found.Key, e.Key), ErrAmbiguous)
		}
		found = e
	}
	return found, nil
}

func argumentError(format string, args ...any) error {
	return errors.Wrap(errors.InjectionErrorCode, fmt.Sprintf(format, args...), ErrInvalidArgument)
}
