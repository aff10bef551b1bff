package infuser

import (
	"context"
	"fmt"
	"reflect"

	"github.com/toyz/packed/internal/errors"
)

// Supplier produces a value at invocation time
type Supplier func(ctx context.Context) (reflect.Value, error)

// Fallback supplies values for parameters the infuser has no entry for,
// typically services looked up in the owning container
type Fallback func(key Key) (Supplier, bool)

type slot struct {
	key      Key
	entry    *Entry
	supplier Supplier
}

// Plan maps each parameter of a target function onto an entry or a fallback supplier
type Plan struct {
	in    *Infuser
	slots []slot
}

// Plan builds an argument plan for the target parameter types
func (in *Infuser) Plan(target []reflect.Type, fallback Fallback) (*Plan, error) {
	keys := make([]Key, len(target))
	for i, t := range target {
		keys[i] = Key{Type: t}
	}
	return in.PlanKeys(keys, fallback)
}

// PlanKeys builds an argument plan for explicitly keyed parameters
func (in *Infuser) PlanKeys(target []Key, fallback Fallback) (*Plan, error) {
	p := &Plan{in: in, slots: make([]slot, len(target))}

	for i, key := range target {
		entry, err := in.match(key)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		if entry != nil {
			p.slots[i] = slot{key: key, entry: entry}
			continue
		}
		if fallback != nil {
			if supplier, ok := fallback(key); ok {
				p.slots[i] = slot{key: key, supplier: supplier}
				continue
			}
		}
		return nil, errors.Wrap(errors.InjectionErrorCode,
			fmt.Sprintf("parameter %d of type %s", i, key), ErrUnresolved).
			WithSuggestion("provide a service of this type or remove the parameter")
	}

	return p, nil
}

// Len returns the number of planned arguments
func (p *Plan) Len() int {
	return len(p.slots)
}

// Keys returns the planned keys in argument order
func (p *Plan) Keys() []Key {
	keys := make([]Key, len(p.slots))
	for i, s := range p.slots {
		keys[i] = s.key
	}
	return keys
}

// FromFallback reports whether argument i is supplied by the fallback
func (p *Plan) FromFallback(i int) bool {
	return p.slots[i].supplier != nil
}

// Args produces the call arguments from the raw invocation values.
// ctx is handed to fallback suppliers.
func (p *Plan) Args(ctx context.Context, raw []reflect.Value) ([]reflect.Value, error) {
	if err := p.in.checkRaw(raw); err != nil {
		return nil, err
	}

	args := make([]reflect.Value, len(p.slots))
	for i, s := range p.slots {
		var (
			v   reflect.Value
			err error
		)
		if s.entry != nil {
			v, err = s.entry.resolve(raw)
		} else {
			v, err = s.supplier(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, s.key, err)
		}
		if !v.IsValid() {
			v = reflect.Zero(s.key.Type)
		}
		args[i] = v
	}
	return args, nil
}
