package infuser

import (
	"reflect"
)

// Key identifies a value by type and optional qualifier
type Key struct {
	Type      reflect.Type
	Qualifier string
}

// KeyOf returns the key for T with an optional qualifier
func KeyOf[T any](qualifier ...string) Key {
	return KeyFor(reflect.TypeOf((*T)(nil)).Elem(), qualifier...)
}

// KeyFor returns the key for t with an optional qualifier
func KeyFor(t reflect.Type, qualifier ...string) Key {
	k := Key{Type: t}
	if len(qualifier) > 0 {
		k.Qualifier = qualifier[0]
	}
	return k
}

// IsZero reports whether the key has no type
func (k Key) IsZero() bool {
	return k.Type == nil
}

// String renders the key as "*pkg.Type" or "*pkg.Type@qualifier"
func (k Key) String() string {
	if k.Type == nil {
		return "<nil>"
	}
	if k.Qualifier == "" {
		return k.Type.String()
	}
	return k.Type.String() + "@" + k.Qualifier
}
