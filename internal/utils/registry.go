package utils

import (
	"fmt"
	"sort"
	"sync"
)

// RegistryValidator inspects a key/value pair against the existing items
// before it is stored
type RegistryValidator[K comparable, V any] func(key K, value V, existing map[K]V) error

// Registry is a generic, thread-safe map of named items
type Registry[K comparable, V any] struct {
	mu        sync.RWMutex
	items     map[K]V
	validator RegistryValidator[K, V]
}

// NewRegistry creates an empty registry
func NewRegistry[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		items: make(map[K]V),
	}
}

// SetValidator installs a validator run by Register
func (r *Registry[K, V]) SetValidator(validator RegistryValidator[K, V]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validator = validator
}

// Register stores value under key after running the registry validator
func (r *Registry[K, V]) Register(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store(key, value, r.validator)
}

// RegisterWithValidator stores value under key after running validator
// instead of the registry validator
func (r *Registry[K, V]) RegisterWithValidator(key K, value V, validator func(K, V, map[K]V) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store(key, value, validator)
}

func (r *Registry[K, V]) store(key K, value V, validator RegistryValidator[K, V]) error {
	if validator != nil {
		if err := validator(key, value, r.items); err != nil {
			return err
		}
	}
	r.items[key] = value
	return nil
}

// Get retrieves an item
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.items[key]
	return value, ok
}

// Has reports whether key is registered
func (r *Registry[K, V]) Has(key K) bool {
	_, ok := r.Get(key)
	return ok
}

// Delete removes key and reports whether it was present
func (r *Registry[K, V]) Delete(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[key]
	delete(r.items, key)
	return ok
}

// List returns the registered keys in no particular order
func (r *Registry[K, V]) List() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, 0, len(r.items))
	for key := range r.items {
		keys = append(keys, key)
	}
	return keys
}

// GetAll returns a copy of the registered items
func (r *Registry[K, V]) GetAll() map[K]V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[K]V, len(r.items))
	for k, v := range r.items {
		result[k] = v
	}
	return result
}

// Size returns the number of items
func (r *Registry[K, V]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Clear removes every item
func (r *Registry[K, V]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[K]V)
}

// SortedKeys returns the keys of a string keyed registry in order
func SortedKeys[V any](r *Registry[string, V]) []string {
	keys := r.List()
	sort.Strings(keys)
	return keys
}

// NotEmptyKeyValidator rejects empty string keys
func NotEmptyKeyValidator[V any](keyDesc string) RegistryValidator[string, V] {
	return func(key string, _ V, _ map[string]V) error {
		if key == "" {
			return fmt.Errorf("%s cannot be empty", keyDesc)
		}
		return nil
	}
}

// NoDuplicateValidator rejects keys that are already registered
func NoDuplicateValidator[K comparable, V any](keyDesc string) RegistryValidator[K, V] {
	return func(key K, _ V, existing map[K]V) error {
		if _, ok := existing[key]; ok {
			return fmt.Errorf("%s '%v' is already registered", keyDesc, key)
		}
		return nil
	}
}

// ChainValidators runs validators in order, stopping at the first error
func ChainValidators[K comparable, V any](validators ...RegistryValidator[K, V]) RegistryValidator[K, V] {
	return func(key K, value V, existing map[K]V) error {
		for _, v := range validators {
			if err := v(key, value, existing); err != nil {
				return err
			}
		}
		return nil
	}
}
