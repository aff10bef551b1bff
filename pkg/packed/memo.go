package packed

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// memo holds a value computed at most once until reset. Callers arriving
// while the value is computed wait for that computation.
type memo struct {
	mu    sync.Mutex
	value reflect.Value
	call  *memoCall
}

type memoCall struct {
	done  chan struct{}
	value reflect.Value
	err   error
}

func (m *memo) peek() reflect.Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// get returns the memoized value, computing it when there is none. A failed
// computation is not remembered.
func (m *memo) get(ctx context.Context, compute func(context.Context) (reflect.Value, error)) (reflect.Value, error) {
	m.mu.Lock()
	if m.value.IsValid() {
		v := m.value
		m.mu.Unlock()
		return v, nil
	}
	if call := m.call; call != nil {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.value, call.err
		case <-ctx.Done():
			return reflect.Value{}, ctx.Err()
		}
	}
	call := &memoCall{done: make(chan struct{})}
	m.call = call
	m.mu.Unlock()

	finished := false
	defer func() {
		if !finished {
			call.err = fmt.Errorf("computation panicked")
		}
		m.mu.Lock()
		if call.err == nil {
			m.value = call.value
		}
		if m.call == call {
			m.call = nil
		}
		m.mu.Unlock()
		close(call.done)
	}()
	call.value, call.err = compute(ctx)
	finished = true
	return call.value, call.err
}

func (m *memo) reset() {
	m.mu.Lock()
	m.value = reflect.Value{}
	m.call = nil
	m.mu.Unlock()
}
