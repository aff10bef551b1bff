package packed

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/toyz/packed/internal/errors"
	"github.com/toyz/packed/internal/hooks"
	"go.uber.org/zap"
)

// State is the lifecycle state of an application
type State int

const (
	Uninitialized State = iota
	Initialized
	Running
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// StopInfo describes how the application is being stopped
type StopInfo struct {
	Forced  bool
	Now     bool
	Restart bool
}

// StopOption modifies Stop
type StopOption func(*StopInfo)

// StopForced logs stop errors instead of returning them; the application always ends Stopped
func StopForced() StopOption {
	return func(i *StopInfo) { i.Forced = true }
}

// StopNow hands stop hooks an already cancelled context so running work is interrupted
func StopNow() StopOption {
	return func(i *StopInfo) { i.Now = true }
}

// StopRestart initializes and starts the application again once it stopped
func StopRestart() StopOption {
	return func(i *StopInfo) { i.Restart = true }
}

// Application is a built assembly with a lifecycle
type Application struct {
	id      uuid.UUID
	name    string
	root    *container
	logger  *zap.Logger
	config  *viper.Viper
	scanner *hooks.Scanner

	lifecycle    sync.Mutex
	mu           sync.RWMutex
	state        State
	initializing atomic.Bool
}

// ID returns the unique id of the application
func (a *Application) ID() uuid.UUID { return a.id }

// Name returns the application name
func (a *Application) Name() string { return a.name }

// Logger returns the application logger
func (a *Application) Logger() *zap.Logger { return a.logger }

// Config returns the configuration config hooks read from
func (a *Application) Config() *viper.Viper { return a.config }

// State returns the current lifecycle state
func (a *Application) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Application) setState(s State) {
	a.mu.Lock()
	prev := a.state
	a.state = s
	a.mu.Unlock()
	a.logger.Debug("state changed", zap.Stringer("from", prev), zap.Stringer("to", s))
}

func (a *Application) transitionError(op string, state State) error {
	return errors.Wrap(errors.LifecycleErrorCode,
		fmt.Sprintf("cannot %s application %s in state %s", op, a.name, state), ErrInvalidState)
}

// checkResolvable fails unless beans can be instantiated
func (a *Application) checkResolvable() error {
	if a.initializing.Load() {
		return nil
	}
	switch s := a.State(); s {
	case Initialized, Running:
		return nil
	default:
		return a.transitionError("resolve services of", s)
	}
}

// containers returns every container in preorder
func (a *Application) containers() []*container {
	var result []*container
	_ = a.root.walk(func(c *container) error {
		result = append(result, c)
		return nil
	})
	return result
}

// Initialize creates the singleton beans in install order and runs their
// inject and initialize hooks
func (a *Application) Initialize(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if s := a.State(); s != Uninitialized {
		return a.transitionError("initialize", s)
	}
	return a.initialize(ctx)
}

func (a *Application) initialize(ctx context.Context) error {
	a.initializing.Store(true)
	defer a.initializing.Store(false)

	for _, c := range a.containers() {
		for _, b := range c.beans {
			var err error
			switch b.kind {
			case Singleton:
				_, err = b.singleton(ctx)
			case Static:
				zero := reflect.Zero(b.typ)
				if err = runOperations(ctx, b.inject, zero); err == nil {
					err = runOperations(ctx, b.initialize, zero)
				}
			}
			if err != nil {
				a.setState(Failed)
				return errors.WrapLifecycleError("initialize", err).WithContext("bean", b.name)
			}
		}
	}

	a.setState(Initialized)
	a.logger.Info("application initialized")
	return nil
}

// Start starts the extensions in construction order and then runs the bean
// start hooks. An uninitialized application is initialized first.
func (a *Application) Start(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	switch s := a.State(); s {
	case Uninitialized:
		if err := a.initialize(ctx); err != nil {
			return err
		}
	case Initialized:
	default:
		return a.transitionError("start", s)
	}
	return a.start(ctx)
}

func (a *Application) start(ctx context.Context) error {
	// pieces that started, stopped in reverse if a later piece fails
	var started []func(context.Context) error

	fail := func(err error) error {
		for i := len(started) - 1; i >= 0; i-- {
			if stopErr := started[i](ctx); stopErr != nil {
				a.logger.Warn("rollback failed", zap.Error(stopErr), errors.Detail(stopErr))
			}
		}
		a.setState(Failed)
		return errors.WrapLifecycleError("start", err)
	}

	for _, c := range a.containers() {
		for _, inst := range c.extensions.Instances() {
			if starter, ok := inst.(ApplicationStarter); ok {
				if err := starter.OnStart(ctx, a); err != nil {
					return fail(errors.WrapExtensionError(reflect.TypeOf(inst).String(), "start", err))
				}
			}
			if stopper, ok := inst.(ApplicationStopper); ok {
				started = append(started, func(ctx context.Context) error {
					return stopper.OnStop(ctx, StopInfo{Forced: true})
				})
			}
		}
	}

	for _, c := range a.containers() {
		for _, b := range c.beans {
			if err := b.startInstances(ctx); err != nil {
				return fail(fmt.Errorf("bean %s: %w", b.name, err))
			}
			started = append(started, b.stopInstances)
		}
	}

	a.setState(Running)
	a.logger.Info("application started")
	return nil
}

// Stop runs the bean stop hooks in reverse install order and then stops the
// extensions in reverse construction order
func (a *Application) Stop(ctx context.Context, opts ...StopOption) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	var info StopInfo
	for _, opt := range opts {
		opt(&info)
	}

	state := a.State()
	switch state {
	case Running, Initialized:
	case Failed:
		if !info.Forced {
			return a.transitionError("stop", state)
		}
	default:
		return a.transitionError("stop", state)
	}

	stopCtx := ctx
	if info.Now {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithCancel(ctx)
		cancel()
	}

	var errs errors.List
	if state != Initialized {
		containers := a.containers()
		for i := len(containers) - 1; i >= 0; i-- {
			beans := containers[i].beans
			for j := len(beans) - 1; j >= 0; j-- {
				if err := beans[j].stopInstances(stopCtx); err != nil {
					errs.Add(fmt.Errorf("bean %s: %w", beans[j].name, err))
				}
			}
		}
		for i := len(containers) - 1; i >= 0; i-- {
			instances := containers[i].extensions.Instances()
			for j := len(instances) - 1; j >= 0; j-- {
				if stopper, ok := instances[j].(ApplicationStopper); ok {
					if err := stopper.OnStop(stopCtx, info); err != nil {
						errs.Add(errors.WrapExtensionError(reflect.TypeOf(instances[j]).String(), "stop", err))
					}
				}
			}
		}
	}

	if err := errs.Err(); err != nil {
		if !info.Forced {
			a.setState(Failed)
			return errors.WrapLifecycleError("stop", err)
		}
		a.logger.Warn("errors while stopping", zap.Error(err), errors.Detail(err))
	}
	a.setState(Stopped)
	a.logger.Info("application stopped", zap.Bool("forced", info.Forced), zap.Bool("now", info.Now))

	if info.Restart {
		a.reset()
		if err := a.initialize(ctx); err != nil {
			return err
		}
		return a.start(ctx)
	}
	return nil
}

// reset forgets bean instances and cached provided services
func (a *Application) reset() {
	for _, c := range a.containers() {
		for _, b := range c.beans {
			b.reset()
		}
		for _, s := range c.services {
			s.reset()
		}
	}
	a.setState(Uninitialized)
}

// Release stops a managed bean instance returned by a lookup and stops
// tracking it. Managed instances are otherwise kept until the application stops.
func (a *Application) Release(ctx context.Context, instance any) error {
	running := a.State() == Running
	for _, c := range a.containers() {
		for _, b := range c.beans {
			if b.kind != Managed {
				continue
			}
			found, err := b.release(ctx, instance, running)
			if !found {
				continue
			}
			if err != nil {
				return errors.WrapLifecycleError("release", err).WithContext("bean", b.name)
			}
			return nil
		}
	}
	return fmt.Errorf("release %T: not a managed instance of this application", instance)
}

// Lookup resolves a service from the root container
func (a *Application) Lookup(ctx context.Context, key Key) (any, error) {
	if err := a.checkResolvable(); err != nil {
		return nil, err
	}
	v, err := a.root.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// Lookup resolves the service of type T from the root container of app
func Lookup[T any](ctx context.Context, app *Application, qualifier ...string) (T, error) {
	var zero T
	v, err := app.Lookup(ctx, KeyOf[T](qualifier...))
	if err != nil || v == nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service %s has type %T", KeyOf[T](qualifier...), v)
	}
	return typed, nil
}

// Extension returns the extension of type t installed in the root container
func (a *Application) Extension(t reflect.Type) (any, bool) {
	return a.root.extensions.Get(t)
}

// ExtensionOf returns the extension E installed in the root container of app
func ExtensionOf[E any](app *Application) (E, bool) {
	var zero E
	inst, ok := app.Extension(reflect.TypeFor[E]())
	if !ok {
		return zero, false
	}
	typed, ok := inst.(E)
	return typed, ok
}

// Extensions returns every extension instance of every container in preorder
func (a *Application) Extensions() []any {
	var result []any
	for _, c := range a.containers() {
		result = append(result, c.extensions.Instances()...)
	}
	return result
}

// validate checks that every service a bean requires is provided
func (a *Application) validate() error {
	var errs errors.List
	for _, c := range a.containers() {
		for _, b := range c.beans {
			for _, r := range b.requires {
				if r.optional || c.provided(r.key) {
					continue
				}
				errs.Add(errors.WrapDependencyError(r.key.String(), c.path()+"/"+b.name, ErrNoService).
					WithSuggestion("install a bean of this type, provide it, or export it from a child container"))
			}
		}
	}
	if err := errs.Err(); err != nil {
		return buildError(a.root.path(), PhaseValidate, err)
	}
	return nil
}
