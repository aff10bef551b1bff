package packed

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/toyz/packed/internal/annotations"
	"github.com/toyz/packed/internal/errors"
	"github.com/toyz/packed/internal/hooks"
	"github.com/toyz/packed/internal/infuser"
	"go.uber.org/zap"
)

// BeanKind controls how many instances a bean has and whether they take part in the lifecycle
type BeanKind int

const (
	// Singleton beans have one instance, created when the application initializes
	Singleton BeanKind = iota
	// Managed beans get a new instance per lookup; every instance is started and stopped
	Managed
	// Unmanaged beans get a new instance per lookup without start or stop
	Unmanaged
	// Functional beans have no instance; their operations are functions
	Functional
	// Static beans have no instance; value receiver methods run on the zero value
	Static
)

func (k BeanKind) String() string {
	switch k {
	case Singleton:
		return "singleton"
	case Managed:
		return "managed"
	case Unmanaged:
		return "unmanaged"
	case Functional:
		return "functional"
	case Static:
		return "static"
	default:
		return "unknown"
	}
}

// SourceKind is where bean instances come from
type SourceKind int

const (
	// SourceClass beans are allocated from their type
	SourceClass SourceKind = iota
	// SourceInstance beans wrap a user supplied value
	SourceInstance
	// SourceOp beans are returned by a constructor function
	SourceOp
	// SourceNone beans have no instance
	SourceNone
)

func (k SourceKind) String() string {
	switch k {
	case SourceClass:
		return "class"
	case SourceInstance:
		return "instance"
	case SourceOp:
		return "op"
	case SourceNone:
		return "none"
	default:
		return "unknown"
	}
}

type pendingFunction struct {
	name       string
	annotation string
	fn         reflect.Value
}

type pendingMethod struct {
	method     string
	annotation string
}

type requirement struct {
	key      Key
	optional bool
}

// Bean is a unit of user code installed in a container
type Bean struct {
	container *container
	name      string
	typ       reflect.Type
	kind      BeanKind
	source    SourceKind
	value     reflect.Value
	ctor      reflect.Value
	ctorPlan  *infuser.Plan

	functions []pendingFunction
	annotated []pendingMethod
	provides  []Key
	exported  bool

	model      *hooks.Model
	operations []*Operation
	inject     []*Operation
	initialize []*Operation
	start      []*Operation
	stop       []*Operation
	requires   []requirement

	single  memo
	mu      sync.Mutex
	managed []reflect.Value
}

// Name returns the bean name, unique within its container
func (b *Bean) Name() string { return b.name }

// Type returns the type of bean instances; nil for functional beans
func (b *Bean) Type() reflect.Type { return b.typ }

// Kind returns the bean kind
func (b *Bean) Kind() BeanKind { return b.kind }

// Source returns where bean instances come from
func (b *Bean) Source() SourceKind { return b.source }

// Operations returns the operations extensions created for the bean
func (b *Bean) Operations() []*Operation {
	return append([]*Operation(nil), b.operations...)
}

// Keys returns the service keys the bean is resolvable by
func (b *Bean) Keys() []Key {
	var keys []Key
	if b.typ != nil && b.kind != Static && b.kind != Functional {
		keys = append(keys, KeyFor(b.typ))
	}
	return append(keys, b.provides...)
}

// structType is the struct type scanned for hooks, or nil
func (b *Bean) structType() reflect.Type {
	t := b.typ
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// scan builds the hook model of the bean: the cached model of its type plus
// annotations added through the bean configuration
func (b *Bean) scan(s *hooks.Scanner) (*hooks.Model, error) {
	var (
		base *hooks.Model
		err  error
	)
	st := b.structType()
	if st != nil {
		if base, err = s.Scan(st); err != nil {
			return nil, err
		}
	}

	var extra []*hooks.Site
	for _, m := range b.annotated {
		if st == nil {
			return nil, fmt.Errorf("bean %s: cannot annotate method %s of %v", b.name, m.method, b.typ)
		}
		site, err := s.MethodSite(st, m.method, m.annotation)
		if err != nil {
			return nil, err
		}
		extra = append(extra, site)
	}
	for i, f := range b.functions {
		site, err := s.FunctionSite(f.name, f.fn, i, f.annotation)
		if err != nil {
			return nil, err
		}
		extra = append(extra, site)
	}

	model, err := s.Extend(base, extra...)
	if err != nil || model == nil {
		return model, err
	}
	if b.kind == Static {
		for _, site := range model.Sites() {
			if site.Target == annotations.TargetField {
				return nil, errors.WrapHookError(st.String(), site.Member,
					fmt.Errorf("static bean %s cannot have field hooks", b.name))
			}
		}
	}
	return model, nil
}

func (b *Bean) addOperation(op *Operation) {
	b.operations = append(b.operations, op)
}

// receiver returns the instance an operation of the bean runs on
func (b *Bean) receiver(ctx context.Context) (reflect.Value, error) {
	switch b.kind {
	case Singleton:
		return b.singleton(ctx)
	case Managed:
		return b.newManaged(ctx)
	case Unmanaged:
		if err := b.container.app.checkResolvable(); err != nil {
			return reflect.Value{}, err
		}
		ctx, err := enter(ctx, b, b.name)
		if err != nil {
			return reflect.Value{}, err
		}
		return b.newInstance(ctx)
	case Static:
		return reflect.Zero(b.typ), nil
	default:
		return reflect.Value{}, nil
	}
}

// singleton returns the single instance, creating it while the application
// initializes. Concurrent callers share one creation.
func (b *Bean) singleton(ctx context.Context) (reflect.Value, error) {
	if inst := b.single.peek(); inst.IsValid() {
		return inst, nil
	}
	if !b.container.app.initializing.Load() {
		return reflect.Value{}, fmt.Errorf("singleton %s: %w: instances are created by Initialize", b.name, ErrInvalidState)
	}
	ctx, err := enter(ctx, b, b.name)
	if err != nil {
		return reflect.Value{}, err
	}
	return b.single.get(ctx, b.newInstance)
}

// newManaged creates a managed instance and tracks it until Release or Stop
func (b *Bean) newManaged(ctx context.Context) (reflect.Value, error) {
	app := b.container.app
	if err := app.checkResolvable(); err != nil {
		return reflect.Value{}, err
	}
	ctx, err := enter(ctx, b, b.name)
	if err != nil {
		return reflect.Value{}, err
	}
	inst, err := b.newInstance(ctx)
	if err != nil {
		return reflect.Value{}, err
	}
	if app.State() == Running {
		if err := runOperations(ctx, b.start, inst); err != nil {
			return reflect.Value{}, errors.WrapLifecycleError("start", err)
		}
	}

	b.mu.Lock()
	b.managed = append(b.managed, inst)
	b.mu.Unlock()
	return inst, nil
}

// release stops and forgets the managed instance inst. It reports false when
// the bean does not track inst.
func (b *Bean) release(ctx context.Context, inst any, running bool) (bool, error) {
	target := reflect.ValueOf(inst)
	if !target.IsValid() {
		return false, nil
	}
	b.mu.Lock()
	idx := -1
	for i, m := range b.managed {
		if m.Type() == target.Type() && m.Comparable() && m.Equal(target) {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return false, nil
	}
	v := b.managed[idx]
	b.managed = append(b.managed[:idx], b.managed[idx+1:]...)
	b.mu.Unlock()

	if !running {
		return true, nil
	}
	var errs []error
	for _, op := range b.stop {
		if _, err := op.InvokeOn(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return true, stderrors.Join(errs...)
}

// newInstance creates an instance and runs its inject and initialize operations
func (b *Bean) newInstance(ctx context.Context) (reflect.Value, error) {
	var inst reflect.Value
	switch b.source {
	case SourceClass:
		inst = reflect.New(b.typ.Elem())
	case SourceInstance:
		inst = b.value
	case SourceOp:
		args, err := b.ctorPlan.Args(ctx, nil)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("construct %s: %w", b.name, err)
		}
		if inst, err = splitResults(b.ctor.Call(args)); err != nil {
			return reflect.Value{}, fmt.Errorf("construct %s: %w", b.name, err)
		}
		if !inst.IsValid() || (inst.Kind() == reflect.Pointer && inst.IsNil()) {
			return reflect.Value{}, fmt.Errorf("construct %s: constructor returned nil", b.name)
		}
	default:
		return reflect.Value{}, nil
	}

	if err := runOperations(ctx, b.inject, inst); err != nil {
		return reflect.Value{}, err
	}
	if err := runOperations(ctx, b.initialize, inst); err != nil {
		return reflect.Value{}, err
	}
	b.container.logger.Debug("bean instance created", zap.String("bean", b.name))
	return inst, nil
}

// startInstances runs the start operations on the live instances of the bean
func (b *Bean) startInstances(ctx context.Context) error {
	if len(b.start) == 0 {
		return nil
	}
	for _, inst := range b.instances() {
		if err := runOperations(ctx, b.start, inst); err != nil {
			return err
		}
	}
	return nil
}

// stopInstances runs the stop operations on the live instances, newest first
func (b *Bean) stopInstances(ctx context.Context) error {
	if len(b.stop) == 0 {
		return nil
	}
	instances := b.instances()
	var errs []error
	for i := len(instances) - 1; i >= 0; i-- {
		for _, op := range b.stop {
			if _, err := op.InvokeOn(ctx, instances[i]); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}

// instances returns the receivers start and stop operations run on
func (b *Bean) instances() []reflect.Value {
	switch b.kind {
	case Singleton:
		if inst := b.single.peek(); inst.IsValid() {
			return []reflect.Value{inst}
		}
	case Managed:
		b.mu.Lock()
		defer b.mu.Unlock()
		return append([]reflect.Value(nil), b.managed...)
	case Static:
		return []reflect.Value{reflect.Zero(b.typ)}
	}
	return nil
}

// reset forgets every instance so the application can initialize again
func (b *Bean) reset() {
	b.single.reset()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.managed = nil
}

func runOperations(ctx context.Context, ops []*Operation, receiver reflect.Value) error {
	for _, op := range ops {
		if _, err := op.InvokeOn(ctx, receiver); err != nil {
			return err
		}
	}
	return nil
}

type resolvingKey struct{}

// step is one bean or provided service on a resolution path
type step struct {
	owner any
	name  string
}

// enter records owner on the resolution path carried by ctx, failing when
// owner is already on it
func enter(ctx context.Context, owner any, name string) (context.Context, error) {
	path, _ := ctx.Value(resolvingKey{}).([]step)
	for i, p := range path {
		if p.owner == owner {
			names := make([]string, 0, len(path)-i+1)
			for _, q := range path[i:] {
				names = append(names, q.name)
			}
			names = append(names, name)
			return ctx, errors.Wrap(errors.DependencyErrorCode, strings.Join(names, " -> "), ErrDependencyCycle)
		}
	}
	next := make([]step, len(path), len(path)+1)
	copy(next, path)
	return context.WithValue(ctx, resolvingKey{}, append(next, step{owner: owner, name: name})), nil
}

// BeanConfiguration configures an installed bean. Errors are recorded on the
// container and reported when it closes.
type BeanConfiguration struct {
	bean *Bean
}

// Bean returns the configured bean
func (bc *BeanConfiguration) Bean() *Bean {
	return bc.bean
}

func (bc *BeanConfiguration) check(action string) bool {
	c := bc.bean.container
	if c.frozen() {
		c.record(errors.Wrap(errors.ConfigurationErrorCode,
			fmt.Sprintf("%s bean %s", action, bc.bean.name), ErrConfigurationClosed))
		return false
	}
	return true
}

func (bc *BeanConfiguration) fail(format string, args ...any) *BeanConfiguration {
	bc.bean.container.record(errors.New(errors.ConfigurationErrorCode,
		fmt.Sprintf("bean %s: ", bc.bean.name)+fmt.Sprintf(format, args...)))
	return bc
}

// Named renames the bean
func (bc *BeanConfiguration) Named(name string) *BeanConfiguration {
	if !bc.check("name") {
		return bc
	}
	if name == "" {
		return bc.fail("empty name")
	}
	if name != bc.bean.name && bc.bean.container.hasBean(name) {
		return bc.fail("name %q is already used in the container", name)
	}
	bc.bean.name = name
	return bc
}

// Kind changes the bean kind. Only class and op beans choose between
// Singleton, Managed and Unmanaged.
func (bc *BeanConfiguration) Kind(kind BeanKind) *BeanConfiguration {
	if !bc.check("configure kind of") {
		return bc
	}
	b := bc.bean
	if b.source != SourceClass && b.source != SourceOp {
		return bc.fail("the kind of %s beans is fixed", b.source)
	}
	if kind != Singleton && kind != Managed && kind != Unmanaged {
		return bc.fail("kind %s needs InstallFunctional or InstallStatic", kind)
	}
	b.kind = kind
	return bc
}

// Provide makes the bean resolvable by additional keys
func (bc *BeanConfiguration) Provide(keys ...Key) *BeanConfiguration {
	if !bc.check("provide") {
		return bc
	}
	b := bc.bean
	for _, key := range keys {
		switch {
		case b.kind == Static || b.kind == Functional:
			return bc.fail("%s beans have no instance to provide", b.kind)
		case key.IsZero():
			return bc.fail("zero key")
		case !b.typ.AssignableTo(key.Type):
			return bc.fail("%s is not assignable to %s", b.typ, key.Type)
		}
		b.provides = append(b.provides, key)
	}
	return bc
}

// ProvideAs makes the bean resolvable as T
func ProvideAs[T any](bc *BeanConfiguration, qualifier ...string) *BeanConfiguration {
	return bc.Provide(KeyOf[T](qualifier...))
}

// Export publishes the bean's keys to the parent container
func (bc *BeanConfiguration) Export() *BeanConfiguration {
	if bc.check("export") {
		bc.bean.exported = true
	}
	return bc
}

// AddFunction adds an annotated function to a functional bean
func (bc *BeanConfiguration) AddFunction(annotation string, fn any) *BeanConfiguration {
	if !bc.check("add function to") {
		return bc
	}
	if bc.bean.kind != Functional {
		return bc.fail("functions can only be added to functional beans")
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return bc.fail("AddFunction expects a non-nil func, got %T", fn)
	}
	bc.bean.functions = append(bc.bean.functions, pendingFunction{
		name:       funcName(v),
		annotation: annotation,
		fn:         v,
	})
	return bc
}

// Annotate attaches an annotation to a method of the bean type
func (bc *BeanConfiguration) Annotate(method, annotation string) *BeanConfiguration {
	if !bc.check("annotate") {
		return bc
	}
	if bc.bean.structType() == nil {
		return bc.fail("cannot annotate methods of %v", bc.bean.typ)
	}
	bc.bean.annotated = append(bc.bean.annotated, pendingMethod{method: method, annotation: annotation})
	return bc
}

func funcName(fn reflect.Value) string {
	f := runtime.FuncForPC(fn.Pointer())
	if f == nil {
		return "func"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
