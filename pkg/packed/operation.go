package packed

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/toyz/packed/internal/annotations"
	"github.com/toyz/packed/internal/errors"
	"github.com/toyz/packed/internal/infuser"
)

var errorType = reflect.TypeFor[error]()

// OperationKind is the kind of member an operation invokes
type OperationKind int

const (
	FieldOperation OperationKind = iota + 1
	MethodOperation
	FunctionOperation
)

func (k OperationKind) String() string {
	switch k {
	case FieldOperation:
		return "field"
	case MethodOperation:
		return "method"
	case FunctionOperation:
		return "function"
	default:
		return "unknown"
	}
}

// Invoker calls an operation. receiver is the bean instance and is invalid
// for functional beans; args are the raw arguments the owning extension supplies.
type Invoker func(ctx context.Context, receiver reflect.Value, args []reflect.Value) (reflect.Value, error)

// Interceptor wraps the invoker of an operation
type Interceptor func(op *Operation, next Invoker) Invoker

// Operation is a bean member the framework invokes on behalf of an extension
type Operation struct {
	bean      *Bean
	name      string
	kind      OperationKind
	site      *HookSite
	extension reflect.Type
	params    []reflect.Type
	base      Invoker

	once  sync.Once
	chain Invoker
}

// Name returns Bean.Member, or the function name for functional operations
func (o *Operation) Name() string { return o.name }

// Kind returns the kind of member the operation invokes
func (o *Operation) Kind() OperationKind { return o.kind }

// Site returns the hook site the operation was created from
func (o *Operation) Site() *HookSite { return o.site }

// Annotation returns the annotation of the hook site
func (o *Operation) Annotation() *Annotation { return o.site.Annotation }

// Extension returns the extension type that created the operation
func (o *Operation) Extension() reflect.Type { return o.extension }

// Bean returns the bean the operation belongs to
func (o *Operation) Bean() *Bean { return o.bean }

// Parameters returns the parameter types of the invoked member
func (o *Operation) Parameters() []reflect.Type {
	return append([]reflect.Type(nil), o.params...)
}

// Invoke runs the operation on the receiver its bean kind selects: the
// singleton instance, a new instance for managed and unmanaged beans, the zero
// value for static beans and none for functional beans.
func (o *Operation) Invoke(ctx context.Context, args ...reflect.Value) (reflect.Value, error) {
	receiver, err := o.bean.receiver(ctx)
	if err != nil {
		return reflect.Value{}, err
	}
	return o.InvokeOn(ctx, receiver, args...)
}

// InvokeOn runs the operation on the given receiver
func (o *Operation) InvokeOn(ctx context.Context, receiver reflect.Value, args ...reflect.Value) (reflect.Value, error) {
	return o.invoker()(ctx, receiver, args)
}

// invoker composes the container interceptors on first use, outermost from the root
func (o *Operation) invoker() Invoker {
	o.once.Do(func() {
		inv := o.base
		chain := o.bean.container.interceptorChain()
		for i := len(chain) - 1; i >= 0; i-- {
			inv = chain[i](o, inv)
		}
		o.chain = inv
	})
	return o.chain
}

// OperationOption adjusts how service parameters of an operation are resolved
type OperationOption func(*operationOptions)

type operationOptions struct {
	qualifier string
	optional  bool
}

// Qualified resolves service parameters with the given qualifier
func Qualified(name string) OperationOption {
	return func(o *operationOptions) {
		o.qualifier = name
	}
}

// OptionalServices passes zero values for service parameters nothing provides
func OptionalServices() OperationOption {
	return func(o *operationOptions) {
		o.optional = true
	}
}

func newOperation(b *Bean, ext reflect.Type, site *HookSite, in *infuser.Infuser, opts []OperationOption) (*Operation, error) {
	var o operationOptions
	for _, opt := range opts {
		opt(&o)
	}
	if in == nil {
		in = emptyInfuser
	}

	var (
		fn       reflect.Value
		skip     int
		kind     OperationKind
		receiver bool
	)
	switch site.Target {
	case annotations.TargetMethod:
		kind, receiver, skip = MethodOperation, true, 1
		if b.kind == Static {
			m, ok := b.typ.MethodByName(site.Member)
			if !ok {
				return nil, fmt.Errorf("static bean %s: method %s must have a value receiver", b.name, site.Member)
			}
			fn = m.Func
		} else {
			if b.typ == nil || b.typ.Kind() != reflect.Pointer {
				return nil, fmt.Errorf("bean %s: method hooks need a pointer instance, got %v", b.name, b.typ)
			}
			fn = site.Method.Func
		}
	case annotations.TargetFunction:
		kind, fn = FunctionOperation, site.Function
	default:
		return nil, fmt.Errorf("cannot create an invoking operation for a %s site", site.Target)
	}

	ft := fn.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("%s: variadic members cannot be operations", site.Member)
	}
	if err := checkResults(ft); err != nil {
		return nil, fmt.Errorf("%s: %w", site.Member, err)
	}

	params := make([]reflect.Type, 0, ft.NumIn()-skip)
	for i := skip; i < ft.NumIn(); i++ {
		params = append(params, ft.In(i))
	}
	plan, err := in.Plan(params, b.container.fallback(b, o))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", site.Member, err)
	}

	name := site.Member
	if kind == MethodOperation {
		name = b.name + "." + site.Member
	}

	op := &Operation{
		bean:      b,
		name:      name,
		kind:      kind,
		site:      site,
		extension: ext,
		params:    params,
	}
	op.base = func(ctx context.Context, recv reflect.Value, raw []reflect.Value) (result reflect.Value, err error) {
		args, err := plan.Args(ctx, raw)
		if err != nil {
			return reflect.Value{}, errors.WrapWithOperation("invoke", name, err)
		}
		if receiver {
			if !recv.IsValid() {
				return reflect.Value{}, fmt.Errorf("invoke %s: no receiver", name)
			}
			args = append([]reflect.Value{recv}, args...)
		}
		defer func() {
			if r := recover(); r != nil {
				result, err = reflect.Value{}, fmt.Errorf("operation %s panicked: %v", name, r)
			}
		}()
		return splitResults(fn.Call(args))
	}
	return op, nil
}

func newFieldOperation(b *Bean, ext reflect.Type, site *HookSite, supply infuser.Supplier) (*Operation, error) {
	if site.Target != annotations.TargetField {
		return nil, fmt.Errorf("%s is not a field site", site.Member)
	}
	if b.kind == Static {
		return nil, fmt.Errorf("static bean %s cannot have field hooks", b.name)
	}
	if b.typ == nil || b.typ.Kind() != reflect.Pointer || b.typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("bean %s: field hooks need a pointer to struct instance, got %v", b.name, b.typ)
	}

	field := site.Field
	name := b.name + "." + site.Member
	op := &Operation{
		bean:      b,
		name:      name,
		kind:      FieldOperation,
		site:      site,
		extension: ext,
		params:    []reflect.Type{field.Type},
	}
	op.base = func(ctx context.Context, recv reflect.Value, _ []reflect.Value) (reflect.Value, error) {
		v, err := supply(ctx)
		if err != nil {
			return reflect.Value{}, errors.WrapWithOperation("set field", name, err)
		}
		if !v.IsValid() {
			return reflect.Value{}, nil
		}
		return reflect.Value{}, setField(recv, field, v)
	}
	return op, nil
}

// setField assigns v to the field of the struct recv points to, including unexported fields
func setField(recv reflect.Value, field reflect.StructField, v reflect.Value) error {
	if recv.Kind() != reflect.Pointer || recv.IsNil() {
		return fmt.Errorf("set %s: receiver is not a non-nil pointer", field.Name)
	}
	fv := recv.Elem().FieldByIndex(field.Index)
	if !fv.CanSet() {
		fv = reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
	}
	switch {
	case v.Type().AssignableTo(fv.Type()):
		fv.Set(v)
	case v.Type().ConvertibleTo(fv.Type()):
		fv.Set(v.Convert(fv.Type()))
	default:
		return fmt.Errorf("set %s: %s is not assignable to %s", field.Name, v.Type(), fv.Type())
	}
	return nil
}

// checkResults accepts (), (T), (error) and (T, error)
func checkResults(ft reflect.Type) error {
	switch ft.NumOut() {
	case 0, 1:
		return nil
	case 2:
		if ft.Out(1) != errorType {
			return fmt.Errorf("second result must be error, got %s", ft.Out(1))
		}
		return nil
	default:
		return fmt.Errorf("expected at most 2 results, got %d", ft.NumOut())
	}
}

func splitResults(out []reflect.Value) (reflect.Value, error) {
	var result reflect.Value
	for _, v := range out {
		if v.Type() == errorType {
			if !v.IsNil() {
				return reflect.Value{}, v.Interface().(error)
			}
			continue
		}
		result = v
	}
	return result, nil
}
