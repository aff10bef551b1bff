package packed

import (
	"context"
	"fmt"
	"reflect"

	"github.com/spf13/viper"
	"github.com/toyz/packed/internal/errors"
	"github.com/toyz/packed/internal/infuser"
	"go.uber.org/zap"
)

// An extension is a pointer to an exported struct type. One instance exists
// per container that uses it. It may implement any of the interfaces below.

// ExtensionInitializer is called once right after the extension is constructed
type ExtensionInitializer interface {
	OnNew(h *ExtensionHandle) error
}

// BeanIntrospector receives the hook sites it owns for every bean of the container
type BeanIntrospector interface {
	IntrospectBean(b *BeanHandle, agg *Aggregate) error
}

// ContainerCloser is called when the container leaves the configuration phase
type ContainerCloser interface {
	OnClose(c *ContainerConfiguration) error
}

// ApplicationStarter is called when the application starts, before bean start hooks
type ApplicationStarter interface {
	OnStart(ctx context.Context, app *Application) error
}

// ApplicationStopper is called when the application stops, after bean stop hooks
type ApplicationStopper interface {
	OnStop(ctx context.Context, info StopInfo) error
}

// ExtensionHandle gives an extension access to the container it belongs to
type ExtensionHandle struct {
	container *container
	extType   reflect.Type
	logger    *zap.Logger
}

// Type returns the extension type
func (h *ExtensionHandle) Type() reflect.Type {
	return h.extType
}

// Container returns the configuration of the owning container
func (h *ExtensionHandle) Container() *ContainerConfiguration {
	return &ContainerConfiguration{c: h.container}
}

// Logger returns a logger named after the extension
func (h *ExtensionHandle) Logger() *zap.Logger {
	return h.logger
}

// Config returns the application configuration
func (h *ExtensionHandle) Config() *viper.Viper {
	return h.container.app.config
}

// Use returns another extension of the same container
func (h *ExtensionHandle) Use(t reflect.Type) (any, error) {
	return h.container.extensions.Use(t)
}

// Parent returns the instance of this extension type in the nearest ancestor container that has one
func (h *ExtensionHandle) Parent() (any, bool) {
	for cur := h.container.parent; cur != nil; cur = cur.parent {
		if inst, ok := cur.extensions.Get(h.extType); ok {
			return inst, true
		}
	}
	return nil, false
}

// UseInParent returns the extension of the same type in the parent container,
// installing it there on first use. It returns nil in the root container.
func (h *ExtensionHandle) UseInParent() (any, error) {
	parent := h.container.parent
	if parent == nil {
		return nil, nil
	}
	if parent.frozen() {
		return nil, errors.Wrap(errors.ConfigurationErrorCode,
			fmt.Sprintf("use %s in container %s", h.extType, parent.path()), ErrConfigurationClosed)
	}
	return parent.extensions.Use(h.extType)
}

// ProvideService registers a service supplied by the extension. It may be
// called until the extension's OnClose returns.
func (h *ExtensionHandle) ProvideService(key Key, supply func(ctx context.Context) (any, error)) error {
	if h.container.closed {
		return errors.Wrap(errors.ConfigurationErrorCode, fmt.Sprintf("provide %s", key), ErrConfigurationClosed)
	}
	return h.container.addService(&binding{
		key:    key,
		origin: h.extType,
		supplier: func(ctx context.Context) (reflect.Value, error) {
			v, err := supply(ctx)
			if err != nil {
				return reflect.Value{}, err
			}
			if v == nil {
				return reflect.Zero(key.Type), nil
			}
			return reflect.ValueOf(v), nil
		},
	})
}

// AddInterceptor wraps every operation of the container and its children
func (h *ExtensionHandle) AddInterceptor(interceptor Interceptor) error {
	return h.Container().AddInterceptor(interceptor)
}

// BeanHandle gives an extension access to a bean while it introspects it
type BeanHandle struct {
	bean *Bean
	ext  reflect.Type
}

// Bean returns the introspected bean
func (h *BeanHandle) Bean() *Bean { return h.bean }

// Name returns the bean name
func (h *BeanHandle) Name() string { return h.bean.name }

// Type returns the bean instance type
func (h *BeanHandle) Type() reflect.Type { return h.bean.typ }

// Kind returns the bean kind
func (h *BeanHandle) Kind() BeanKind { return h.bean.kind }

// Logger returns the logger of the bean's container
func (h *BeanHandle) Logger() *zap.Logger {
	return h.bean.container.logger.With(zap.String("bean", h.bean.name))
}

// NewOperation creates an operation invoking a method or function site.
// Parameters bound in in (which may be nil) come from the raw arguments the
// extension passes to Invoke; every other parameter is resolved as a service.
func (h *BeanHandle) NewOperation(site *HookSite, in *Infuser, opts ...OperationOption) (*Operation, error) {
	if err := h.checkSite(site); err != nil {
		return nil, err
	}
	op, err := newOperation(h.bean, h.ext, site, in, opts)
	if err != nil {
		return nil, errors.WrapHookError(typeName(h.bean.typ), site.Member, err)
	}
	h.bean.addOperation(op)
	return op, nil
}

// NewFieldOperation creates an operation that sets a field site to the value supply returns.
// An invalid value leaves the field untouched.
func (h *BeanHandle) NewFieldOperation(site *HookSite, supply func(ctx context.Context) (reflect.Value, error)) (*Operation, error) {
	if err := h.checkSite(site); err != nil {
		return nil, err
	}
	op, err := newFieldOperation(h.bean, h.ext, site, infuser.Supplier(supply))
	if err != nil {
		return nil, errors.WrapHookError(typeName(h.bean.typ), site.Member, err)
	}
	h.bean.addOperation(op)
	return op, nil
}

func (h *BeanHandle) checkSite(site *HookSite) error {
	if site == nil || site.Annotation == nil {
		return fmt.Errorf("bean %s: nil hook site", h.bean.name)
	}
	if site.Extension != nil && site.Extension != h.ext {
		return errors.WrapHookError(typeName(h.bean.typ), site.Member,
			fmt.Errorf("site is owned by %s, not %s", site.Extension, h.ext))
	}
	return nil
}

// OnInject runs op on every new instance before its initialize operations
func (h *BeanHandle) OnInject(op *Operation) error {
	return h.lifecycle(&h.bean.inject, op, "inject")
}

// OnInitialize runs op on every new instance after injection
func (h *BeanHandle) OnInitialize(op *Operation) error {
	return h.lifecycle(&h.bean.initialize, op, "initialize")
}

// OnStart runs op on every live instance when the application starts
func (h *BeanHandle) OnStart(op *Operation) error {
	return h.lifecycle(&h.bean.start, op, "start")
}

// OnStop runs op on every live instance when the application stops
func (h *BeanHandle) OnStop(op *Operation) error {
	return h.lifecycle(&h.bean.stop, op, "stop")
}

func (h *BeanHandle) lifecycle(list *[]*Operation, op *Operation, phase string) error {
	b := h.bean
	switch {
	case op.bean != b:
		return fmt.Errorf("operation %s belongs to bean %s, not %s", op.name, op.bean.name, b.name)
	case b.kind == Functional:
		return fmt.Errorf("functional bean %s has no %s phase", b.name, phase)
	case b.kind == Unmanaged && (phase == "start" || phase == "stop"):
		return fmt.Errorf("unmanaged bean %s does not take part in %s", b.name, phase)
	}
	*list = append(*list, op)
	return nil
}

// ProvideService makes the result of op a service of the bean's container.
// Results of singleton, static and functional beans are computed once.
func (h *BeanHandle) ProvideService(key Key, op *Operation) error {
	if op.kind == FieldOperation {
		return fmt.Errorf("provide %s: field operations have no result", key)
	}
	if err := h.bean.container.addService(&binding{key: key, provider: op, exported: h.bean.exported}); err != nil {
		return err
	}
	return nil
}

// Require records a service key the bean needs; missing keys fail the build
func (h *BeanHandle) Require(key Key, optional bool) {
	h.bean.requires = append(h.bean.requires, requirement{key: key, optional: optional})
}

// Lookup resolves a service from the bean's container at runtime
func (h *BeanHandle) Lookup(ctx context.Context, key Key) (reflect.Value, error) {
	return h.bean.container.resolve(ctx, key)
}

// extensionName is the package qualified type name used for loggers and mirrors
func extensionName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
