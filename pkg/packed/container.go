package packed

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/spf13/viper"
	"github.com/toyz/packed/internal/errors"
	"github.com/toyz/packed/internal/extension"
	"github.com/toyz/packed/internal/infuser"
	"go.uber.org/zap"
)

var (
	applicationKey = KeyOf[*Application]()
	contextKey     = KeyOf[context.Context]()
)

// container holds the beans, extensions and services of one level of the application
type container struct {
	app      *Application
	parent   *container
	name     string
	children []*container

	extensions *extension.Registry
	handles    map[reflect.Type]*ExtensionHandle

	beans        []*Bean
	services     map[Key]*binding
	serviceOrder []Key

	interceptors []Interceptor
	buildHooks   []BuildHook
	logger       *zap.Logger
	closing      bool
	closed       bool
	errs         errors.List
}

func newContainer(app *Application, parent *container, name string, w *wiring) *container {
	c := &container{
		app:          app,
		parent:       parent,
		name:         name,
		handles:      make(map[reflect.Type]*ExtensionHandle),
		services:     make(map[Key]*binding),
		interceptors: append([]Interceptor(nil), w.interceptors...),
		buildHooks:   append([]BuildHook(nil), w.hooks...),
	}
	c.logger = app.logger.With(zap.String("container", c.path()))
	c.extensions = extension.NewRegistry(c.onNewExtension)
	return c
}

func (c *container) path() string {
	switch {
	case c.parent == nil:
		return "/"
	case c.parent.parent == nil:
		return "/" + c.name
	default:
		return c.parent.path() + "/" + c.name
	}
}

// frozen reports whether beans, links and build hooks can no longer be added
func (c *container) frozen() bool {
	return c.closing || c.closed
}

func (c *container) record(err error) {
	c.errs.Add(err)
}

func (c *container) hasBean(name string) bool {
	for _, b := range c.beans {
		if b.name == name {
			return true
		}
	}
	return false
}

// uniqueBeanName returns base, or base#n when base is taken
func (c *container) uniqueBeanName(base string) string {
	name := base
	for i := 2; c.hasBean(name); i++ {
		name = base + "#" + strconv.Itoa(i)
	}
	return name
}

func (c *container) onNewExtension(t reflect.Type, instance any) error {
	h := c.handle(t)
	c.logger.Debug("extension installed", zap.Stringer("extension", t))
	if n, ok := instance.(ExtensionInitializer); ok {
		return n.OnNew(h)
	}
	return nil
}

func (c *container) handle(t reflect.Type) *ExtensionHandle {
	h, ok := c.handles[t]
	if !ok {
		h = &ExtensionHandle{
			container: c,
			extType:   t,
			logger:    c.logger.Named(extensionName(t)),
		}
		c.handles[t] = h
	}
	return h
}

// interceptorChain returns the interceptors of c and its ancestors, root first
func (c *container) interceptorChain() []Interceptor {
	var levels [][]Interceptor
	for cur := c; cur != nil; cur = cur.parent {
		levels = append(levels, cur.interceptors)
	}
	var chain []Interceptor
	for i := len(levels) - 1; i >= 0; i-- {
		chain = append(chain, levels[i]...)
	}
	return chain
}

// fallback resolves operation parameters no infuser entry covers as services
// of c. A context.Context parameter receives the invocation context.
func (c *container) fallback(b *Bean, o operationOptions) infuser.Fallback {
	return func(key Key) (infuser.Supplier, bool) {
		if key == contextKey {
			return func(ctx context.Context) (reflect.Value, error) {
				return reflect.ValueOf(&ctx).Elem(), nil
			}, true
		}
		if o.qualifier != "" {
			key.Qualifier = o.qualifier
		}
		b.requires = append(b.requires, requirement{key: key, optional: o.optional})
		return func(ctx context.Context) (reflect.Value, error) {
			v, err := c.resolve(ctx, key)
			if err != nil && o.optional && stderrors.Is(err, ErrNoService) {
				return reflect.Value{}, nil
			}
			return v, err
		}, true
	}
}

// find looks key up in c and its ancestors
func (c *container) find(key Key) (*binding, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if s, ok := cur.services[key]; ok {
			return s, true
		}
	}
	return nil, false
}

// resolve returns the service for key from c or its ancestors
func (c *container) resolve(ctx context.Context, key Key) (reflect.Value, error) {
	if key == applicationKey {
		return reflect.ValueOf(c.app), nil
	}
	s, ok := c.find(key)
	if !ok {
		return reflect.Value{}, errors.WrapDependencyError(key.String(), c.path(), ErrNoService)
	}
	return s.supply(ctx)
}

// provided reports whether key can be resolved from c
func (c *container) provided(key Key) bool {
	if key == applicationKey {
		return true
	}
	_, ok := c.find(key)
	return ok
}

func (c *container) addService(s *binding) error {
	if existing, ok := c.services[s.key]; ok {
		return errors.Wrap(errors.DependencyErrorCode,
			fmt.Sprintf("%s provided by %s and %s", s.key, existing.source(), s.source()), ErrDuplicateService).
			WithSuggestion("use a qualifier to tell the services apart")
	}
	c.services[s.key] = s
	c.serviceOrder = append(c.serviceOrder, s.key)
	return nil
}

// close introspects the beans, registers their services, closes the
// extensions and exports services to the parent
func (c *container) close() error {
	path := c.path()
	if err := c.errs.Err(); err != nil {
		return buildError(path, PhaseBuild, err)
	}

	for i := 0; i < len(c.beans); i++ {
		if err := c.introspect(c.beans[i]); err != nil {
			c.record(err)
		}
	}
	if err := c.errs.Err(); err != nil {
		return buildError(path, PhaseIntrospect, err)
	}

	for _, b := range c.beans {
		for _, key := range b.Keys() {
			if err := c.addService(&binding{key: key, bean: b, exported: b.exported}); err != nil {
				c.record(err)
			}
		}
	}
	if err := c.errs.Err(); err != nil {
		return buildError(path, PhaseClose, err)
	}

	// extensions may still provide services and add interceptors while they close
	c.closing = true
	for i := 0; i < c.extensions.Len(); i++ {
		t := c.extensions.Types()[i]
		inst, _ := c.extensions.Get(t)
		if closer, ok := inst.(ContainerCloser); ok {
			if err := closer.OnClose(&ContainerConfiguration{c: c}); err != nil {
				return buildError(path, PhaseClose, errors.WrapExtensionError(t.String(), "close", err))
			}
		}
	}
	c.extensions.Seal()
	c.closed = true

	if err := c.export(); err != nil {
		return buildError(path, PhaseClose, err)
	}
	c.logger.Debug("container closed",
		zap.Int("beans", len(c.beans)),
		zap.Int("extensions", c.extensions.Len()),
		zap.Int("services", len(c.services)))
	return nil
}

func (c *container) introspect(b *Bean) error {
	model, err := b.scan(c.app.scanner)
	if err != nil || model == nil {
		return err
	}
	b.model = model

	for _, t := range model.Extensions() {
		inst, err := c.extensions.Use(t)
		if err != nil {
			return err
		}
		introspector, ok := inst.(BeanIntrospector)
		if !ok {
			return errors.WrapExtensionError(t.String(), "introspect "+b.name,
				fmt.Errorf("extension owns hooks but does not implement IntrospectBean"))
		}
		if err := introspector.IntrospectBean(&BeanHandle{bean: b, ext: t}, model.Aggregate(t)); err != nil {
			return errors.WrapExtensionError(t.String(), "introspect "+b.name, err)
		}
	}
	return nil
}

// export adds the exported services of c to its parent
func (c *container) export() error {
	if c.parent == nil {
		for _, key := range c.serviceOrder {
			if c.services[key].exported {
				c.logger.Warn("root container cannot export services", zap.Stringer("key", key))
			}
		}
		return nil
	}
	var errs errors.List
	for _, key := range c.serviceOrder {
		s := c.services[key]
		if !s.exported {
			continue
		}
		if err := c.parent.addService(s); err != nil {
			errs.Add(err)
		}
	}
	return errs.Err()
}

// walk visits c and its descendants in preorder
func (c *container) walk(fn func(*container) error) error {
	if err := fn(c); err != nil {
		return err
	}
	for _, child := range c.children {
		if err := child.walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// binding is a service registered under one key
type binding struct {
	key      Key
	bean     *Bean
	provider *Operation
	supplier infuser.Supplier
	origin   reflect.Type
	exported bool

	cache memo
}

func (s *binding) supply(ctx context.Context) (reflect.Value, error) {
	switch {
	case s.bean != nil:
		return s.bean.receiver(ctx)
	case s.provider != nil:
		kind := s.provider.bean.kind
		if kind == Managed || kind == Unmanaged {
			return s.provider.Invoke(ctx)
		}
		ctx, err := enter(ctx, s, s.source())
		if err != nil {
			return reflect.Value{}, err
		}
		return s.cache.get(ctx, func(ctx context.Context) (reflect.Value, error) {
			return s.provider.Invoke(ctx)
		})
	default:
		return s.supplier(ctx)
	}
}

func (s *binding) reset() {
	s.cache.reset()
}

// source describes where the service comes from
func (s *binding) source() string {
	switch {
	case s.bean != nil:
		return "bean " + s.bean.name
	case s.provider != nil:
		return "provider " + s.provider.name
	case s.origin != nil:
		return "extension " + s.origin.String()
	default:
		return "supplier"
	}
}

// ContainerConfiguration configures a container while its assembly builds
type ContainerConfiguration struct {
	c *container
}

// Name returns the container name
func (cc *ContainerConfiguration) Name() string {
	return cc.c.name
}

// Path returns the slash separated path of the container from the root
func (cc *ContainerConfiguration) Path() string {
	return cc.c.path()
}

// Logger returns the container logger
func (cc *ContainerConfiguration) Logger() *zap.Logger {
	return cc.c.logger
}

// Config returns the application configuration
func (cc *ContainerConfiguration) Config() *viper.Viper {
	return cc.c.app.config
}

// IsClosed reports whether the container stopped accepting beans
func (cc *ContainerConfiguration) IsClosed() bool {
	return cc.c.frozen()
}

// Beans returns the beans installed so far
func (cc *ContainerConfiguration) Beans() []*Bean {
	return append([]*Bean(nil), cc.c.beans...)
}

func (cc *ContainerConfiguration) checkOpen(action string) error {
	if cc.c.frozen() {
		return errors.Wrap(errors.ConfigurationErrorCode,
			fmt.Sprintf("%s in container %s", action, cc.c.path()), ErrConfigurationClosed)
	}
	return nil
}

func (cc *ContainerConfiguration) install(b *Bean) *BeanConfiguration {
	b.container = cc.c
	if b.name == "" {
		b.name = typeName(b.typ)
	}
	b.name = cc.c.uniqueBeanName(b.name)
	cc.c.beans = append(cc.c.beans, b)
	cc.c.logger.Debug("bean installed",
		zap.String("bean", b.name),
		zap.Stringer("kind", b.kind),
		zap.Stringer("source", b.source))
	return &BeanConfiguration{bean: b}
}

// Install installs a singleton bean allocated from the struct type T.
// Instances are *T.
func Install[T any](cc *ContainerConfiguration) (*BeanConfiguration, error) {
	if err := cc.checkOpen("install"); err != nil {
		return nil, err
	}
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.New(errors.ConfigurationErrorCode, fmt.Sprintf("install %s: bean types must be structs", t))
	}
	return cc.install(&Bean{typ: reflect.PointerTo(t), kind: Singleton, source: SourceClass}), nil
}

// InstallInstance installs a singleton bean wrapping value. Field hooks need a pointer to struct.
func (cc *ContainerConfiguration) InstallInstance(value any) (*BeanConfiguration, error) {
	if err := cc.checkOpen("install instance"); err != nil {
		return nil, err
	}
	v := reflect.ValueOf(value)
	if !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return nil, errors.New(errors.ConfigurationErrorCode, "install instance: nil value")
	}
	return cc.install(&Bean{typ: v.Type(), kind: Singleton, source: SourceInstance, value: v}), nil
}

// InstallFunc installs a singleton bean returned by constructor, a func
// returning T or (T, error). Its parameters are resolved as services.
func (cc *ContainerConfiguration) InstallFunc(constructor any) (*BeanConfiguration, error) {
	if err := cc.checkOpen("install constructor"); err != nil {
		return nil, err
	}
	fn := reflect.ValueOf(constructor)
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, errors.New(errors.ConfigurationErrorCode, fmt.Sprintf("install constructor: expected a func, got %T", constructor))
	}
	ft := fn.Type()
	if ft.IsVariadic() || ft.NumOut() == 0 || ft.Out(0) == errorType {
		return nil, errors.New(errors.ConfigurationErrorCode,
			fmt.Sprintf("install constructor %s: must be non-variadic and return T or (T, error)", ft))
	}
	if err := checkResults(ft); err != nil {
		return nil, errors.Wrap(errors.ConfigurationErrorCode, fmt.Sprintf("install constructor %s", ft), err)
	}

	b := &Bean{typ: ft.Out(0), kind: Singleton, source: SourceOp, ctor: fn}
	params := make([]reflect.Type, ft.NumIn())
	for i := range params {
		params[i] = ft.In(i)
	}
	bc := cc.install(b)
	plan, err := emptyInfuser.Plan(params, cc.c.fallback(b, operationOptions{}))
	if err != nil {
		return nil, err
	}
	b.ctorPlan = plan
	return bc, nil
}

// InstallFunctional installs a bean without instance whose operations are
// functions added with AddFunction
func (cc *ContainerConfiguration) InstallFunctional(name string) (*BeanConfiguration, error) {
	if err := cc.checkOpen("install functional bean"); err != nil {
		return nil, err
	}
	if name == "" {
		name = "functional"
	}
	return cc.install(&Bean{name: name, kind: Functional, source: SourceNone}), nil
}

// InstallStatic installs a bean without instance; the value receiver methods
// of T are invoked on its zero value
func InstallStatic[T any](cc *ContainerConfiguration) (*BeanConfiguration, error) {
	if err := cc.checkOpen("install static bean"); err != nil {
		return nil, err
	}
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, errors.New(errors.ConfigurationErrorCode, fmt.Sprintf("install static %s: must be a struct type", t))
	}
	return cc.install(&Bean{typ: t, kind: Static, source: SourceNone}), nil
}

// Use returns the extension E of the container, installing it on first use.
// E is a pointer to the extension struct.
func Use[E any](cc *ContainerConfiguration) (E, error) {
	return extension.Use[E](cc.c.extensions)
}

// UseType is the untyped form of Use
func (cc *ContainerConfiguration) UseType(t reflect.Type) (any, error) {
	return cc.c.extensions.Use(t)
}

// Link builds assembly as a child container
func (cc *ContainerConfiguration) Link(assembly Assembly, wirelets ...Wirelet) error {
	if err := cc.checkOpen("link"); err != nil {
		return err
	}
	w := applyWirelets(wirelets)
	name := w.name
	if name == "" {
		name = assemblyName(assembly)
	}
	for _, child := range cc.c.children {
		if child.name == name {
			return buildError(cc.c.path(), PhaseBuild,
				errors.New(errors.ConfigurationErrorCode, fmt.Sprintf("container %q is already linked", name)))
		}
	}

	child := newContainer(cc.c.app, cc.c, name, w)
	cc.c.children = append(cc.c.children, child)
	return child.build(assembly)
}

// AddBuildHook attaches a build hook; phases that already ran are skipped
func (cc *ContainerConfiguration) AddBuildHook(hook BuildHook) error {
	if err := cc.checkOpen("add build hook"); err != nil {
		return err
	}
	cc.c.buildHooks = append(cc.c.buildHooks, hook)
	return nil
}

// AddInterceptor wraps every operation of the container and its children.
// Extensions may add interceptors until their OnClose returns.
func (cc *ContainerConfiguration) AddInterceptor(interceptor Interceptor) error {
	if cc.c.closed {
		return errors.Wrap(errors.ConfigurationErrorCode,
			fmt.Sprintf("add interceptor in container %s", cc.c.path()), ErrConfigurationClosed)
	}
	cc.c.interceptors = append(cc.c.interceptors, interceptor)
	return nil
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "bean"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
