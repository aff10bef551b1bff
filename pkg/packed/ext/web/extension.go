// Package web serves bean methods and functions annotated with route over
// HTTP through a gin, echo or fiber server.
//
//	//packed::route GET /users/{id} -Middleware=auth
//	func (u *Users) Get(c web.Context) (*User, error)
//
// Route operations may take a web.Context, the request context.Context and
// any service of the container. They return nothing, an error, or a result
// with an optional error. Results are written as JSON, strings as text and
// *Response with its status code. Returned errors become JSON error bodies
// with the status of an *HTTPError, 500 otherwise.
//
// A nested container hands its routes to the web extension of the nearest
// enclosing container that already uses the extension when the nested one
// closes, unless it was given its own server or address.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/toyz/packed/internal/utils"
	"github.com/toyz/packed/pkg/packed"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Annotation is the hook annotation owned by the extension
const Annotation packed.AnnotationType = "route"

// MethodAny registers a route for every HTTP method
const MethodAny = "ANY"

// AddrConfigKey is the configuration key of the default listen address
const AddrConfigKey = "web.addr"

// DefaultAddr is used when neither SetAddr nor AddrConfigKey give an address
const DefaultAddr = ":8080"

func init() {
	if err := packed.RegisterHook[*Extension](Annotation); err != nil {
		panic(err)
	}
}

var routeInfuser = func() *packed.Infuser {
	b := packed.NewInfuser(
		reflect.TypeFor[Context](),
		reflect.TypeFor[context.Context](),
	)
	_ = b.Direct(packed.KeyOf[Context](), 0)
	_ = b.Direct(packed.KeyOf[context.Context](), 1)
	in, err := b.Build()
	if err != nil {
		panic(err)
	}
	return in
}()

type route struct {
	method     string
	path       Path
	middleware []string
	op         *packed.Operation
	owner      *Extension
}

// RouteInfo describes a route
type RouteInfo struct {
	Method     string   `json:"method" yaml:"method"`
	Path       string   `json:"path" yaml:"path"`
	Handler    string   `json:"handler" yaml:"handler"`
	Middleware []string `json:"middleware,omitempty" yaml:"middleware,omitempty"`
}

// Extension collects the routes of one container and serves them
type Extension struct {
	handle     *packed.ExtensionHandle
	server     Server
	addr       string
	middleware *utils.Registry[string, MiddlewareFunc]
	global     []MiddlewareFunc
	routes     []*route
	closed     bool

	// ancestor is the nearest web extension of an enclosing container
	ancestor *Extension
	// delegated is set when the ancestor serves the routes of this extension
	delegated bool

	mu       sync.Mutex
	ln       net.Listener
	group    *errgroup.Group
	stopping atomic.Bool
}

// OnNew stores the extension handle
func (e *Extension) OnNew(h *packed.ExtensionHandle) error {
	e.handle = h
	e.middleware = utils.NewRegistry[string, MiddlewareFunc]()
	e.middleware.SetValidator(utils.ChainValidators(
		utils.NotEmptyKeyValidator[MiddlewareFunc]("register middleware: name"),
		utils.NoDuplicateValidator[string, MiddlewareFunc]("middleware"),
	))
	return nil
}

func (e *Extension) checkOpen(action string) error {
	if e.closed {
		return fmt.Errorf("%s: %w", action, packed.ErrConfigurationClosed)
	}
	return nil
}

// SetServer chooses the framework; echo is used when none is set
func (e *Extension) SetServer(s Server) error {
	if err := e.checkOpen("set server"); err != nil {
		return err
	}
	if s == nil {
		return errors.New("set server: nil server")
	}
	e.server = s
	return nil
}

// SetAddr sets the listen address, e.g. ":8080" or "127.0.0.1:0"
func (e *Extension) SetAddr(addr string) error {
	if err := e.checkOpen("set address"); err != nil {
		return err
	}
	e.addr = addr
	return nil
}

// RegisterMiddleware names middleware that routes reference with
// -Middleware. Routes of nested containers see it as well.
func (e *Extension) RegisterMiddleware(name string, mw MiddlewareFunc) error {
	if err := e.checkOpen("register middleware"); err != nil {
		return err
	}
	if mw == nil {
		return errors.New("register middleware: nil middleware")
	}
	return e.middleware.Register(name, mw)
}

// Use adds middleware that runs for every route of the container and its
// nested containers
func (e *Extension) Use(mw MiddlewareFunc) error {
	if err := e.checkOpen("use middleware"); err != nil {
		return err
	}
	e.global = append(e.global, mw)
	return nil
}

// IntrospectBean creates a route per route hook
func (e *Extension) IntrospectBean(b *packed.BeanHandle, agg *packed.Aggregate) error {
	for _, site := range agg.Sites() {
		a := site.Annotation
		path := Path(a.GetString("Path"))
		if err := path.Validate(); err != nil {
			return fmt.Errorf("%s: %w", site, err)
		}
		op, err := b.NewOperation(site, routeInfuser)
		if err != nil {
			return err
		}
		e.routes = append(e.routes, &route{
			method:     strings.ToUpper(a.GetString("Method")),
			path:       path,
			middleware: a.GetStringSlice("Middleware"),
			op:         op,
			owner:      e,
		})
	}
	return nil
}

// OnClose hands the routes to the enclosing web extension, or registers
// them with the server when this extension serves them
func (e *Extension) OnClose(*packed.ContainerConfiguration) error {
	e.closed = true
	if parent, ok := e.handle.Parent(); ok {
		e.ancestor = parent.(*Extension)
	}
	if e.ancestor != nil && !e.ancestor.closed && e.server == nil && e.addr == "" {
		e.delegated = true
		e.ancestor.routes = append(e.ancestor.routes, e.routes...)
		e.handle.Logger().Debug("routes delegated", zap.Int("routes", len(e.routes)))
		return nil
	}
	return e.register()
}

func (e *Extension) register() error {
	if e.server == nil {
		e.server = NewDefaultEchoServer()
	}
	if e.addr == "" {
		e.addr = e.handle.Config().GetString(AddrConfigKey)
	}
	if e.addr == "" {
		e.addr = DefaultAddr
	}

	for _, mw := range e.global {
		e.server.Use(mw)
	}

	seen := make(map[string]*route)
	for _, r := range e.routes {
		key := r.method + " " + r.path.pattern()
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("route %s %s of %s conflicts with %s %s of %s",
				r.method, r.path, r.op.Name(), prev.method, prev.path, prev.op.Name())
		}
		seen[key] = r

		mws, err := e.middlewareFor(r)
		if err != nil {
			return err
		}
		if err := e.server.Handle(r.method, r.path, e.handler(r), mws...); err != nil {
			return fmt.Errorf("register %s %s: %w", r.method, r.path, err)
		}
		e.handle.Logger().Debug("route registered",
			zap.String("method", r.method),
			zap.String("path", string(r.path)),
			zap.String("handler", r.op.Name()))
	}
	return nil
}

// middlewareFor returns the middleware of the nested containers between the
// route owner and e, outermost first, followed by the named middleware
func (e *Extension) middlewareFor(r *route) ([]MiddlewareFunc, error) {
	var chain [][]MiddlewareFunc
	for x := r.owner; x != nil && x != e; x = x.ancestor {
		chain = append(chain, x.global)
	}
	var mws []MiddlewareFunc
	for i := len(chain) - 1; i >= 0; i-- {
		mws = append(mws, chain[i]...)
	}
	for _, name := range r.middleware {
		mw, ok := r.owner.lookupMiddleware(name)
		if !ok {
			return nil, fmt.Errorf("route %s %s of %s: unknown middleware %q", r.method, r.path, r.op.Name(), name)
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

func (e *Extension) lookupMiddleware(name string) (MiddlewareFunc, bool) {
	for x := e; x != nil; x = x.ancestor {
		if mw, ok := x.middleware.Get(name); ok {
			return mw, true
		}
	}
	return nil, false
}

func (e *Extension) handler(r *route) HandlerFunc {
	return func(c Context) error {
		ctx := c.Context()
		result, err := r.op.Invoke(ctx, reflect.ValueOf(&c).Elem(), reflect.ValueOf(&ctx).Elem())
		if err != nil {
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				e.handle.Logger().Error("route failed",
					zap.String("method", r.method),
					zap.String("path", c.Path()),
					zap.String("handler", r.op.Name()),
					zap.Error(err))
			}
			return err
		}
		return render(c, result)
	}
}

func render(c Context, result reflect.Value) error {
	if c.Written() {
		return nil
	}
	if !result.IsValid() || isNil(result) {
		return c.NoContent(http.StatusNoContent)
	}
	switch v := result.Interface().(type) {
	case *Response:
		if v.Body == nil {
			return c.NoContent(v.StatusCode)
		}
		return c.JSON(v.StatusCode, v.Body)
	case string:
		return c.String(http.StatusOK, v)
	default:
		return c.JSON(http.StatusOK, v)
	}
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Routes returns the routes the extension serves, including delegated ones
func (e *Extension) Routes() []RouteInfo {
	infos := make([]RouteInfo, len(e.routes))
	for i, r := range e.routes {
		infos[i] = RouteInfo{
			Method:     r.method,
			Path:       string(r.path),
			Handler:    r.op.Name(),
			Middleware: r.middleware,
		}
	}
	return infos
}

// Server returns the server routes are registered with; nil for extensions
// whose routes an enclosing container serves
func (e *Extension) Server() Server {
	if e.delegated {
		return nil
	}
	return e.server
}

// Addr returns the address the server listens on while the application runs
func (e *Extension) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return ""
	}
	return e.ln.Addr().String()
}

// OnStart listens on the configured address and serves in the background
func (e *Extension) OnStart(ctx context.Context, _ *packed.Application) error {
	if e.delegated || len(e.routes) == 0 {
		return nil
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", e.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", e.addr, err)
	}

	e.mu.Lock()
	e.ln = ln
	e.group = new(errgroup.Group)
	e.mu.Unlock()
	e.stopping.Store(false)

	logger := e.handle.Logger()
	e.group.Go(func() error {
		err := e.server.Serve(ln)
		if e.stopping.Load() {
			return nil
		}
		if err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
		return err
	})
	logger.Info("serving http",
		zap.String("server", e.server.Name()),
		zap.String("addr", ln.Addr().String()),
		zap.Int("routes", len(e.routes)))
	return nil
}

// OnStop shuts the server down and waits for it to return. With StopNow
// in-flight requests are not awaited.
func (e *Extension) OnStop(ctx context.Context, info packed.StopInfo) error {
	e.mu.Lock()
	ln, group := e.ln, e.group
	e.ln, e.group = nil, nil
	e.mu.Unlock()
	if group == nil {
		return nil
	}

	e.stopping.Store(true)
	err := e.server.Shutdown(ctx)
	if info.Now && errors.Is(err, context.Canceled) {
		err = nil
	}
	_ = ln.Close()
	if werr := group.Wait(); werr != nil {
		err = errors.Join(err, werr)
	}
	if err != nil {
		return fmt.Errorf("stop %s server: %w", e.server.Name(), err)
	}
	e.handle.Logger().Info("http server stopped")
	return nil
}
