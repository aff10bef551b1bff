package web

import (
	"context"
	"encoding/json"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// writtenLocal marks a fiber request whose response was written through Context
const writtenLocal = "packed.web.written"

// FiberServer serves routes with a fiber app. A fiber app cannot be served
// again after Shutdown.
type FiberServer struct {
	app *fiber.App
}

// NewFiberServer wraps an existing app
func NewFiberServer(app *fiber.App) *FiberServer {
	return &FiberServer{app: app}
}

// NewDefaultFiberServer creates a fiber app with panic recovery
func NewDefaultFiberServer() *FiberServer {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	return NewFiberServer(app)
}

// Name returns "fiber"
func (s *FiberServer) Name() string { return "fiber" }

// App returns the underlying fiber app
func (s *FiberServer) App() *fiber.App { return s.app }

// Handle registers a route
func (s *FiberServer) Handle(method string, path Path, handler HandlerFunc, middlewares ...MiddlewareFunc) error {
	handlers := make([]fiber.Handler, 0, len(middlewares)+1)
	for _, mw := range middlewares {
		handlers = append(handlers, fiberMiddleware(mw))
	}
	handlers = append(handlers, fiberHandler(handler))

	fiberPath := path.Format(colonParam, "*")
	if method == MethodAny {
		s.app.All(fiberPath, handlers...)
	} else {
		s.app.Add(method, fiberPath, handlers...)
	}
	return nil
}

// Use adds middleware to the app. Routes registered earlier are not affected.
func (s *FiberServer) Use(mw MiddlewareFunc) {
	s.app.Use(fiberMiddleware(mw))
}

// Serve serves the app on ln
func (s *FiberServer) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully stops serving
func (s *FiberServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func fiberHandler(handler HandlerFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fc := &fiberContext{ctx: c}
		if err := handler(fc); err != nil {
			return writeError(fc, err)
		}
		return nil
	}
}

func fiberMiddleware(mw MiddlewareFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fc := &fiberContext{ctx: c}
		err := mw(func(Context) error {
			return c.Next()
		})(fc)
		if err != nil {
			return writeError(fc, err)
		}
		return nil
	}
}

type fiberContext struct {
	ctx *fiber.Ctx
}

func (c *fiberContext) Context() context.Context      { return c.ctx.UserContext() }
func (c *fiberContext) Method() string                { return c.ctx.Method() }
func (c *fiberContext) Path() string                  { return c.ctx.Path() }
func (c *fiberContext) RealIP() string                { return c.ctx.IP() }
func (c *fiberContext) Param(name string) string      { return c.ctx.Params(name) }
func (c *fiberContext) QueryParam(name string) string { return c.ctx.Query(name) }
func (c *fiberContext) Header(name string) string     { return c.ctx.Get(name) }
func (c *fiberContext) SetHeader(name, value string)  { c.ctx.Set(name, value) }

func (c *fiberContext) Bind(v any) error {
	return bindError(json.Unmarshal(c.ctx.Body(), v))
}

func (c *fiberContext) Get(key string) any        { return c.ctx.Locals(key) }
func (c *fiberContext) Set(key string, value any) { c.ctx.Locals(key, value) }

func (c *fiberContext) JSON(code int, v any) error {
	c.ctx.Locals(writtenLocal, true)
	return c.ctx.Status(code).JSON(v)
}

func (c *fiberContext) String(code int, s string) error {
	c.ctx.Locals(writtenLocal, true)
	return c.ctx.Status(code).SendString(s)
}

func (c *fiberContext) NoContent(code int) error {
	c.ctx.Locals(writtenLocal, true)
	c.ctx.Status(code)
	return nil
}

func (c *fiberContext) Written() bool { return c.ctx.Locals(writtenLocal) != nil }
