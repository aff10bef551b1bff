package web

import (
	"context"
	"net"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// EchoServer serves routes with an echo instance
type EchoServer struct {
	engine *echo.Echo
	http   httpServer
}

// NewEchoServer wraps an existing echo instance
func NewEchoServer(e *echo.Echo) *EchoServer {
	s := &EchoServer{engine: e}
	s.http.handler = e
	return s
}

// NewDefaultEchoServer creates an echo instance with panic recovery
func NewDefaultEchoServer() *EchoServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	return NewEchoServer(e)
}

// Name returns "echo"
func (s *EchoServer) Name() string { return "echo" }

// Engine returns the underlying echo instance
func (s *EchoServer) Engine() *echo.Echo { return s.engine }

// Handle registers a route
func (s *EchoServer) Handle(method string, path Path, handler HandlerFunc, middlewares ...MiddlewareFunc) error {
	mws := make([]echo.MiddlewareFunc, len(middlewares))
	for i, mw := range middlewares {
		mws[i] = echoMiddleware(mw)
	}
	echoPath := path.Format(colonParam, "*")
	if method == MethodAny {
		s.engine.Any(echoPath, echoHandler(handler), mws...)
	} else {
		s.engine.Add(method, echoPath, echoHandler(handler), mws...)
	}
	return nil
}

// Use adds middleware that runs for every route
func (s *EchoServer) Use(mw MiddlewareFunc) {
	s.engine.Use(echoMiddleware(mw))
}

// Serve serves the echo instance on ln
func (s *EchoServer) Serve(ln net.Listener) error {
	return s.http.serve(ln)
}

// Shutdown gracefully stops serving
func (s *EchoServer) Shutdown(ctx context.Context) error {
	return s.http.shutdown(ctx)
}

func echoHandler(handler HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ec := &echoContext{ctx: c}
		if err := handler(ec); err != nil {
			return writeError(ec, err)
		}
		return nil
	}
}

func echoMiddleware(mw MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ec := &echoContext{ctx: c}
			err := mw(func(Context) error {
				return next(c)
			})(ec)
			if err != nil {
				return writeError(ec, err)
			}
			return nil
		}
	}
}

type echoContext struct {
	ctx echo.Context
}

func (c *echoContext) Context() context.Context      { return c.ctx.Request().Context() }
func (c *echoContext) Method() string                { return c.ctx.Request().Method }
func (c *echoContext) Path() string                  { return c.ctx.Request().URL.Path }
func (c *echoContext) RealIP() string                { return c.ctx.RealIP() }
func (c *echoContext) Param(name string) string      { return c.ctx.Param(name) }
func (c *echoContext) QueryParam(name string) string { return c.ctx.QueryParam(name) }
func (c *echoContext) Header(name string) string     { return c.ctx.Request().Header.Get(name) }
func (c *echoContext) SetHeader(name, value string)  { c.ctx.Response().Header().Set(name, value) }
func (c *echoContext) Bind(v any) error              { return bindError(c.ctx.Bind(v)) }
func (c *echoContext) Get(key string) any            { return c.ctx.Get(key) }
func (c *echoContext) Set(key string, value any)     { c.ctx.Set(key, value) }
func (c *echoContext) JSON(code int, v any) error    { return c.ctx.JSON(code, v) }
func (c *echoContext) String(code int, s string) error {
	return c.ctx.String(code, s)
}
func (c *echoContext) NoContent(code int) error { return c.ctx.NoContent(code) }
func (c *echoContext) Written() bool            { return c.ctx.Response().Committed }
