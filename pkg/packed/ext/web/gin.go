package web

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

const ginWildcard = "path"

// GinServer serves routes with a gin engine
type GinServer struct {
	engine *gin.Engine
	http   httpServer
}

// NewGinServer wraps an existing engine
func NewGinServer(engine *gin.Engine) *GinServer {
	s := &GinServer{engine: engine}
	s.http.handler = engine
	return s
}

// NewDefaultGinServer creates a gin engine with panic recovery
func NewDefaultGinServer() *GinServer {
	engine := gin.New()
	engine.Use(gin.Recovery())
	return NewGinServer(engine)
}

// Name returns "gin"
func (s *GinServer) Name() string { return "gin" }

// Engine returns the underlying engine
func (s *GinServer) Engine() *gin.Engine { return s.engine }

// Handle registers a route; gin's conflicting route panics are returned as errors
func (s *GinServer) Handle(method string, path Path, handler HandlerFunc, middlewares ...MiddlewareFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gin: %v", r)
		}
	}()

	handlers := make([]gin.HandlerFunc, 0, len(middlewares)+1)
	for _, mw := range middlewares {
		handlers = append(handlers, ginMiddleware(mw))
	}
	handlers = append(handlers, ginHandler(handler))

	ginPath := path.Format(colonParam, "*"+ginWildcard)
	if method == MethodAny {
		s.engine.Any(ginPath, handlers...)
	} else {
		s.engine.Handle(method, ginPath, handlers...)
	}
	return nil
}

// Use adds middleware to the engine. Routes registered earlier are not affected.
func (s *GinServer) Use(middleware MiddlewareFunc) {
	s.engine.Use(ginMiddleware(middleware))
}

// Serve serves the engine on ln
func (s *GinServer) Serve(ln net.Listener) error {
	return s.http.serve(ln)
}

// Shutdown gracefully stops serving
func (s *GinServer) Shutdown(ctx context.Context) error {
	return s.http.shutdown(ctx)
}

func ginHandler(handler HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		gc := &ginContext{ctx: c}
		if err := handler(gc); err != nil {
			_ = writeError(gc, err)
		}
	}
}

// ginMiddleware aborts the chain when the middleware fails or does not call next
func ginMiddleware(middleware MiddlewareFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		gc := &ginContext{ctx: c}
		called := false
		next := func(Context) error {
			called = true
			c.Next()
			return nil
		}
		if err := middleware(next)(gc); err != nil {
			_ = writeError(gc, err)
			c.Abort()
			return
		}
		if !called {
			c.Abort()
		}
	}
}

type ginContext struct {
	ctx *gin.Context
}

func (c *ginContext) Context() context.Context { return c.ctx.Request.Context() }
func (c *ginContext) Method() string           { return c.ctx.Request.Method }
func (c *ginContext) Path() string             { return c.ctx.Request.URL.Path }
func (c *ginContext) RealIP() string           { return c.ctx.ClientIP() }

func (c *ginContext) Param(name string) string {
	if name == "*" {
		return strings.TrimPrefix(c.ctx.Param(ginWildcard), "/")
	}
	return c.ctx.Param(name)
}

func (c *ginContext) QueryParam(name string) string { return c.ctx.Query(name) }
func (c *ginContext) Header(name string) string     { return c.ctx.GetHeader(name) }
func (c *ginContext) SetHeader(name, value string)  { c.ctx.Header(name, value) }
func (c *ginContext) Bind(v any) error              { return bindError(c.ctx.ShouldBindJSON(v)) }

func (c *ginContext) Get(key string) any {
	v, _ := c.ctx.Get(key)
	return v
}

func (c *ginContext) Set(key string, value any) { c.ctx.Set(key, value) }

func (c *ginContext) JSON(code int, v any) error {
	c.ctx.JSON(code, v)
	return nil
}

func (c *ginContext) String(code int, s string) error {
	c.ctx.String(code, s)
	return nil
}

func (c *ginContext) NoContent(code int) error {
	c.ctx.Status(code)
	c.ctx.Writer.WriteHeaderNow()
	return nil
}

func (c *ginContext) Written() bool { return c.ctx.Writer.Written() }
