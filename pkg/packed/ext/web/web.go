package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Context is the request seen by handlers and middleware, independent of
// the framework serving it
type Context interface {
	// Context returns the request context
	Context() context.Context
	Method() string
	Path() string
	RealIP() string
	// Param returns a path parameter; "*" returns the wildcard remainder
	Param(name string) string
	QueryParam(name string) string
	Header(name string) string
	SetHeader(name, value string)
	// Bind decodes the JSON request body into v
	Bind(v any) error
	Get(key string) any
	Set(key string, value any)

	JSON(code int, v any) error
	String(code int, s string) error
	NoContent(code int) error
	// Written reports whether the handler already wrote a response
	Written() bool
}

// HandlerFunc serves a request
type HandlerFunc func(Context) error

// MiddlewareFunc wraps a handler
type MiddlewareFunc func(next HandlerFunc) HandlerFunc

// Server is an HTTP framework routes are registered with
type Server interface {
	// Name returns the framework name
	Name() string
	// Handle registers a route. method is an upper-case HTTP method or ANY.
	Handle(method string, path Path, handler HandlerFunc, middlewares ...MiddlewareFunc) error
	// Use adds middleware that runs for every route
	Use(middleware MiddlewareFunc)
	// Serve accepts connections on ln until Shutdown is called
	Serve(ln net.Listener) error
	Shutdown(ctx context.Context) error
}

// HTTPError is an error with an HTTP status code
type HTTPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// NewHTTPError creates an HTTPError; the message defaults to the status text
func NewHTTPError(code int, message ...string) *HTTPError {
	msg := http.StatusText(code)
	if len(message) > 0 {
		msg = message[0]
	}
	return &HTTPError{Code: code, Message: msg}
}

// ErrBadRequest creates a 400 error
func ErrBadRequest(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message)
}

// ErrUnauthorized creates a 401 error
func ErrUnauthorized(message string) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, message)
}

// ErrNotFound creates a 404 error
func ErrNotFound(message string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message)
}

// ErrConflict creates a 409 error
func ErrConflict(message string) *HTTPError {
	return NewHTTPError(http.StatusConflict, message)
}

// Response lets a handler choose the status code of its result.
//
//	func (c *Users) Create(ctx web.Context) (*web.Response, error) {
//		...
//		return web.Created(user), nil
//	}
type Response struct {
	StatusCode int
	Body       any
}

// NewResponse creates a Response
func NewResponse(code int, body any) *Response {
	return &Response{StatusCode: code, Body: body}
}

// OK creates a 200 response
func OK(body any) *Response {
	return NewResponse(http.StatusOK, body)
}

// Created creates a 201 response
func Created(body any) *Response {
	return NewResponse(http.StatusCreated, body)
}

// NoContent creates a 204 response
func NoContent() *Response {
	return NewResponse(http.StatusNoContent, nil)
}

// errorBody is the JSON body written for handler errors
type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// renderError maps err to a status code and JSON body
func renderError(err error) (int, errorBody) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, errorBody{Error: httpErr.Message, Details: httpErr.Details}
	}
	return http.StatusInternalServerError, errorBody{Error: err.Error()}
}

// writeError writes the error response unless the handler already wrote one
func writeError(c Context, err error) error {
	if c.Written() {
		return nil
	}
	code, body := renderError(err)
	return c.JSON(code, body)
}
