package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
)

// httpServer serves an http.Handler. Each Serve call uses a fresh
// http.Server so the handler can be served again after Shutdown.
type httpServer struct {
	handler http.Handler

	mu  sync.Mutex
	srv *http.Server
}

func (s *httpServer) serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *httpServer) shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// bindError reports a request body that could not be decoded
func bindError(err error) error {
	if err == nil {
		return nil
	}
	return &HTTPError{Code: http.StatusBadRequest, Message: err.Error()}
}
