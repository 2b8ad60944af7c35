// internal/httpserver/server.go
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
	"github.com/MrSnakeDoc/standby/internal/httpserver/mw"
	"github.com/MrSnakeDoc/standby/internal/httpserver/routes"
	"github.com/MrSnakeDoc/standby/internal/logger"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http     *http.Server
	logger   logger.Logger
	stopOnce sync.Once
	stopErr  error
}

// New builds the HTTP server (router, middlewares, route registration) for one surface.
func New(addr string, surface routes.Surface, loggerClient logger.Logger, d deps.Deps) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(surface, loggerClient, d),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger: loggerClient,
	}
}

// NewRouter returns the chi router of a surface. Exposed for handler tests.
func NewRouter(surface routes.Surface, loggerClient logger.Logger, d deps.Deps) http.Handler {
	r := chi.NewRouter()

	// --- Global middlewares (safe defaults)
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)                // X-Request-ID on each request
	r.Use(middleware.Recoverer)                // never crash the process on panic
	r.Use(middleware.Timeout(2 * time.Second)) // per-request timeout
	r.Use(mw.Log(loggerClient, surface == routes.Supervisor))

	routes.RegisterAll(surface, r, d)
	return r
}

// Serve runs the server on an already bound listener (blocks until error or shutdown).
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Debugf("HTTP server serving on %s", ln.Addr())
	return ignoreClosed(s.http.Serve(ln))
}

// Stop gracefully shuts down the server with the provided context deadline.
// Only the first call does the work; later calls return its result.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.logger.Debug("HTTP server shutting down...")
		s.stopErr = s.http.Shutdown(ctx)
	})
	return s.stopErr
}

// http.ErrServerClosed is expected on graceful shutdown.
func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
