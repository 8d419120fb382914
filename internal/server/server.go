// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/phonebook-api/internal/config"
	"github.com/vyrodovalexey/phonebook-api/internal/handler"
	"github.com/vyrodovalexey/phonebook-api/internal/middleware"
	"github.com/vyrodovalexey/phonebook-api/internal/store"
)

// Server represents the phonebook HTTP server and its probe listener.
type Server struct {
	httpServer  *http.Server
	probeServer *http.Server
	router      *mux.Router
	probeRouter *mux.Router
	handler     http.Handler
	config      *config.Config
	logger      *zap.Logger
	wsHandler   *handler.WebSocketHandler
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *zap.Logger, personStore store.Store) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		probeRouter: mux.NewRouter(),
		config:      cfg,
		logger:      logger,
	}

	s.setupRoutes(personStore)
	s.setupMiddleware()
	s.setupProbeRoutes(personStore)
	s.setupHTTPServers()

	return s
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(personStore store.Store) {
	// WebSocket handler doubles as the event publisher for the REST handler.
	s.wsHandler = handler.NewWebSocketHandler(s.logger)
	s.wsHandler.RegisterRoutes(s.router)

	restHandler := handler.NewRESTHandler(personStore, s.logger,
		handler.WithEventPublisher(s.wsHandler),
		handler.WithMaxBodyBytes(s.config.MaxBodyBytes),
	)
	restHandler.RegisterRoutes(s.router)

	unknown := handler.UnknownEndpoint(s.logger)
	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
		unknown = middleware.Metrics()(unknown)
	}
	s.router.NotFoundHandler = unknown
	s.router.MethodNotAllowedHandler = unknown
}

// setupMiddleware wraps the router. mux only runs Use middleware on matched
// routes, so everything that must see unmatched requests wraps the router itself.
func (s *Server) setupMiddleware() {
	allowedOrigins := []string{"*"}
	allowedMethods := []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		middleware.RequestIDHeader,
	}

	// First listed = outermost.
	s.handler = middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.CORS(allowedOrigins, allowedMethods, allowedHeaders),
		middleware.CanonicalPath(),
	)(s.router)
}

// setupProbeRoutes configures health, readiness and metrics on the probe router.
func (s *Server) setupProbeRoutes(personStore store.Store) {
	probeHandler := handler.NewProbeHandler(personStore, s.logger)
	probeHandler.RegisterRoutes(s.probeRouter)

	if s.config.MetricsEnabled {
		s.probeRouter.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupHTTPServers configures the API server and, when enabled, the probe server.
func (s *Server) setupHTTPServers() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	if s.config.ProbePort == 0 {
		return
	}

	s.probeServer = &http.Server{
		Addr:              s.config.ProbeAddress(),
		Handler:           middleware.Recovery(s.logger)(s.probeRouter),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Start runs the API server and the probe server. It returns the first
// listener error, or nil once both are shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
	)

	servers := []*http.Server{s.httpServer}
	names := []string{"server"}
	if s.probeServer != nil {
		s.logger.Info("starting probe server", zap.String("address", s.config.ProbeAddress()))
		servers = append(servers, s.probeServer)
		names = append(names, "probe server")
	}

	errCh := make(chan error, len(servers))
	for i, srv := range servers {
		go func() {
			errCh <- listen(srv, names[i])
		}()
	}

	for range servers {
		if err := <-errCh; err != nil {
			return err
		}
	}

	return nil
}

func listen(srv *http.Server, name string) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listen and serve: %w", name, err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Close all WebSocket connections first
	if s.wsHandler != nil {
		s.wsHandler.CloseAllConnections()
	}

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if s.probeServer != nil {
		if err := s.probeServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("probe server shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's API router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the API router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ProbeRouter returns the probe router for testing purposes.
func (s *Server) ProbeRouter() *mux.Router {
	return s.probeRouter
}
