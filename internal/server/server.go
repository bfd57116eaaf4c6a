package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // registers pprof handlers on http.DefaultServeMux
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/quic-go/quic-go/http3"

	"github.com/zsiec/cloudstream/internal/config"
	apperrors "github.com/zsiec/cloudstream/internal/errors"
	"github.com/zsiec/cloudstream/internal/health"
	"github.com/zsiec/cloudstream/internal/logger"
)

// Server serves the API over HTTP/1.1 and, optionally, HTTP/3.
type Server struct {
	config       *config.ServerConfig
	router       *mux.Router
	httpServer   *http.Server
	http3Server  *http3.Server
	logger       logger.Logger
	healthMgr    *health.Manager
	errorHandler *apperrors.ErrorHandler

	routesOnce       sync.Once
	additionalRoutes []func(*mux.Router)
}

func New(cfg *config.ServerConfig, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNullLogger()
	}
	log = log.WithField("component", "server")
	return &Server{
		config:       cfg,
		router:       mux.NewRouter(),
		logger:       log,
		healthMgr:    health.NewManager(log),
		errorHandler: apperrors.NewErrorHandler(log),
	}
}

// HealthManager is where callers register their checkers.
func (s *Server) HealthManager() *health.Manager {
	return s.healthMgr
}

// RegisterRoutes adds additional route handlers to the server. It must be
// called before Handler or Start.
func (s *Server) RegisterRoutes(registerFunc func(*mux.Router)) {
	s.additionalRoutes = append(s.additionalRoutes, registerFunc)
}

// Handler returns the fully configured router.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.setupRoutes)
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	handler := s.Handler()

	if s.config.EnableHTTP3 {
		cert, err := tls.LoadX509KeyPair(s.config.TLSCertFile, s.config.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificates: %w", err)
		}
		s.http3Server = &http3.Server{
			Addr:    fmt.Sprintf(":%d", s.config.HTTP3Port),
			Handler: handler,
			TLSConfig: http3.ConfigureTLSConfig(&tls.Config{
				MinVersion:   tls.VersionTLS13,
				Certificates: []tls.Certificate{cert},
			}),
		}
	}

	go s.healthMgr.StartPeriodicChecks(ctx, 30*time.Second)

	errCh := make(chan error, 2)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	go func() {
		s.logger.WithField("port", s.config.HTTPPort).Info("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if s.http3Server != nil {
		go func() {
			s.logger.WithField("port", s.config.HTTP3Port).Info("Starting HTTP/3 server")
			if err := s.http3Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http3 server: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		_ = s.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	// http3.Server.Close does not wait for in-flight requests.
	if s.http3Server != nil {
		if err := s.http3Server.Close(); err != nil {
			errs = append(errs, fmt.Errorf("http3 server: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) setupRoutes() {
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.config.EnableHTTP3 {
		s.router.Use(s.altSvcMiddleware)
	}

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods(http.MethodGet)
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	if s.config.DebugEndpoints {
		s.setupDebugEndpoints()
	}

	for _, registerFunc := range s.additionalRoutes {
		registerFunc(s.router)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

func (s *Server) setupDebugEndpoints() {
	s.logger.Info("Enabling debug endpoints")

	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	s.router.HandleFunc("/debug/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"http_port":  s.config.HTTPPort,
			"http3":      s.config.EnableHTTP3,
			"http3_port": s.config.HTTP3Port,
		})
	}).Methods(http.MethodGet)
}
