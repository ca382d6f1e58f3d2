package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/hostpanel/internal/config"
	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/health"
	"github.com/zsiec/hostpanel/internal/logger"
)

// healthInterval is how often the background health loop runs.
const healthInterval = 30 * time.Second

// Server is the ops HTTP server: health probes, version, metrics and
// optional pprof.
type Server struct {
	config       *config.ServerConfig
	metrics      *config.MetricsConfig
	router       *mux.Router
	httpServer   *http.Server
	logger       *logrus.Logger
	healthMgr    *health.Manager
	errorHandler *apperrors.ErrorHandler
	stats        func() map[string]interface{}

	routesOnce       sync.Once
	additionalRoutes []func(*mux.Router)
}

// New creates a server that reports on checkers.
func New(cfg *config.ServerConfig, metricsCfg *config.MetricsConfig, log *logrus.Logger, checkers ...health.Checker) *Server {
	healthMgr := health.NewManager(logger.Component(log, "health"), health.DefaultCheckTimeout)
	for _, c := range checkers {
		healthMgr.Register(c)
	}
	return &Server{
		config:       cfg,
		metrics:      metricsCfg,
		router:       mux.NewRouter(),
		logger:       log,
		healthMgr:    healthMgr,
		errorHandler: apperrors.NewErrorHandler(log),
	}
}

// SetStats adds runtime figures to the /health body.
func (s *Server) SetStats(fn func() map[string]interface{}) {
	s.stats = fn
}

// RegisterRoutes adds routes; call it before Start or Handler.
func (s *Server) RegisterRoutes(fn func(*mux.Router)) {
	s.additionalRoutes = append(s.additionalRoutes, fn)
}

// Handler returns the fully routed handler.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.setupRoutes)
	return s.router
}

// Health exposes the health manager.
func (s *Server) Health() *health.Manager {
	return s.healthMgr
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeServiceDown, "Ops server could not listen", http.StatusServiceUnavailable)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go s.healthMgr.Run(ctx, healthInterval)

	s.logger.WithField("addr", ln.Addr().String()).Info("Starting ops server")
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops accepting requests and waits for in-flight ones up to the
// configured shutdown timeout.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down ops server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown ops server: %w", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)

	healthHandler := health.NewHandler(s.healthMgr, s.stats)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods(http.MethodGet)
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	if s.metrics != nil && s.metrics.Enabled {
		s.router.Handle(s.metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
	}
	if s.config.DebugEndpoints {
		s.setupDebugEndpoints()
	}
	for _, fn := range s.additionalRoutes {
		fn(s.router)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

func (s *Server) setupDebugEndpoints() {
	s.logger.Info("Enabling debug endpoints")

	d := s.router.PathPrefix("/debug/pprof").Subrouter()
	d.HandleFunc("/cmdline", pprof.Cmdline)
	d.HandleFunc("/profile", pprof.Profile)
	d.HandleFunc("/symbol", pprof.Symbol)
	d.HandleFunc("/trace", pprof.Trace)
	d.PathPrefix("/").HandlerFunc(pprof.Index)

	s.router.HandleFunc("/debug/info", func(w http.ResponseWriter, r *http.Request) {
		info := map[string]interface{}{
			"port":            s.config.Port,
			"metrics_enabled": s.metrics != nil && s.metrics.Enabled,
			"debug_enabled":   true,
		}
		if err := s.writeJSON(w, http.StatusOK, info); err != nil {
			s.logger.WithError(err).Error("Failed to encode debug info")
		}
	}).Methods(http.MethodGet)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
