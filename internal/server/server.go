// Package server exposes pool listings and transaction simulation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"poolScope/internal/aggregate"
	"poolScope/internal/chain"
	"poolScope/internal/txsim"
)

const maxRequestBody = 1 << 20

// PoolLister produces the current pool listing.
type PoolLister interface {
	Summaries(ctx context.Context) (aggregate.Report, error)
}

// Simulator prepares unsigned transactions.
type Simulator interface {
	Simulate(ctx context.Context, req txsim.Request) (txsim.Response, error)
}

// Options configures the HTTP server.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server routes HTTP requests to the pool lister and simulator.
type Server struct {
	router    *mux.Router
	opts      Options
	pools     PoolLister
	simulator Simulator
	logger    *zap.Logger
}

func New(opts Options, pools PoolLister, simulator Simulator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		router:    mux.NewRouter(),
		opts:      opts,
		pools:     pools,
		simulator: simulator,
		logger:    logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/pools", s.handlePools).Methods(http.MethodGet)
	s.router.HandleFunc("/pools/report", s.handleReport).Methods(http.MethodGet)
	s.router.HandleFunc("/simulate", s.handleSimulate).Methods(http.MethodPost)
	if s.opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.router.Use(s.loggingMiddleware)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	s.writeJSONResponse(w, http.StatusOK, report.Pools)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	s.writeJSONResponse(w, http.StatusOK, report)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) (aggregate.Report, bool) {
	if s.pools == nil {
		s.writeErrorResponse(w, http.StatusNotImplemented, "pool listing is not configured")
		return aggregate.Report{}, false
	}
	report, err := s.pools.Summaries(r.Context())
	if err != nil {
		s.logger.Error("list pools", zap.Error(err))
		s.writeErrorResponse(w, statusFor(err), err.Error())
		return aggregate.Report{}, false
	}
	return report, true
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if s.simulator == nil {
		s.writeErrorResponse(w, http.StatusNotImplemented, "simulation is not configured")
		return
	}

	var req txsim.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		if !errors.Is(err, txsim.ErrInvalidRequest) {
			err = fmt.Errorf("%w: %v", txsim.ErrInvalidRequest, err)
		}
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.simulator.Simulate(r.Context(), req)
	if err != nil {
		s.logger.Warn("simulate", zap.String("action", string(req.Kind)), zap.Error(err))
		s.writeErrorResponse(w, statusFor(err), err.Error())
		return
	}
	s.writeJSONResponse(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, txsim.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, chain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, txsim.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, txsim.ErrSimulationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, txsim.ErrEnvelopeShape):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode json response", zap.Error(err))
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":   true,
		"message": message,
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapper.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
