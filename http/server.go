// Package http exposes the typed-data engine and the order validator over
// a JSON HTTP API.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	ordersig "github.com/exchangev2/ordersig"
	"github.com/exchangev2/ordersig/mechanisms/evm"
	"github.com/exchangev2/ordersig/mechanisms/evm/order/validator"
)

// Server serves the typed-data API
type Server struct {
	engine    *ordersig.Engine
	validator *validator.OrderScheme
	domain    *evm.TypedDataDomain
	logger    *zap.Logger
	metrics   *serverMetrics
	router    *gin.Engine
	srv       *http.Server
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOrderValidator enables POST /orders/validate
func WithOrderValidator(v *validator.OrderScheme) ServerOption {
	return func(s *Server) {
		s.validator = v
	}
}

// WithDefaultDomain sets the domain used when a request carries none
func WithDefaultDomain(domain evm.TypedDataDomain) ServerOption {
	return func(s *Server) {
		s.domain = &domain
	}
}

// NewServer creates a server over engine
//
// Routes:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /types
//	POST /digest
//	POST /verify
//	POST /typeddata/recover
//	POST /orders/validate (with WithOrderValidator)
func NewServer(engine *ordersig.Engine, opts ...ServerOption) *Server {
	s := &Server{
		engine:  engine,
		logger:  zap.NewNop(),
		metrics: newServerMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.logger), instrument(s.metrics))

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	r.GET("/types", s.listTypes)
	r.POST("/digest", s.digest)
	r.POST("/verify", s.verify)
	r.POST("/typeddata/recover", s.recoverTypedData)
	if s.validator != nil {
		r.POST("/orders/validate", s.validateOrder)
	}

	s.router = r
	return s
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
