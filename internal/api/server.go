// Package api exposes the categorization engine over HTTP using gin.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const shutdownTimeout = 10 * time.Second

// Server serves the engine's operations under /api/v1.
type Server struct {
	engine *engine.Engine
	router *gin.Engine
}

// NewServer builds the router. rate uses the limiter's formatted syntax,
// e.g. "100-M" for one hundred requests per minute per client IP.
func NewServer(eng *engine.Engine, rate string) (*Server, error) {
	limit, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("%w: serve rate %q: %w", common.ErrInvalidConfig, rate, err)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	s := &Server{engine: eng, router: router}

	router.GET("/healthz", s.health)

	v1 := router.Group("/api/v1", RateLimit(limiter.New(memory.NewStore(), limit)))
	registerTransactionRoutes(v1, s)
	registerModelRoutes(v1, s)

	v1.GET("/rules", s.listRules)
	v1.GET("/rules/stats", s.ruleStats)
	v1.GET("/stats", s.stats)
	v1.GET("/categories", s.listCategories)

	return s, nil
}

func registerTransactionRoutes(rg *gin.RouterGroup, s *Server) {
	txns := rg.Group("/transactions")
	txns.POST("/categorize-batch", s.categorizeBatch)
	txns.POST("/apply-bulk", s.applyBulk)
	txns.POST("/:id/categorize", s.categorize)
	txns.POST("/:id/apply", s.apply)
	txns.POST("/:id/reset", s.reset)
	txns.GET("/:id/similar", s.similar)
}

func registerModelRoutes(rg *gin.RouterGroup, s *Server) {
	m := rg.Group("/ml")
	m.POST("/train", s.train)
	m.GET("/predict/:id", s.predict)
	m.POST("/auto-categorize", s.autoCategorize)
	m.GET("/info", s.modelInfo)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves plain HTTP on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	return s.serve(ctx, s.httpServer(addr), (*http.Server).ListenAndServe)
}

// RunTLS is Run over HTTPS with the given certificate.
func (s *Server) RunTLS(ctx context.Context, addr string, cert tls.Certificate) error {
	srv := s.httpServer(addr)
	srv.TLSConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	return s.serve(ctx, srv, func(srv *http.Server) error {
		return srv.ListenAndServeTLS("", "")
	})
}

func (s *Server) serve(ctx context.Context, srv *http.Server, listen func(*http.Server) error) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr, "tls", srv.TLSConfig != nil)
		if err := listen(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	_, hasModel := s.engine.ModelInfo()
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"model_loaded":    hasModel,
		"text_classifier": s.engine.TextAvailable(),
	})
}
