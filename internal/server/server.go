// Package server exposes the engine over HTTP: grading, answer-write
// aggregation, and mastery reads.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brainspark/engine/internal/analytics"
	"github.com/brainspark/engine/internal/auth"
	"github.com/brainspark/engine/internal/grading"
	"github.com/brainspark/engine/internal/logger"
	"github.com/brainspark/engine/internal/mastery"
	"github.com/brainspark/engine/internal/ratelimit"
)

// Server wires the engine services behind the HTTP API.
type Server struct {
	orchestrator *grading.Orchestrator
	aggregator   *analytics.Aggregator
	mastery      *mastery.Service
	verifier     *auth.Verifier
	limiter      ratelimit.Limiter
	log          *logger.Logger
	version      string

	engine *gin.Engine
	http   *http.Server
}

// Options configures a Server.
type Options struct {
	Orchestrator *grading.Orchestrator
	Aggregator   *analytics.Aggregator
	Mastery      *mastery.Service
	Verifier     *auth.Verifier
	Limiter      ratelimit.Limiter
	Log          *logger.Logger
	Version      string
	Mode         string // "dev" or "prod"
}

// New builds the server and its route table.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Mode == "prod" || opts.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		orchestrator: opts.Orchestrator,
		aggregator:   opts.Aggregator,
		mastery:      opts.Mastery,
		verifier:     opts.Verifier,
		limiter:      opts.Limiter,
		log:          opts.Log,
		version:      opts.Version,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), requestLog(s.log))

	engine.GET("/health", s.handleHealth)

	v1 := engine.Group("/api/v1")
	v1.Use(requireAuth(s.verifier))
	{
		graded := v1.Group("/")
		graded.Use(rateLimit(s.limiter))
		graded.POST("/grade", s.handleGrade)

		v1.POST("/answers/write", s.handleWriteAnswer)
		v1.GET("/mastery", s.handleMasteryAll)
		v1.GET("/mastery/:topicId", s.handleMasteryTopic)
	}

	s.engine = engine
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return s.http.Shutdown(shutdownCtx)
	}
}
