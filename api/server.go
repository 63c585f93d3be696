package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"verishield-pipeline/domain"
	"verishield-pipeline/logging"
)

// Consumer-side interfaces
type ScanTrigger interface {
	Trigger(ctx context.Context, limit int) domain.InvocationResponse
}

type ResponseGenerator interface {
	Generate(ctx context.Context, threatID string, format domain.ResponseFormat, reach int) (domain.GeneratedResponses, error)
}

// Server exposes the scan trigger and the response generator over HTTP.
// Routes are registered only for the services provided.
type Server struct {
	router    *gin.Engine
	scans     ScanTrigger
	responses ResponseGenerator
	logger    *slog.Logger
}

type Option func(*Server)

func WithScanTrigger(t ScanTrigger) Option {
	return func(s *Server) { s.scans = t }
}

func WithResponseGenerator(g ResponseGenerator) Option {
	return func(s *Server) { s.responses = g }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func NewServer(opts ...Option) *Server {
	s := &Server{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.scans != nil {
		router.POST("/scans", s.handleScan)
	}
	if s.responses != nil {
		router.POST("/threats/:id/responses", s.handleResponses)
	}
	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type scanRequest struct {
	Limit int `json:"limit"`
}

func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, validationResponse(err.Error()))
			return
		}
	}

	ctx := logging.WithLogger(c.Request.Context(), s.logger)
	resp := s.scans.Trigger(ctx, req.Limit)
	c.JSON(resp.StatusCode, resp)
}

type responsesRequest struct {
	Format string `json:"format" binding:"required"`
	Reach  int    `json:"reach"`
}

func (s *Server) handleResponses(c *gin.Context) {
	var req responsesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, validationResponse(err.Error()))
		return
	}
	format, ok := domain.ParseResponseFormat(req.Format)
	if !ok {
		c.JSON(http.StatusBadRequest, validationResponse("format must be one of disclaimer, email, press-statement, social-media"))
		return
	}

	ctx := logging.WithLogger(c.Request.Context(), s.logger)
	out, err := s.responses.Generate(ctx, c.Param("id"), format, req.Reach)
	switch {
	case errors.Is(err, domain.ErrThreatNotFound):
		c.JSON(http.StatusNotFound, domain.InvocationResponse{
			StatusCode: http.StatusNotFound,
			Body:       domain.ErrorBody{Error: "not_found", Message: err.Error()},
		})
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, validationResponse(err.Error()))
	case err != nil:
		s.logger.Error("failed to generate responses", "threat_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, domain.InvocationResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       domain.ErrorBody{Error: "internal_error", Message: err.Error()},
		})
	default:
		c.JSON(http.StatusOK, out)
	}
}

func validationResponse(message string) domain.InvocationResponse {
	return domain.InvocationResponse{
		StatusCode: http.StatusBadRequest,
		Body:       domain.ErrorBody{Error: "validation_error", Message: message},
	}
}
