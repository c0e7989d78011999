// Package http provides the HTTP API for ragd.
package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/cost"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/engine"
	"github.com/fyrsmithlabs/ragd/internal/generation"
	"github.com/fyrsmithlabs/ragd/internal/reindex"
)

// TokenSummer reads aggregate token usage, typically backed by the SQLite
// usage ledger.
type TokenSummer interface {
	TotalTokens(ctx context.Context, since time.Time) (int64, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// CronSecret authorizes scheduled reindex triggers. Empty disables
	// the check.
	CronSecret string
}

// Server provides HTTP endpoints for ragd.
type Server struct {
	echo      *echo.Echo
	engine    *engine.Engine
	reindexer reindex.Service
	estimator *cost.Estimator
	tokens    TokenSummer
	logger    *zap.Logger
	config    *Config
}

// NewServer creates a new HTTP server.
func NewServer(
	eng *engine.Engine,
	reindexer reindex.Service,
	estimator *cost.Estimator,
	tokens TokenSummer,
	logger *zap.Logger,
	cfg *Config,
) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if reindexer == nil {
		return nil, fmt.Errorf("reindex service cannot be nil")
	}
	if estimator == nil {
		return nil, fmt.Errorf("cost estimator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9190,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:      e,
		engine:    eng,
		reindexer: reindexer,
		estimator: estimator,
		tokens:    tokens,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/query", s.handleQuery)
	v1.POST("/documents", s.handleAddDocument)
	v1.DELETE("/documents/:id", s.handleRemoveDocument)
	v1.POST("/reindex", s.handleReindexTrigger)
	v1.GET("/reindex/status", s.handleReindexStatus)
	v1.GET("/reindex/jobs", s.handleReindexJobs)
	v1.GET("/reindex/cost-estimate", s.handleCostEstimate)
	v1.GET("/usage", s.handleUsage)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id"`
}

// ErrorResponse is the structured error body for failed operations.
type ErrorResponse struct {
	Error     string `json:"error"`
	Transient bool   `json:"transient,omitempty"`
}

// ReindexRequest is the request body for POST /api/v1/reindex.
type ReindexRequest struct {
	TriggerType string `json:"trigger_type"`
}

// UsageResponse is the response body for GET /api/v1/usage.
type UsageResponse struct {
	TotalTokens int64 `json:"total_tokens"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := s.engine.Query(c.Request().Context(), req.Question, req.UserID)
	switch {
	case errors.Is(err, engine.ErrEmptyQuestion):
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	case err != nil:
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:     err.Error(),
			Transient: generation.IsTransient(err),
		})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAddDocument(c echo.Context) error {
	var doc document.Document
	if err := c.Bind(&doc); err != nil {
		s.logger.Warn("invalid document request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	err := s.engine.AddDocument(c.Request().Context(), doc)
	switch {
	case errors.Is(err, document.ErrExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, document.ErrInvalidDocument):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, map[string]string{"id": doc.ID})
}

func (s *Server) handleRemoveDocument(c echo.Context) error {
	id := c.Param("id")

	err := s.engine.RemoveDocument(c.Request().Context(), id)
	switch {
	case errors.Is(err, document.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReindexTrigger(c echo.Context) error {
	var req ReindexRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	trigger := reindex.TriggerManual
	if req.TriggerType == string(reindex.TriggerScheduled) {
		if !s.authorizedCron(c) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid cron secret")
		}
		trigger = reindex.TriggerScheduled
	}

	job, err := s.reindexer.Trigger(c.Request().Context(), trigger)
	switch {
	case errors.Is(err, reindex.ErrReindexInFlight):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, job)
}

// authorizedCron checks the Bearer token against the configured cron
// secret using a constant-time comparison.
func (s *Server) authorizedCron(c echo.Context) bool {
	if s.config.CronSecret == "" {
		return true
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.config.CronSecret)) == 1
}

func (s *Server) handleReindexStatus(c echo.Context) error {
	report, err := s.reindexer.GetStatus(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleReindexJobs(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = parsed
	}

	jobs, err := s.reindexer.GetRecentJobs(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if jobs == nil {
		jobs = []reindex.Job{}
	}
	return c.JSON(http.StatusOK, jobs)
}

func (s *Server) handleCostEstimate(c echo.Context) error {
	est, err := s.estimator.Estimate(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, est)
}

func (s *Server) handleUsage(c echo.Context) error {
	if s.tokens == nil {
		return echo.NewHTTPError(http.StatusNotFound, "usage ledger not configured")
	}
	total, err := s.tokens.TotalTokens(c.Request().Context(), time.Time{})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, UsageResponse{TotalTokens: total})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
