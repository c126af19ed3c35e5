// Package api exposes the evaluation and report endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/diapredict-server/internal/config"
	"github.com/diapredict-server/internal/domain"
	"github.com/diapredict-server/internal/middleware"
	"github.com/diapredict-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	configManager *config.Manager
	logger        *logrus.Logger
	evaluations   *service.EvaluationService
	compiler      domain.ReportCompiler
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(
	configManager *config.Manager,
	logger *logrus.Logger,
	evaluations *service.EvaluationService,
	compiler domain.ReportCompiler,
) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	if cfg.Server.RateLimit > 0 {
		router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	}

	server := &Server{
		configManager: configManager,
		logger:        logger,
		evaluations:   evaluations,
		compiler:      compiler,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/evaluate", s.handleEvaluate)
		v1.POST("/report", s.handleReport)
		v1.GET("/evaluations", s.handleListEvaluations)
		v1.GET("/evaluations/:id", s.handleGetEvaluation)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   "1.0.0",
	})
}

type evaluateResponse struct {
	EvaluationID     string                 `json:"evaluation_id"`
	Label            string                 `json:"label"`
	DisplayText      string                 `json:"display_text"`
	Confidence       *float64               `json:"confidence,omitempty"`
	ConfidenceText   string                 `json:"confidence_text"`
	Interpretation   *domain.Interpretation `json:"interpretation"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
}

// handleEvaluate runs a full evaluation and returns the prediction with
// its clinical interpretation.
func (s *Server) handleEvaluate(c *gin.Context) {
	metrics, ok := s.bindMetrics(c)
	if !ok {
		return
	}

	result, err := s.evaluations.Evaluate(s.requestContext(c), metrics)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, evaluateResponse{
		EvaluationID:     result.EvaluationID,
		Label:            result.Prediction.Label.String(),
		DisplayText:      result.Prediction.Label.DisplayText(),
		Confidence:       result.Prediction.Confidence,
		ConfidenceText:   result.Prediction.ConfidenceDisplay(),
		Interpretation:   result.Interpretation,
		ProcessingTimeMs: result.ProcessingTime.Milliseconds(),
	})
}

// handleReport runs an evaluation and returns the compiled PDF document.
func (s *Server) handleReport(c *gin.Context) {
	metrics, ok := s.bindMetrics(c)
	if !ok {
		return
	}

	result, err := s.evaluations.Evaluate(s.requestContext(c), metrics)
	if err != nil {
		s.writeError(c, err)
		return
	}

	document, err := s.compiler.Compile(result.Metrics, result.Prediction, result.Interpretation)
	if err != nil {
		s.writeError(c, err)
		return
	}

	filename := fmt.Sprintf("diabetes_report_%s.pdf", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Evaluation-ID", result.EvaluationID)
	c.Data(http.StatusOK, "application/pdf", document)
}

// handleGetEvaluation retrieves a stored evaluation by ID.
func (s *Server) handleGetEvaluation(c *gin.Context) {
	record, err := s.evaluations.GetEvaluation(s.requestContext(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleListEvaluations returns recent evaluations, newest first.
func (s *Server) handleListEvaluations(c *gin.Context) {
	limit := 50
	offset := 0
	if v, err := parsePositiveInt(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := parsePositiveInt(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}

	records, total, err := s.evaluations.ListEvaluations(s.requestContext(c), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if records == nil {
		records = []*domain.EvaluationRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"evaluations": records,
		"count":       len(records),
		"total":       total,
	})
}

func (s *Server) bindMetrics(c *gin.Context) (*domain.PatientMetrics, bool) {
	metrics := &domain.PatientMetrics{}
	if err := c.ShouldBindJSON(metrics); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeValidation,
			"Invalid request body",
			err.Error(),
			c.GetString("correlation_id"),
		))
		return nil, false
	}
	return metrics, true
}

// requestContext carries the correlation ID into the service layer so it
// ends up on the persisted record.
func (s *Server) requestContext(c *gin.Context) context.Context {
	return context.WithValue(c.Request.Context(), service.RequestIDKey, c.GetString("correlation_id"))
}

// writeError maps domain errors onto the HTTP error taxonomy.
func (s *Server) writeError(c *gin.Context, err error) {
	correlationID := c.GetString("correlation_id")

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeValidation, validationErr.Error(), "", correlationID))
		return
	}

	var modelErr *domain.ModelError
	if errors.As(err, &modelErr) {
		c.JSON(http.StatusBadGateway, domain.NewAPIError(
			domain.ErrCodeModelUnavailable, "Prediction model unavailable", modelErr.Error(), correlationID))
		return
	}

	var renderErr *domain.RenderError
	if errors.As(err, &renderErr) {
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrCodeRenderFailure, "Report rendering failed", renderErr.Error(), correlationID))
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, domain.NewAPIError(
			domain.ErrCodeNotFound, "Evaluation not found", "", correlationID))
		return
	}

	s.logger.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"error":          err,
	}).Error("Unhandled request error")
	c.JSON(http.StatusInternalServerError, domain.NewAPIError(
		domain.ErrCodeInternal, "Internal server error", "", correlationID))
}

func parsePositiveInt(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, err
	}
	return v, nil
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Disposition, X-Evaluation-ID")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
