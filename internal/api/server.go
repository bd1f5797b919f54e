// Package api exposes the distance-rule service over HTTP.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"neurodyn/app"
	"neurodyn/domain/core"
	"neurodyn/domain/run"
	"neurodyn/internal"
	"neurodyn/internal/errors"
	"neurodyn/internal/report"
	"neurodyn/ports"

	"github.com/gin-gonic/gin"
)

// Server wires the HTTP routes to the service
type Server struct {
	router  *gin.Engine
	service *app.DistanceRuleService
	hub     *SSEHub
	logger  *internal.Logger

	// defaults seed request params; omitted JSON fields keep them
	defaults run.Params
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithDefaultParams sets the parameters that request bodies start from
func WithDefaultParams(p run.Params) ServerOption {
	return func(s *Server) { s.defaults = p }
}

// NewServer creates the router and registers all routes. hub may be nil, in
// which case the events endpoint is not served.
func NewServer(service *app.DistanceRuleService, hub *SSEHub, logger *internal.Logger, opts ...ServerOption) *Server {
	s := &Server{
		router:   gin.New(),
		service:  service,
		hub:      hub,
		logger:   logger,
		defaults: run.DefaultParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router.Use(gin.CustomRecovery(s.recoverPanic), s.requestLogger())
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.NoRoute(func(c *gin.Context) {
		s.respondError(c, errors.NotFound("route "+c.Request.URL.Path))
	})

	api := s.router.Group("/api/v1")
	{
		api.POST("/runs", s.handleCreateRun)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
		api.GET("/runs/:id/report", s.handleRunReport)
		api.POST("/cohorts", s.handleRunCohort)
		if s.hub != nil {
			api.GET("/events", s.hub.HandleSSE)
		}
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s %d %s", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	s.respondError(c, errors.InternalError(fmt.Sprintf("panic: %v", recovered)))
	c.Abort()
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}

func (s *Server) handleCreateRun(c *gin.Context) {
	body := RunBody{Params: s.defaults}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.respondError(c, errors.WithCode(errors.CodeValidationError, err))
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.respondError(c, err)
		return
	}

	out, err := s.service.Run(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	status := http.StatusCreated
	if out.Cached {
		status = http.StatusOK
	}
	c.JSON(status, newRunResponse(out, c.Query("include") == "matrices"))
}

func (s *Server) handleListRuns(c *gin.Context) {
	filters := ports.RunFilters{
		SubjectID: core.SubjectID(c.Query("subject_id")),
		Group:     core.GroupLabel(c.Query("group")),
	}
	var err error
	if filters.Limit, err = intQuery(c, "limit"); err != nil {
		s.respondError(c, err)
		return
	}
	if filters.Offset, err = intQuery(c, "offset"); err != nil {
		s.respondError(c, err)
		return
	}

	runs, err := s.service.List(c.Request.Context(), filters)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	result, err := s.service.Get(c.Request.Context(), core.RunID(c.Param("id")))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleRunReport renders a stored run as Markdown, or as HTML with
// ?format=html
func (s *Server) handleRunReport(c *gin.Context) {
	result, err := s.service.Get(c.Request.Context(), core.RunID(c.Param("id")))
	if err != nil {
		s.respondError(c, err)
		return
	}
	md := report.RunMarkdown(result)
	switch format := c.DefaultQuery("format", "markdown"); format {
	case "markdown":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", report.ToHTML(md))
	default:
		s.respondError(c, errors.InvalidInput(fmt.Sprintf("report format %q is not supported", format)))
	}
}

func (s *Server) handleRunCohort(c *gin.Context) {
	body := CohortBody{Params: s.defaults}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.respondError(c, errors.WithCode(errors.CodeValidationError, err))
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.respondError(c, err)
		return
	}

	out, err := s.service.RunCohort(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCohortResponse(out))
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.ValidationError(key + " must be a non-negative integer")
	}
	return v, nil
}
