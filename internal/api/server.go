package api

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"reviewguard/adapters/report"
	"reviewguard/app"
	"reviewguard/domain/core"
	"reviewguard/domain/run"
	"reviewguard/internal"
	"reviewguard/internal/errors"

	"github.com/gin-gonic/gin"
)

// Server exposes the detection service over HTTP
type Server struct {
	router   *gin.Engine
	service  *app.DetectionService
	hub      *SSEHub
	defaults app.DetectionRequest
	logger   *internal.Logger
}

// NewServer builds the router. defaults fill every field a POST /api/runs
// body leaves out. hub may be nil, which disables /api/events.
func NewServer(service *app.DetectionService, defaults app.DetectionRequest, hub *SSEHub, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:   router,
		service:  service,
		hub:      hub,
		defaults: defaults,
		logger:   logger.Named("API"),
	}
	router.Use(s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)

	api := s.router.Group("/api")
	api.POST("/runs", s.createRun)
	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)
	api.GET("/runs/:id/report", s.getReport)
	if s.hub != nil {
		api.GET("/events", s.hub.HandleSSE)
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// createRunBody holds optional overrides of the configured defaults
type createRunBody struct {
	Algorithms    []string `json:"algorithms"`
	Threshold     *float64 `json:"threshold"`
	Iterations    *int     `json:"iterations"`
	TestFraction  *float64 `json:"test_fraction"`
	Seed          *int64   `json:"seed"`
	PositiveLabel *string  `json:"positive_label"`
	StreamID      string   `json:"stream_id"`
}

func (b createRunBody) apply(req app.DetectionRequest) app.DetectionRequest {
	if len(b.Algorithms) > 0 {
		req.Algorithms = b.Algorithms
	}
	if b.Threshold != nil {
		req.Threshold = *b.Threshold
	}
	if b.Iterations != nil {
		req.Iterations = *b.Iterations
	}
	if b.TestFraction != nil {
		req.TestFraction = *b.TestFraction
	}
	if b.Seed != nil {
		req.Seed = *b.Seed
	}
	if b.PositiveLabel != nil {
		req.PositiveLabel = *b.PositiveLabel
	}
	req.StreamID = b.StreamID
	return req
}

func (s *Server) createRun(c *gin.Context) {
	var body createRunBody
	if err := c.ShouldBindJSON(&body); err != nil && !stderrors.Is(err, io.EOF) {
		s.fail(c, errors.InvalidInput("invalid request body: "+err.Error()))
		return
	}

	result, err := s.service.Run(c.Request.Context(), body.apply(s.defaults))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) listRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.fail(c, err)
		return
	}

	runs, err := s.service.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	if runs == nil {
		runs = []*run.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "limit": limit, "offset": offset})
}

func (s *Server) getRun(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) getReport(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", report.RenderHTML(&run.Report{Record: rec}))
}

func (s *Server) lookup(c *gin.Context) (*run.Record, bool) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		s.fail(c, errors.InvalidInput(err.Error()))
		return nil, false
	}
	rec, err := s.service.GetRun(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return rec, true
}

// fail writes err with the status its code maps to
func (s *Server) fail(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := StatusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

// StatusFor maps an error code to an HTTP status
func StatusFor(code string) int {
	switch code {
	case errors.CodeInvalidInput, errors.CodeValidationError:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.InvalidInput(key + " must be a non-negative integer")
	}
	return v, nil
}
