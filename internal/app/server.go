package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/feedback"
	"github.com/specialistvlad/dataflowgo/internal/hcl"
	"github.com/specialistvlad/dataflowgo/internal/history"
	"github.com/specialistvlad/dataflowgo/internal/network"
	"github.com/specialistvlad/dataflowgo/internal/session"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RunRequest is the body of POST /api/runs.
type RunRequest struct {
	Targets []string `json:"targets"`
	Dirty   []string `json:"dirty"`
	// Wait blocks the call until the run finished and returns its report.
	Wait bool `json:"wait"`
}

// RunAccepted is returned for runs that were queued without waiting.
type RunAccepted struct {
	ExecutionID uint64 `json:"execution_id"`
	RunID       string `json:"run_id"`
}

// ParameterRequest is the body of PUT /api/modules/:id/parameters/:name.
type ParameterRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

// ParameterResponse reports whether a parameter write changed anything.
type ParameterResponse struct {
	Changed bool `json:"changed"`
}

// Handler returns the control server's HTTP handler.
func (a *App) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), a.requestLogger())

	r.GET("/health", a.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/network", a.handleNetwork)
	api.GET("/modules", a.handleModules)
	api.PUT("/modules/:id/parameters/:name", a.handleSetParameter)
	api.GET("/runs", a.handleListRuns)
	api.GET("/runs/:id", a.handleGetRun)
	api.POST("/runs", a.handleRun)
	api.POST("/feedback", a.handleFeedback)
	return r
}

func (a *App) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(a.withLogger(c.Request.Context()))
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		a.logger.Log(c.Request.Context(), level, "Control request handled.",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (a *App) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK\n")
}

// handleNetwork returns the network snapshot, or the network file that
// rebuilds it with ?format=hcl.
func (a *App) handleNetwork(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("format") == "hcl" {
		c.Data(http.StatusOK, "text/plain; charset=utf-8", hcl.Encode(ctx, a.net))
		return
	}
	c.JSON(http.StatusOK, a.net.Snapshot(ctx))
}

func (a *App) handleModules(c *gin.Context) {
	c.JSON(http.StatusOK, Describe(a.registry))
}

func (a *App) handleSetParameter(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := a.Resolve(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_MODULE"})
		return
	}
	var req ParameterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	ty, err := ctyjson.ImpliedType(req.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_VALUE"})
		return
	}
	v, err := ctyjson.Unmarshal(req.Value, ty)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_VALUE"})
		return
	}

	name := c.Param("name")
	var changed bool
	m := a.session.Mutate(ctx, func(ctx context.Context, net *network.Network) error {
		var err error
		changed, err = hcl.SetParameter(ctx, net, id, name, v)
		return err
	})
	if err := m.Wait(ctx); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "SET_PARAMETER_FAILED"})
		return
	}
	c.JSON(http.StatusOK, ParameterResponse{Changed: changed})
}

func (a *App) handleListRuns(c *gin.Context) {
	limit := 20
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer", Code: "INVALID_LIMIT"})
			return
		}
		limit = n
	}
	reports, err := a.archive.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "ARCHIVE_FAILED"})
		return
	}
	if reports == nil {
		reports = []history.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

func (a *App) handleGetRun(c *gin.Context) {
	report, err := a.archive.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "RUN_NOT_FOUND"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "ARCHIVE_FAILED"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (a *App) handleRun(c *gin.Context) {
	ctx := c.Request.Context()
	var body RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
			return
		}
	}
	req, err := a.Request(ctx, body.Targets, body.Dirty)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_MODULE"})
		return
	}

	if body.Wait {
		report, err := a.Run(ctx, req)
		if err != nil && report.RunID == "" {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "RUN_FAILED"})
			return
		}
		c.JSON(http.StatusOK, report)
		return
	}

	run, err := a.session.Execute(context.WithoutCancel(ctx), req)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "SESSION_CLOSED"})
		return
	}
	c.JSON(http.StatusAccepted, RunAccepted{ExecutionID: run.Context().ID, RunID: run.Context().RunID})
}

func (a *App) handleFeedback(c *gin.Context) {
	ctx := c.Request.Context()
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	msg, payload, err := feedback.Decode(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_FEEDBACK"})
		return
	}
	id, err := a.Resolve(ctx, string(msg.Module))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_MODULE"})
		return
	}
	run, err := a.session.Feedback(context.WithoutCancel(ctx), id, payload)
	if errors.Is(err, session.ErrClosed) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "SESSION_CLOSED"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "FEEDBACK_FAILED"})
		return
	}
	ctxlog.FromContext(ctx).Debug("Feedback accepted.", "module", id)
	c.JSON(http.StatusAccepted, RunAccepted{ExecutionID: run.Context().ID, RunID: run.Context().RunID})
}

// serveControl runs the control server until ctx ends.
func (a *App) serveControl(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	srv := &http.Server{
		Addr:              a.config.ControlAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🩺 Control server starting.", "address", fmt.Sprintf("http://%s/health", a.config.ControlAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("control server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	logger.Info("🩺 Shutting down control server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control server shutdown failed: %w", err)
	}
	logger.Debug("Control server shut down gracefully.")
	return nil
}
