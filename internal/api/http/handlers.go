package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/api/ws"
	"github.com/GriffinCanCode/ottr/internal/coverage"
	"github.com/GriffinCanCode/ottr/internal/domain/session"
	"github.com/GriffinCanCode/ottr/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ottr/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ottr/internal/logging"
	"github.com/GriffinCanCode/ottr/internal/shared/utils"
)

// APIPrefix is where the API is mounted, out of the way of the application
// under test.
const APIPrefix = "/_ottr/api"

// maxReportBytes bounds a posted coverage upload.
const maxReportBytes = 256 << 20

// Converter converts raw Chrome coverage.
type Converter interface {
	ConvertWith(ctx context.Context, reports []coverage.Report, stages coverage.Stages) (coverage.CoverageMap, error)
	Stages() coverage.Stages
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	store     *session.Store
	converter Converter
	acc       *coverage.Accumulator
	events    *ws.Handler
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer
	logger    *logging.Logger
}

// NewHandlers creates a new handler set. metrics and tracer may be nil.
func NewHandlers(
	store *session.Store,
	converter Converter,
	acc *coverage.Accumulator,
	events *ws.Handler,
	metrics *monitoring.Metrics,
	tracer *tracing.Tracer,
	logger *logging.Logger,
) *Handlers {
	return &Handlers{
		store:     store,
		converter: converter,
		acc:       acc,
		events:    events,
		metrics:   metrics,
		tracer:    tracer,
		logger:    logging.OrNop(logger).Named("api"),
	}
}

// Register mounts every handler on router.
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	api := router.Group(APIPrefix)
	api.GET("/sessions", h.ListSessions)
	api.POST("/session", h.CreateSession)
	api.GET("/session/:id", h.GetSession)
	api.POST("/log", h.StreamLogs)
	api.POST("/coverage", h.PostCoverage)
	api.GET("/coverage", h.GetCoverage)
	api.DELETE("/coverage", h.ResetCoverage)
	api.GET("/coverage/summary", h.GetSummary)
}

// Root handles the liveness check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "ottr",
	})
}

// Health handles the detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status":          "healthy",
		"sessions_active": h.store.Active(),
	}
	if h.metrics != nil {
		resp["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// ListSessions lists every session in creation order.
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.store.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// CreateSession starts a session for a test page to report into.
func (h *Handlers) CreateSession(c *gin.Context) {
	id := h.store.Create()
	s, err := h.store.Get(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, s)
}

// GetSession returns one session with its status recomputed.
func (h *Handlers) GetSession(c *gin.Context) {
	id := c.Param("id")
	if err := utils.ValidateID(id, "session id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.store.Get(id)
	if errors.Is(err, session.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s)
}

// PostCoverage converts raw Chrome coverage, optionally gzipped, merges the
// result into the accumulated coverage and returns it. The inferNonCovered
// and interpolateLines query parameters override the configured stages.
func (h *Handlers) PostCoverage(c *gin.Context) {
	stages, err := parseStages(c, h.converter.Stages())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxReportBytes)
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	reports, err := coverage.DecodeReports(body)
	if errors.Is(err, coverage.ErrReportTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if h.tracer != nil {
		span, spanCtx := h.tracer.StartSpan(ctx, "coverage.convert")
		span.SetTag("bundles", strconv.Itoa(len(reports)))
		defer h.tracer.Submit(span)
		defer span.Finish()
		ctx = spanCtx
		c.Request = c.Request.WithContext(ctx)
	}

	cov, err := h.converter.ConvertWith(ctx, reports, stages)
	if err != nil {
		h.logger.Error("coverage conversion failed",
			append(tracing.Fields(ctx), zap.Int("bundles", len(reports)), zap.Error(err))...)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	h.acc.Add(cov)

	h.logger.Info("coverage converted",
		append(tracing.Fields(ctx), zap.Int("bundles", len(reports)), zap.Int("files", len(cov)))...)
	writeCoverage(c, cov)
}

// GetCoverage returns everything accumulated so far.
func (h *Handlers) GetCoverage(c *gin.Context) {
	writeCoverage(c, h.acc.Snapshot())
}

// ResetCoverage drops the accumulated coverage.
func (h *Handlers) ResetCoverage(c *gin.Context) {
	h.acc.Reset()
	c.Status(http.StatusNoContent)
}

var summaryContentTypes = map[string]string{
	"json": "application/json; charset=utf-8",
	"yaml": "application/yaml; charset=utf-8",
	"toml": "application/toml; charset=utf-8",
}

// GetSummary returns per-file statement counts of the accumulated coverage as
// json (default), yaml or toml.
func (h *Handlers) GetSummary(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	contentType, ok := summaryContentTypes[format]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "unknown summary format",
			"formats": coverage.SummaryFormats,
		})
		return
	}

	var buf bytes.Buffer
	if err := coverage.EncodeSummary(&buf, h.acc.Summary(), format); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func writeCoverage(c *gin.Context, cov coverage.CoverageMap) {
	var buf bytes.Buffer
	if err := coverage.WriteCoverage(&buf, cov); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", buf.Bytes())
}

func parseStages(c *gin.Context, stages coverage.Stages) (coverage.Stages, error) {
	for name, flag := range map[string]*bool{
		"inferNonCovered":  &stages.InferNonCovered,
		"interpolateLines": &stages.InterpolateLines,
	} {
		raw, ok := c.GetQuery(name)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return stages, errors.New("invalid " + name + " value " + strconv.Quote(raw))
		}
		*flag = v
	}
	return stages, nil
}
