// Package dashboard contains the gin handlers of the read-only analytics API.
// Handlers parse query parameters permissively, call the analytics service
// and wrap the outcome in the response envelope.
package dashboard

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/apiwatch/dashboard/internal/analytics"
	"github.com/apiwatch/dashboard/internal/daterange"
	"github.com/apiwatch/dashboard/internal/envelope"
	"github.com/apiwatch/dashboard/internal/exchangerate"
)

// maxLimit bounds every limit query parameter.
const maxLimit = 1000

// Service is the analytics surface used by the handlers.
type Service interface {
	Health(ctx context.Context) analytics.Health
	OverviewStats(ctx context.Context, r daterange.Range) (*analytics.OverviewStats, error)
	EndpointsAnalysis(ctx context.Context, r daterange.Range) (*analytics.EndpointsAnalysis, error)
	UserAgentAnalysis(ctx context.Context, r daterange.Range, limit int) ([]analytics.UserAgentData, error)
	UserAgentComparison(ctx context.Context, r daterange.Range, primaryAgent string, groupOthers bool, limit int) (*analytics.UserAgentComparison, error)
	UserAgentRoutes(ctx context.Context, r daterange.Range, userAgent string, limit int) ([]analytics.UserAgentRoute, error)
	ErrorBreakdown(ctx context.Context, r daterange.Range) ([]analytics.ErrorData, error)
	MethodStats(ctx context.Context, r daterange.Range) ([]analytics.MethodData, error)
	OcrCostSummary(ctx context.Context, r daterange.Range) (*analytics.OcrCostSummary, error)
	OcrCostByUserAgent(ctx context.Context, r daterange.Range, userAgent string, limit int) ([]analytics.OcrUserAgentCost, error)
	OcrCostByPath(ctx context.Context, r daterange.Range, userAgent string, limit int) ([]analytics.OcrPathCost, error)
	Dashboard(ctx context.Context, r daterange.Range) (*analytics.Dashboard, error)
}

// RateProvider serves the current exchange rate.
type RateProvider interface {
	Get(ctx context.Context) exchangerate.Rate
}

// Handler serves the dashboard API.
type Handler struct {
	svc   Service
	rates RateProvider
}

// NewHandler returns a handler backed by svc and rates.
func NewHandler(svc Service, rates RateProvider) *Handler {
	return &Handler{svc: svc, rates: rates}
}

// Register mounts every route on rg.
func (h *Handler) Register(rg gin.IRoutes) {
	rg.GET("/health", h.GetHealth)
	rg.GET("/overview", h.GetOverview)
	rg.GET("/endpoints", h.GetEndpoints)
	rg.GET("/user-agents", h.GetUserAgents)
	rg.GET("/user-agents/compare", h.CompareUserAgents)
	rg.GET("/user-agents/routes", h.GetUserAgentRoutes)
	rg.GET("/errors", h.GetErrors)
	rg.GET("/methods", h.GetMethods)
	rg.GET("/ocr/summary", h.GetOcrSummary)
	rg.GET("/ocr/user-agents", h.GetOcrUserAgents)
	rg.GET("/ocr/paths", h.GetOcrPaths)
	rg.GET("/exchange-rate", h.GetExchangeRate)
	rg.GET("/dashboard", h.GetDashboard)
}

func parseRange(c *gin.Context) daterange.Range {
	return daterange.ParseRange(c.Query("days"), c.Query("startDate"), c.Query("endDate"))
}

// parseLimit reads the limit parameter, falling back to def when it is
// missing, non-numeric or below 1.
func parseLimit(c *gin.Context, def int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 1 {
		return def
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func respond[T any](c *gin.Context, data T, err error) {
	status := http.StatusOK
	if err != nil {
		_ = c.Error(err)
		status = http.StatusInternalServerError
	}
	c.JSON(status, envelope.From(data, err))
}

// deref returns the zero value for nil so failed lookups can still be
// passed to respond.
func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, envelope.Fail(message))
}

// GetHealth reports service and database status.
// GET /api/health
func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, envelope.OK(h.svc.Health(c.Request.Context())))
}

// GetOverview returns the headline statistics.
// GET /api/overview?days=7
func (h *Handler) GetOverview(c *gin.Context) {
	stats, err := h.svc.OverviewStats(c.Request.Context(), parseRange(c))
	respond(c, deref(stats), err)
}

// GetEndpoints returns the top, slowest and error-prone endpoints.
// GET /api/endpoints?days=7
func (h *Handler) GetEndpoints(c *gin.Context) {
	out, err := h.svc.EndpointsAnalysis(c.Request.Context(), parseRange(c))
	respond(c, deref(out), err)
}

// GetUserAgents returns request counts per user agent, method and status.
// GET /api/user-agents?days=7&limit=50
func (h *Handler) GetUserAgents(c *gin.Context) {
	out, err := h.svc.UserAgentAnalysis(c.Request.Context(), parseRange(c), parseLimit(c, analytics.DefaultUserAgentLimit))
	respond(c, out, err)
}

// CompareUserAgents compares one agent against the others.
// GET /api/user-agents/compare?primaryAgent=...&groupOthers=true&limit=10
func (h *Handler) CompareUserAgents(c *gin.Context) {
	primary := c.Query("primaryAgent")
	if primary == "" {
		badRequest(c, "primaryAgent parameter is required")
		return
	}
	groupOthers := c.Query("groupOthers") != "false"
	out, err := h.svc.UserAgentComparison(c.Request.Context(), parseRange(c), primary, groupOthers, parseLimit(c, analytics.DefaultCompareLimit))
	respond(c, deref(out), err)
}

// GetUserAgentRoutes lists the routes called by one user agent.
// GET /api/user-agents/routes?userAgent=...&limit=25
func (h *Handler) GetUserAgentRoutes(c *gin.Context) {
	userAgent := c.Query("userAgent")
	if userAgent == "" {
		badRequest(c, "userAgent parameter is required")
		return
	}
	out, err := h.svc.UserAgentRoutes(c.Request.Context(), parseRange(c), userAgent, parseLimit(c, analytics.DefaultRoutesLimit))
	respond(c, out, err)
}

// GetErrors returns error counts per status code.
// GET /api/errors?days=7
func (h *Handler) GetErrors(c *gin.Context) {
	out, err := h.svc.ErrorBreakdown(c.Request.Context(), parseRange(c))
	respond(c, out, err)
}

// GetMethods returns request counts per HTTP method.
// GET /api/methods?days=7
func (h *Handler) GetMethods(c *gin.Context) {
	out, err := h.svc.MethodStats(c.Request.Context(), parseRange(c))
	respond(c, out, err)
}

// GetOcrSummary returns OCR token totals and cost.
// GET /api/ocr/summary?days=7
func (h *Handler) GetOcrSummary(c *gin.Context) {
	out, err := h.svc.OcrCostSummary(c.Request.Context(), parseRange(c))
	respond(c, deref(out), err)
}

// GetOcrUserAgents returns OCR cost per user agent.
// GET /api/ocr/user-agents?userAgent=...&limit=50
func (h *Handler) GetOcrUserAgents(c *gin.Context) {
	out, err := h.svc.OcrCostByUserAgent(c.Request.Context(), parseRange(c), c.Query("userAgent"), parseLimit(c, analytics.DefaultOcrLimit))
	respond(c, out, err)
}

// GetOcrPaths returns the estimated OCR cost per path, method and agent.
// GET /api/ocr/paths?userAgent=all&limit=50
func (h *Handler) GetOcrPaths(c *gin.Context) {
	out, err := h.svc.OcrCostByPath(c.Request.Context(), parseRange(c), c.Query("userAgent"), parseLimit(c, analytics.DefaultOcrLimit))
	respond(c, out, err)
}

// GetExchangeRate returns the current USD to THB rate. It always succeeds.
// GET /api/exchange-rate
func (h *Handler) GetExchangeRate(c *gin.Context) {
	c.JSON(http.StatusOK, envelope.OK(h.rates.Get(c.Request.Context())))
}

// GetDashboard returns every panel of the main page in one response.
// GET /api/dashboard?days=7
func (h *Handler) GetDashboard(c *gin.Context) {
	out, err := h.svc.Dashboard(c.Request.Context(), parseRange(c))
	respond(c, deref(out), err)
}
