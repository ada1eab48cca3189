package dashboard

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/compliance-dashboard/internal/alerts"
	"github.com/mbd888/compliance-dashboard/internal/datasource"
	"github.com/mbd888/compliance-dashboard/internal/graph"
	"github.com/mbd888/compliance-dashboard/internal/logging"
	"github.com/mbd888/compliance-dashboard/internal/records"
	"github.com/mbd888/compliance-dashboard/internal/risk"
	"github.com/mbd888/compliance-dashboard/internal/validation"
)

// Handler provides dashboard API endpoints.
type Handler struct {
	builder   *Builder
	source    datasource.DataSource
	threshold float64
	onBuild   func(*Snapshot)
}

// NewHandler creates a new dashboard handler. onBuild, if non-nil, is called
// with every freshly built snapshot.
func NewHandler(builder *Builder, source datasource.DataSource, alertThreshold float64, onBuild func(*Snapshot)) *Handler {
	return &Handler{builder: builder, source: source, threshold: alertThreshold, onBuild: onBuild}
}

// RegisterRoutes sets up dashboard routes under the given group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.Dashboard)
	r.GET("/alerts", h.Alerts)
	r.GET("/graph", h.Graph)
	r.POST("/classify", h.Classify)
}

// Dashboard builds and returns a full snapshot.
func (h *Handler) Dashboard(c *gin.Context) {
	snap, err := h.builder.Build(c.Request.Context())
	if err != nil {
		sourceError(c, err)
		return
	}
	if h.onBuild != nil {
		h.onBuild(snap)
	}
	c.JSON(http.StatusOK, snap)
}

// Alerts returns alerts for transactions above ?threshold= (default from config).
func (h *Handler) Alerts(c *gin.Context) {
	threshold := h.threshold
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || v < records.MinScore || v > records.MaxScore {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "threshold must be a number between 0 and 100",
			})
			return
		}
		threshold = v
	}

	txs, err := h.source.FetchTransactions(c.Request.Context())
	if err != nil {
		sourceError(c, err)
		return
	}

	list := alerts.Structured(txs, threshold)
	messages := make([]string, len(list))
	for i, a := range list {
		messages[i] = a.Message
	}

	c.JSON(http.StatusOK, gin.H{
		"threshold": threshold,
		"alerts":    list,
		"messages":  messages,
		"count":     len(list),
	})
}

// Graph returns the wallet relationship graph with links split by whether
// both endpoints exist.
func (h *Handler) Graph(c *gin.Context) {
	ctx := c.Request.Context()

	wallets, err := h.source.FetchWallets(ctx)
	if err != nil {
		sourceError(c, err)
		return
	}
	edges, err := h.source.FetchEdges(ctx)
	if err != nil {
		sourceError(c, err)
		return
	}

	g := graph.Build(wallets, edges)
	c.JSON(http.StatusOK, gin.H{
		"nodes":      g.Nodes,
		"links":      g.Links,
		"renderable": g.Renderable(),
		"dangling":   g.Dangling(),
	})
}

type classifyRequest struct {
	Score *float64 `json:"score" binding:"required"`
}

// Classify evaluates a score against the default rules.
func (h *Handler) Classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "body must be {\"score\": <number>}",
		})
		return
	}

	a, err := risk.Classify(*req.Score, risk.DefaultRules())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}

func sourceError(c *gin.Context, err error) {
	if validation.IsValidation(err) {
		// Stored data failed record validation.
		logging.L(c.Request.Context()).Error("invalid record in data source", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "data source returned an invalid record"})
		return
	}
	if ctxErr := c.Request.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request_cancelled", "message": "request cancelled"})
		return
	}
	logging.L(c.Request.Context()).Error("data source unavailable", "error", err)
	c.JSON(http.StatusBadGateway, gin.H{"error": "service_error", "message": "data source unavailable"})
}
