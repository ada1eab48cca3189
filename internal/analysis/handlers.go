package analysis

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/compliance-dashboard/internal/audit"
	"github.com/mbd888/compliance-dashboard/internal/logging"
	"github.com/mbd888/compliance-dashboard/internal/validation"
)

// Handler exposes the runner over HTTP.
type Handler struct {
	runner *Runner
}

// NewHandler creates a new analysis handler.
func NewHandler(runner *Runner) *Handler {
	return &Handler{runner: runner}
}

// RegisterRoutes sets up analysis and contract routes under the given group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/analysis", h.Status)
	r.POST("/analysis/local", h.RunLocal)
	r.POST("/analysis/audit", h.RunAudit)
	r.POST("/contracts/template", h.GenerateTemplate)
}

// Status returns the runner state and last assessment.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Status())
}

// RunLocal runs a local analysis cycle.
func (h *Handler) RunLocal(c *gin.Context) {
	res, err := h.runner.RunLocal(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type auditRequest struct {
	Form         audit.FormFields `json:"form"`
	ContractCode string           `json:"contractCode"`
}

// RunAudit submits a contract for audit.
func (h *Handler) RunAudit(c *gin.Context) {
	var req auditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "invalid request body"})
		return
	}
	res, err := h.runner.RunAudit(c.Request.Context(), req.Form, req.ContractCode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type templateRequest struct {
	Form audit.FormFields `json:"form"`
}

// GenerateTemplate returns contract code generated for the form.
func (h *Handler) GenerateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "invalid request body"})
		return
	}
	code, err := h.runner.GenerateTemplate(c.Request.Context(), req.Form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contractCode": code})
}

func writeError(c *gin.Context, err error) {
	var verrs validation.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error(), "fields": verrs})
	case validation.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
	case errors.Is(err, ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "analysis_in_progress", "message": err.Error()})
	case audit.IsContractViolation(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "contract_violation", "message": err.Error()})
	case audit.IsServiceError(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "service_error", "message": err.Error()})
	default:
		logging.L(c.Request.Context()).Error("analysis failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "internal error"})
	}
}
