package provider

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/certify-api/internal/middleware"
	"github.com/jwalitptl/certify-api/internal/model"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
	"github.com/jwalitptl/certify-api/pkg/httputil"
)

type HealthChecker interface {
	CheckHealth(ctx context.Context, tenantID int64) model.ProviderHealth
}

type Handler struct {
	checker HealthChecker
}

func NewHandler(checker HealthChecker) *Handler {
	return &Handler{checker: checker}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/providers/health", h.ProviderHealth)
}

func (h *Handler) ProviderHealth(c *gin.Context) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Validation("tenant is required", nil))
		return
	}

	health := h.checker.CheckHealth(c.Request.Context(), tenantID)
	status := http.StatusOK
	if !health.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}
