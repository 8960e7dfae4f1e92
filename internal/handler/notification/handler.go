package notification

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/certify-api/internal/middleware"
	"github.com/jwalitptl/certify-api/internal/model"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
	"github.com/jwalitptl/certify-api/pkg/httputil"
)

type Dispatcher interface {
	DeliverNotification(ctx context.Context, n model.Notification) model.DeliveryIntent
}

type Handler struct {
	dispatcher Dispatcher
}

func NewHandler(dispatcher Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/notifications", h.SendNotification)
}

// SendNotification delivers an ad hoc message for the caller's tenant and
// returns the recorded intent. A failed intent is answered with the status
// its failure kind maps to.
func (h *Handler) SendNotification(c *gin.Context) {
	var req model.Notification
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid notification request", err))
		return
	}

	tenantID, ok := middleware.TenantID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Validation("tenant is required", nil))
		return
	}
	req.TenantID = tenantID

	intent := h.dispatcher.DeliverNotification(c.Request.Context(), req)
	status := http.StatusOK
	if intent.Status == model.DeliveryStatusFailed {
		status = (&apperrors.AppError{Kind: apperrors.ParseKind(intent.FailureKind)}).StatusCode()
	}
	c.JSON(status, intent)
}
