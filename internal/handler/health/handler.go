package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/certify-api/internal/model"
)

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ProviderSnapshot lists the last known provider health.
type ProviderSnapshot interface {
	Snapshot() []model.ProviderHealth
}

type Handler struct {
	db        Pinger
	providers ProviderSnapshot
}

// NewHandler builds the probe handler. Either dependency may be nil.
func NewHandler(db Pinger, providers ProviderSnapshot) *Handler {
	return &Handler{db: db, providers: providers}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// ReadinessCheck fails only when the database is unreachable. Provider health
// is reported for operators but never takes the service out of rotation.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	body := gin.H{"status": "UP"}
	if h.providers != nil {
		body["providers"] = h.providers.Snapshot()
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			body["status"] = "DOWN"
			body["reason"] = "Database connection failed"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}
