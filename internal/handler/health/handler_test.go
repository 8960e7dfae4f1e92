package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/certify-api/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

type snapshot []model.ProviderHealth

func (s snapshot) Snapshot() []model.ProviderHealth { return s }

func get(h *Handler, path string) *httptest.ResponseRecorder {
	r := gin.New()
	h.RegisterRoutes(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveness(t *testing.T) {
	w := get(NewHandler(nil, nil), "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessIgnoresProviderHealth(t *testing.T) {
	providers := snapshot{{ProviderID: "smtp", Status: model.HealthStatusUnhealthy}}
	w := get(NewHandler(pinger{}, providers), "/health/ready")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"provider_id":"smtp"`)
}

func TestReadinessFailsWithoutDatabase(t *testing.T) {
	w := get(NewHandler(pinger{err: errors.New("connection refused")}, nil), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "DOWN")
}
