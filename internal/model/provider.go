package model

import "time"

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ProviderHealth is the last known readiness of a delivery provider.
type ProviderHealth struct {
	ProviderID string       `json:"provider_id"`
	Status     HealthStatus `json:"status"`
	CheckedAt  time.Time    `json:"checked_at"`
	LastError  string       `json:"last_error,omitempty"`
}

func (h ProviderHealth) Healthy() bool {
	return h.Status == HealthStatusHealthy
}
