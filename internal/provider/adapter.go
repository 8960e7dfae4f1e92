package provider

import (
	"context"
	"fmt"

	"github.com/jwalitptl/certify-api/internal/model"
)

// SettingsReader returns a tenant's provider switches.
type SettingsReader interface {
	GetProviderSettings(ctx context.Context, tenantID int64) (model.ProviderSettings, error)
}

// TenantAdapter applies a Backend to tenants that enabled it. With a monitor
// set, senders are only handed out while the backend's cached health is good.
type TenantAdapter struct {
	backend  Backend
	settings SettingsReader
	monitor  *HealthMonitor
}

func NewTenantAdapter(backend Backend, settings SettingsReader, monitor *HealthMonitor) *TenantAdapter {
	return &TenantAdapter{backend: backend, settings: settings, monitor: monitor}
}

func (a *TenantAdapter) ID() string {
	return a.backend.ID()
}

func (a *TenantAdapter) TryCreateSender(ctx context.Context, tenantID int64) (Sender, error) {
	settings, err := a.settings.GetProviderSettings(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider settings: %w", err)
	}
	if !settings.Enabled(a.ID()) {
		return nil, nil
	}

	if a.monitor != nil {
		if health := a.monitor.Probe(ctx, a.ID(), a.backend.Check); !health.Healthy() {
			return nil, fmt.Errorf("%w: %s", ErrUnhealthy, health.LastError)
		}
	}

	sender, err := a.backend.NewSender(settings[a.ID()])
	if err != nil {
		return nil, fmt.Errorf("failed to create %s sender: %w", a.ID(), err)
	}
	return sender, nil
}

func (a *TenantAdapter) CheckHealth(ctx context.Context) model.ProviderHealth {
	if a.monitor != nil {
		return a.monitor.Probe(ctx, a.ID(), a.backend.Check)
	}
	health := model.ProviderHealth{ProviderID: a.ID(), Status: model.HealthStatusHealthy}
	if err := a.backend.Check(ctx); err != nil {
		health.Status = model.HealthStatusUnhealthy
		health.LastError = err.Error()
	}
	return health
}
