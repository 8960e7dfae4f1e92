package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/certify-api/internal/model"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
	"github.com/jwalitptl/certify-api/pkg/logger"
	"github.com/jwalitptl/certify-api/pkg/metrics"
)

// Selector walks a fixed ordered list of adapters and returns the first
// sender that applies to a tenant. Adapters after the winner are never called.
type Selector struct {
	adapters []Adapter
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewSelector(adapters []Adapter, m *metrics.Metrics, log *logger.Logger) *Selector {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Selector{
		adapters: adapters,
		metrics:  m,
		log:      log.With("provider_selector"),
		now:      time.Now,
	}
}

// Providers returns the adapter ids in selection order.
func (s *Selector) Providers() []string {
	ids := make([]string, len(s.adapters))
	for i, a := range s.adapters {
		ids[i] = a.ID()
	}
	return ids
}

func (s *Selector) SelectSender(ctx context.Context, tenantID int64) (Sender, error) {
	for _, adapter := range s.adapters {
		sender, err := s.try(ctx, adapter, tenantID)
		if err != nil {
			return nil, err
		}
		if sender != nil {
			return sender, nil
		}
	}
	return nil, apperrors.NoProviderEnabled(tenantID)
}

// try returns (nil, nil) for adapters that are disabled or skipped as unhealthy.
func (s *Selector) try(ctx context.Context, adapter Adapter, tenantID int64) (Sender, error) {
	sender, err := adapter.TryCreateSender(ctx, tenantID)
	if errors.Is(err, ErrUnhealthy) {
		s.metrics.ProviderSkipped.WithLabelValues(adapter.ID(), "unhealthy").Inc()
		s.log.Warn("skipping unhealthy provider",
			"provider", adapter.ID(),
			"tenant_id", tenantID,
			"error", err.Error(),
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", adapter.ID(), err)
	}
	return sender, nil
}

// CheckHealth reports the health of the provider that would be selected for
// the tenant. A tenant with no usable provider is unhealthy.
func (s *Selector) CheckHealth(ctx context.Context, tenantID int64) model.ProviderHealth {
	for _, adapter := range s.adapters {
		sender, err := s.try(ctx, adapter, tenantID)
		if err != nil {
			return model.ProviderHealth{
				ProviderID: adapter.ID(),
				Status:     model.HealthStatusUnhealthy,
				CheckedAt:  s.now(),
				LastError:  err.Error(),
			}
		}
		if sender != nil {
			return adapter.CheckHealth(ctx)
		}
	}
	return model.ProviderHealth{
		Status:    model.HealthStatusUnhealthy,
		CheckedAt: s.now(),
		LastError: apperrors.NoProviderEnabled(tenantID).Error(),
	}
}
