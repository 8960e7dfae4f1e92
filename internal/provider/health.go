package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/pkg/logger"
	"github.com/jwalitptl/certify-api/pkg/metrics"
)

// CheckFunc probes a backend. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

type MonitorConfig struct {
	// Period is how long a probe result is reused.
	Period time.Duration
	// ProbeTimeout bounds a single check.
	ProbeTimeout time.Duration
	Now          func() time.Time
}

// HealthMonitor caches the last probe result per provider. Entries never
// expire from the cache; staleness is decided from CheckedAt so an injected
// clock fully controls refresh.
type HealthMonitor struct {
	cache        *cache.Cache
	period       time.Duration
	probeTimeout time.Duration
	now          func() time.Time
	metrics      *metrics.Metrics
	log          *logger.Logger

	hookMu      sync.RWMutex
	onUnhealthy []func(model.ProviderHealth)
}

func NewHealthMonitor(cfg MonitorConfig, m *metrics.Metrics, log *logger.Logger) *HealthMonitor {
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &HealthMonitor{
		cache:        cache.New(cache.NoExpiration, 0),
		period:       cfg.Period,
		probeTimeout: cfg.ProbeTimeout,
		now:          cfg.Now,
		metrics:      m,
		log:          log.With("health_monitor"),
	}
}

// OnUnhealthy registers fn to be called after every probe that reports unhealthy.
func (h *HealthMonitor) OnUnhealthy(fn func(model.ProviderHealth)) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.onUnhealthy = append(h.onUnhealthy, fn)
}

// Probe returns the cached health of providerID while it is younger than the
// period, and otherwise runs check and stores the new result. Concurrent
// probes of the same provider may both run; the last write wins.
func (h *HealthMonitor) Probe(ctx context.Context, providerID string, check CheckFunc) model.ProviderHealth {
	if cached, ok := h.Status(providerID); ok && h.now().Sub(cached.CheckedAt) < h.period {
		return cached
	}

	health := model.ProviderHealth{ProviderID: providerID, Status: model.HealthStatusHealthy}
	if err := h.run(ctx, check); err != nil {
		health.Status = model.HealthStatusUnhealthy
		health.LastError = err.Error()
	}
	health.CheckedAt = h.now()

	h.cache.Set(providerID, health, cache.NoExpiration)
	h.record(health)
	return health
}

// run measures the backend under its own timeout. The result is shared by
// every caller for the period, so one caller giving up must not cut it short.
func (h *HealthMonitor) run(ctx context.Context, check CheckFunc) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.probeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("probe panicked: %v", r)
			}
		}()
		done <- check(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("probe timed out after %s", h.probeTimeout)
		}
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("probe timed out after %s", h.probeTimeout)
		}
		return ctx.Err()
	}
}

func (h *HealthMonitor) record(health model.ProviderHealth) {
	result := string(health.Status)
	h.metrics.ProviderProbes.WithLabelValues(health.ProviderID, result).Inc()
	if health.Healthy() {
		h.metrics.ProviderHealthy.WithLabelValues(health.ProviderID).Set(1)
		return
	}
	h.metrics.ProviderHealthy.WithLabelValues(health.ProviderID).Set(0)
	h.log.Warn("provider probe failed", "provider", health.ProviderID, "error", health.LastError)

	h.hookMu.RLock()
	hooks := h.onUnhealthy
	h.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(health)
	}
}

// Status returns the last stored health for providerID without probing.
func (h *HealthMonitor) Status(providerID string) (model.ProviderHealth, bool) {
	v, ok := h.cache.Get(providerID)
	if !ok {
		return model.ProviderHealth{}, false
	}
	return v.(model.ProviderHealth), true
}

// Snapshot lists every stored entry ordered by provider id.
func (h *HealthMonitor) Snapshot() []model.ProviderHealth {
	items := h.cache.Items()
	out := make([]model.ProviderHealth, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(model.ProviderHealth))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out
}
