package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/certify-api/internal/model"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
)

type stubSender struct{ id string }

func (s *stubSender) ProviderID() string { return s.id }
func (s *stubSender) Send(context.Context, Message) (string, error) {
	return s.id + "-msg", nil
}

type stubBackend struct {
	id       string
	checkErr error
	created  int
}

func (b *stubBackend) ID() string                  { return b.id }
func (b *stubBackend) Check(context.Context) error { return b.checkErr }
func (b *stubBackend) NewSender(model.ProviderSetting) (Sender, error) {
	b.created++
	return &stubSender{id: b.id}, nil
}

type stubSettings struct {
	settings model.ProviderSettings
	err      error
}

func (s stubSettings) GetProviderSettings(context.Context, int64) (model.ProviderSettings, error) {
	return s.settings, s.err
}

func buildSelector(settings SettingsReader, monitor *HealthMonitor, backends ...*stubBackend) *Selector {
	adapters := make([]Adapter, len(backends))
	for i, b := range backends {
		adapters[i] = NewTenantAdapter(b, settings, monitor)
	}
	return NewSelector(adapters, nil, nil)
}

func TestSelectSenderFallsBackInOrder(t *testing.T) {
	first := &stubBackend{id: "postmark"}
	second := &stubBackend{id: "smtp"}
	third := &stubBackend{id: "webhook"}
	settings := stubSettings{settings: model.ProviderSettings{
		"smtp":    {Enabled: true},
		"webhook": {Enabled: true},
	}}

	sender, err := buildSelector(settings, nil, first, second, third).SelectSender(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "smtp", sender.ProviderID())
	assert.Equal(t, 0, first.created)
	assert.Equal(t, 0, third.created, "adapters after the winner are never invoked")
}

type countingAdapter struct {
	id     string
	sender Sender
	calls  int
}

func (a *countingAdapter) ID() string { return a.id }

func (a *countingAdapter) TryCreateSender(context.Context, int64) (Sender, error) {
	a.calls++
	return a.sender, nil
}

func (a *countingAdapter) CheckHealth(context.Context) model.ProviderHealth {
	return model.ProviderHealth{ProviderID: a.id, Status: model.HealthStatusHealthy}
}

func TestSelectSenderStopsAtFirstUsableAdapter(t *testing.T) {
	first := &countingAdapter{id: "postmark"}
	second := &countingAdapter{id: "smtp", sender: &stubSender{id: "smtp"}}
	third := &countingAdapter{id: "webhook", sender: &stubSender{id: "webhook"}}

	sender, err := NewSelector([]Adapter{first, second, third}, nil, nil).SelectSender(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "smtp", sender.ProviderID())
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls, "adapters after the winner are never asked")
}

func TestSelectSenderNoProviderEnabled(t *testing.T) {
	sel := buildSelector(stubSettings{settings: model.ProviderSettings{}}, nil, &stubBackend{id: "postmark"})

	_, err := sel.SelectSender(context.Background(), 42)
	assert.True(t, errors.Is(err, apperrors.ErrNoProviderEnabled))
	assert.Equal(t, 503, apperrors.StatusCode(err))
}

func TestSelectSenderSettingsFailureAborts(t *testing.T) {
	sel := buildSelector(stubSettings{err: errors.New("db down")}, nil, &stubBackend{id: "postmark"})

	_, err := sel.SelectSender(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrNoProviderEnabled))
}

func TestSelectSenderSkipsUnhealthy(t *testing.T) {
	monitor := NewHealthMonitor(MonitorConfig{Period: time.Minute}, nil, nil)
	broken := &stubBackend{id: "postmark", checkErr: errors.New("token rejected")}
	backup := &stubBackend{id: "smtp"}
	settings := stubSettings{settings: model.ProviderSettings{
		"postmark": {Enabled: true},
		"smtp":     {Enabled: true},
	}}

	sender, err := buildSelector(settings, monitor, broken, backup).SelectSender(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "smtp", sender.ProviderID())
	assert.Equal(t, 0, broken.created)
}

func TestCheckHealthUsesFirstUsableAdapter(t *testing.T) {
	monitor := NewHealthMonitor(MonitorConfig{Period: time.Minute}, nil, nil)
	settings := stubSettings{settings: model.ProviderSettings{"smtp": {Enabled: true}}}
	sel := buildSelector(settings, monitor, &stubBackend{id: "postmark"}, &stubBackend{id: "smtp"})

	health := sel.CheckHealth(context.Background(), 1)
	assert.True(t, health.Healthy())
	assert.Equal(t, "smtp", health.ProviderID)

	none := buildSelector(stubSettings{settings: model.ProviderSettings{}}, monitor, &stubBackend{id: "postmark"})
	health = none.CheckHealth(context.Background(), 1)
	assert.False(t, health.Healthy())
	assert.Contains(t, health.LastError, "no delivery provider")
}
