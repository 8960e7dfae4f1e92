// Package provider selects a delivery backend for a tenant from a fixed,
// ordered list of adapters and keeps a cached view of backend health.
package provider

import (
	"context"
	"errors"

	"github.com/jwalitptl/certify-api/internal/model"
)

// ErrUnhealthy marks an adapter that is enabled for the tenant but whose
// backend failed its last health probe.
var ErrUnhealthy = errors.New("provider unhealthy")

type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// Message is a rendered outbound delivery.
type Message struct {
	From        string
	To          string
	Subject     string
	HTMLBody    string
	Tag         string
	Attachments []Attachment
}

// Sender delivers messages through one backend for one tenant. Send returns
// the backend's message id. Failures are classified with pkg/errors kinds.
type Sender interface {
	ProviderID() string
	Send(ctx context.Context, msg Message) (string, error)
}

// Adapter is one entry in the selector's ordered list.
type Adapter interface {
	ID() string
	// TryCreateSender returns a nil Sender when the provider does not apply
	// to the tenant. A non-nil error aborts selection, except ErrUnhealthy.
	TryCreateSender(ctx context.Context, tenantID int64) (Sender, error)
	CheckHealth(ctx context.Context) model.ProviderHealth
}

// Backend is a concrete delivery integration wrapped by TenantAdapter.
type Backend interface {
	ID() string
	// Check is a cheap liveness call against the backend.
	Check(ctx context.Context) error
	NewSender(setting model.ProviderSetting) (Sender, error)
}
