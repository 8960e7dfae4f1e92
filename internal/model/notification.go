package model

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// Notification is an ad hoc notification request for a tenant.
type Notification struct {
	TenantID int64  `json:"tenant_id"`
	To       string `json:"to" binding:"required,email"`
	Subject  string `json:"subject" binding:"required"`
	HTMLBody string `json:"html_body" binding:"required"`
	Tag      string `json:"tag,omitempty"`
}

// DeliveryIntent is one attempt to deliver a certificate or notification. Its
// outcome is independent of the certificate's own lifecycle.
type DeliveryIntent struct {
	ID                uuid.UUID      `db:"id" json:"id"`
	CertificateID     *int64         `db:"certificate_id" json:"certificate_id,omitempty"`
	TenantID          int64          `db:"tenant_id" json:"tenant_id"`
	Recipient         string         `db:"recipient" json:"recipient"`
	Subject           string         `db:"subject" json:"subject"`
	ContentRef        string         `db:"content_ref" json:"content_ref,omitempty"`
	Provider          string         `db:"provider" json:"provider,omitempty"`
	ProviderMessageID string         `db:"provider_message_id" json:"provider_message_id,omitempty"`
	Status            DeliveryStatus `db:"status" json:"status"`
	FailureReason     string         `db:"failure_reason" json:"failure_reason,omitempty"`
	FailureKind       string         `db:"failure_kind" json:"failure_kind,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	CompletedAt       *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

func NewDeliveryIntent(tenantID int64, now time.Time) *DeliveryIntent {
	return &DeliveryIntent{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Status:    DeliveryStatusPending,
		CreatedAt: now,
	}
}

func (d *DeliveryIntent) MarkSent(provider, messageID string, now time.Time) {
	d.Provider = provider
	d.ProviderMessageID = messageID
	d.Status = DeliveryStatusSent
	d.FailureReason = ""
	d.FailureKind = ""
	d.CompletedAt = &now
}

func (d *DeliveryIntent) MarkFailed(kind string, err error, now time.Time) {
	d.Status = DeliveryStatusFailed
	d.FailureKind = kind
	if err != nil {
		d.FailureReason = err.Error()
	}
	d.CompletedAt = &now
}

// DeliveryJob is the queued request to deliver an issued certificate.
type DeliveryJob struct {
	CertificateID int64     `json:"certificate_id"`
	TenantID      int64     `json:"tenant_id"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}
