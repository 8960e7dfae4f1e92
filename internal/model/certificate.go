package model

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is an issued record of event-completion recognition for one recipient.
//
// The Recipient* and Issuer* fields are snapshots copied at issuance; they are
// never refreshed from their source records afterwards.
type Certificate struct {
	ID          int64     `db:"id" json:"id"`
	GUID        uuid.UUID `db:"guid" json:"guid"`
	EventID     int64     `db:"event_id" json:"event_id"`
	RecipientID int64     `db:"recipient_id" json:"recipient_id"`
	TenantID    int64     `db:"tenant_id" json:"tenant_id"`

	Title               string    `db:"title" json:"title"`
	Description         string    `db:"description" json:"description"`
	Comment             string    `db:"comment" json:"comment"`
	EvidenceDescription string    `db:"evidence_description" json:"evidence_description"`
	IssuingCity         string    `db:"issuing_city" json:"issuing_city"`
	IssuedOn            time.Time `db:"issued_on" json:"issued_on"`

	RecipientName            string `db:"recipient_name" json:"recipient_name"`
	RecipientEmail           string `db:"recipient_email" json:"recipient_email"`
	IssuerOrgName            string `db:"issuer_org_name" json:"issuer_org_name"`
	IssuerOrgLogoURL         string `db:"issuer_org_logo_url" json:"issuer_org_logo_url"`
	IssuerPersonName         string `db:"issuer_person_name" json:"issuer_person_name"`
	IssuerPersonSignatureURL string `db:"issuer_person_signature_url" json:"issuer_person_signature_url"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewCertificate builds a certificate for recipient at event, copying the
// organization, signer and recipient display fields as they are right now.
// signer may be nil when the event has no signing person.
func NewCertificate(event *Event, org *Organization, signer *Profile, recipient *Profile, now time.Time) *Certificate {
	cert := &Certificate{
		GUID:           uuid.New(),
		EventID:        event.ID,
		RecipientID:    recipient.UserID,
		TenantID:       event.OrganizationID,
		RecipientName:  recipient.DisplayName(),
		RecipientEmail: recipient.Email,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if org != nil {
		cert.IssuerOrgName = org.Name
		cert.IssuerOrgLogoURL = org.LogoURL
	}
	if signer != nil {
		cert.IssuerPersonName = signer.DisplayName()
		cert.IssuerPersonSignatureURL = signer.SignatureURL
	}

	cert.ApplyEventDetails(event, now)
	cert.UpdatedAt = now
	return cert
}

// ApplyEventDetails refreshes the descriptive fields from event. Identity and
// snapshot fields are left untouched. It reports whether anything changed.
func (c *Certificate) ApplyEventDetails(event *Event, now time.Time) bool {
	issuedOn := event.CertificateDate()
	if issuedOn.IsZero() {
		issuedOn = c.IssuedOn
	}
	if issuedOn.IsZero() {
		issuedOn = now
	}
	issuedOn = issuedOn.UTC().Truncate(24 * time.Hour)

	changed := c.Title != event.CertificateTitle ||
		c.Description != event.CertificateDescription ||
		c.Comment != event.CertificateComment ||
		c.EvidenceDescription != event.EvidenceDescription ||
		c.IssuingCity != event.City ||
		!c.IssuedOn.Equal(issuedOn)

	c.Title = event.CertificateTitle
	c.Description = event.CertificateDescription
	c.Comment = event.CertificateComment
	c.EvidenceDescription = event.EvidenceDescription
	c.IssuingCity = event.City
	c.IssuedOn = issuedOn
	if changed {
		c.UpdatedAt = now
	}
	return changed
}

// View projects the stored snapshot for rendering and the JSON DTO.
func (c *Certificate) View() CertificateView {
	return CertificateView{
		ID:                       c.ID,
		GUID:                     c.GUID,
		EventID:                  c.EventID,
		Title:                    c.Title,
		Description:              c.Description,
		Comment:                  c.Comment,
		EvidenceDescription:      c.EvidenceDescription,
		IssuingCity:              c.IssuingCity,
		IssuedOn:                 c.IssuedOn,
		RecipientName:            c.RecipientName,
		IssuerOrgName:            c.IssuerOrgName,
		IssuerOrgLogoURL:         c.IssuerOrgLogoURL,
		IssuerPersonName:         c.IssuerPersonName,
		IssuerPersonSignatureURL: c.IssuerPersonSignatureURL,
	}
}

// CertificateView is the public shape of a certificate.
type CertificateView struct {
	ID                       int64     `json:"id"`
	GUID                     uuid.UUID `json:"guid"`
	EventID                  int64     `json:"event_id"`
	Title                    string    `json:"title"`
	Description              string    `json:"description"`
	Comment                  string    `json:"comment,omitempty"`
	EvidenceDescription      string    `json:"evidence_description,omitempty"`
	IssuingCity              string    `json:"issuing_city,omitempty"`
	IssuedOn                 time.Time `json:"issuing_date"`
	RecipientName            string    `json:"recipient_name"`
	IssuerOrgName            string    `json:"issuer_org_name"`
	IssuerOrgLogoURL         string    `json:"issuer_org_logo,omitempty"`
	IssuerPersonName         string    `json:"issuer_person_name,omitempty"`
	IssuerPersonSignatureURL string    `json:"issuer_person_signature,omitempty"`
}
