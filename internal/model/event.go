package model

import "time"

// Event is the read model of an event as supplied by the event/registration service.
type Event struct {
	ID             int64  `db:"id" json:"id"`
	OrganizationID int64  `db:"organization_id" json:"organization_id"`
	Name           string `db:"name" json:"name"`

	CertificateTitle       string     `db:"certificate_title" json:"certificate_title"`
	CertificateDescription string     `db:"certificate_description" json:"certificate_description"`
	CertificateComment     string     `db:"certificate_comment" json:"certificate_comment"`
	EvidenceDescription    string     `db:"certificate_evidence" json:"certificate_evidence"`
	City                   string     `db:"city" json:"city"`
	CertificateIssuedOn    *time.Time `db:"certificate_issued_on" json:"certificate_issued_on,omitempty"`
	EndsAt                 time.Time  `db:"ends_at" json:"ends_at"`

	// SignerUserID is the person whose name and signature appear on certificates.
	SignerUserID *int64 `db:"signer_user_id" json:"signer_user_id,omitempty"`
}

// CertificateDate is the explicit certificate date, or the event end.
func (e *Event) CertificateDate() time.Time {
	if e.CertificateIssuedOn != nil && !e.CertificateIssuedOn.IsZero() {
		return *e.CertificateIssuedOn
	}
	return e.EndsAt
}

type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "pending"
	RegistrationStatusVerified  RegistrationStatus = "verified"
	RegistrationStatusCancelled RegistrationStatus = "cancelled"
)

// Registration links a user to an event. Only verified registrations are
// eligible for certificates.
type Registration struct {
	ID      int64              `db:"id" json:"id"`
	EventID int64              `db:"event_id" json:"event_id"`
	UserID  int64              `db:"user_id" json:"user_id"`
	Status  RegistrationStatus `db:"status" json:"status"`
}
