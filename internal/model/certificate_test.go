package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testEvent() *Event {
	return &Event{
		ID:                     10,
		OrganizationID:         3,
		CertificateTitle:       "Certificate of Completion",
		CertificateDescription: "Go Workshop",
		City:                   "Lisbon",
		EndsAt:                 time.Date(2026, 5, 2, 17, 0, 0, 0, time.UTC),
	}
}

func TestNewCertificateSnapshotsDisplayFields(t *testing.T) {
	now := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)
	org := &Organization{ID: 3, Name: "Acme Academy", LogoURL: "https://cdn/acme.png"}
	signer := &Profile{UserID: 1, FirstName: "Ada", LastName: "Lovelace", SignatureURL: "https://cdn/sig.png"}
	recipient := &Profile{UserID: 7, FirstName: "Alan", LastName: "Turing", Email: "alan@example.com"}

	cert := NewCertificate(testEvent(), org, signer, recipient, now)

	assert.NotEqual(t, uuid.Nil, cert.GUID)
	assert.Equal(t, int64(3), cert.TenantID)
	assert.Equal(t, "Alan Turing", cert.RecipientName)
	assert.Equal(t, "alan@example.com", cert.RecipientEmail)
	assert.Equal(t, "Acme Academy", cert.IssuerOrgName)
	assert.Equal(t, "Ada Lovelace", cert.IssuerPersonName)
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), cert.IssuedOn)

	// mutating the sources afterwards does not reach the certificate
	org.Name = "Renamed"
	recipient.FirstName = "Changed"
	assert.Equal(t, "Acme Academy", cert.IssuerOrgName)
	assert.Equal(t, "Alan Turing", cert.RecipientName)
}

func TestApplyEventDetailsKeepsIdentityAndSnapshot(t *testing.T) {
	now := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)
	cert := NewCertificate(testEvent(), &Organization{Name: "Acme"}, nil, &Profile{UserID: 7, FirstName: "Alan"}, now)
	cert.ID = 99
	guid := cert.GUID

	event := testEvent()
	event.CertificateTitle = "Certificate of Attendance"

	changed := cert.ApplyEventDetails(event, now.Add(time.Hour))

	assert.True(t, changed)
	assert.Equal(t, "Certificate of Attendance", cert.Title)
	assert.Equal(t, int64(99), cert.ID)
	assert.Equal(t, guid, cert.GUID)
	assert.Equal(t, "Acme", cert.IssuerOrgName)
	assert.False(t, cert.ApplyEventDetails(event, now.Add(2*time.Hour)))
}
