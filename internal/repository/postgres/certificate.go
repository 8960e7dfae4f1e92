package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/repository"
)

const certificateColumns = `
	id, guid, event_id, recipient_id, tenant_id,
	title, description, comment, evidence_description, issuing_city, issued_on,
	recipient_name, recipient_email, issuer_org_name, issuer_org_logo_url,
	issuer_person_name, issuer_person_signature_url, created_at, updated_at`

type certificateRepository struct {
	BaseRepository
}

func NewCertificateRepository(base BaseRepository) repository.CertificateRepository {
	return &certificateRepository{base}
}

// Create inserts cert and sets its ID. A row for the same (event, recipient)
// pair makes the insert a no-op and returns repository.ErrAlreadyExists.
func (r *certificateRepository) Create(ctx context.Context, cert *model.Certificate) error {
	query := `
		INSERT INTO certificates (
			guid, event_id, recipient_id, tenant_id,
			title, description, comment, evidence_description, issuing_city, issued_on,
			recipient_name, recipient_email, issuer_org_name, issuer_org_logo_url,
			issuer_person_name, issuer_person_signature_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (event_id, recipient_id) DO NOTHING
		RETURNING id
	`

	if cert.GUID == uuid.Nil {
		cert.GUID = uuid.New()
	}

	err := r.db.QueryRowxContext(ctx, query,
		cert.GUID,
		cert.EventID,
		cert.RecipientID,
		cert.TenantID,
		cert.Title,
		cert.Description,
		cert.Comment,
		cert.EvidenceDescription,
		cert.IssuingCity,
		cert.IssuedOn,
		cert.RecipientName,
		cert.RecipientEmail,
		cert.IssuerOrgName,
		cert.IssuerOrgLogoURL,
		cert.IssuerPersonName,
		cert.IssuerPersonSignatureURL,
		cert.CreatedAt,
		cert.UpdatedAt,
	).Scan(&cert.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	return nil
}

// Update writes the descriptive columns only; guid and snapshot columns are never touched.
func (r *certificateRepository) Update(ctx context.Context, cert *model.Certificate) error {
	query := `
		UPDATE certificates
		SET title = $1, description = $2, comment = $3, evidence_description = $4,
			issuing_city = $5, issued_on = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		cert.Title,
		cert.Description,
		cert.Comment,
		cert.EvidenceDescription,
		cert.IssuingCity,
		cert.IssuedOn,
		cert.UpdatedAt,
		cert.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update certificate: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *certificateRepository) Get(ctx context.Context, id int64) (*model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`

	var cert model.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		return nil, notFound(err)
	}
	return &cert, nil
}

func (r *certificateRepository) GetByGUID(ctx context.Context, guid uuid.UUID) (*model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE guid = $1`

	var cert model.Certificate
	if err := r.db.GetContext(ctx, &cert, query, guid); err != nil {
		return nil, notFound(err)
	}
	return &cert, nil
}

func (r *certificateRepository) ListByEvent(ctx context.Context, eventID int64) ([]*model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE event_id = $1 ORDER BY id`

	var certs []*model.Certificate
	if err := r.db.SelectContext(ctx, &certs, query, eventID); err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	return certs, nil
}
