package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/repository"
)

type deliveryRepository struct {
	BaseRepository
}

func NewDeliveryRepository(base BaseRepository) repository.DeliveryRepository {
	return &deliveryRepository{base}
}

// Record upserts the intent so a pending row can later be completed.
func (r *deliveryRepository) Record(ctx context.Context, intent *model.DeliveryIntent) error {
	query := `
		INSERT INTO delivery_intents (
			id, certificate_id, tenant_id, recipient, subject, content_ref, provider,
			provider_message_id, status, failure_reason, failure_kind, created_at, completed_at
		) VALUES (
			:id, :certificate_id, :tenant_id, :recipient, :subject, :content_ref, :provider,
			:provider_message_id, :status, :failure_reason, :failure_kind, :created_at, :completed_at
		)
		ON CONFLICT (id) DO UPDATE SET
			content_ref = EXCLUDED.content_ref,
			provider = EXCLUDED.provider,
			provider_message_id = EXCLUDED.provider_message_id,
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			failure_kind = EXCLUDED.failure_kind,
			completed_at = EXCLUDED.completed_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, intent); err != nil {
		return fmt.Errorf("failed to record delivery intent: %w", err)
	}
	return nil
}

func (r *deliveryRepository) ListByCertificate(ctx context.Context, certificateID int64) ([]*model.DeliveryIntent, error) {
	query := `
		SELECT id, certificate_id, tenant_id, recipient, subject, content_ref, provider,
			provider_message_id, status, failure_reason, failure_kind, created_at, completed_at
		FROM delivery_intents
		WHERE certificate_id = $1
		ORDER BY created_at
	`
	var intents []*model.DeliveryIntent
	if err := r.db.SelectContext(ctx, &intents, query, certificateID); err != nil {
		return nil, fmt.Errorf("failed to list delivery intents: %w", err)
	}
	return intents, nil
}
