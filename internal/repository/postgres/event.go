package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/repository"
)

// eventRepository reads the events and registrations tables owned by the
// event management service.
type eventRepository struct {
	BaseRepository
}

func NewEventRepository(base BaseRepository) repository.EventReader {
	return &eventRepository{base}
}

func (r *eventRepository) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	query := `
		SELECT id, organization_id, name, certificate_title, certificate_description,
			certificate_comment, certificate_evidence, city, certificate_issued_on,
			ends_at, signer_user_id
		FROM events
		WHERE id = $1 AND deleted_at IS NULL
	`
	var event model.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (r *eventRepository) ListEligibleRegistrations(ctx context.Context, eventID int64) ([]*model.Registration, error) {
	query := `
		SELECT id, event_id, user_id, status
		FROM registrations
		WHERE event_id = $1 AND status = $2
		ORDER BY id
	`
	var regs []*model.Registration
	if err := r.db.SelectContext(ctx, &regs, query, eventID, model.RegistrationStatusVerified); err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}
