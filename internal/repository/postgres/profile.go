package postgres

import (
	"context"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/repository"
)

type profileRepository struct {
	BaseRepository
}

func NewProfileRepository(base BaseRepository) repository.ProfileReader {
	return &profileRepository{base}
}

func (r *profileRepository) GetProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	query := `
		SELECT u.id AS user_id, p.first_name, p.last_name, u.email,
			COALESCE(p.signature_url, '') AS signature_url
		FROM users u
		JOIN user_profiles p ON p.user_id = u.id
		WHERE u.id = $1 AND u.deleted_at IS NULL
	`
	var profile model.Profile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}
