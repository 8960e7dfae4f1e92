package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/repository"
)

type organizationRepository struct {
	BaseRepository
}

func NewOrganizationRepository(base BaseRepository) repository.OrganizationReader {
	return &organizationRepository{base}
}

func (r *organizationRepository) GetOrganization(ctx context.Context, id int64) (*model.Organization, error) {
	query := `
		SELECT id, name, COALESCE(logo_url, '') AS logo_url
		FROM organizations
		WHERE id = $1 AND deleted_at IS NULL
	`
	var org model.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, notFound(err)
	}
	return &org, nil
}

type providerSettingRow struct {
	ProviderID  string `db:"provider_id"`
	Enabled     bool   `db:"enabled"`
	Endpoint    string `db:"endpoint"`
	FromAddress string `db:"from_address"`
}

func (r *organizationRepository) GetProviderSettings(ctx context.Context, tenantID int64) (model.ProviderSettings, error) {
	query := `
		SELECT provider_id, enabled, COALESCE(endpoint, '') AS endpoint,
			COALESCE(from_address, '') AS from_address
		FROM organization_provider_settings
		WHERE organization_id = $1
	`
	var rows []providerSettingRow
	if err := r.db.SelectContext(ctx, &rows, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to get provider settings: %w", err)
	}

	settings := make(model.ProviderSettings, len(rows))
	for _, row := range rows {
		settings[row.ProviderID] = model.ProviderSetting{
			Enabled:     row.Enabled,
			Endpoint:    row.Endpoint,
			FromAddress: row.FromAddress,
		}
	}
	return settings, nil
}
