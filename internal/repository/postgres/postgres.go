package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/certify-api/internal/repository"
)

// Repositories groups every postgres-backed repository over one connection pool.
type Repositories struct {
	Certificates  repository.CertificateRepository
	Events        repository.EventReader
	Organizations repository.OrganizationReader
	Profiles      repository.ProfileReader
	Deliveries    repository.DeliveryRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	base := NewBaseRepository(db)
	return &Repositories{
		Certificates:  NewCertificateRepository(base),
		Events:        NewEventRepository(base),
		Organizations: NewOrganizationRepository(base),
		Profiles:      NewProfileRepository(base),
		Deliveries:    NewDeliveryRepository(base),
	}
}
