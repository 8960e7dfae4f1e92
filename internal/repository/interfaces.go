package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/certify-api/internal/model"
)

var (
	// ErrNotFound is returned by readers when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned by CertificateRepository.Create when a
	// certificate for the same (event, recipient) pair is already stored.
	ErrAlreadyExists = errors.New("record already exists")
)

// All repository interfaces in one file
type (
	// CertificateRepository is the persistence boundary for certificates. It
	// enforces at most one certificate per (event, recipient).
	CertificateRepository interface {
		Create(ctx context.Context, cert *model.Certificate) error
		Update(ctx context.Context, cert *model.Certificate) error
		Get(ctx context.Context, id int64) (*model.Certificate, error)
		GetByGUID(ctx context.Context, guid uuid.UUID) (*model.Certificate, error)
		ListByEvent(ctx context.Context, eventID int64) ([]*model.Certificate, error)
	}

	// EventReader is the event/registration read service.
	EventReader interface {
		GetEvent(ctx context.Context, id int64) (*model.Event, error)
		ListEligibleRegistrations(ctx context.Context, eventID int64) ([]*model.Registration, error)
	}

	// OrganizationReader is the organization-settings read service.
	OrganizationReader interface {
		GetOrganization(ctx context.Context, id int64) (*model.Organization, error)
		GetProviderSettings(ctx context.Context, tenantID int64) (model.ProviderSettings, error)
	}

	// ProfileReader is the user/profile read service.
	ProfileReader interface {
		GetProfile(ctx context.Context, userID int64) (*model.Profile, error)
	}

	// DeliveryRepository keeps delivery intent outcomes for retry bookkeeping.
	DeliveryRepository interface {
		Record(ctx context.Context, intent *model.DeliveryIntent) error
		ListByCertificate(ctx context.Context, certificateID int64) ([]*model.DeliveryIntent, error)
	}
)
