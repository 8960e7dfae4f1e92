package certificate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/repository"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
	"github.com/jwalitptl/certify-api/pkg/logger"
	"github.com/jwalitptl/certify-api/pkg/metrics"
)

type CertificateServicer interface {
	IssueForEvent(ctx context.Context, eventID int64, opts IssueOptions) (IssueResult, error)
	RefreshForEvent(ctx context.Context, eventID int64) (RefreshResult, error)
	Get(ctx context.Context, id int64) (*model.Certificate, error)
	GetByGUID(ctx context.Context, guid uuid.UUID) (*model.Certificate, error)
}

// DeliveryQueue accepts newly issued certificates for asynchronous delivery.
type DeliveryQueue interface {
	Enqueue(ctx context.Context, certificateID, tenantID int64) error
}

type IssueOptions struct {
	// Recompute refreshes descriptive fields of certificates that already exist.
	Recompute bool
	// Send enqueues every newly issued certificate for delivery.
	Send bool
}

type IssueResult struct {
	Issued  int `json:"issued"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type RefreshResult struct {
	Updated int `json:"updated"`
}

type Service struct {
	certs    repository.CertificateRepository
	events   repository.EventReader
	orgs     repository.OrganizationReader
	profiles repository.ProfileReader
	queue    DeliveryQueue
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// NewService wires the issuer. queue may be nil when delivery is not wired,
// in which case IssueOptions.Send is ignored.
func NewService(
	certs repository.CertificateRepository,
	events repository.EventReader,
	orgs repository.OrganizationReader,
	profiles repository.ProfileReader,
	queue DeliveryQueue,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		certs:    certs,
		events:   events,
		orgs:     orgs,
		profiles: profiles,
		queue:    queue,
		metrics:  m,
		log:      log.With("certificate_service"),
		now:      time.Now,
	}
}

// batch holds what is resolved once per event before walking recipients.
type batch struct {
	event  *model.Event
	org    *model.Organization
	signer *model.Profile
}

func (s *Service) loadBatch(ctx context.Context, eventID int64) (*batch, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("event", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	org, err := s.orgs.GetOrganization(ctx, event.OrganizationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("organization", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	var signer *model.Profile
	if event.SignerUserID != nil {
		signer, err = s.profiles.GetProfile(ctx, *event.SignerUserID)
		if err != nil {
			// certificates are still issued, just without a signing person
			s.log.Warn("signer profile unavailable",
				"event_id", eventID,
				"signer_user_id", *event.SignerUserID,
				"error", err.Error(),
			)
			signer = nil
		}
	}

	return &batch{event: event, org: org, signer: signer}, nil
}

// IssueForEvent issues a certificate to every eligible recipient of the event
// that does not have one yet. Recipients that fail are logged and skipped.
// On cancellation the partial result is returned with the context error;
// certificates created so far stay.
func (s *Service) IssueForEvent(ctx context.Context, eventID int64, opts IssueOptions) (IssueResult, error) {
	var result IssueResult

	b, err := s.loadBatch(ctx, eventID)
	if err != nil {
		return result, err
	}

	regs, err := s.events.ListEligibleRegistrations(ctx, eventID)
	if err != nil {
		return result, fmt.Errorf("failed to list registrations: %w", err)
	}

	existing, err := s.existingByRecipient(ctx, eventID)
	if err != nil {
		return result, err
	}

	for i, reg := range regs {
		if err := ctx.Err(); err != nil {
			s.log.Warn("issuance interrupted",
				"event_id", eventID,
				"issued", result.Issued,
				"remaining", len(regs)-i,
			)
			return result, err
		}

		if cert, ok := existing[reg.UserID]; ok {
			if opts.Recompute && s.update(ctx, b.event, cert) {
				result.Updated++
			}
			continue
		}

		cert, created := s.issue(ctx, b, reg)
		if cert == nil {
			result.Skipped++
			continue
		}
		existing[reg.UserID] = cert
		if !created {
			continue
		}

		result.Issued++
		if opts.Send {
			s.enqueue(ctx, cert)
		}
	}

	s.log.Info("certificates issued",
		"event_id", eventID,
		"issued", result.Issued,
		"updated", result.Updated,
		"skipped", result.Skipped,
	)
	return result, nil
}

// issue creates the certificate for one registration. It returns nil when
// the recipient was skipped, and created=false when another writer won.
func (s *Service) issue(ctx context.Context, b *batch, reg *model.Registration) (*model.Certificate, bool) {
	recipient, err := s.profiles.GetProfile(ctx, reg.UserID)
	if err != nil {
		s.metrics.IssuanceSkipped.WithLabelValues("profile_unresolved").Inc()
		s.log.Warn("skipping recipient without profile",
			"event_id", b.event.ID,
			"user_id", reg.UserID,
			"error", err.Error(),
		)
		return nil, false
	}

	cert := model.NewCertificate(b.event, b.org, b.signer, recipient, s.now())
	err = s.certs.Create(ctx, cert)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return cert, false
	}
	if err != nil {
		s.metrics.IssuanceSkipped.WithLabelValues("storage_error").Inc()
		s.metrics.DatabaseOperations.WithLabelValues("certificate_create", "error").Inc()
		s.log.Error(err, "failed to store certificate",
			"event_id", b.event.ID,
			"user_id", reg.UserID,
		)
		return nil, false
	}

	s.metrics.DatabaseOperations.WithLabelValues("certificate_create", "ok").Inc()
	s.metrics.CertificatesIssued.Inc()
	return cert, true
}

func (s *Service) update(ctx context.Context, event *model.Event, cert *model.Certificate) bool {
	cert.ApplyEventDetails(event, s.now())
	if err := s.certs.Update(ctx, cert); err != nil {
		s.metrics.DatabaseOperations.WithLabelValues("certificate_update", "error").Inc()
		s.log.Error(err, "failed to update certificate", "certificate_id", cert.ID)
		return false
	}
	s.metrics.DatabaseOperations.WithLabelValues("certificate_update", "ok").Inc()
	s.metrics.CertificatesUpdated.Inc()
	return true
}

func (s *Service) enqueue(ctx context.Context, cert *model.Certificate) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, cert.ID, cert.TenantID); err != nil {
		s.log.Error(err, "failed to enqueue certificate delivery", "certificate_id", cert.ID)
	}
}

func (s *Service) existingByRecipient(ctx context.Context, eventID int64) (map[int64]*model.Certificate, error) {
	certs, err := s.certs.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	out := make(map[int64]*model.Certificate, len(certs))
	for _, c := range certs {
		out[c.RecipientID] = c
	}
	return out, nil
}

// RefreshForEvent rewrites the descriptive fields of every certificate of the
// event from the event's current values. Snapshot fields are left alone.
func (s *Service) RefreshForEvent(ctx context.Context, eventID int64) (RefreshResult, error) {
	var result RefreshResult

	event, err := s.events.GetEvent(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return result, apperrors.NotFound("event", err)
	}
	if err != nil {
		return result, fmt.Errorf("failed to get event: %w", err)
	}

	certs, err := s.certs.ListByEvent(ctx, eventID)
	if err != nil {
		return result, fmt.Errorf("failed to list certificates: %w", err)
	}

	for _, cert := range certs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if s.update(ctx, event, cert) {
			result.Updated++
		}
	}

	s.log.Info("certificates refreshed", "event_id", eventID, "updated", result.Updated)
	return result, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Certificate, error) {
	cert, err := s.certs.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("certificate", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return cert, nil
}

func (s *Service) GetByGUID(ctx context.Context, guid uuid.UUID) (*model.Certificate, error) {
	cert, err := s.certs.GetByGUID(ctx, guid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("certificate", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return cert, nil
}
