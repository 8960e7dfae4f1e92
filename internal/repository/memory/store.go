// Package memory holds in-process implementations of the repository
// interfaces for local development and tests. Records are copied in and out
// so callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/repository"
)

type pairKey struct {
	eventID     int64
	recipientID int64
}

type Store struct {
	mu sync.RWMutex

	nextCertID    int64
	certificates  map[int64]model.Certificate
	byPair        map[pairKey]int64
	events        map[int64]model.Event
	registrations map[int64][]model.Registration
	organizations map[int64]model.Organization
	settings      map[int64]model.ProviderSettings
	profiles      map[int64]model.Profile
	deliveries    []model.DeliveryIntent
}

func NewStore() *Store {
	return &Store{
		certificates:  make(map[int64]model.Certificate),
		byPair:        make(map[pairKey]int64),
		events:        make(map[int64]model.Event),
		registrations: make(map[int64][]model.Registration),
		organizations: make(map[int64]model.Organization),
		settings:      make(map[int64]model.ProviderSettings),
		profiles:      make(map[int64]model.Profile),
	}
}

var (
	_ repository.CertificateRepository = (*Store)(nil)
	_ repository.EventReader           = (*Store)(nil)
	_ repository.OrganizationReader    = (*Store)(nil)
	_ repository.ProfileReader         = (*Store)(nil)
	_ repository.DeliveryRepository    = (*Store)(nil)
)

// Seeding helpers

func (s *Store) PutEvent(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

func (s *Store) PutRegistration(r model.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations[r.EventID] = append(s.registrations[r.EventID], r)
}

func (s *Store) PutOrganization(o model.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizations[o.ID] = o
}

func (s *Store) PutProviderSettings(tenantID int64, settings model.ProviderSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(model.ProviderSettings, len(settings))
	for k, v := range settings {
		cp[k] = v
	}
	s.settings[tenantID] = cp
}

func (s *Store) PutProfile(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
}

func (s *Store) DeleteProfile(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
}

// CertificateRepository

func (s *Store) Create(_ context.Context, cert *model.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{cert.EventID, cert.RecipientID}
	if _, exists := s.byPair[key]; exists {
		return repository.ErrAlreadyExists
	}
	if cert.GUID == uuid.Nil {
		cert.GUID = uuid.New()
	}

	s.nextCertID++
	cert.ID = s.nextCertID
	s.certificates[cert.ID] = *cert
	s.byPair[key] = cert.ID
	return nil
}

func (s *Store) Update(_ context.Context, cert *model.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.certificates[cert.ID]
	if !ok {
		return repository.ErrNotFound
	}

	// identity and snapshot columns are immutable at the storage boundary
	updated := stored
	updated.Title = cert.Title
	updated.Description = cert.Description
	updated.Comment = cert.Comment
	updated.EvidenceDescription = cert.EvidenceDescription
	updated.IssuingCity = cert.IssuingCity
	updated.IssuedOn = cert.IssuedOn
	updated.UpdatedAt = cert.UpdatedAt
	s.certificates[cert.ID] = updated
	return nil
}

func (s *Store) Get(_ context.Context, id int64) (*model.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, ok := s.certificates[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cert, nil
}

func (s *Store) GetByGUID(_ context.Context, guid uuid.UUID) (*model.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cert := range s.certificates {
		if cert.GUID == guid {
			c := cert
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListByEvent(_ context.Context, eventID int64) ([]*model.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Certificate
	for _, cert := range s.certificates {
		if cert.EventID == eventID {
			c := cert
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EventReader

func (s *Store) GetEvent(_ context.Context, id int64) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (s *Store) ListEligibleRegistrations(_ context.Context, eventID int64) ([]*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Registration
	for _, r := range s.registrations[eventID] {
		if r.Status != model.RegistrationStatusVerified {
			continue
		}
		reg := r
		out = append(out, &reg)
	}
	return out, nil
}

// OrganizationReader

func (s *Store) GetOrganization(_ context.Context, id int64) (*model.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.organizations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (s *Store) GetProviderSettings(_ context.Context, tenantID int64) (model.ProviderSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(model.ProviderSettings)
	for k, v := range s.settings[tenantID] {
		out[k] = v
	}
	return out, nil
}

// ProfileReader

func (s *Store) GetProfile(_ context.Context, userID int64) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

// DeliveryRepository

func (s *Store) Record(_ context.Context, intent *model.DeliveryIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.deliveries {
		if s.deliveries[i].ID == intent.ID {
			s.deliveries[i] = *intent
			return nil
		}
	}
	s.deliveries = append(s.deliveries, *intent)
	return nil
}

func (s *Store) ListByCertificate(_ context.Context, certificateID int64) ([]*model.DeliveryIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.DeliveryIntent
	for _, d := range s.deliveries {
		if d.CertificateID != nil && *d.CertificateID == certificateID {
			intent := d
			out = append(out, &intent)
		}
	}
	return out, nil
}

// Deliveries returns every recorded intent in insertion order.
func (s *Store) Deliveries() []model.DeliveryIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.DeliveryIntent, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}
