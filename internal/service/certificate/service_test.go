package certificate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
)

const (
	eventID  = int64(10)
	tenantID = int64(3)
	signerID = int64(1)
)

type recordingQueue struct {
	ids []int64
	err error
}

func (q *recordingQueue) Enqueue(_ context.Context, certificateID, _ int64) error {
	q.ids = append(q.ids, certificateID)
	return q.err
}

func seed(t *testing.T, recipients ...int64) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	signer := signerID
	store.PutEvent(model.Event{
		ID:                     eventID,
		OrganizationID:         tenantID,
		Name:                   "Go Workshop",
		CertificateTitle:       "Certificate of Completion",
		CertificateDescription: "Go Workshop",
		City:                   "Lisbon",
		EndsAt:                 time.Date(2026, 5, 2, 17, 0, 0, 0, time.UTC),
		SignerUserID:           &signer,
	})
	store.PutOrganization(model.Organization{ID: tenantID, Name: "Acme Academy"})
	store.PutProfile(model.Profile{UserID: signerID, FirstName: "Ada", LastName: "Lovelace"})
	for _, id := range recipients {
		store.PutRegistration(model.Registration{ID: id, EventID: eventID, UserID: id, Status: model.RegistrationStatusVerified})
		store.PutProfile(model.Profile{UserID: id, FirstName: "User", LastName: "Number", Email: "user@example.com"})
	}
	return store
}

func newService(store *memory.Store, queue DeliveryQueue) *Service {
	return NewService(store, store, store, store, queue, nil, nil)
}

func TestIssueForEventIsIdempotent(t *testing.T) {
	store := seed(t, 100, 101)
	svc := newService(store, nil)
	ctx := context.Background()

	first, err := svc.IssueForEvent(ctx, eventID, IssueOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Issued)

	before, err := store.ListByEvent(ctx, eventID)
	require.NoError(t, err)

	second, err := svc.IssueForEvent(ctx, eventID, IssueOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Issued)

	after, err := store.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, after, 2)
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].GUID, after[i].GUID)
	}
}

func TestIssueForEventSkipsUnresolvableRecipient(t *testing.T) {
	store := seed(t, 100, 101, 102)
	store.DeleteProfile(101)
	svc := newService(store, nil)

	result, err := svc.IssueForEvent(context.Background(), eventID, IssueOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Issued)
	assert.Equal(t, 1, result.Skipped)
}

func TestIssueForEventIgnoresUnverifiedRegistrations(t *testing.T) {
	store := seed(t, 100)
	store.PutRegistration(model.Registration{ID: 200, EventID: eventID, UserID: 200, Status: model.RegistrationStatusPending})
	store.PutProfile(model.Profile{UserID: 200, FirstName: "Pending"})

	result, err := newService(store, nil).IssueForEvent(context.Background(), eventID, IssueOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Issued)
}

func TestIssueForEventUnknownEvent(t *testing.T) {
	svc := newService(memory.NewStore(), nil)

	_, err := svc.IssueForEvent(context.Background(), 404, IssueOptions{})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestSnapshotSurvivesProfileChanges(t *testing.T) {
	store := seed(t, 100)
	svc := newService(store, nil)
	ctx := context.Background()

	_, err := svc.IssueForEvent(ctx, eventID, IssueOptions{})
	require.NoError(t, err)

	store.PutProfile(model.Profile{UserID: 100, FirstName: "Renamed", LastName: "Person"})
	store.PutOrganization(model.Organization{ID: tenantID, Name: "New Name Ltd"})

	_, err = svc.RefreshForEvent(ctx, eventID)
	require.NoError(t, err)

	certs, err := store.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, "User Number", certs[0].RecipientName)
	assert.Equal(t, "Acme Academy", certs[0].IssuerOrgName)
	assert.Equal(t, "Ada Lovelace", certs[0].IssuerPersonName)
}

func TestRefreshForEventAppliesEventDetails(t *testing.T) {
	store := seed(t, 100, 101)
	svc := newService(store, nil)
	ctx := context.Background()

	_, err := svc.IssueForEvent(ctx, eventID, IssueOptions{})
	require.NoError(t, err)

	event, err := store.GetEvent(ctx, eventID)
	require.NoError(t, err)
	event.CertificateTitle = "Certificate of Attendance"
	store.PutEvent(*event)

	result, err := svc.RefreshForEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)

	certs, err := store.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	for _, c := range certs {
		assert.Equal(t, "Certificate of Attendance", c.Title)
	}

	_, err = svc.RefreshForEvent(ctx, 999)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestIssueForEventRecompute(t *testing.T) {
	store := seed(t, 100)
	svc := newService(store, nil)
	ctx := context.Background()

	_, err := svc.IssueForEvent(ctx, eventID, IssueOptions{})
	require.NoError(t, err)

	store.PutRegistration(model.Registration{ID: 101, EventID: eventID, UserID: 101, Status: model.RegistrationStatusVerified})
	store.PutProfile(model.Profile{UserID: 101, FirstName: "Late", LastName: "Comer"})

	result, err := svc.IssueForEvent(ctx, eventID, IssueOptions{Recompute: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Issued)
	assert.Equal(t, 1, result.Updated)
}

func TestIssueForEventSendEnqueuesNewCertificatesOnly(t *testing.T) {
	store := seed(t, 100, 101)
	queue := &recordingQueue{err: errors.New("broker down")}
	svc := newService(store, queue)
	ctx := context.Background()

	result, err := svc.IssueForEvent(ctx, eventID, IssueOptions{Send: true})
	require.NoError(t, err, "enqueue failures do not fail issuance")
	assert.Equal(t, 2, result.Issued)
	assert.Len(t, queue.ids, 2)

	_, err = svc.IssueForEvent(ctx, eventID, IssueOptions{Send: true})
	require.NoError(t, err)
	assert.Len(t, queue.ids, 2)
}

// cancellingProfiles cancels the batch context once n profiles were read.
type cancellingProfiles struct {
	*memory.Store
	cancel context.CancelFunc
	n      int
	reads  int
}

func (c *cancellingProfiles) GetProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	p, err := c.Store.GetProfile(ctx, userID)
	if userID != signerID {
		c.reads++
		if c.reads == c.n {
			c.cancel()
		}
	}
	return p, err
}

func TestIssueForEventStopsOnCancellation(t *testing.T) {
	store := seed(t, 100, 101, 102)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	profiles := &cancellingProfiles{Store: store, cancel: cancel, n: 1}
	svc := NewService(store, store, store, profiles, nil, nil, nil)

	result, err := svc.IssueForEvent(ctx, eventID, IssueOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Issued)

	certs, err := store.ListByEvent(context.Background(), eventID)
	require.NoError(t, err)
	assert.Len(t, certs, 1, "certificates created before cancellation stay")
}

func TestGetMapsNotFound(t *testing.T) {
	svc := newService(memory.NewStore(), nil)

	_, err := svc.Get(context.Background(), 1)
	assert.Equal(t, 404, apperrors.StatusCode(err))
}
