package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/provider"
	"github.com/jwalitptl/certify-api/internal/render"
	"github.com/jwalitptl/certify-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
)

type fakeSender struct {
	id   string
	sent []provider.Message
	err  error
}

func (s *fakeSender) ProviderID() string { return s.id }

func (s *fakeSender) Send(_ context.Context, msg provider.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, msg)
	return "msg-1", nil
}

type fakeSelector struct {
	sender provider.Sender
	err    error
}

func (f fakeSelector) SelectSender(context.Context, int64) (provider.Sender, error) {
	return f.sender, f.err
}

type fakeConverter struct{ err error }

func (c fakeConverter) Convert(context.Context, string) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return []byte("%PDF-1.7"), nil
}

type fakeArchive struct {
	names []string
	err   error
}

func (a *fakeArchive) Put(_ context.Context, tenantID int64, name, _ string, _ []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.names = append(a.names, name)
	return "s3://certs/" + name, nil
}

func newStoreWithCertificates(t *testing.T, n int) (*memory.Store, []int64) {
	t.Helper()
	store := memory.NewStore()
	now := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)
	event := &model.Event{ID: 10, OrganizationID: 3, CertificateTitle: "Completion", EndsAt: now}

	var ids []int64
	for i := 0; i < n; i++ {
		recipient := &model.Profile{UserID: int64(100 + i), FirstName: "User", Email: "user@example.com"}
		cert := model.NewCertificate(event, &model.Organization{ID: 3, Name: "Acme"}, nil, recipient, now)
		require.NoError(t, store.Create(context.Background(), cert))
		ids = append(ids, cert.ID)
	}
	return store, ids
}

func newDispatcher(t *testing.T, store *memory.Store, selector SenderSelector, conv render.Converter, archive Archive) *Dispatcher {
	t.Helper()
	renderer, err := render.NewRenderer(render.Config{PublicBaseURL: "https://certs.example.com"}, conv, nil, nil)
	require.NoError(t, err)
	return NewDispatcher(store, store, selector, renderer, archive, Config{AttachPDF: true}, nil, nil)
}

func TestDeliverCertificateSendsAndRecords(t *testing.T) {
	store, ids := newStoreWithCertificates(t, 1)
	sender := &fakeSender{id: "postmark"}
	archive := &fakeArchive{}
	d := newDispatcher(t, store, fakeSelector{sender: sender}, fakeConverter{}, archive)

	intent := d.DeliverCertificate(context.Background(), ids[0])

	assert.Equal(t, model.DeliveryStatusSent, intent.Status)
	assert.Equal(t, "postmark", intent.Provider)
	assert.Equal(t, "msg-1", intent.ProviderMessageID)
	assert.Equal(t, int64(3), intent.TenantID)
	assert.Contains(t, intent.ContentRef, "s3://certs/")
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "user@example.com", sender.sent[0].To)
	require.Len(t, sender.sent[0].Attachments, 1)
	assert.Equal(t, "application/pdf", sender.sent[0].Attachments[0].ContentType)

	recorded, err := store.ListByCertificate(context.Background(), ids[0])
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, model.DeliveryStatusSent, recorded[0].Status)
}

func TestDeliverCertificateArchiveFailureIsNotFatal(t *testing.T) {
	store, ids := newStoreWithCertificates(t, 1)
	d := newDispatcher(t, store, fakeSelector{sender: &fakeSender{id: "smtp"}}, fakeConverter{}, &fakeArchive{err: errors.New("s3 down")})

	intent := d.DeliverCertificate(context.Background(), ids[0])
	assert.Equal(t, model.DeliveryStatusSent, intent.Status)
	assert.Empty(t, intent.ContentRef)
}

func TestDeliverCertificateNoProvider(t *testing.T) {
	store, ids := newStoreWithCertificates(t, 1)
	d := newDispatcher(t, store, fakeSelector{err: apperrors.NoProviderEnabled(3)}, fakeConverter{}, nil)

	intent := d.DeliverCertificate(context.Background(), ids[0])

	assert.Equal(t, model.DeliveryStatusFailed, intent.Status)
	assert.Equal(t, apperrors.KindNoProviderEnabled.String(), intent.FailureKind)

	_, err := store.Get(context.Background(), ids[0])
	assert.NoError(t, err, "a failed delivery never retracts the certificate")
}

func TestDeliverCertificateRenderAuthFailure(t *testing.T) {
	store, ids := newStoreWithCertificates(t, 1)
	sender := &fakeSender{id: "postmark"}
	conv := fakeConverter{err: apperrors.ProviderAuth("render backend", errors.New("status 401"))}
	d := newDispatcher(t, store, fakeSelector{sender: sender}, conv, nil)

	intent := d.DeliverCertificate(context.Background(), ids[0])

	assert.Equal(t, model.DeliveryStatusFailed, intent.Status)
	assert.Equal(t, apperrors.KindProviderAuth.String(), intent.FailureKind)
	assert.Empty(t, sender.sent)
}

func TestDeliverBatchItemsAreIndependent(t *testing.T) {
	store, ids := newStoreWithCertificates(t, 2)
	d := newDispatcher(t, store, fakeSelector{sender: &fakeSender{id: "smtp"}}, fakeConverter{}, nil)

	intents := d.DeliverBatch(context.Background(), []int64{ids[0], 999, ids[1]})

	require.Len(t, intents, 3)
	assert.Equal(t, model.DeliveryStatusSent, intents[0].Status)
	assert.Equal(t, model.DeliveryStatusFailed, intents[1].Status)
	assert.Equal(t, apperrors.KindNotFound.String(), intents[1].FailureKind)
	assert.Equal(t, model.DeliveryStatusSent, intents[2].Status)
	assert.Len(t, store.Deliveries(), 3)
}

func TestDeliverNotification(t *testing.T) {
	store := memory.NewStore()
	sender := &fakeSender{id: "webhook"}
	d := newDispatcher(t, store, fakeSelector{sender: sender}, nil, nil)

	intent := d.DeliverNotification(context.Background(), model.Notification{
		TenantID: 3,
		To:       "ops@example.com",
		Subject:  "Heads up",
		HTMLBody: "<p>ok</p>",
	})

	assert.Equal(t, model.DeliveryStatusSent, intent.Status)
	assert.Nil(t, intent.CertificateID)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "<p>ok</p>", sender.sent[0].HTMLBody)
}

type blockingSender struct {
	id      string
	release chan struct{}
}

func (s *blockingSender) ProviderID() string { return s.id }

func (s *blockingSender) Send(ctx context.Context, _ provider.Message) (string, error) {
	if s.release != nil {
		<-s.release
		return "late", nil
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func newTimedDispatcher(store *memory.Store, sender provider.Sender, timeout time.Duration) *Dispatcher {
	return NewDispatcher(store, store, fakeSelector{sender: sender}, nil, nil, Config{SendTimeout: timeout}, nil, nil)
}

func TestDeliverNotificationSendTimeoutIsTransient(t *testing.T) {
	tests := []struct {
		name   string
		sender *blockingSender
	}{
		{name: "sender honours context", sender: &blockingSender{id: "postmark"}},
		{name: "sender ignores context", sender: &blockingSender{id: "smtp", release: make(chan struct{})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.sender.release != nil {
				defer close(tt.sender.release)
			}
			store := memory.NewStore()
			d := newTimedDispatcher(store, tt.sender, 20*time.Millisecond)

			done := make(chan model.DeliveryIntent, 1)
			go func() {
				done <- d.DeliverNotification(context.Background(), model.Notification{
					TenantID: 3,
					To:       "ops@example.com",
					Subject:  "Heads up",
					HTMLBody: "<p>ok</p>",
				})
			}()

			select {
			case intent := <-done:
				assert.Equal(t, model.DeliveryStatusFailed, intent.Status)
				assert.Equal(t, tt.sender.id, intent.Provider)
				assert.Equal(t, apperrors.KindTransientBackend.String(), intent.FailureKind)
				assert.Contains(t, intent.FailureReason, "send timed out after 20ms")
			case <-time.After(2 * time.Second):
				t.Fatal("send was not bounded")
			}
			assert.Len(t, store.Deliveries(), 1)
		})
	}
}

func TestDispatcherDefaultsSendTimeout(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil, nil, Config{}, nil, nil)
	assert.Equal(t, defaultSendTimeout, d.config.SendTimeout)
}
