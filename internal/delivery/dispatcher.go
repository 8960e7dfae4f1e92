// Package delivery sends issued certificates and ad hoc notifications through
// the tenant's selected provider and records each attempt.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/provider"
	"github.com/jwalitptl/certify-api/internal/repository"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
	"github.com/jwalitptl/certify-api/pkg/logger"
	"github.com/jwalitptl/certify-api/pkg/metrics"
)

type SenderSelector interface {
	SelectSender(ctx context.Context, tenantID int64) (provider.Sender, error)
}

type Renderer interface {
	RenderHTML(ctx context.Context, view model.CertificateView) (string, error)
	RenderPDF(ctx context.Context, view model.CertificateView) ([]byte, error)
}

// Archive keeps a copy of rendered documents.
type Archive interface {
	Put(ctx context.Context, tenantID int64, name, contentType string, content []byte) (string, error)
}

type Config struct {
	// AttachPDF renders and attaches the PDF document to certificate deliveries.
	AttachPDF bool
	Subject   string
	// SendTimeout bounds a single provider send. A send that runs past it
	// fails as transient so the worker retries it.
	SendTimeout time.Duration
}

const defaultSendTimeout = 30 * time.Second

type Dispatcher struct {
	certs      repository.CertificateRepository
	deliveries repository.DeliveryRepository
	selector   SenderSelector
	renderer   Renderer
	archive    Archive
	config     Config
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time
}

// NewDispatcher wires the dispatcher. archive may be nil.
func NewDispatcher(
	certs repository.CertificateRepository,
	deliveries repository.DeliveryRepository,
	selector SenderSelector,
	renderer Renderer,
	archive Archive,
	config Config,
	m *metrics.Metrics,
	log *logger.Logger,
) *Dispatcher {
	if config.Subject == "" {
		config.Subject = "Your certificate"
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaultSendTimeout
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		certs:      certs,
		deliveries: deliveries,
		selector:   selector,
		renderer:   renderer,
		archive:    archive,
		config:     config,
		metrics:    m,
		log:        log.With("delivery_dispatcher"),
		now:        time.Now,
	}
}

// DeliverCertificate renders and sends one certificate. The returned intent
// carries the outcome; a failed delivery never affects the certificate.
func (d *Dispatcher) DeliverCertificate(ctx context.Context, certificateID int64) model.DeliveryIntent {
	timer := prometheus.NewTimer(d.metrics.DeliveryLatency)
	defer timer.ObserveDuration()

	intent := model.NewDeliveryIntent(0, d.now())
	intent.CertificateID = &certificateID

	cert, err := d.certs.Get(ctx, certificateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = apperrors.NotFound("certificate", err)
		}
		return d.fail(ctx, intent, "", err)
	}
	intent.TenantID = cert.TenantID
	intent.Recipient = cert.RecipientEmail
	intent.Subject = fmt.Sprintf("%s: %s", d.config.Subject, cert.Title)

	sender, err := d.selector.SelectSender(ctx, cert.TenantID)
	if err != nil {
		return d.fail(ctx, intent, "", err)
	}

	msg, err := d.certificateMessage(ctx, cert, intent)
	if err != nil {
		return d.fail(ctx, intent, sender.ProviderID(), err)
	}

	return d.send(ctx, intent, sender, msg)
}

func (d *Dispatcher) certificateMessage(ctx context.Context, cert *model.Certificate, intent *model.DeliveryIntent) (provider.Message, error) {
	view := cert.View()
	html, err := d.renderer.RenderHTML(ctx, view)
	if err != nil {
		return provider.Message{}, err
	}

	msg := provider.Message{
		To:       cert.RecipientEmail,
		Subject:  intent.Subject,
		HTMLBody: html,
		Tag:      "certificate",
	}
	if !d.config.AttachPDF {
		return msg, nil
	}

	pdf, err := d.renderer.RenderPDF(ctx, view)
	if err != nil {
		return provider.Message{}, err
	}
	name := cert.GUID.String() + ".pdf"
	msg.Attachments = []provider.Attachment{{Name: "certificate.pdf", ContentType: "application/pdf", Content: pdf}}

	if d.archive != nil {
		ref, err := d.archive.Put(ctx, cert.TenantID, name, "application/pdf", pdf)
		if err != nil {
			d.log.Warn("failed to archive certificate document",
				"certificate_id", cert.ID,
				"error", err.Error(),
			)
		} else {
			intent.ContentRef = ref
		}
	}
	return msg, nil
}

// DeliverNotification sends an ad hoc notification for a tenant.
func (d *Dispatcher) DeliverNotification(ctx context.Context, n model.Notification) model.DeliveryIntent {
	timer := prometheus.NewTimer(d.metrics.DeliveryLatency)
	defer timer.ObserveDuration()

	intent := model.NewDeliveryIntent(n.TenantID, d.now())
	intent.Recipient = n.To
	intent.Subject = n.Subject

	sender, err := d.selector.SelectSender(ctx, n.TenantID)
	if err != nil {
		return d.fail(ctx, intent, "", err)
	}

	return d.send(ctx, intent, sender, provider.Message{
		To:       n.To,
		Subject:  n.Subject,
		HTMLBody: n.HTMLBody,
		Tag:      n.Tag,
	})
}

// DeliverBatch delivers each certificate independently, in order.
func (d *Dispatcher) DeliverBatch(ctx context.Context, certificateIDs []int64) []model.DeliveryIntent {
	out := make([]model.DeliveryIntent, 0, len(certificateIDs))
	for _, id := range certificateIDs {
		out = append(out, d.DeliverCertificate(ctx, id))
	}
	return out
}

func (d *Dispatcher) send(ctx context.Context, intent *model.DeliveryIntent, sender provider.Sender, msg provider.Message) model.DeliveryIntent {
	messageID, err := d.boundedSend(ctx, sender, msg)
	if err != nil {
		return d.fail(ctx, intent, sender.ProviderID(), err)
	}

	intent.MarkSent(sender.ProviderID(), messageID, d.now())
	d.metrics.DeliveriesTotal.WithLabelValues(sender.ProviderID(), string(model.DeliveryStatusSent)).Inc()
	d.record(ctx, intent)
	d.log.Info("delivery sent",
		"intent_id", intent.ID.String(),
		"provider", intent.Provider,
		"tenant_id", intent.TenantID,
	)
	return *intent
}

type sendResult struct {
	messageID string
	err       error
}

// boundedSend returns once the sender answers or SendTimeout passes, even
// when the sender ignores its context.
func (d *Dispatcher) boundedSend(ctx context.Context, sender provider.Sender, msg provider.Message) (string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	done := make(chan sendResult, 1)
	go func() {
		id, err := sender.Send(sendCtx, msg)
		done <- sendResult{messageID: id, err: err}
	}()

	var res sendResult
	select {
	case res = <-done:
	case <-sendCtx.Done():
		res.err = sendCtx.Err()
	}
	if res.err == nil {
		return res.messageID, nil
	}
	if errors.Is(sendCtx.Err(), context.DeadlineExceeded) && apperrors.KindOf(res.err) != apperrors.KindTransientBackend {
		if ctx.Err() == nil {
			return "", apperrors.TransientBackend(sender.ProviderID(), fmt.Errorf("send timed out after %s", d.config.SendTimeout))
		}
		return "", apperrors.TransientBackend(sender.ProviderID(), ctx.Err())
	}
	return "", res.err
}

func (d *Dispatcher) fail(ctx context.Context, intent *model.DeliveryIntent, providerID string, err error) model.DeliveryIntent {
	intent.Provider = providerID
	intent.MarkFailed(apperrors.KindOf(err).String(), err, d.now())

	label := providerID
	if label == "" {
		label = "none"
	}
	d.metrics.DeliveriesTotal.WithLabelValues(label, string(model.DeliveryStatusFailed)).Inc()
	d.record(ctx, intent)
	d.log.Error(err, "delivery failed",
		"intent_id", intent.ID.String(),
		"tenant_id", intent.TenantID,
		"failure_kind", intent.FailureKind,
	)
	return *intent
}

func (d *Dispatcher) record(ctx context.Context, intent *model.DeliveryIntent) {
	// the outcome is recorded even when the caller's context is gone
	ctx = context.WithoutCancel(ctx)
	if err := d.deliveries.Record(ctx, intent); err != nil {
		d.metrics.DatabaseOperations.WithLabelValues("delivery_record", "error").Inc()
		d.log.Error(err, "failed to record delivery intent", "intent_id", intent.ID.String())
		return
	}
	d.metrics.DatabaseOperations.WithLabelValues("delivery_record", "ok").Inc()
}
