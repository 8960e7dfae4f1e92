package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/certify-api/internal/model"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
	"github.com/jwalitptl/certify-api/pkg/logger"
	"github.com/jwalitptl/certify-api/pkg/messaging"
)

type CertificateDeliverer interface {
	DeliverCertificate(ctx context.Context, certificateID int64) model.DeliveryIntent
}

type WorkerConfig struct {
	Topic string
	// RetryAttempts bounds deliveries of one job that fail with a retryable kind.
	RetryAttempts int
	RetryDelay    time.Duration
}

// Worker consumes delivery jobs and dispatches each one independently.
type Worker struct {
	broker     messaging.Broker
	dispatcher CertificateDeliverer
	config     WorkerConfig
	logger     *logger.Logger
}

func NewWorker(broker messaging.Broker, dispatcher CertificateDeliverer, config WorkerConfig, log *logger.Logger) *Worker {
	if config.Topic == "" {
		config.Topic = DefaultTopic
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Worker{
		broker:     broker,
		dispatcher: dispatcher,
		config:     config,
		logger:     log.With("delivery_worker"),
	}
}

// Start blocks until ctx is cancelled or the subscription closes.
func (w *Worker) Start(ctx context.Context) error {
	messages, err := w.broker.Subscribe(ctx, w.config.Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", w.config.Topic, err)
	}

	w.logger.Info("Starting delivery worker", "topic", w.config.Topic)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down delivery worker")
			return nil
		case payload, ok := <-messages:
			if !ok {
				return nil
			}
			w.handle(ctx, payload)
		}
	}
}

func (w *Worker) handle(ctx context.Context, payload []byte) {
	var job model.DeliveryJob
	if err := json.Unmarshal(payload, &job); err != nil {
		w.logger.Error(err, "Dropping malformed delivery job")
		return
	}

	intent := w.deliver(ctx, job)
	if intent.Status == model.DeliveryStatusFailed {
		w.logger.Warn("Certificate delivery failed",
			"certificate_id", job.CertificateID,
			"failure_kind", intent.FailureKind,
			"reason", intent.FailureReason,
		)
	}
}

func (w *Worker) deliver(ctx context.Context, job model.DeliveryJob) model.DeliveryIntent {
	var intent model.DeliveryIntent
	for attempt := 1; attempt <= w.config.RetryAttempts; attempt++ {
		intent = w.dispatcher.DeliverCertificate(ctx, job.CertificateID)
		if intent.Status != model.DeliveryStatusFailed || intent.FailureKind != apperrors.KindTransientBackend.String() {
			return intent
		}
		if attempt < w.config.RetryAttempts {
			select {
			case <-ctx.Done():
				return intent
			case <-time.After(w.config.RetryDelay):
			}
		}
	}
	return intent
}
