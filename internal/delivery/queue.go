package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/pkg/messaging"
	"github.com/jwalitptl/certify-api/pkg/metrics"
)

const DefaultTopic = "certificates.delivery"

// Queue publishes delivery jobs for the worker.
type Queue struct {
	broker  messaging.Broker
	topic   string
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewQueue(broker messaging.Broker, topic string, m *metrics.Metrics) *Queue {
	if topic == "" {
		topic = DefaultTopic
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Queue{broker: broker, topic: topic, metrics: m, now: time.Now}
}

func (q *Queue) Enqueue(ctx context.Context, certificateID, tenantID int64) error {
	job := model.DeliveryJob{
		CertificateID: certificateID,
		TenantID:      tenantID,
		EnqueuedAt:    q.now(),
	}
	if err := q.broker.Publish(ctx, q.topic, job); err != nil {
		return fmt.Errorf("failed to publish delivery job: %w", err)
	}
	q.metrics.DeliveryEnqueued.Inc()
	return nil
}
