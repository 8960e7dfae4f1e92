package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/certify-api/internal/model"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
	"github.com/jwalitptl/certify-api/pkg/messaging"
)

type countingDeliverer struct {
	mu     sync.Mutex
	calls  map[int64]int
	status model.DeliveryStatus
	kind   string
}

func (c *countingDeliverer) DeliverCertificate(_ context.Context, id int64) model.DeliveryIntent {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[id]++
	return model.DeliveryIntent{Status: c.status, FailureKind: c.kind}
}

func (c *countingDeliverer) count(id int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

func TestQueueAndWorkerDeliverJobs(t *testing.T) {
	broker := messaging.NewMemoryBroker(10)
	deliverer := &countingDeliverer{calls: map[int64]int{}, status: model.DeliveryStatusSent}

	queue := NewQueue(broker, "", nil)
	require.NoError(t, queue.Enqueue(context.Background(), 1, 3))
	require.NoError(t, queue.Enqueue(context.Background(), 2, 3))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- NewWorker(broker, deliverer, WorkerConfig{}, nil).Start(ctx) }()

	assert.Eventually(t, func() bool {
		return deliverer.count(1) == 1 && deliverer.count(2) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	deliverer := &countingDeliverer{
		calls:  map[int64]int{},
		status: model.DeliveryStatusFailed,
		kind:   apperrors.KindTransientBackend.String(),
	}
	w := NewWorker(messaging.NewMemoryBroker(1), deliverer, WorkerConfig{RetryAttempts: 3, RetryDelay: time.Millisecond}, nil)

	w.handle(context.Background(), []byte(`{"certificate_id":7,"tenant_id":3}`))
	assert.Equal(t, 3, deliverer.count(7))

	deliverer.kind = apperrors.KindProviderAuth.String()
	w.handle(context.Background(), []byte(`{"certificate_id":8,"tenant_id":3}`))
	assert.Equal(t, 1, deliverer.count(8), "auth failures are not retried")
}

func TestWorkerDropsMalformedJobs(t *testing.T) {
	deliverer := &countingDeliverer{calls: map[int64]int{}}
	w := NewWorker(messaging.NewMemoryBroker(1), deliverer, WorkerConfig{}, nil)

	w.handle(context.Background(), []byte(`not json`))
	assert.Empty(t, deliverer.calls)
}
