package workers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-gateway/internal/models"
	"payment-gateway/internal/redis"
)

func testQueue(t *testing.T) *redis.PaymentQueue {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClientFromOptions(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return redis.NewPaymentQueue(client)
}

func TestForwarderPushesToQueue(t *testing.T) {
	queue := testQueue(t)
	forwarder := NewForwarder(queue)
	forwarder.Start()
	defer forwarder.Close()

	payment := models.Payment{CorrelationID: uuid.New(), Amount: 123.45}
	require.NoError(t, forwarder.Enqueue(payment))

	assert.Eventually(t, func() bool {
		n, err := queue.Len(context.Background())
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	msg, err := queue.Pop(context.Background())
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, payment.CorrelationID, msg.ID)
	assert.Equal(t, payment.CorrelationID, msg.Payment.CorrelationID)
	assert.Equal(t, payment.Amount, msg.Payment.Amount)
}

func TestForwarderDrainsOnClose(t *testing.T) {
	queue := testQueue(t)
	forwarder := NewForwarder(queue)
	forwarder.Start()

	for i := 0; i < 10; i++ {
		require.NoError(t, forwarder.Enqueue(models.Payment{CorrelationID: uuid.New(), Amount: 1.00}))
	}

	forwarder.Close()

	n, err := queue.Len(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)
}

func TestForwarderRejectsAfterClose(t *testing.T) {
	queue := testQueue(t)
	forwarder := NewForwarder(queue)
	forwarder.Start()
	forwarder.Close()

	err := forwarder.Enqueue(models.Payment{CorrelationID: uuid.New(), Amount: 1.00})
	assert.ErrorIs(t, err, ErrBridgeClosed)
}

func TestForwarderCloseIsIdempotent(t *testing.T) {
	forwarder := NewForwarder(testQueue(t))
	forwarder.Start()
	forwarder.Close()
	forwarder.Close()
}
