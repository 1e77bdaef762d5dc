package kafka

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/dax-side/ecommerce-microservices-api/pkg/cache/cachetest"
	"github.com/dax-side/ecommerce-microservices-api/pkg/db/dbtest"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/pkg/outbox/outboxtest"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/service"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func message(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: generalDomain.TopicOrderEvents, Value: []byte(value)}
}

func TestHandleMessage_ReserveAndRelease(t *testing.T) {
	repo := testutil.NewProductRepo(domain.Product{ID: "p1", Name: "Keyboard", Price: decimal.RequireFromString("10.00"), Stock: 5})
	outbox := &outboxtest.Outbox{}
	mem := cachetest.NewMemory()
	mem.Set(context.Background(), "product:p1", []byte(`{"id":"p1","stock":5}`), 0)

	svc := service.NewCachedProductService(
		service.NewProductService(repo, outbox, dbtest.NewTxPool(), zap.NewNop()),
		mem,
	)
	c := NewConsumer(svc, zap.NewNop())

	created := message(`{"event_id":"e1","event":"OrderCreated","payload":{"order_id":"o1","user_id":"u1","items":[{"product_id":"p1","quantity":2}]}}`)
	require.NoError(t, c.HandleMessage(context.Background(), created))
	assert.Equal(t, int64(3), repo.Stock("p1"))
	assert.False(t, mem.Has("product:p1"))

	require.NoError(t, c.HandleMessage(context.Background(), created))
	assert.Equal(t, int64(3), repo.Stock("p1"))

	cancelled := message(`{"event_id":"e2","event":"OrderCancelled","payload":{"order_id":"o1","user_id":"u1","items":[{"product_id":"p1","quantity":2}]}}`)
	require.NoError(t, c.HandleMessage(context.Background(), cancelled))
	require.NoError(t, c.HandleMessage(context.Background(), cancelled))
	assert.Equal(t, int64(5), repo.Stock("p1"))

	tooMany := message(`{"event_id":"e3","event":"OrderCreated","payload":{"order_id":"o2","user_id":"u1","items":[{"product_id":"p1","quantity":6}]}}`)
	require.NoError(t, c.HandleMessage(context.Background(), tooMany))
	assert.Equal(t, int64(5), repo.Stock("p1"))
	assert.Equal(t, []string{generalDomain.EventStockReservationFailed}, outbox.Types())
}

func TestHandleMessage_RejectsMalformed(t *testing.T) {
	svc := service.NewProductService(testutil.NewProductRepo(), &outboxtest.Outbox{}, dbtest.NewTxPool(), zap.NewNop())
	c := NewConsumer(svc, zap.NewNop())

	assert.Error(t, c.HandleMessage(context.Background(), message(`{`)))
	assert.Error(t, c.HandleMessage(context.Background(), message(`{"event":"OrderCreated","payload":{}}`)))
	assert.Error(t, c.HandleMessage(context.Background(), message(`{"event_id":"e1","event":"OrderCancelled","payload":[]}`)))
	assert.NoError(t, c.HandleMessage(context.Background(), message(`{"event_id":"e2","event":"PaymentSucceeded","payload":{}}`)))
}
