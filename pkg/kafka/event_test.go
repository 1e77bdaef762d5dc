package kafka

import (
	"testing"

	"github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOrderCreated(t *testing.T) {
	value := []byte(`{
		"event_id": "4f6c1d1e-6a43-4d38-9d3b-0c1f1f1f1f1f",
		"event": "OrderCreated",
		"payload": {"order_id": "o1", "user_id": "u1", "items": [{"product_id": "p1", "quantity": 2}]}
	}`)

	wrapper, err := DecodeWrapper(value)
	require.NoError(t, err)
	assert.Equal(t, domain.EventOrderCreated, wrapper.Event)

	event, err := DecodeEvent[domain.OrderCreatedEvent](wrapper)
	require.NoError(t, err)
	assert.Equal(t, "o1", event.OrderID)
	require.Len(t, event.Items, 1)
	assert.EqualValues(t, 2, event.Items[0].Quantity)
}

func TestDecodeWrapperRequiresEventID(t *testing.T) {
	_, err := DecodeWrapper([]byte(`{"event":"OrderCreated","payload":{}}`))
	assert.Error(t, err)

	_, err = DecodeWrapper([]byte(`not json`))
	assert.Error(t, err)
}
