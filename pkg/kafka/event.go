package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/dax-side/ecommerce-microservices-api/pkg/domain"
)

// DecodeEvent decodes the payload of wrapper into a value of type T.
func DecodeEvent[T any](wrapper domain.EventWrapper) (*T, error) {
	var event T
	if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", wrapper.Event, err)
	}

	return &event, nil
}

func DecodeWrapper(value []byte) (domain.EventWrapper, error) {
	var wrapper domain.EventWrapper
	if err := json.Unmarshal(value, &wrapper); err != nil {
		return wrapper, fmt.Errorf("unmarshal event wrapper: %w", err)
	}

	if wrapper.EventID == "" {
		return wrapper, fmt.Errorf("event %q has no event_id", wrapper.Event)
	}

	return wrapper, nil
}
