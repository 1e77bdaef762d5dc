package kafka

import (
	"context"

	"github.com/IBM/sarama"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/pkg/kafka"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/service"
	"go.uber.org/zap"
)

const DefaultGroupID = "product-service-group"

type Consumer struct {
	service service.ProductService
	logger  *zap.Logger
}

func NewConsumer(service service.ProductService, logger *zap.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, brokers []string, groupID string) error {
	if groupID == "" {
		groupID = DefaultGroupID
	}

	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		[]string{generalDomain.TopicOrderEvents},
		c.HandleMessage,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

func (c *Consumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	mylogger.Info(
		ctx,
		c.logger,
		"Processing message",
		zap.String("topic", msg.Topic),
	)

	wrapper, err := kafka.DecodeWrapper(msg.Value)
	if err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling wrapper", zap.Error(err))
		return err
	}

	switch wrapper.Event {
	case generalDomain.EventOrderCreated:
		event, err := kafka.DecodeEvent[generalDomain.OrderCreatedEvent](wrapper)
		if err != nil {
			mylogger.Warn(ctx, c.logger, "Error unmarshalling event structure", zap.Error(err))
			return err
		}

		if _, err := c.service.ReserveStock(ctx, wrapper.EventID, event); err != nil {
			mylogger.Warn(ctx, c.logger, "Error processing order created", zap.Error(err))
			return err
		}
	case generalDomain.EventOrderCancelled:
		event, err := kafka.DecodeEvent[generalDomain.OrderCancelledEvent](wrapper)
		if err != nil {
			mylogger.Warn(ctx, c.logger, "Error unmarshalling event structure", zap.Error(err))
			return err
		}

		if _, err := c.service.ReleaseStock(ctx, wrapper.EventID, event); err != nil {
			mylogger.Warn(ctx, c.logger, "Error processing return stock", zap.Error(err))
			return err
		}
	default:
		mylogger.Debug(ctx, c.logger, "Ignored event type", zap.String("event_type", wrapper.Event))
	}

	return nil
}
