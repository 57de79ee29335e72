package messaging

import (
	"context"

	messaging "github.com/rodolfodevapp/eventshop-messaging-go/rabbitmq"
	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/application"
)

type EventBusPair struct {
	OrdersConsumer *messaging.RabbitMqEventBus
	Producer       *messaging.RabbitMqEventBus
}

// Consumer for orders.events + producer for stock.events
func NewEventBusPair(
	rabbitUri string,
	ordersQueuePrefix string,
) EventBusPair {
	ordersOpts := messaging.RabbitMqOptions{
		URI:          rabbitUri,
		ExchangeName: "orders.events",
		QueuePrefix:  ordersQueuePrefix,
		Prefetch:     32,
		RetryDelayMs: 30000,
	}
	producerOpts := messaging.RabbitMqOptions{
		URI:          rabbitUri,
		ExchangeName: "stock.events",
		QueuePrefix:  "stock.dispatcher.v1",
		Prefetch:     32,
		RetryDelayMs: 30000,
	}

	ordersBus := messaging.NewRabbitMqEventBus(ordersOpts, nil, nil)
	producerBus := messaging.NewRabbitMqEventBus(producerOpts, nil, nil)

	return EventBusPair{
		OrdersConsumer: ordersBus,
		Producer:       producerBus,
	}
}

// Consumer for catalog.events
func NewCatalogEventBus(
	rabbitUri string,
	queuePrefix string,
) *messaging.RabbitMqEventBus {
	opts := messaging.RabbitMqOptions{
		URI:          rabbitUri,
		ExchangeName: "catalog.events",
		QueuePrefix:  queuePrefix,
		Prefetch:     32,
		RetryDelayMs: 30000,
	}
	return messaging.NewRabbitMqEventBus(opts, nil, nil)
}

func RegisterOrderSubscriptions(
	ctx context.Context,
	bus *messaging.RabbitMqEventBus,
	logger *zap.Logger,
	orderPlacedHandler application.EventHandler,
	orderCancelledHandler application.EventHandler,
	orderReturnedHandler application.EventHandler,
) error {
	bus.Subscribe("OrderPlacedEvent", orderPlacedHandler)
	bus.Subscribe("OrderCancelledEvent", orderCancelledHandler)
	bus.Subscribe("OrderRejectedEvent", orderCancelledHandler)
	bus.Subscribe("OrderReturnedEvent", orderReturnedHandler)

	if err := bus.StartConsumers(ctx); err != nil {
		logger.Error("failed to start orders consumers", zap.Error(err))
		return err
	}
	return nil
}

func RegisterCatalogSubscriptions(
	ctx context.Context,
	bus *messaging.RabbitMqEventBus,
	logger *zap.Logger,
	productCreatedHandler application.EventHandler,
) error {
	bus.Subscribe("ProductCreated", productCreatedHandler)

	if err := bus.StartConsumers(ctx); err != nil {
		logger.Error("failed to start catalog consumers", zap.Error(err))
		return err
	}
	return nil
}
