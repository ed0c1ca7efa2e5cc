package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dcastano/store-api/internal/usecase"
)

const (
	exchangeName = "store.events"
	queueName    = "store.order-events.q"
	bindingKey   = "order.*"
)

// RabbitProducer implements usecase.EventPublisher. Downstream consumers
// (fulfillment, confirmation emails, the admin panel feed) bind to
// store.events.
type RabbitProducer struct {
	ch *amqp.Channel
}

// NewRabbitProducer sets up the exchange, queue, and binding once at startup.
func NewRabbitProducer(ch *amqp.Channel) (*RabbitProducer, error) {
	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, bindingKey, exchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitProducer{ch: ch}, nil
}

// PublishOrderEvent routes by status: order.created, order.paid, ...
func (p *RabbitProducer) PublishOrderEvent(ctx context.Context, msg usecase.OrderEventMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	routingKey := "order." + routingSuffix(msg.Status)
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func routingSuffix(status string) string {
	switch status {
	case "PAID":
		return "paid"
	case "PENDING":
		return "created"
	case "CANCELLED":
		return "cancelled"
	case "SHIPPED":
		return "shipped"
	default:
		return "updated"
	}
}

var _ usecase.EventPublisher = (*RabbitProducer)(nil)
