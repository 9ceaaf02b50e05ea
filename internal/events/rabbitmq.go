package events

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitPublisher publishes ledger events to a durable topic exchange.
type RabbitPublisher struct {
	ch *amqp.Channel
}

// NewRabbitPublisher declares the exchange and wraps the channel.
func NewRabbitPublisher(ch *amqp.Channel) (*RabbitPublisher, error) {
	err := ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{ch: ch}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, event TransactionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx,
		Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
