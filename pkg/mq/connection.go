package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange is the topic exchange every triage context publishes to.
	DefaultExchange = "triage.events"
	// BroadcastBinding binds a context's queue to every triage event.
	BroadcastBinding = "triage.#"
)

// NewConnection creates a new RabbitMQ connection.
func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares the durable topic exchange.
func DeclareExchange(ch *amqp091.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

func exchangeOrDefault(exchange string) string {
	if exchange == "" {
		return DefaultExchange
	}
	return exchange
}
