package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AMQPClient publishes notifications to a durable direct exchange and
// consumes them on the notifier side.
type AMQPClient struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	log          zerolog.Logger
}

func NewAMQPClient(url, exchangeName, queueName string, log zerolog.Logger) (*AMQPClient, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &AMQPClient{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		log:          log,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *AMQPClient) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// Notify publishes n as a persistent JSON message.
func (c *AMQPClient) Notify(ctx context.Context, n Notification) error {
	body, err := n.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Type:         n.Type,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	c.log.Debug().
		Str("recipient_id", n.RecipientID.String()).
		Str("type", n.Type).
		Str("exchange", c.exchangeName).
		Msg("notification: published")

	return nil
}

// Consume hands every delivery to handler until ctx is cancelled.
// Undecodable messages are dropped. A handler failure is requeued once and
// dropped on redelivery, so a permanent failure cannot loop.
func (c *AMQPClient) Consume(ctx context.Context, handler Notifier) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.log.Info().Str("queue", c.queueName).Msg("Started consuming notifications")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			if err := c.handle(ctx, delivery, handler); err != nil {
				c.log.Warn().Err(err).Msg("notification: ack failed")
			}
		}
	}
}

func (c *AMQPClient) handle(ctx context.Context, delivery amqp091.Delivery, handler Notifier) error {
	n, err := FromJSON(delivery.Body)
	if err != nil {
		c.log.Error().Err(err).Msg("notification: undecodable message dropped")
		return delivery.Nack(false, false)
	}
	if err := handler.Notify(ctx, n); err != nil {
		requeue := !delivery.Redelivered
		c.log.Error().Err(err).
			Str("recipient_id", n.RecipientID.String()).
			Bool("requeue", requeue).
			Msg("notification: handler failed")
		return delivery.Nack(false, requeue)
	}
	return delivery.Ack(false)
}

func (c *AMQPClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
