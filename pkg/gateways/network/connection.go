package network

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type connection interface {
	connect() error
	createChannel() error
	queueDeclare(name string) error
	exchangeDeclare(name, exchangeType string) error
	queueBind(queueName, key, exchangeName string) error
	consume(queue string) (<-chan amqp.Delivery, error)
	publish(ctx context.Context, exchange, key string, data interface{}, options *MessageOptions) error
	isClosed() bool
	close() error
	closeChannel() error
	notifyClose(channel chan *amqp.Error) chan *amqp.Error
}

type AmqpConnection struct {
	url     string
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

func NewAmqpConnection(url string) *AmqpConnection {
	return &AmqpConnection{url: url}
}

func (a *AmqpConnection) connect() error {
	conn, err := amqp.Dial(a.url)
	if err == nil {
		a.conn = conn
	}
	return err
}

func (a *AmqpConnection) createChannel() error {
	channel, err := a.conn.Channel()
	if err == nil {
		a.channel = channel
	}
	return err
}

func (a *AmqpConnection) queueDeclare(name string) error {
	queue, err := a.channel.QueueDeclare(
		name,
		durable,
		deleteWhenUnused,
		exclusive,
		noWait,
		nil, // arguments
	)
	if err == nil {
		a.queue = &queue
	}
	return err
}

func (a *AmqpConnection) exchangeDeclare(name, exchangeType string) error {
	return a.channel.ExchangeDeclare(
		name,
		exchangeType,
		durable,
		deleteWhenUnused,
		internal,
		noWait,
		nil, // arguments
	)
}

func (a *AmqpConnection) queueBind(queueName, key, exchangeName string) error {
	return a.channel.QueueBind(queueName, key, exchangeName, noWait, nil)
}

func (a *AmqpConnection) consume(queue string) (<-chan amqp.Delivery, error) {
	return a.channel.Consume(queue, consumerTag, noAck, exclusive, noLocal, noWait, nil)
}

func (a *AmqpConnection) publish(ctx context.Context, exchange, key string, data interface{}, options *MessageOptions) error {
	var headers amqp.Table
	var corrID, expTime string

	if options != nil {
		headers = amqp.Table{}
		for k, v := range options.Headers {
			headers[k] = v
		}
		corrID = options.CorrelationID
		expTime = options.Expiration
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error enconding JSON message: %w", err)
	}

	return a.channel.PublishWithContext(
		ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			Headers:       headers,
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: corrID,
			Body:          body,
			Expiration:    expTime,
		},
	)
}

func (a *AmqpConnection) isClosed() bool {
	return a.conn == nil || a.conn.IsClosed()
}

func (a *AmqpConnection) close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}

func (a *AmqpConnection) closeChannel() error {
	if a.channel == nil {
		return nil
	}
	return a.channel.Close()
}

func (a *AmqpConnection) notifyClose(channel chan *amqp.Error) chan *amqp.Error {
	return a.conn.NotifyClose(channel)
}
