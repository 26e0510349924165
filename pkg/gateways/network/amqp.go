package network

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	ExchangeTypeDirect = "direct"
	ExchangeTypeTopic  = "topic"

	durable          = true
	deleteWhenUnused = false
	exclusive        = false
	noWait           = false
	internal         = false
	noAck            = true
	noLocal          = false
	consumerTag      = ""
)

// Messaging is the broker surface the feed and event publisher rely on
type Messaging interface {
	Start() error
	Stop() error
	OnMessage(msgChan chan InMsg, queueName, exchangeName, exchangeType string, keys ...string) error
	PublishPersistentMessage(ctx context.Context, exchange, exchangeType, key string, data interface{}, options *MessageOptions) error
}

type InMsg struct {
	Exchange      string
	RoutingKey    string
	CorrelationID string
	Headers       map[string]interface{}
	Body          []byte
}

// MessageOptions represents the message publishing options
type MessageOptions struct {
	CorrelationID string
	Expiration    string
	Headers       map[string]interface{}
}

type subscription struct {
	msgChan                       chan InMsg
	queueName, exchangeName, kind string
	keys                          []string
}

type AMQPHandler struct {
	mu                sync.Mutex
	connection        connection
	declaredExchanges map[string]struct{}
	subscriptions     []subscription
	newBackOff        func() backoff.BackOff
	log               *logrus.Entry
	stop              chan struct{}
	stopOnce          sync.Once
}

func NewAMQPHandler(conn connection, log *logrus.Entry) *AMQPHandler {
	return &AMQPHandler{
		connection:        conn,
		declaredExchanges: make(map[string]struct{}),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		log:  log,
		stop: make(chan struct{}),
	}
}

// Start connects with exponential backoff and keeps reconnecting whenever the broker drops the connection
func (a *AMQPHandler) Start() error {
	err := backoff.Retry(a.connect, a.newBackOff())
	if err != nil {
		return err
	}
	go a.notifyWhenClosed()
	return nil
}

// Stop releases the consumers forwarding deliveries and closes the connection
func (a *AMQPHandler) Stop() error {
	a.stopOnce.Do(func() { close(a.stop) })
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.connection.closeChannel(); err != nil {
		return err
	}
	if a.connection.isClosed() {
		return nil
	}
	return a.connection.close()
}

// OnMessage binds queueName to every key and starts a single consumer on it
func (a *AMQPHandler) OnMessage(msgChan chan InMsg, queueName, exchangeName, exchangeType string, keys ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	sub := subscription{msgChan, queueName, exchangeName, exchangeType, keys}
	if err := a.subscribeLocked(sub); err != nil {
		return err
	}
	a.subscriptions = append(a.subscriptions, sub)
	return nil
}

func (a *AMQPHandler) subscribeLocked(sub subscription) error {
	if err := a.declareExchangeLocked(sub.exchangeName, sub.kind); err != nil {
		return err
	}
	if err := a.connection.queueDeclare(sub.queueName); err != nil {
		return err
	}
	for _, key := range sub.keys {
		if err := a.connection.queueBind(sub.queueName, key, sub.exchangeName); err != nil {
			return err
		}
	}
	deliveries, err := a.connection.consume(sub.queueName)
	if err != nil {
		return err
	}
	go convertDeliveryToInMsg(deliveries, sub.msgChan, a.stop)
	return nil
}

func (a *AMQPHandler) PublishPersistentMessage(ctx context.Context, exchange, exchangeType, key string, data interface{}, options *MessageOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.declareExchangeLocked(exchange, exchangeType); err != nil {
		return err
	}
	return a.connection.publish(ctx, exchange, key, data, options)
}

// declareExchangeLocked avoids redeclaring an exchange already declared on this connection
func (a *AMQPHandler) declareExchangeLocked(name, exchangeType string) error {
	if _, ok := a.declaredExchanges[name]; ok {
		return nil
	}
	if err := a.connection.exchangeDeclare(name, exchangeType); err != nil {
		return err
	}
	a.declaredExchanges[name] = struct{}{}
	return nil
}

func (a *AMQPHandler) connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.connection.connect(); err != nil {
		return err
	}
	return a.connection.createChannel()
}

func (a *AMQPHandler) notifyWhenClosed() {
	errReason := <-a.connection.notifyClose(make(chan *amqp.Error, 1))
	if errReason == nil {
		// graceful Stop
		return
	}
	a.log.WithError(errReason).Warn("broker connection lost, reconnecting")

	reconnectionBackOff := backoff.NewExponentialBackOff()
	reconnectionBackOff.InitialInterval = 30 * time.Second
	reconnectionBackOff.MaxInterval = 5 * time.Minute
	reconnectionBackOff.Multiplier = 1.7
	reconnectionBackOff.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		if err := a.reconnect(); err != nil {
			a.log.WithError(err).Warn("reconnection failed, will retry")
			return err
		}
		return nil
	}, reconnectionBackOff)
	if err != nil {
		return
	}
	a.log.Info("reconnection to broker was successful")
	go a.notifyWhenClosed()
}

// reconnect dials again and restores every consumer registered through OnMessage
func (a *AMQPHandler) reconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.connection.connect(); err != nil {
		return err
	}
	if err := a.connection.createChannel(); err != nil {
		return err
	}
	a.declaredExchanges = make(map[string]struct{})
	for _, sub := range a.subscriptions {
		if err := a.subscribeLocked(sub); err != nil {
			return err
		}
	}
	return nil
}

func convertDeliveryToInMsg(deliveries <-chan amqp.Delivery, outMsg chan InMsg, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			select {
			case outMsg <- InMsg{d.Exchange, d.RoutingKey, d.CorrelationId, d.Headers, d.Body}:
			case <-stop:
				return
			}
		}
	}
}
