package network

import (
	"context"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
)

const (
	ExchangeEvents        = "smarthome.events"
	defaultExpirationTime = "60000"
)

// EventRoutingKey is the key crossings of signal are published with
func EventRoutingKey(signal entities.Signal) string {
	return "threshold." + string(signal)
}

type Publisher interface {
	PublishThresholdCrossed(ctx context.Context, event entities.ThresholdCrossed) error
}

// EventPublisher publishes crossings on the events exchange and doubles as an events.Notifier
type EventPublisher struct {
	amqp Messaging
}

func NewEventPublisher(amqp Messaging) *EventPublisher {
	return &EventPublisher{amqp}
}

func (mp *EventPublisher) PublishThresholdCrossed(ctx context.Context, event entities.ThresholdCrossed) error {
	options := MessageOptions{
		CorrelationID: event.ID,
		Expiration:    defaultExpirationTime,
		Headers:       map[string]interface{}{"event": event.Name},
	}

	err := mp.amqp.PublishPersistentMessage(ctx, ExchangeEvents, ExchangeTypeTopic, EventRoutingKey(event.Signal), NewThresholdCrossedMessage(event), &options)
	return errors.Wrapf(err, "publish %s", event.Name)
}

func (mp *EventPublisher) Notify(ctx context.Context, event entities.ThresholdCrossed) error {
	return mp.PublishThresholdCrossed(ctx, event)
}
