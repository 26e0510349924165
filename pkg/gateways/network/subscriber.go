package network

import "github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"

const (
	ExchangeReadings = "smarthome.readings"
	readingsQueue    = "smarthome-coordinator-readings"
)

// ReadingRoutingKey is the key readings of signal are published with
func ReadingRoutingKey(signal entities.Signal) string {
	return "reading." + string(signal)
}

type Subscriber interface {
	SubscribeToReadings(msgChan chan InMsg) error
}

type msgSubscriber struct {
	amqp Messaging
}

func NewMsgSubscriber(amqp Messaging) Subscriber {
	return &msgSubscriber{amqp}
}

func (ms *msgSubscriber) SubscribeToReadings(msgChan chan InMsg) error {
	var keys []string
	for _, signal := range entities.Signals() {
		keys = append(keys, ReadingRoutingKey(signal))
	}
	return ms.amqp.OnMessage(msgChan, readingsQueue, ExchangeReadings, ExchangeTypeTopic, keys...)
}
