package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/stretchr/testify/assert"
)

func createFakeEvent(signal entities.Signal, value, threshold int64) entities.ThresholdCrossed {
	return entities.ThresholdCrossed{
		ID:        "9c5e1f0e-7d43-4a53-9d55-41a0d2f0b6a7",
		Name:      signal.EventName(),
		Signal:    signal,
		Value:     value,
		Threshold: threshold,
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func createFakeEventOptions(event entities.ThresholdCrossed) *MessageOptions {
	return &MessageOptions{
		CorrelationID: event.ID,
		Expiration:    defaultExpirationTime,
		Headers:       map[string]interface{}{"event": event.Name},
	}
}

func TestPublishThresholdCrossed(t *testing.T) {
	amqpMock := new(AmqpMock)
	event := createFakeEvent(entities.SignalTemperature, 31, 30)
	message := NewThresholdCrossedMessage(event)

	amqpMock.On("PublishPersistentMessage", ExchangeEvents, ExchangeTypeTopic, "threshold.temperature", message, createFakeEventOptions(event)).Return(nil)

	publisher := NewEventPublisher(amqpMock)
	err := publisher.PublishThresholdCrossed(context.Background(), event)
	assert.Nil(t, err)
	amqpMock.AssertExpectations(t)
}

func TestPublishThresholdCrossedWhenBrokerFailsReturnError(t *testing.T) {
	amqpMock := new(AmqpMock)
	event := createFakeEvent(entities.SignalSecurityAlert, 90, 80)
	message := NewThresholdCrossedMessage(event)

	amqpMock.On("PublishPersistentMessage", ExchangeEvents, ExchangeTypeTopic, "threshold.securityAlert", message, createFakeEventOptions(event)).Return(errors.New("failed"))

	publisher := NewEventPublisher(amqpMock)
	err := publisher.Notify(context.Background(), event)
	assert.ErrorContains(t, err, "publish SecurityAlertThresholdCrossed")
	amqpMock.AssertExpectations(t)
}

func TestThresholdCrossedMessageCarriesReading(t *testing.T) {
	event := createFakeEvent(entities.SignalLightIntensity, 700, 600)
	message := NewThresholdCrossedMessage(event)
	assert.Equal(t, "lightIntensity", message.Signal)
	assert.Equal(t, int64(700), message.Value)
	assert.Equal(t, int64(600), message.Threshold)
	assert.Equal(t, "LightIntensityThresholdCrossed", message.Name)
}
