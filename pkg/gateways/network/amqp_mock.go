package network

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type AmqpMock struct {
	mock.Mock
}

func (m *AmqpMock) Start() error {
	return nil
}

func (m *AmqpMock) Stop() error { return nil }

func (m *AmqpMock) OnMessage(msgChan chan InMsg, queueName, exchangeName, exchangeType string, keys ...string) error {
	args := m.Called(msgChan, queueName, exchangeName, exchangeType, keys)
	return args.Error(0)
}

func (m *AmqpMock) PublishPersistentMessage(ctx context.Context, exchange, exchangeType, key string, data interface{}, options *MessageOptions) error {
	args := m.Called(exchange, exchangeType, key, data, options)
	return args.Error(0)
}
