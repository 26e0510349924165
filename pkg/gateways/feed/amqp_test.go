package feed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/gateways/network"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type subscriberMock struct {
	mock.Mock
}

func (s *subscriberMock) SubscribeToReadings(msgChan chan network.InMsg) error {
	return s.Called(msgChan).Error(0)
}

func createReadingMessage(t *testing.T, signal string, value int64, round uint64) network.InMsg {
	body, err := json.Marshal(network.ReadingMessage{
		Signal:    signal,
		Value:     value,
		RoundID:   round,
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return network.InMsg{Exchange: network.ExchangeReadings, RoutingKey: "reading." + signal, Body: body}
}

type AMQPFeedSuite struct {
	suite.Suite
	subscriber *subscriberMock
	feed       *AMQPFeed
	hook       *test.Hook
}

func (s *AMQPFeedSuite) SetupTest() {
	logger, hook := test.NewNullLogger()
	s.hook = hook
	s.subscriber = new(subscriberMock)
	s.feed = NewAMQPFeed(s.subscriber, entities.AMQPConfig{
		DuplicationFilter:      true,
		FilterCapacity:         1000,
		DuplicationProbability: 0.01,
		ResetFilterUsage:       75,
	}, logger.WithField("Context", "feed"))
}

func (s *AMQPFeedSuite) TestHandleMessageKeepsLatestReading() {
	s.NoError(s.feed.handleMessage(createReadingMessage(s.T(), "temperature", 28, 1)))
	s.NoError(s.feed.handleMessage(createReadingMessage(s.T(), "temperature", 33, 2)))

	reading, err := s.feed.LatestReading(context.Background(), entities.SignalTemperature)
	s.Require().NoError(err)
	s.Equal(int64(33), reading.Value)
	s.Equal(uint64(2), reading.RoundID)
}

func (s *AMQPFeedSuite) TestHandleMessageWhenRoundRedeliveredThenIgnored() {
	s.NoError(s.feed.handleMessage(createReadingMessage(s.T(), "lightIntensity", 700, 5)))
	s.NoError(s.feed.handleMessage(createReadingMessage(s.T(), "lightIntensity", 100, 5)))

	reading, err := s.feed.LatestReading(context.Background(), entities.SignalLightIntensity)
	s.Require().NoError(err)
	s.Equal(int64(700), reading.Value)
}

func (s *AMQPFeedSuite) TestHandleMessageWhenRoundIsStaleThenIgnored() {
	s.NoError(s.feed.handleMessage(createReadingMessage(s.T(), "securityAlert", 90, 7)))
	s.NoError(s.feed.handleMessage(createReadingMessage(s.T(), "securityAlert", 10, 6)))

	reading, err := s.feed.LatestReading(context.Background(), entities.SignalSecurityAlert)
	s.Require().NoError(err)
	s.Equal(int64(90), reading.Value)
}

func (s *AMQPFeedSuite) TestHandleMessageWhenSignalUnknownThenError() {
	s.Error(s.feed.handleMessage(createReadingMessage(s.T(), "humidity", 40, 1)))
}

func (s *AMQPFeedSuite) TestHandleMessageWhenBodyInvalidThenError() {
	s.Error(s.feed.handleMessage(network.InMsg{Body: []byte("{")}))
}

func (s *AMQPFeedSuite) TestLatestReadingWhenNothingReceivedThenUnavailable() {
	_, err := s.feed.LatestReading(context.Background(), entities.SignalTemperature)
	s.ErrorIs(err, ErrFeedUnavailable)
}

func (s *AMQPFeedSuite) TestStartConsumesSubscribedReadings() {
	s.subscriber.On("SubscribeToReadings", s.feed.msgChan).Return(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Require().NoError(s.feed.Start(ctx))
	s.feed.msgChan <- createReadingMessage(s.T(), "temperature", 40, 1)

	s.Eventually(func() bool {
		reading, err := s.feed.LatestReading(context.Background(), entities.SignalTemperature)
		return err == nil && reading.Value == 40
	}, time.Second, 10*time.Millisecond)
	s.subscriber.AssertExpectations(s.T())
}

func (s *AMQPFeedSuite) TestStartWhenSubscriptionFailsThenError() {
	s.subscriber.On("SubscribeToReadings", s.feed.msgChan).Return(errors.New("channel closed"))
	s.Error(s.feed.Start(context.Background()))
}

func (s *AMQPFeedSuite) TestConsumeLogsDiscardedReadings() {
	s.subscriber.On("SubscribeToReadings", s.feed.msgChan).Return(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Require().NoError(s.feed.Start(ctx))
	s.feed.msgChan <- network.InMsg{RoutingKey: "reading.temperature", Body: []byte("not json")}

	s.Eventually(func() bool {
		entry := s.hook.LastEntry()
		return entry != nil && entry.Message == "discarding reading"
	}, time.Second, 10*time.Millisecond)
}

func TestAMQPFeedSuite(t *testing.T) {
	suite.Run(t, new(AMQPFeedSuite))
}

func TestAMQPFeedWithoutDuplicationFilterAcceptsEveryRound(t *testing.T) {
	logger, _ := test.NewNullLogger()
	feed := NewAMQPFeed(new(subscriberMock), entities.AMQPConfig{}, logger.WithField("Context", "feed"))

	require.NoError(t, feed.handleMessage(createReadingMessage(t, "temperature", 20, 3)))
	require.NoError(t, feed.handleMessage(createReadingMessage(t, "temperature", 25, 3)))

	reading, err := feed.LatestReading(context.Background(), entities.SignalTemperature)
	require.NoError(t, err)
	assert.Equal(t, int64(25), reading.Value)
}

func TestAMQPFeedKeepsEveryRoundBeyondFilterCapacity(t *testing.T) {
	logger, _ := test.NewNullLogger()
	feed := NewAMQPFeed(new(subscriberMock), entities.AMQPConfig{
		DuplicationFilter:      true,
		FilterCapacity:         100,
		DuplicationProbability: 0.0001,
		ResetFilterUsage:       75,
	}, logger.WithField("Context", "feed"))

	dropped := 0
	for round := uint64(1); round <= 600; round++ {
		require.NoError(t, feed.handleMessage(createReadingMessage(t, "temperature", int64(round), round)))
		reading, err := feed.LatestReading(context.Background(), entities.SignalTemperature)
		require.NoError(t, err)
		if reading.RoundID != round {
			dropped++
		}
	}
	assert.Zero(t, dropped)
	assert.Less(t, feed.filter.ApproximatedSize(), uint32(100))
}
