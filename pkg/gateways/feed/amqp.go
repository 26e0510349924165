package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	bloomFilter "github.com/bits-and-blooms/bloom/v3"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/gateways/network"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AMQPFeed keeps the latest reading per signal received on the readings exchange
type AMQPFeed struct {
	subscriber network.Subscriber
	msgChan    chan network.InMsg
	log        *logrus.Entry

	mu     sync.RWMutex
	latest map[entities.Signal]entities.Reading

	duplicationMutex             sync.Mutex
	filter                       *bloomFilter.BloomFilter
	filterCapacity               uint
	maximumPercentageFilterUsage float32
}

func NewAMQPFeed(subscriber network.Subscriber, conf entities.AMQPConfig, log *logrus.Entry) *AMQPFeed {
	f := &AMQPFeed{
		subscriber:                   subscriber,
		msgChan:                      make(chan network.InMsg),
		log:                          log,
		latest:                       make(map[entities.Signal]entities.Reading),
		filterCapacity:               conf.FilterCapacity,
		maximumPercentageFilterUsage: conf.ResetFilterUsage,
	}
	if conf.DuplicationFilter {
		f.filter = bloomFilter.NewWithEstimates(conf.FilterCapacity, conf.DuplicationProbability)
	}
	return f
}

// Start binds the readings queue and consumes it until ctx is done
func (f *AMQPFeed) Start(ctx context.Context) error {
	if err := f.subscriber.SubscribeToReadings(f.msgChan); err != nil {
		return errors.Wrap(err, "subscribe to readings")
	}
	go f.consume(ctx)
	return nil
}

func (f *AMQPFeed) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.msgChan:
			if err := f.handleMessage(msg); err != nil {
				f.log.WithError(err).WithField("routingKey", msg.RoutingKey).Warn("discarding reading")
			}
		}
	}
}

func (f *AMQPFeed) handleMessage(msg network.InMsg) error {
	var message network.ReadingMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		return errors.Wrap(err, "decode reading")
	}
	signal, err := entities.ParseSignal(message.Signal)
	if err != nil {
		return err
	}
	reading := entities.Reading{
		Signal:    signal,
		Value:     message.Value,
		RoundID:   message.RoundID,
		Timestamp: message.Timestamp,
	}
	if f.isReadingDuplicated(reading) {
		f.log.WithField("signal", signal).WithField("round", reading.RoundID).Debug("duplicated round")
		return nil
	}
	f.store(reading)
	return nil
}

func (f *AMQPFeed) store(reading entities.Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.latest[reading.Signal]
	if ok && reading.RoundID < current.RoundID {
		return
	}
	f.latest[reading.Signal] = reading
}

// isReadingDuplicated tests and records the round in a single step
func (f *AMQPFeed) isReadingDuplicated(reading entities.Reading) bool {
	if f.filter == nil {
		return false
	}
	key := []byte(fmt.Sprintf("%s_%d", reading.Signal, reading.RoundID))
	f.duplicationMutex.Lock()
	defer f.duplicationMutex.Unlock()
	if f.filter.Test(key) {
		return true
	}
	f.resetDuplicationFilter()
	f.filter.Add(key)
	return false
}

// resetDuplicationFilter clears the filter once the rounds it holds reach the
// configured share of the item capacity it was sized for
func (f *AMQPFeed) resetDuplicationFilter() {
	approximatedFilterSize := f.filter.ApproximatedSize()
	currentPercentageFilterUsage := (float32(approximatedFilterSize) / float32(f.filterCapacity)) * 100
	if currentPercentageFilterUsage >= f.maximumPercentageFilterUsage {
		f.filter.ClearAll()
	}
}

func (f *AMQPFeed) LatestReading(ctx context.Context, signal entities.Signal) (entities.Reading, error) {
	if err := ctx.Err(); err != nil {
		return entities.Reading{}, Unavailable(signal, err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	reading, ok := f.latest[signal]
	if !ok {
		return entities.Reading{}, Unavailable(signal, errNoReading)
	}
	return reading, nil
}
