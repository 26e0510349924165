package feed

import (
	"context"
	"sync"
	"time"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
)

var errNoReading = errors.New("no reading published")

// Static serves readings set programmatically
type Static struct {
	mu       sync.RWMutex
	readings map[entities.Signal]entities.Reading
	failures map[entities.Signal]error
	now      func() time.Time
}

func NewStatic(values map[entities.Signal]int64) *Static {
	s := &Static{
		readings: make(map[entities.Signal]entities.Reading),
		failures: make(map[entities.Signal]error),
		now:      time.Now,
	}
	for signal, value := range values {
		s.Set(signal, value)
	}
	return s
}

// Set publishes value as a new round for signal and clears any failure injected with Fail
func (s *Static) Set(signal entities.Signal, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round := s.readings[signal].RoundID + 1
	s.readings[signal] = entities.Reading{Signal: signal, Value: value, RoundID: round, Timestamp: s.now()}
	delete(s.failures, signal)
}

// Fail makes every following read of signal fail with err until the next Set
func (s *Static) Fail(signal entities.Signal, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[signal] = err
}

func (s *Static) LatestReading(ctx context.Context, signal entities.Signal) (entities.Reading, error) {
	if err := ctx.Err(); err != nil {
		return entities.Reading{}, Unavailable(signal, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, ok := s.failures[signal]; ok {
		return entities.Reading{}, Unavailable(signal, err)
	}
	reading, ok := s.readings[signal]
	if !ok {
		return entities.Reading{}, Unavailable(signal, errNoReading)
	}
	return reading, nil
}
