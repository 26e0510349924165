// Package events delivers ThresholdCrossed notifications to whoever is listening.
package events

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
)

var ErrChannelClosed = errors.New("notification channel closed")

// Notifier receives every crossing emitted by the coordinator
type Notifier interface {
	Notify(ctx context.Context, event entities.ThresholdCrossed) error
}

// Func adapts a callback to a Notifier
type Func func(ctx context.Context, event entities.ThresholdCrossed) error

func (f Func) Notify(ctx context.Context, event entities.ThresholdCrossed) error {
	return f(ctx, event)
}

// Channel forwards notifications to a Go channel, blocking until the
// receiver takes the event, ctx is done or the channel is closed
type Channel struct {
	mu      sync.Mutex
	ch      chan entities.ThresholdCrossed
	done    chan struct{}
	closed  bool
	senders sync.WaitGroup
}

func NewChannel(buffer int) *Channel {
	return &Channel{
		ch:   make(chan entities.ThresholdCrossed, buffer),
		done: make(chan struct{}),
	}
}

func (c *Channel) Events() <-chan entities.ThresholdCrossed {
	return c.ch
}

func (c *Channel) Notify(ctx context.Context, event entities.ThresholdCrossed) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	c.senders.Add(1)
	c.mu.Unlock()
	defer c.senders.Done()

	select {
	case c.ch <- event:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases blocked senders and then closes the events channel
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.senders.Wait()
	close(c.ch)
}

// Multi fans a notification out to every notifier and joins their errors
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event entities.ThresholdCrossed) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu     sync.Mutex
	events []entities.ThresholdCrossed
}

func (r *Recorder) Notify(_ context.Context, event entities.ThresholdCrossed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []entities.ThresholdCrossed {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.ThresholdCrossed, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
