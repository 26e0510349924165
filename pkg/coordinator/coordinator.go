// Package coordinator compares feed readings against owner-configured
// thresholds and propagates crossings to the satellite units.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/events"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/gateways/feed"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/metrics"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/satellite"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnauthorized  = errors.New("caller is not owner")
	ErrUnknownSignal = errors.New("unknown signal")
)

// ThresholdStore persists every accepted threshold update
type ThresholdStore interface {
	SaveThreshold(ctx context.Context, signal entities.Signal, value int64) error
}

type Feeds struct {
	Temperature    feed.Reader
	LightIntensity feed.Reader
	SecurityAlert  feed.Reader
}

// Satellites carries the write capabilities of the three units
type Satellites struct {
	TemperatureControl satellite.Controller[int64]
	LightControl       satellite.Controller[int64]
	SecurityAlert      satellite.Controller[bool]
}

type Config struct {
	Owner      entities.Identity
	Feeds      Feeds
	Satellites Satellites
	Thresholds entities.Thresholds
	Notifier   events.Notifier
	Store      ThresholdStore
	Metrics    metrics.Recorder
	Log        *logrus.Entry
}

// CheckResult is the outcome of a single check
type CheckResult struct {
	Signal    entities.Signal
	Reading   entities.Reading
	Threshold int64
	Crossed   bool
	Event     *entities.ThresholdCrossed
}

type signalState struct {
	mu        sync.Mutex
	threshold int64
	reader    feed.Reader
	apply     func(ctx context.Context, threshold int64) error
}

type Coordinator struct {
	owner    entities.Identity
	signals  map[entities.Signal]*signalState
	notifier events.Notifier
	store    ThresholdStore
	metrics  metrics.Recorder
	log      *logrus.Entry
	newID    func() string
	now      func() time.Time
}

func New(conf Config) (*Coordinator, error) {
	if conf.Owner == "" {
		return nil, errors.New("owner is required")
	}
	if conf.Feeds.Temperature == nil || conf.Feeds.LightIntensity == nil || conf.Feeds.SecurityAlert == nil {
		return nil, errors.New("a feed is required for every signal")
	}
	s := conf.Satellites
	if s.TemperatureControl == nil || s.LightControl == nil || s.SecurityAlert == nil {
		return nil, errors.New("every satellite controller is required")
	}
	c := &Coordinator{
		owner:    conf.Owner,
		notifier: conf.Notifier,
		store:    conf.Store,
		metrics:  conf.Metrics,
		log:      conf.Log,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	if c.notifier == nil {
		c.notifier = events.Multi{}
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}
	c.signals = map[entities.Signal]*signalState{
		entities.SignalTemperature: {
			threshold: conf.Thresholds.Temperature,
			reader:    conf.Feeds.Temperature,
			apply:     s.TemperatureControl.Apply,
		},
		entities.SignalLightIntensity: {
			threshold: conf.Thresholds.LightIntensity,
			reader:    conf.Feeds.LightIntensity,
			apply:     s.LightControl.Apply,
		},
		entities.SignalSecurityAlert: {
			threshold: conf.Thresholds.SecurityAlert,
			reader:    conf.Feeds.SecurityAlert,
			apply: func(ctx context.Context, _ int64) error {
				return s.SecurityAlert.Apply(ctx, true)
			},
		},
	}
	for signal, state := range c.signals {
		c.metrics.ThresholdSet(signal, state.threshold)
	}
	return c, nil
}

func (c *Coordinator) Owner() entities.Identity {
	return c.owner
}

func (c *Coordinator) state(signal entities.Signal) (*signalState, error) {
	state, ok := c.signals[signal]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSignal, "%q", signal)
	}
	return state, nil
}

// SetThreshold replaces the threshold of signal. Only the owner may call it;
// with a store wired the value is persisted before it becomes active.
func (c *Coordinator) SetThreshold(ctx context.Context, caller entities.Identity, signal entities.Signal, value int64) error {
	state, err := c.state(signal)
	if err != nil {
		return err
	}
	if caller != c.owner {
		c.metrics.Unauthorized(signal)
		c.log.WithField("caller", caller).WithField("signal", signal).Warn("threshold update rejected")
		return errors.Wrapf(ErrUnauthorized, "set %s threshold", signal)
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if c.store != nil {
		if err := c.store.SaveThreshold(ctx, signal, value); err != nil {
			return errors.Wrapf(err, "persist %s threshold", signal)
		}
	}
	state.threshold = value
	c.metrics.ThresholdSet(signal, value)
	c.log.WithField("signal", signal).WithField("threshold", value).Info("threshold updated")
	return nil
}

func (c *Coordinator) SetThresholdTemperature(ctx context.Context, caller entities.Identity, value int64) error {
	return c.SetThreshold(ctx, caller, entities.SignalTemperature, value)
}

func (c *Coordinator) SetThresholdLightIntensity(ctx context.Context, caller entities.Identity, value int64) error {
	return c.SetThreshold(ctx, caller, entities.SignalLightIntensity, value)
}

func (c *Coordinator) SetThresholdSecurityAlert(ctx context.Context, caller entities.Identity, value int64) error {
	return c.SetThreshold(ctx, caller, entities.SignalSecurityAlert, value)
}

func (c *Coordinator) Threshold(signal entities.Signal) (int64, error) {
	state, err := c.state(signal)
	if err != nil {
		return 0, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.threshold, nil
}

func (c *Coordinator) ThresholdTemperature() int64 {
	v, _ := c.Threshold(entities.SignalTemperature)
	return v
}

func (c *Coordinator) ThresholdLightIntensity() int64 {
	v, _ := c.Threshold(entities.SignalLightIntensity)
	return v
}

func (c *Coordinator) ThresholdSecurityAlert() int64 {
	v, _ := c.Threshold(entities.SignalSecurityAlert)
	return v
}

// Thresholds returns the three active thresholds
func (c *Coordinator) Thresholds() entities.Thresholds {
	var t entities.Thresholds
	for _, signal := range entities.Signals() {
		v, _ := c.Threshold(signal)
		t = t.Set(signal, v)
	}
	return t
}

// Check reads the feed of signal and, when the reading reaches the threshold,
// emits a ThresholdCrossed carrying the reading and then pushes the threshold
// into the satellite unit. A failed read changes nothing. A failed
// notification aborts before the satellite is written.
func (c *Coordinator) Check(ctx context.Context, signal entities.Signal) (CheckResult, error) {
	state, err := c.state(signal)
	if err != nil {
		return CheckResult{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	c.metrics.CheckPerformed(signal)
	reading, err := state.reader.LatestReading(ctx, signal)
	if err != nil {
		c.metrics.FeedFailed(signal)
		if !errors.Is(err, feed.ErrFeedUnavailable) {
			err = feed.Unavailable(signal, err)
		}
		return CheckResult{}, err
	}

	result := CheckResult{
		Signal:    signal,
		Reading:   reading,
		Threshold: state.threshold,
		Crossed:   reading.Value >= state.threshold,
	}
	if !result.Crossed {
		return result, nil
	}

	event := entities.ThresholdCrossed{
		ID:        c.newID(),
		Name:      signal.EventName(),
		Signal:    signal,
		Value:     reading.Value,
		Threshold: state.threshold,
		Timestamp: c.now(),
	}
	result.Event = &event
	if err := c.notifier.Notify(ctx, event); err != nil {
		return result, errors.Wrapf(err, "notify %s", event.Name)
	}
	if err := state.apply(ctx, state.threshold); err != nil {
		return result, errors.Wrapf(err, "apply %s", signal)
	}
	c.metrics.ThresholdCrossed(signal)
	c.log.WithFields(logrus.Fields{
		"signal":    signal,
		"reading":   reading.Value,
		"threshold": state.threshold,
	}).Info(event.Name)
	return result, nil
}

func (c *Coordinator) CheckTemperature(ctx context.Context) (CheckResult, error) {
	return c.Check(ctx, entities.SignalTemperature)
}

func (c *Coordinator) CheckLightIntensity(ctx context.Context) (CheckResult, error) {
	return c.Check(ctx, entities.SignalLightIntensity)
}

func (c *Coordinator) CheckSecurityAlert(ctx context.Context) (CheckResult, error) {
	return c.Check(ctx, entities.SignalSecurityAlert)
}
