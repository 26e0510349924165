package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/events"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/gateways/feed"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/satellite"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	owner    entities.Identity = "0xOwner"
	stranger entities.Identity = "0xStranger"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type thresholdStoreMock struct {
	mock.Mock
}

func (s *thresholdStoreMock) SaveThreshold(ctx context.Context, signal entities.Signal, value int64) error {
	return s.Called(signal, value).Error(0)
}

type satelliteStoreMock struct {
	mock.Mock
}

func (s *satelliteStoreMock) SaveSatellite(ctx context.Context, name string, value string) error {
	return s.Called(name, value).Error(0)
}

type countingMetrics struct {
	mu           sync.Mutex
	checks       map[entities.Signal]int
	crossings    map[entities.Signal]int
	feedFailures map[entities.Signal]int
	unauthorized map[entities.Signal]int
	thresholds   map[entities.Signal]int64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		checks:       map[entities.Signal]int{},
		crossings:    map[entities.Signal]int{},
		feedFailures: map[entities.Signal]int{},
		unauthorized: map[entities.Signal]int{},
		thresholds:   map[entities.Signal]int64{},
	}
}

func (m *countingMetrics) inc(counter map[entities.Signal]int, signal entities.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter[signal]++
}

func (m *countingMetrics) CheckPerformed(s entities.Signal)   { m.inc(m.checks, s) }
func (m *countingMetrics) ThresholdCrossed(s entities.Signal) { m.inc(m.crossings, s) }
func (m *countingMetrics) FeedFailed(s entities.Signal)       { m.inc(m.feedFailures, s) }
func (m *countingMetrics) Unauthorized(s entities.Signal)     { m.inc(m.unauthorized, s) }

func (m *countingMetrics) ThresholdSet(s entities.Signal, v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds[s] = v
}

type plainErrorReader struct {
	err error
}

func (r plainErrorReader) LatestReading(context.Context, entities.Signal) (entities.Reading, error) {
	return entities.Reading{}, r.err
}

type CoordinatorSuite struct {
	suite.Suite
	feed        *feed.Static
	temperature *satellite.TemperatureControl
	light       *satellite.LightControl
	security    *satellite.SecurityAlert
	controllers Satellites
	recorder    *events.Recorder
	metrics     *countingMetrics
	hook        *test.Hook
	coordinator *Coordinator
}

func (s *CoordinatorSuite) SetupTest() {
	s.feed = feed.NewStatic(nil)
	s.controllers = Satellites{}
	s.temperature, s.controllers.TemperatureControl = satellite.NewTemperatureControl()
	s.light, s.controllers.LightControl = satellite.NewLightControl()
	s.security, s.controllers.SecurityAlert = satellite.NewSecurityAlert()
	s.recorder = new(events.Recorder)
	s.metrics = newCountingMetrics()
	s.coordinator = s.newCoordinator(nil, s.recorder)
}

func (s *CoordinatorSuite) newCoordinator(store ThresholdStore, notifier events.Notifier) *Coordinator {
	logger, hook := test.NewNullLogger()
	s.hook = hook
	c, err := New(Config{
		Owner:      owner,
		Feeds:      Feeds{Temperature: s.feed, LightIntensity: s.feed, SecurityAlert: s.feed},
		Satellites: s.controllers,
		Notifier:   notifier,
		Store:      store,
		Metrics:    s.metrics,
		Log:        logger.WithField("Context", "coordinator"),
	})
	s.Require().NoError(err)
	c.newID = func() string { return "event-1" }
	c.now = func() time.Time { return fixedTime }
	return c
}

func (s *CoordinatorSuite) TestThresholdsStartAtZero() {
	s.Equal(int64(0), s.coordinator.ThresholdTemperature())
	s.Equal(int64(0), s.coordinator.ThresholdLightIntensity())
	s.Equal(int64(0), s.coordinator.ThresholdSecurityAlert())
	s.Equal(owner, s.coordinator.Owner())
}

func (s *CoordinatorSuite) TestOwnerSetsThresholds() {
	ctx := context.Background()
	s.Require().NoError(s.coordinator.SetThresholdTemperature(ctx, owner, 30))
	s.Require().NoError(s.coordinator.SetThresholdLightIntensity(ctx, owner, 600))
	s.Require().NoError(s.coordinator.SetThresholdSecurityAlert(ctx, owner, 80))

	s.Equal(int64(30), s.coordinator.ThresholdTemperature())
	s.Equal(int64(600), s.coordinator.ThresholdLightIntensity())
	s.Equal(int64(80), s.coordinator.ThresholdSecurityAlert())
	s.Equal(entities.Thresholds{Temperature: 30, LightIntensity: 600, SecurityAlert: 80}, s.coordinator.Thresholds())
	s.Equal(int64(600), s.metrics.thresholds[entities.SignalLightIntensity])
}

func (s *CoordinatorSuite) TestNonOwnerCannotSetThresholds() {
	ctx := context.Background()
	s.Require().NoError(s.coordinator.SetThresholdTemperature(ctx, owner, 30))

	setters := []func(context.Context, entities.Identity, int64) error{
		s.coordinator.SetThresholdTemperature,
		s.coordinator.SetThresholdLightIntensity,
		s.coordinator.SetThresholdSecurityAlert,
	}
	for _, set := range setters {
		err := set(ctx, stranger, 99)
		s.ErrorIs(err, ErrUnauthorized)
		s.ErrorContains(err, "caller is not owner")
	}

	s.Equal(entities.Thresholds{Temperature: 30}, s.coordinator.Thresholds())
	s.Equal(1, s.metrics.unauthorized[entities.SignalTemperature])
	s.Equal(1, s.metrics.unauthorized[entities.SignalSecurityAlert])
}

func (s *CoordinatorSuite) TestUnknownSignal() {
	err := s.coordinator.SetThreshold(context.Background(), owner, "humidity", 10)
	s.ErrorIs(err, ErrUnknownSignal)
	_, err = s.coordinator.Threshold("humidity")
	s.ErrorIs(err, ErrUnknownSignal)
	_, err = s.coordinator.Check(context.Background(), "humidity")
	s.ErrorIs(err, ErrUnknownSignal)
}

func (s *CoordinatorSuite) TestCheckTemperatureAboveThreshold() {
	ctx := context.Background()
	s.Require().NoError(s.coordinator.SetThresholdTemperature(ctx, owner, 30))
	s.feed.Set(entities.SignalTemperature, 31)

	result, err := s.coordinator.CheckTemperature(ctx)
	s.Require().NoError(err)
	s.True(result.Crossed)

	want := []entities.ThresholdCrossed{{
		ID:        "event-1",
		Name:      entities.TemperatureThresholdCrossed,
		Signal:    entities.SignalTemperature,
		Value:     31,
		Threshold: 30,
		Timestamp: fixedTime,
	}}
	if diff := cmp.Diff(want, s.recorder.Events()); diff != "" {
		s.Failf("unexpected notifications", "(-want +got):\n%s", diff)
	}
	s.Equal(int64(30), s.temperature.Temperature())
	s.Equal(int64(0), s.light.LightIntensity())
	s.False(s.security.Status())
	s.Equal(1, s.metrics.crossings[entities.SignalTemperature])
}

func (s *CoordinatorSuite) TestCheckWhenReadingEqualsThresholdThenCrossed() {
	ctx := context.Background()
	s.Require().NoError(s.coordinator.SetThresholdLightIntensity(ctx, owner, 600))
	s.feed.Set(entities.SignalLightIntensity, 600)

	result, err := s.coordinator.CheckLightIntensity(ctx)
	s.Require().NoError(err)
	s.True(result.Crossed)
	s.Require().Len(s.recorder.Events(), 1)
	s.Equal(entities.LightIntensityThresholdCrossed, s.recorder.Events()[0].Name)
	s.Equal(int64(600), s.light.LightIntensity())
}

func (s *CoordinatorSuite) TestCheckSecurityAlertLatchesStatus() {
	ctx := context.Background()
	s.Require().NoError(s.coordinator.SetThresholdSecurityAlert(ctx, owner, 80))
	s.feed.Set(entities.SignalSecurityAlert, 95)

	_, err := s.coordinator.CheckSecurityAlert(ctx)
	s.Require().NoError(err)
	s.True(s.security.Status())
	s.Require().Len(s.recorder.Events(), 1)
	s.Equal(int64(95), s.recorder.Events()[0].Value)

	s.feed.Set(entities.SignalSecurityAlert, 10)
	result, err := s.coordinator.CheckSecurityAlert(ctx)
	s.Require().NoError(err)
	s.False(result.Crossed)
	s.True(s.security.Status())
}

func (s *CoordinatorSuite) TestCheckBelowThresholdDoesNothing() {
	ctx := context.Background()
	s.Require().NoError(s.coordinator.SetThresholdTemperature(ctx, owner, 30))
	s.feed.Set(entities.SignalTemperature, 29)

	result, err := s.coordinator.CheckTemperature(ctx)
	s.Require().NoError(err)
	s.False(result.Crossed)
	s.Nil(result.Event)
	s.Equal(int64(29), result.Reading.Value)
	s.Empty(s.recorder.Events())
	s.Equal(int64(0), s.temperature.Temperature())
}

func (s *CoordinatorSuite) TestRepeatedCrossingReemits() {
	ctx := context.Background()
	s.Require().NoError(s.coordinator.SetThresholdTemperature(ctx, owner, 30))
	s.feed.Set(entities.SignalTemperature, 40)

	for i := 0; i < 3; i++ {
		_, err := s.coordinator.CheckTemperature(ctx)
		s.Require().NoError(err)
	}
	s.Len(s.recorder.Events(), 3)
	s.Equal(int64(30), s.temperature.Temperature())
	s.Equal(3, s.metrics.checks[entities.SignalTemperature])
}

func (s *CoordinatorSuite) TestCheckIsolatesSignals() {
	ctx := context.Background()
	s.Require().NoError(s.coordinator.SetThresholdLightIntensity(ctx, owner, 600))
	s.feed.Set(entities.SignalLightIntensity, 700)
	s.feed.Set(entities.SignalTemperature, 1000)
	s.feed.Set(entities.SignalSecurityAlert, 1000)

	_, err := s.coordinator.CheckLightIntensity(ctx)
	s.Require().NoError(err)

	s.Equal(int64(600), s.light.LightIntensity())
	s.Equal(int64(0), s.temperature.Temperature())
	s.False(s.security.Status())
	s.Equal(entities.Thresholds{LightIntensity: 600}, s.coordinator.Thresholds())
	s.Equal(0, s.metrics.checks[entities.SignalTemperature])
}

func (s *CoordinatorSuite) TestCheckWhenFeedFailsThenNoEffects() {
	ctx := context.Background()
	s.feed.Fail(entities.SignalTemperature, errors.New("stale round"))

	result, err := s.coordinator.CheckTemperature(ctx)
	s.ErrorIs(err, feed.ErrFeedUnavailable)
	s.Equal(CheckResult{}, result)
	s.Empty(s.recorder.Events())
	s.Equal(int64(0), s.temperature.Temperature())
	s.Equal(1, s.metrics.feedFailures[entities.SignalTemperature])
}

func (s *CoordinatorSuite) TestCheckWhenReaderReturnsPlainErrorThenFeedUnavailable() {
	logger, _ := test.NewNullLogger()
	c, err := New(Config{
		Owner:      owner,
		Feeds: Feeds{
			Temperature:    plainErrorReader{errors.New("round not complete")},
			LightIntensity: plainErrorReader{context.DeadlineExceeded},
			SecurityAlert:  s.feed,
		},
		Satellites: s.controllers,
		Notifier:   s.recorder,
		Log:        logger.WithField("Context", "coordinator"),
	})
	s.Require().NoError(err)

	_, err = c.CheckTemperature(context.Background())
	s.ErrorIs(err, feed.ErrFeedUnavailable)
	s.ErrorContains(err, "round not complete")

	_, err = c.CheckLightIntensity(context.Background())
	s.ErrorIs(err, feed.ErrFeedUnavailable)
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *CoordinatorSuite) TestCheckWhenNotifyFailsThenSatelliteUntouched() {
	failing := events.Func(func(context.Context, entities.ThresholdCrossed) error {
		return errors.New("broker down")
	})
	c := s.newCoordinator(nil, failing)
	s.feed.Set(entities.SignalSecurityAlert, 1)

	_, err := c.CheckSecurityAlert(context.Background())
	s.ErrorContains(err, "broker down")
	s.False(s.security.Status())
	s.Equal(0, s.metrics.crossings[entities.SignalSecurityAlert])
}

func (s *CoordinatorSuite) TestCheckWhenSatelliteFailsThenError() {
	store := new(satelliteStoreMock)
	store.On("SaveSatellite", satellite.TemperatureControlName, "0").Return(errors.New("disk full"))
	s.temperature, s.controllers.TemperatureControl = satellite.NewTemperatureControl(satellite.WithStore[int64](store))
	c := s.newCoordinator(nil, s.recorder)
	s.feed.Set(entities.SignalTemperature, 5)

	_, err := c.CheckTemperature(context.Background())
	s.ErrorContains(err, "disk full")
	s.Equal(int64(0), s.temperature.Temperature())
	s.Len(s.recorder.Events(), 1)
}

func (s *CoordinatorSuite) TestSetThresholdPersistsBeforeApplying() {
	store := new(thresholdStoreMock)
	store.On("SaveThreshold", entities.SignalTemperature, int64(30)).Return(nil).Once()
	store.On("SaveThreshold", entities.SignalTemperature, int64(45)).Return(errors.New("locked")).Once()
	c := s.newCoordinator(store, s.recorder)
	ctx := context.Background()

	s.Require().NoError(c.SetThresholdTemperature(ctx, owner, 30))
	s.Error(c.SetThresholdTemperature(ctx, owner, 45))
	s.Equal(int64(30), c.ThresholdTemperature())
	store.AssertExpectations(s.T())
}

func (s *CoordinatorSuite) TestUnauthorizedSetIsNeverPersisted() {
	store := new(thresholdStoreMock)
	c := s.newCoordinator(store, s.recorder)

	s.ErrorIs(c.SetThresholdLightIntensity(context.Background(), stranger, 1), ErrUnauthorized)
	store.AssertNotCalled(s.T(), "SaveThreshold", mock.Anything, mock.Anything)
	s.Equal("threshold update rejected", s.hook.LastEntry().Message)
}

func (s *CoordinatorSuite) TestConcurrentChecksOfDifferentSignals() {
	ctx := context.Background()
	s.Require().NoError(s.coordinator.SetThresholdTemperature(ctx, owner, 30))
	s.Require().NoError(s.coordinator.SetThresholdLightIntensity(ctx, owner, 600))
	s.Require().NoError(s.coordinator.SetThresholdSecurityAlert(ctx, owner, 80))
	s.feed.Set(entities.SignalTemperature, 30)
	s.feed.Set(entities.SignalLightIntensity, 600)
	s.feed.Set(entities.SignalSecurityAlert, 80)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, signal := range entities.Signals() {
			wg.Add(1)
			go func(signal entities.Signal) {
				defer wg.Done()
				_, err := s.coordinator.Check(ctx, signal)
				s.NoError(err)
			}(signal)
		}
	}
	wg.Wait()

	s.Len(s.recorder.Events(), 30)
	s.Equal(int64(30), s.temperature.Temperature())
	s.Equal(int64(600), s.light.LightIntensity())
	s.True(s.security.Status())
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func TestNewRequiresEveryReference(t *testing.T) {
	static := feed.NewStatic(nil)
	_, temperature := satellite.NewTemperatureControl()
	_, light := satellite.NewLightControl()
	_, security := satellite.NewSecurityAlert()
	complete := Config{
		Owner:      owner,
		Feeds:      Feeds{Temperature: static, LightIntensity: static, SecurityAlert: static},
		Satellites: Satellites{TemperatureControl: temperature, LightControl: light, SecurityAlert: security},
	}

	_, err := New(complete)
	require.NoError(t, err)

	noOwner := complete
	noOwner.Owner = ""
	_, err = New(noOwner)
	assert.Error(t, err)

	noFeed := complete
	noFeed.Feeds.LightIntensity = nil
	_, err = New(noFeed)
	assert.Error(t, err)

	noSatellite := complete
	noSatellite.Satellites.SecurityAlert = nil
	_, err = New(noSatellite)
	assert.Error(t, err)
}

func TestNewStartsFromConfiguredThresholds(t *testing.T) {
	static := feed.NewStatic(nil)
	_, temperature := satellite.NewTemperatureControl()
	_, light := satellite.NewLightControl()
	_, security := satellite.NewSecurityAlert()
	thresholds := entities.Thresholds{Temperature: 21, LightIntensity: 300, SecurityAlert: 5}

	c, err := New(Config{
		Owner:      owner,
		Feeds:      Feeds{Temperature: static, LightIntensity: static, SecurityAlert: static},
		Satellites: Satellites{TemperatureControl: temperature, LightControl: light, SecurityAlert: security},
		Thresholds: thresholds,
	})
	require.NoError(t, err)
	assert.Equal(t, thresholds, c.Thresholds())
}
