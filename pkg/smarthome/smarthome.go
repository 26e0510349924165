// Package smarthome assembles a coordinator, its feeds, satellites, stores and
// notification sinks from a SmartHomeConfig.
package smarthome

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/coordinator"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/events"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/gateways/feed"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/gateways/network"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/logging"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/metrics"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/satellite"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/store"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const recentCrossings = 5

type options struct {
	logger     *logging.Logrus
	registerer prometheus.Registerer
	notifiers  []events.Notifier
	configPath string
}

type Option func(*options)

func WithLogger(logger *logging.Logrus) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegisterer registers the coordinator metrics on reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithNotifier adds a sink next to the configured ones
func WithNotifier(n events.Notifier) Option {
	return func(o *options) { o.notifiers = append(o.notifiers, n) }
}

// WithConfigPath enables reloading thresholds from path while running
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

type SmartHome struct {
	conf        *entities.SmartHomeConfig
	logger      *logging.Logrus
	log         *logrus.Entry
	configPath  string
	Coordinator *coordinator.Coordinator

	Temperature    *satellite.TemperatureControl
	LightIntensity *satellite.LightControl
	SecurityAlert  *satellite.SecurityAlert

	store    store.Store
	journal  *store.SQLite
	amqp     network.Messaging
	amqpFeed *feed.AMQPFeed
	opcua    *feed.OPCUAFeed
	static   *feed.Static
	mqtt     *network.MQTTPublisher

	controllers coordinator.Satellites
}

// Status is what the status command prints
type Status struct {
	Owner          entities.Identity
	Thresholds     entities.Thresholds
	Temperature    int64
	LightIntensity int64
	SecurityAlert  bool
	Crossings      []entities.ThresholdCrossed
}

func New(ctx context.Context, conf *entities.SmartHomeConfig, opts ...Option) (*SmartHome, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogrus(conf.Log.Level, conf.Log.Format, os.Stderr)
	}
	h := &SmartHome{conf: conf, logger: o.logger, log: o.logger.Get("SmartHome"), configPath: o.configPath}

	if err := h.openStore(ctx); err != nil {
		return nil, err
	}
	if err := h.restoreSatellites(ctx); err != nil {
		h.Close()
		return nil, err
	}
	thresholds, err := h.restoreThresholds(ctx)
	if err != nil {
		h.Close()
		return nil, err
	}
	reader, err := h.openFeed(ctx)
	if err != nil {
		h.Close()
		return nil, err
	}
	notifier, err := h.openNotifiers(o.notifiers)
	if err != nil {
		h.Close()
		return nil, err
	}

	var recorder metrics.Recorder = metrics.Nop{}
	if o.registerer != nil {
		recorder = metrics.NewPromMetrics(o.registerer)
	}
	h.Coordinator, err = coordinator.New(coordinator.Config{
		Owner:      conf.Owner,
		Feeds:      coordinator.Feeds{Temperature: reader, LightIntensity: reader, SecurityAlert: reader},
		Satellites: h.controllers,
		Thresholds: thresholds,
		Notifier:   notifier,
		Store:      h.store,
		Metrics:    recorder,
		Log:        o.logger.Get("Coordinator"),
	})
	if err != nil {
		h.Close()
		return nil, errors.Wrap(err, "new coordinator")
	}
	return h, nil
}

func (h *SmartHome) openStore(ctx context.Context) error {
	switch h.conf.Store.Kind {
	case entities.StoreSQLite:
		db, err := store.NewSQLite(ctx, h.conf.Store.Path)
		if err != nil {
			return err
		}
		h.store = db
		h.journal = db
	case entities.StoreYAML:
		snapshot, err := store.NewYAML(h.conf.Store.Path)
		if err != nil {
			return err
		}
		h.store = snapshot
	}
	return nil
}

// restoreSatellites rebuilds the units with the last persisted values
func (h *SmartHome) restoreSatellites(ctx context.Context) error {
	var intOpts [2][]satellite.Option[int64]
	var boolOpts []satellite.Option[bool]
	if h.store != nil {
		for i, name := range []string{satellite.TemperatureControlName, satellite.LightControlName} {
			value, ok, err := loadSatellite(ctx, h.store, name, satellite.DecodeInt)
			if err != nil {
				return err
			}
			if ok {
				intOpts[i] = append(intOpts[i], satellite.WithInitial(value))
			}
			intOpts[i] = append(intOpts[i], satellite.WithStore[int64](h.store))
		}
		status, ok, err := loadSatellite(ctx, h.store, satellite.SecurityAlertName, satellite.DecodeBool)
		if err != nil {
			return err
		}
		if ok {
			boolOpts = append(boolOpts, satellite.WithInitial(status))
		}
		boolOpts = append(boolOpts, satellite.WithStore[bool](h.store))
	}
	h.Temperature, h.controllers.TemperatureControl = satellite.NewTemperatureControl(intOpts[0]...)
	h.LightIntensity, h.controllers.LightControl = satellite.NewLightControl(intOpts[1]...)
	h.SecurityAlert, h.controllers.SecurityAlert = satellite.NewSecurityAlert(boolOpts...)
	return nil
}

func loadSatellite[T any](ctx context.Context, s store.Store, name string, decode func(string) (T, error)) (T, bool, error) {
	var zero T
	raw, err := s.LoadSatellite(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	value, err := decode(raw)
	if err != nil {
		return zero, false, errors.Wrapf(err, "decode %s", name)
	}
	return value, true, nil
}

// restoreThresholds starts from the configured thresholds and overlays the persisted ones
func (h *SmartHome) restoreThresholds(ctx context.Context) (entities.Thresholds, error) {
	thresholds := h.conf.Thresholds
	if h.store == nil {
		return thresholds, nil
	}
	persisted, err := h.store.LoadThresholds(ctx)
	if err != nil {
		return thresholds, err
	}
	for signal, value := range persisted {
		thresholds = thresholds.Set(signal, value)
	}
	return thresholds, nil
}

func (h *SmartHome) openBroker() error {
	if h.amqp != nil || h.conf.AMQP.URL == "" {
		return nil
	}
	handler := network.NewAMQPHandler(network.NewAmqpConnection(h.conf.AMQP.URL), h.logger.Get("AMQP"))
	if err := handler.Start(); err != nil {
		return errors.Wrap(err, "amqp connection")
	}
	h.log.Info("connected to the message broker")
	h.amqp = handler
	return nil
}

func (h *SmartHome) openFeed(ctx context.Context) (feed.Reader, error) {
	switch h.conf.Feed.Kind {
	case entities.FeedAMQP:
		if err := h.openBroker(); err != nil {
			return nil, err
		}
		h.amqpFeed = feed.NewAMQPFeed(network.NewMsgSubscriber(h.amqp), h.conf.AMQP, h.logger.Get("AMQPFeed"))
		return h.amqpFeed, nil
	case entities.FeedOPCUA:
		reader, err := feed.NewOPCUAFeed(ctx, h.conf.Feed.OPCUA, h.conf.Feed.Nodes)
		if err != nil {
			return nil, err
		}
		h.opcua = reader
		return reader, nil
	default:
		h.static = feed.NewStatic(h.conf.Feed.Static)
		return h.static, nil
	}
}

func (h *SmartHome) openNotifiers(extra []events.Notifier) (events.Notifier, error) {
	notifiers := events.Multi{h.logNotifier()}
	if h.journal != nil {
		notifiers = append(notifiers, h.journal)
	}
	if err := h.openBroker(); err != nil {
		return nil, err
	}
	if h.amqp != nil {
		notifiers = append(notifiers, network.NewEventPublisher(h.amqp))
	}
	if h.conf.MQTT.Broker != "" {
		publisher, err := network.NewMQTTPublisher(h.conf.MQTT, h.logger.Get("MQTT"))
		if err != nil {
			return nil, err
		}
		h.mqtt = publisher
		notifiers = append(notifiers, publisher)
	}
	return append(notifiers, extra...), nil
}

func (h *SmartHome) logNotifier() events.Notifier {
	log := h.logger.Get("Events")
	return events.Func(func(_ context.Context, event entities.ThresholdCrossed) error {
		log.WithFields(logrus.Fields{
			"id":        event.ID,
			"signal":    event.Signal,
			"value":     event.Value,
			"threshold": event.Threshold,
		}).Info(event.Name)
		return nil
	})
}

// Feed returns the in-memory feed when the static feed kind is configured
func (h *SmartHome) Feed() *feed.Static {
	return h.static
}

// Run polls the feeds and, when a configuration path was given, reloads
// thresholds from it until ctx is done
func (h *SmartHome) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if h.amqpFeed != nil {
		if err := h.amqpFeed.Start(gctx); err != nil {
			return err
		}
	}
	if h.configPath != "" {
		watcher, err := utils.NewThresholdWatcher(h.configPath, func(t entities.Thresholds) error {
			return h.ApplyThresholds(gctx, h.conf.Owner, t)
		}, h.logger.Get("ThresholdWatcher"))
		if err != nil {
			return errors.Wrap(err, "watch configuration")
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}
	poller := coordinator.NewPoller(h.Coordinator, h.conf.PollInterval, h.logger.Get("Poller"))
	g.Go(func() error { return poller.Run(gctx) })
	h.log.WithField("interval", h.conf.PollInterval).Info("coordinator running")
	return g.Wait()
}

// ApplyThresholds sets every threshold that differs from the active one on behalf of caller
func (h *SmartHome) ApplyThresholds(ctx context.Context, caller entities.Identity, t entities.Thresholds) error {
	active := h.Coordinator.Thresholds()
	var errs []error
	for _, signal := range entities.Signals() {
		if active.Get(signal) == t.Get(signal) {
			continue
		}
		if err := h.Coordinator.SetThreshold(ctx, caller, signal, t.Get(signal)); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (h *SmartHome) Status(ctx context.Context) (Status, error) {
	status := Status{
		Owner:          h.Coordinator.Owner(),
		Thresholds:     h.Coordinator.Thresholds(),
		Temperature:    h.Temperature.Temperature(),
		LightIntensity: h.LightIntensity.LightIntensity(),
		SecurityAlert:  h.SecurityAlert.Status(),
	}
	if h.journal == nil {
		return status, nil
	}
	for _, signal := range entities.Signals() {
		crossings, err := h.journal.Crossings(ctx, signal, recentCrossings)
		if err != nil {
			return status, err
		}
		status.Crossings = append(status.Crossings, crossings...)
	}
	return status, nil
}

func (h *SmartHome) Close() error {
	var errs []error
	if h.mqtt != nil {
		h.mqtt.Close()
	}
	if h.amqp != nil {
		errs = append(errs, h.amqp.Stop())
	}
	if h.opcua != nil {
		errs = append(errs, h.opcua.Close(context.Background()))
	}
	if h.store != nil {
		errs = append(errs, h.store.Close())
	}
	return stderrors.Join(errs...)
}
