package metrics

import (
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what the coordinator reports to
type Recorder interface {
	CheckPerformed(signal entities.Signal)
	ThresholdCrossed(signal entities.Signal)
	FeedFailed(signal entities.Signal)
	Unauthorized(signal entities.Signal)
	ThresholdSet(signal entities.Signal, value int64)
}

type PromMetrics struct {
	checks       *prometheus.CounterVec
	crossings    *prometheus.CounterVec
	feedFailures *prometheus.CounterVec
	unauthorized *prometheus.CounterVec
	thresholds   *prometheus.GaugeVec
}

// NewPromMetrics registers the coordinator collectors on reg
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	labels := []string{"signal"}
	m := &PromMetrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smarthome_checks_total",
			Help: "Threshold checks performed.",
		}, labels),
		crossings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smarthome_crossings_total",
			Help: "Checks whose reading reached the threshold.",
		}, labels),
		feedFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smarthome_feed_failures_total",
			Help: "Checks aborted because the feed could not be read.",
		}, labels),
		unauthorized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smarthome_unauthorized_total",
			Help: "Threshold updates rejected because the caller is not the owner.",
		}, labels),
		thresholds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smarthome_threshold",
			Help: "Active threshold per signal.",
		}, labels),
	}
	reg.MustRegister(m.checks, m.crossings, m.feedFailures, m.unauthorized, m.thresholds)
	return m
}

func (m *PromMetrics) CheckPerformed(signal entities.Signal) {
	m.checks.WithLabelValues(string(signal)).Inc()
}

func (m *PromMetrics) ThresholdCrossed(signal entities.Signal) {
	m.crossings.WithLabelValues(string(signal)).Inc()
}

func (m *PromMetrics) FeedFailed(signal entities.Signal) {
	m.feedFailures.WithLabelValues(string(signal)).Inc()
}

func (m *PromMetrics) Unauthorized(signal entities.Signal) {
	m.unauthorized.WithLabelValues(string(signal)).Inc()
}

func (m *PromMetrics) ThresholdSet(signal entities.Signal, value int64) {
	m.thresholds.WithLabelValues(string(signal)).Set(float64(value))
}

// Nop discards every measurement
type Nop struct{}

func (Nop) CheckPerformed(entities.Signal)      {}
func (Nop) ThresholdCrossed(entities.Signal)    {}
func (Nop) FeedFailed(entities.Signal)          {}
func (Nop) Unauthorized(entities.Signal)        {}
func (Nop) ThresholdSet(entities.Signal, int64) {}
