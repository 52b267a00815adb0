package mediasoupclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors of a device and its transports. A
// nil *Metrics records nothing.
type Metrics struct {
	rounds            *prometheus.CounterVec
	roundDuration     *prometheus.HistogramVec
	signalingFailures *prometheus.CounterVec
	liveProducers     prometheus.Gauge
	liveConsumers     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg, which may be
// nil to skip registration.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediasoup_client",
			Name:      "negotiation_rounds_total",
			Help:      "Negotiation rounds run by transports.",
		}, []string{"direction", "operation"}),
		roundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediasoup_client",
			Name:      "negotiation_round_duration_seconds",
			Help:      "Duration of negotiation rounds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction", "operation"}),
		signalingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediasoup_client",
			Name:      "signaling_failures_total",
			Help:      "Failed signaling requests.",
		}, []string{"method"}),
		liveProducers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mediasoup_client",
			Name:      "producers",
			Help:      "Open producers.",
		}),
		liveConsumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mediasoup_client",
			Name:      "consumers",
			Help:      "Open consumers.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.rounds, m.roundDuration, m.signalingFailures, m.liveProducers, m.liveConsumers,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) observeRound(direction TransportDirection, operation string, start time.Time) {
	if m == nil {
		return
	}
	m.rounds.WithLabelValues(string(direction), operation).Inc()
	m.roundDuration.WithLabelValues(string(direction), operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) signalingFailed(method string) {
	if m == nil {
		return
	}
	m.signalingFailures.WithLabelValues(method).Inc()
}

func (m *Metrics) producerAdded(delta float64) {
	if m == nil {
		return
	}
	m.liveProducers.Add(delta)
}

func (m *Metrics) consumerAdded(delta float64) {
	if m == nil {
		return
	}
	m.liveConsumers.Add(delta)
}
