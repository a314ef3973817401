package metrics

import (
	"net/http"

	"github.com/berfenger/sense2homekit/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sense2homekit_"

// Metrics mirrors power meter events into prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	powerWatts   prometheus.Gauge
	voltageVolts prometheus.Gauge
	currentAmps  prometheus.Gauge
	lastUpdate   prometheus.Gauge

	readings     prometheus.Counter
	sessions     prometheus.Counter
	streamState  *prometheus.GaugeVec
	streamErrors prometheus.Counter
	polls        prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	reg := prometheus.WrapRegistererWithPrefix(namespace, registry)

	m := &Metrics{
		registry: registry,
		powerWatts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "power_watts",
			Help: "Last accepted power reading in watts.",
		}),
		voltageVolts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voltage_volts",
			Help: "Mean line voltage of the last accepted reading.",
		}),
		currentAmps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "current_amps",
			Help: "Current of the last accepted reading.",
		}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "last_update_timestamp_seconds",
			Help: "Timestamp of the last accepted reading.",
		}),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readings_total",
			Help: "Accepted realtime readings.",
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_sessions_total",
			Help: "Realtime stream sessions opened.",
		}),
		streamState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stream_state",
			Help: "Current stream state, 1 for the active one.",
		}, []string{"state"}),
		streamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_errors_total",
			Help: "Errors reported by the realtime stream or setup.",
		}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polls_scheduled_total",
			Help: "Stream reopens scheduled.",
		}),
	}

	reg.MustRegister(m.powerWatts, m.voltageVolts, m.currentAmps, m.lastUpdate,
		m.readings, m.sessions, m.streamState, m.streamErrors, m.polls)

	return m
}

// Handle is an event stream subscriber.
func (m *Metrics) Handle(evt any) {
	switch ev := evt.(type) {
	case domain.ReadingUpdatedEvent:
		m.powerWatts.Set(ev.Reading.PowerWatts)
		m.voltageVolts.Set(ev.Reading.VoltageVolts)
		m.currentAmps.Set(ev.Reading.CurrentAmps)
		if !ev.Reading.IsZero() {
			m.lastUpdate.Set(float64(ev.Reading.UpdatedAt.Unix()))
		}
		m.readings.Inc()
	case domain.StreamStateEvent:
		for _, state := range []string{domain.STREAM_STATE_CONNECTING, domain.STREAM_STATE_OPEN,
			domain.STREAM_STATE_CLOSING, domain.STREAM_STATE_WAITING_REOPEN} {
			if state == ev.State {
				m.streamState.WithLabelValues(state).Set(1)
			} else {
				m.streamState.WithLabelValues(state).Set(0)
			}
		}
		if ev.State == domain.STREAM_STATE_OPEN {
			m.sessions.Inc()
		}
	case domain.StreamErrorEvent:
		m.streamErrors.Inc()
	case domain.PollScheduledEvent:
		m.polls.Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
