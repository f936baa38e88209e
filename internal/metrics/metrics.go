// Package metrics exports poll outcomes as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marcus/stbar/internal/poller"
)

const namespace = "stbar"

var modes = []poller.Mode{
	poller.ModeNoKey,
	poller.ModeError,
	poller.ModePendingEdit,
	poller.ModeSyncing,
	poller.ModeSynced,
}

// Metrics is a poller.Sink updating a fixed set of collectors.
type Metrics struct {
	mode       *prometheus.GaugeVec
	inBytes    prometheus.Gauge
	outBytes   prometheus.Gauge
	errorCount prometheus.Gauge
	lastCheck  prometheus.Gauge
	polls      *prometheus.CounterVec
	notices    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "1 for the current status mode, 0 otherwise.",
		}, []string{"mode"}),
		inBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_bytes_total",
			Help:      "Cumulative bytes received as reported by Syncthing.",
		}),
		outBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "out_bytes_total",
			Help:      "Cumulative bytes sent as reported by Syncthing.",
		}),
		errorCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_errors",
			Help:      "Consecutive failed polls.",
		}),
		lastCheck: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_check_timestamp_seconds",
			Help:      "Unix time of the last poll.",
		}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Polls by result.",
		}, []string{"result"}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_notices_total",
			Help:      "Connection lost and restored notices.",
		}, []string{"notice"}),
	}
	reg.MustRegister(m.mode, m.inBytes, m.outBytes, m.errorCount, m.lastCheck, m.polls, m.notices)
	return m
}

// Publish implements poller.Sink.
func (m *Metrics) Publish(o poller.Outcome) {
	for _, mode := range modes {
		v := 0.0
		if mode == o.Mode {
			v = 1
		}
		m.mode.WithLabelValues(mode.String()).Set(v)
	}

	switch {
	case o.Mode == poller.ModeNoKey:
		m.polls.WithLabelValues("no_key").Inc()
	case o.Cached:
		m.polls.WithLabelValues("cached").Inc()
	case o.Mode == poller.ModeError:
		m.polls.WithLabelValues("error").Inc()
	default:
		m.polls.WithLabelValues("ok").Inc()
	}

	if o.Mode != poller.ModeError && o.Mode != poller.ModeNoKey {
		m.inBytes.Set(float64(o.Totals.InBytes))
		m.outBytes.Set(float64(o.Totals.OutBytes))
	}
	m.errorCount.Set(float64(o.ErrorCount))
	if !o.At.IsZero() {
		m.lastCheck.Set(float64(o.At.Unix()))
	}

	switch o.Notice {
	case poller.NoticeConnectionLost:
		m.notices.WithLabelValues("lost").Inc()
	case poller.NoticeConnectionRestored:
		m.notices.WithLabelValues("restored").Inc()
	}
}
