// Package metrics holds the Prometheus collectors of one engine instance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cne"

// drop reasons
const (
	DropDisconnected = "disconnected"
	DropStale        = "stale_generation"
	DropHandshake    = "awaiting_handshake"
	DropOversize     = "oversize"
	DropQueueFull    = "queue_full"
	DropClosed       = "closed"
	DropDuplicate    = "duplicate_serial"
	DropWriteError   = "write_error"
)

type Metrics struct {
	ConnectAttempts        prometheus.Counter
	ConnectFailures        prometheus.Counter
	ConnectionsEstablished prometheus.Counter
	Disconnects            prometheus.Counter

	FramesSent       prometheus.Counter
	FramesReceived   prometheus.Counter
	RequestsDropped  *prometheus.CounterVec
	SendQueueWait    prometheus.Histogram
	RequestsPending  prometheus.Gauge
	RequestsAbandon  prometheus.Counter
	SolicitedFailed  prometheus.Counter
	UnknownSerials   prometheus.Counter
	UnknownEvents    prometheus.Counter
	MalformedFrames  prometheus.Counter
	EventsReceived   *prometheus.CounterVec
	Registrations    prometheus.Gauge
	CallbacksInvoked *prometheus.CounterVec
}

// New registers a fresh collector set on reg, a private registry is used when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		ConnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Total number of attempts to open the daemon socket",
		}),
		ConnectFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Total number of failed attempts to open the daemon socket",
		}),
		ConnectionsEstablished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_established_total",
			Help:      "Total number of daemon connections established",
		}),
		Disconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total number of daemon connections lost or closed",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of request frames written to the daemon",
		}),
		FramesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of frames read from the daemon",
		}),
		RequestsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_dropped_total",
			Help:      "Total number of requests dropped before reaching the daemon, by reason",
		}, []string{"reason"}),
		SendQueueWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_queue_wait_seconds",
			Help:      "Time requests spend queued before the sender picks them up",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		RequestsPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_pending",
			Help:      "Number of requests written but not yet acknowledged",
		}),
		RequestsAbandon: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_abandoned_total",
			Help:      "Total number of pending requests discarded on disconnect",
		}),
		SolicitedFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solicited_failures_total",
			Help:      "Total number of acknowledgements carrying a non-zero status",
		}),
		UnknownSerials: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_serials_total",
			Help:      "Total number of acknowledgements for serials not pending",
		}),
		UnknownEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_events_total",
			Help:      "Total number of unsolicited messages with an unknown tag",
		}),
		MalformedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_total",
			Help:      "Total number of frames that could not be decoded",
		}),
		EventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of unsolicited events received, by tag",
		}, []string{"event"}),
		Registrations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registrations",
			Help:      "Number of live role registrations",
		}),
		CallbacksInvoked: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Total number of caller callbacks delivered, by kind",
		}, []string{"kind"}),
	}
}
