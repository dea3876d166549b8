package stomp

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons recorded on the messages_dropped_total counter.
const (
	DropReasonSlowSubscriber = "slow_subscriber"
	DropReasonNoSubscriber   = "no_subscriber"
	DropReasonEncoding       = "encoding"
)

type Metrics struct {
	registry *prometheus.Registry

	framesRead    prometheus.Counter
	framesWritten prometheus.Counter

	messagesEnqueued    prometheus.Counter
	messagesDelivered   prometheus.Counter
	messagesAcked       prometheus.Counter
	messagesRedelivered prometheus.Counter
	messagesDropped     *prometheus.CounterVec

	connectionsActive prometheus.Gauge
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		framesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coilmq",
			Name:      "frames_read_total",
			Help:      "Frames parsed from client connections.",
		}),
		framesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coilmq",
			Name:      "frames_written_total",
			Help:      "Frames written to client connections.",
		}),
		messagesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coilmq",
			Name:      "messages_enqueued_total",
			Help:      "Messages stored for queue destinations.",
		}),
		messagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coilmq",
			Name:      "messages_delivered_total",
			Help:      "Messages handed to subscriber connections.",
		}),
		messagesAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coilmq",
			Name:      "messages_acked_total",
			Help:      "Messages acknowledged by reliable subscribers.",
		}),
		messagesRedelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coilmq",
			Name:      "messages_redelivered_total",
			Help:      "Messages returned to the front of a queue for redelivery.",
		}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coilmq",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped instead of delivered.",
		}, []string{"reason"}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coilmq",
			Name:      "connections_active",
			Help:      "Currently open client connections.",
		}),
	}
	reg.MustRegister(
		m.framesRead,
		m.framesWritten,
		m.messagesEnqueued,
		m.messagesDelivered,
		m.messagesAcked,
		m.messagesRedelivered,
		m.messagesDropped,
		m.connectionsActive,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncFramesRead()          { m.framesRead.Inc() }
func (m *Metrics) IncFramesWritten()       { m.framesWritten.Inc() }
func (m *Metrics) IncMessagesEnqueued()    { m.messagesEnqueued.Inc() }
func (m *Metrics) IncMessagesDelivered()   { m.messagesDelivered.Inc() }
func (m *Metrics) IncMessagesAcked()       { m.messagesAcked.Inc() }
func (m *Metrics) IncMessagesRedelivered() { m.messagesRedelivered.Inc() }

func (m *Metrics) IncMessagesDropped(reason string) {
	m.messagesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncConnections() { m.connectionsActive.Inc() }
func (m *Metrics) DecConnections() { m.connectionsActive.Dec() }
