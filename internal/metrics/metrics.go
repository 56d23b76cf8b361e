// Package metrics exposes Prometheus instrumentation for the lobby server.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lobby"

// Drop reasons.
const (
	DropDecode      = "decode"
	DropValidation  = "validation"
	DropAuth        = "authentication"
	DropNoRoom      = "no_room"
	DropRateLimited = "rate_limited"
)

type Metrics struct {
	commands     *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	broadcasts   prometheus.Counter
	backpressure *prometheus.CounterVec
	members      prometheus.Gauge
	rooms        prometheus.Gauge
}

// New creates the lobby collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Accepted command-channel messages by command kind",
		}, []string{"command"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Inbound messages dropped without processing",
		}, []string{"reason"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Messages published on the broadcast channel",
		}),
		backpressure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "backpressure_total",
			Help:      "Broadcast frames hitting a full subscriber buffer, by action taken",
		}, []string{"action"}),
		members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "members",
			Help:      "Registered members",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Known rooms, including empty ones",
		}),
	}
	for _, c := range []prometheus.Collector{m.commands, m.dropped, m.broadcasts, m.backpressure, m.members, m.rooms} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveCommand(kind string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveDrop(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveBroadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

func (m *Metrics) ObserveBackpressure(action string) {
	if m == nil {
		return
	}
	m.backpressure.WithLabelValues(action).Inc()
}

func (m *Metrics) SetRegistrySize(members, rooms int) {
	if m == nil {
		return
	}
	m.members.Set(float64(members))
	m.rooms.Set(float64(rooms))
}
