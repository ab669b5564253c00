// Package metrics holds the Prometheus collectors for the bridge. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons.
const (
	ReasonMalformed        = "malformed"
	ReasonUnknownPort      = "unknown_port"
	ReasonUnsupportedArity = "unsupported_arity"
	ReasonWrongDirection   = "wrong_direction"
	ReasonUnknownConn      = "unknown_connection"
	ReasonWriteError       = "write_error"
	ReasonQueueFull        = "queue_full"
	ReasonLoopStopped      = "loop_stopped"
	ReasonEncodeError      = "encode_error"
)

// Metrics holds every collector the bridge updates.
type Metrics struct {
	sourceMessages *prometheus.CounterVec // Hardware messages broadcast, by input port
	sinkMessages   *prometheus.CounterVec // Client messages written, by output port
	dropped        *prometheus.CounterVec // Messages not forwarded, by direction and reason
	notesReleased  *prometheus.CounterVec // Note-offs synthesized on disconnect, by output port
	notesLost      prometheus.Counter     // Held notes that could not be released
	openFailures   *prometheus.CounterVec // Device open failures at startup, by kind
	connections    prometheus.Gauge       // Connections with a live note tracker
	heldNotes      prometheus.Gauge       // Notes held across all connections
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sourceMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midibridge_source_messages_total",
				Help: "MIDI messages received from hardware inputs and broadcast to clients",
			},
			[]string{"port"},
		),
		sinkMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midibridge_sink_messages_total",
				Help: "MIDI messages received from clients and written to hardware outputs",
			},
			[]string{"port"},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midibridge_dropped_messages_total",
				Help: "Messages dropped instead of being forwarded",
			},
			[]string{"direction", "reason"},
		),
		notesReleased: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midibridge_notes_released_total",
				Help: "Note-off messages synthesized for notes held by disconnected clients",
			},
			[]string{"port"},
		),
		notesLost: f.NewCounter(
			prometheus.CounterOpts{
				Name: "midibridge_notes_unreleased_total",
				Help: "Held notes of disconnected clients whose output could not be resolved or written",
			},
		),
		openFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midibridge_device_open_failures_total",
				Help: "Hardware ports that failed to open at startup",
			},
			[]string{"kind"},
		),
		connections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "midibridge_connections",
				Help: "Client connections currently tracked by the sink",
			},
		),
		heldNotes: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "midibridge_held_notes",
				Help: "Notes currently held by connected clients",
			},
		),
	}
}

func (m *Metrics) SourceMessage(port string) {
	if m == nil {
		return
	}
	m.sourceMessages.WithLabelValues(port).Inc()
}

func (m *Metrics) SinkMessage(port string) {
	if m == nil {
		return
	}
	m.sinkMessages.WithLabelValues(port).Inc()
}

// Dropped counts one message not forwarded. direction is "source" or "sink".
func (m *Metrics) Dropped(direction, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(direction, reason).Inc()
}

func (m *Metrics) NoteReleased(port string) {
	if m == nil {
		return
	}
	m.notesReleased.WithLabelValues(port).Inc()
}

func (m *Metrics) NoteLost() {
	if m == nil {
		return
	}
	m.notesLost.Inc()
}

// OpenFailed counts a failed open. kind is "input" or "output".
func (m *Metrics) OpenFailed(kind string) {
	if m == nil {
		return
	}
	m.openFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// HeldNotesDelta adjusts the held notes gauge.
func (m *Metrics) HeldNotesDelta(n int) {
	if m == nil || n == 0 {
		return
	}
	m.heldNotes.Add(float64(n))
}
