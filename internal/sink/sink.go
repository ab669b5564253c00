// Package sink writes client messages to hardware outputs and releases the
// notes a client still holds when its connection closes.
package sink

import (
	"sort"

	"github.com/leandrodaf/midibridge/internal/envelope"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/internal/metrics"
	"github.com/leandrodaf/midibridge/internal/midi/midimsg"
	"github.com/leandrodaf/midibridge/internal/notes"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

const direction = string(envelope.Sink)

// PortResolver resolves logical output names. *registry.Registry satisfies it.
type PortResolver interface {
	SelectPortName(name string) contracts.Output
}

// Adapter owns one note tracker per open connection. It is not safe for
// concurrent use; the bridge event loop serializes every call.
type Adapter struct {
	ports     PortResolver
	trackers  map[contracts.ConnID]*notes.Tracker
	logger    contracts.Logger
	metrics   *metrics.Metrics
	verbosity int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l contracts.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithVerbosity logs every written message at debug level when v > 0.
func WithVerbosity(v int) Option {
	return func(a *Adapter) { a.verbosity = v }
}

// WithMetrics records written, dropped and released messages.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// New creates a sink resolving outputs through ports.
func New(ports PortResolver, opts ...Option) *Adapter {
	a := &Adapter{
		ports:    ports,
		trackers: make(map[contracts.ConnID]*notes.Tracker),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.NewNopLogger()
	}
	return a
}

// Open starts tracking notes for id.
func (a *Adapter) Open(id contracts.ConnID) {
	if _, ok := a.trackers[id]; ok {
		a.logger.Warn("Connection already open", a.logger.Field().String("conn", string(id)))
		return
	}
	a.trackers[id] = notes.NewTracker()
	a.metrics.ConnectionOpened()
}

// Handle decodes one frame received on id and delivers it. Decode failures
// are logged and dropped.
func (a *Adapter) Handle(id contracts.ConnID, data []byte) {
	content, err := envelope.Decode(data)
	if err != nil {
		a.logger.Warn("Dropping malformed envelope",
			a.logger.Field().String("conn", string(id)),
			a.logger.Field().Error("error", err))
		a.metrics.Dropped(direction, metrics.ReasonMalformed)
		return
	}
	a.Deliver(id, content)
}

// Deliver writes the bytes of a sink message to its output unmodified and,
// for three-byte messages, updates the note tracker of id.
func (a *Adapter) Deliver(id contracts.ConnID, content envelope.Content) {
	tracker, ok := a.trackers[id]
	if !ok {
		a.logger.Warn("Dropping message for unknown connection", a.logger.Field().String("conn", string(id)))
		a.metrics.Dropped(direction, metrics.ReasonUnknownConn)
		return
	}

	switch content.(type) {
	case envelope.SinkSingle, envelope.SinkDouble, envelope.SinkTripple:
	default:
		a.logger.Warn("Dropping message not addressed to a sink",
			a.logger.Field().String("conn", string(id)),
			a.logger.Field().String("address", string(content.Address())))
		a.metrics.Dropped(direction, metrics.ReasonWrongDirection)
		return
	}

	port := content.PortName()
	out := a.ports.SelectPortName(port)
	if out == nil {
		a.logger.Warn("Dropping message for unknown MIDI output port",
			a.logger.Field().String("conn", string(id)),
			a.logger.Field().String("port", port))
		a.metrics.Dropped(direction, metrics.ReasonUnknownPort)
		return
	}

	msg := content.Bytes()
	if a.verbosity > 0 {
		a.logger.Debug("RawMIDISink",
			a.logger.Field().String("conn", string(id)),
			a.logger.Field().String("port", port),
			a.logger.Field().String("m", midimsg.Hex(msg)))
	}
	if err := out.SendRaw(msg); err != nil {
		a.logger.Error("Failed to write MIDI message",
			a.logger.Field().String("port", port),
			a.logger.Field().Error("error", err))
		a.metrics.Dropped(direction, metrics.ReasonWriteError)
		return
	}
	a.metrics.SinkMessage(port)

	// Only notes that reached the device are held.
	if t, ok := content.(envelope.SinkTripple); ok {
		before := tracker.Len()
		tracker.Track(port, t.B0, t.B1)
		a.metrics.HeldNotesDelta(tracker.Len() - before)
	}
}

// Close sends a note-off for every note id still holds, then forgets id.
// Outputs are resolved again at this point, so a port removed in the
// meantime only costs a warning. Closing an unknown id does nothing. It
// returns the number of note-offs written.
func (a *Adapter) Close(id contracts.ConnID) int {
	tracker, ok := a.trackers[id]
	if !ok {
		return 0
	}
	delete(a.trackers, id)

	held := tracker.Drain()
	a.metrics.ConnectionClosed()
	a.metrics.HeldNotesDelta(-len(held))

	released := 0
	for _, k := range held {
		fields := []contracts.Field{
			a.logger.Field().String("conn", string(id)),
			a.logger.Field().String("port", k.Port),
			a.logger.Field().Uint8("channel", k.Channel),
			a.logger.Field().Uint8("note", k.Note),
		}

		out := a.ports.SelectPortName(k.Port)
		if out == nil {
			a.logger.Warn("Could not end note", fields...)
			a.metrics.NoteLost()
			continue
		}
		if err := out.SendNoteOff(k.Channel, k.Note); err != nil {
			a.logger.Warn("Could not end note", append(fields, a.logger.Field().Error("error", err))...)
			a.metrics.NoteLost()
			continue
		}

		a.logger.Info("End ongoing note from disconnected client", fields...)
		a.metrics.NoteReleased(k.Port)
		released++
	}
	return released
}

// CloseAll closes every open connection, in id order, and returns the total
// number of note-offs written.
func (a *Adapter) CloseAll() int {
	ids := make([]contracts.ConnID, 0, len(a.trackers))
	for id := range a.trackers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	released := 0
	for _, id := range ids {
		released += a.Close(id)
	}
	return released
}

// Tracked returns the notes id currently holds.
func (a *Adapter) Tracked(id contracts.ConnID) []notes.Key {
	if t, ok := a.trackers[id]; ok {
		return t.Keys()
	}
	return nil
}

// Connections returns the number of open connections.
func (a *Adapter) Connections() int {
	return len(a.trackers)
}
