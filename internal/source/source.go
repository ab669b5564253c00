// Package source forwards messages from one hardware MIDI input to every
// connected client.
package source

import (
	"math"

	"github.com/leandrodaf/midibridge/internal/envelope"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/internal/metrics"
	"github.com/leandrodaf/midibridge/internal/midi/midimsg"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Adapter turns hardware messages into source envelopes. It is not safe for
// concurrent use; the bridge event loop serializes Process calls.
type Adapter struct {
	port           string
	broadcaster    contracts.Broadcaster
	logger         contracts.Logger
	metrics        *metrics.Metrics
	verbosity      int
	cumulativeTime float64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l contracts.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithVerbosity logs every forwarded message at debug level when v > 0.
func WithVerbosity(v int) Option {
	return func(a *Adapter) { a.verbosity = v }
}

// WithMetrics records forwarded and dropped messages.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// New creates an adapter for the input named port. Its cumulative time
// starts at zero and is never reset.
func New(port string, b contracts.Broadcaster, opts ...Option) *Adapter {
	a := &Adapter{port: port, broadcaster: b}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.NewNopLogger()
	}
	return a
}

// Port returns the driver-assigned input name.
func (a *Adapter) Port() string {
	return a.port
}

// CumulativeTime returns the sum of every delta processed so far.
func (a *Adapter) CumulativeTime() float64 {
	return a.cumulativeTime
}

// Process handles one hardware message. Messages that are not 1, 2 or 3
// bytes long (SysEx) are counted and dropped. Broadcast is fire-and-forget.
func (a *Adapter) Process(deltaTime float64, msg []byte) {
	if deltaTime < 0 || math.IsNaN(deltaTime) || math.IsInf(deltaTime, 0) {
		deltaTime = 0
	}
	a.cumulativeTime += deltaTime

	if a.verbosity > 0 {
		a.logger.Debug("RawMIDISource",
			a.logger.Field().String("port", a.port),
			a.logger.Field().Int("l", len(msg)),
			a.logger.Field().String("m", midimsg.Hex(msg)),
			a.logger.Field().Float64("d", deltaTime))
	}

	content, ok := envelope.NewSource(envelope.SourceHeader{
		Port:           a.port,
		DeltaTime:      deltaTime,
		CumulativeTime: a.cumulativeTime,
	}, msg)
	if !ok {
		a.metrics.Dropped(string(envelope.Source), metrics.ReasonUnsupportedArity)
		return
	}

	data, err := envelope.Encode(content)
	if err != nil {
		a.logger.Error("Failed to encode MIDI source message",
			a.logger.Field().String("port", a.port),
			a.logger.Field().Error("error", err))
		a.metrics.Dropped(string(envelope.Source), metrics.ReasonEncodeError)
		return
	}

	a.broadcaster.Broadcast(data)
	a.metrics.SourceMessage(a.port)
}
