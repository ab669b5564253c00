// Package bridge wires hardware inputs, the sink and the network transport
// together and runs them on a single event loop.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midibridge/internal/eventloop"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/internal/metrics"
	"github.com/leandrodaf/midibridge/internal/registry"
	"github.com/leandrodaf/midibridge/internal/sink"
	"github.com/leandrodaf/midibridge/internal/source"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"go.uber.org/multierr"
)

// Config is the declarative port list the bridge is built from.
type Config struct {
	Sources         []string // Hardware input names, one source adapter each.
	Sinks           []string // Hardware output names registered for the sink.
	SourceVerbosity int      // Traffic logging for sources, 0 disables it.
	SinkVerbosity   int      // Traffic logging for the sink, 0 disables it.
	Strict          bool     // Abort on any port open failure.
	QueueSize       int      // Event loop capacity, eventloop.DefaultQueueSize when 0.
}

// Bridge is the running set of adapters. It implements contracts.ConnListener.
type Bridge struct {
	cfg         Config
	driver      contracts.Driver
	broadcaster contracts.Broadcaster
	logger      contracts.Logger
	metrics     *metrics.Metrics

	loop      *eventloop.Loop
	running   atomic.Bool
	closeOnce sync.Once
	closeErr  error

	registry *registry.Registry
	sources  []*source.Adapter
	inputs   []contracts.Input
	stops    []func()
	sink     *sink.Adapter
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used by the bridge and every adapter.
func WithLogger(l contracts.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithMetrics records bridge activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

var _ contracts.ConnListener = (*Bridge)(nil)

// New opens every configured port and builds the adapters. Input listeners
// start immediately; their events are processed once Run is called.
//
// In strict mode any open failure closes whatever was opened and returns an
// *AggregateError. Otherwise failures are logged and the failing ports are
// simply left out.
func New(driver contracts.Driver, broadcaster contracts.Broadcaster, cfg Config, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		cfg:         cfg,
		driver:      driver,
		broadcaster: broadcaster,
		loop:        eventloop.New(cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.NewNopLogger()
	}

	var errs []error

	if len(cfg.Sinks) > 0 {
		reg, err := registry.New(driver, cfg.Sinks, b.logger)
		for _, e := range multierr.Errors(err) {
			b.metrics.OpenFailed("output")
			errs = append(errs, e)
		}
		b.registry = reg
		b.sink = sink.New(reg,
			sink.WithLogger(b.logger),
			sink.WithVerbosity(cfg.SinkVerbosity),
			sink.WithMetrics(b.metrics))
	}

	inputFailed := false
	for _, name := range cfg.Sources {
		if err := b.openSource(name); err != nil {
			b.logger.Error("Failed to open MIDI input port",
				b.logger.Field().String("port", name),
				b.logger.Field().Error("error", err))
			b.metrics.OpenFailed("input")
			errs = append(errs, err)
			inputFailed = true
			continue
		}
		b.logger.Info("Opened MIDI input port", b.logger.Field().String("port", name))
	}

	if inputFailed {
		b.logAvailableInputs()
	}

	if len(errs) > 0 && cfg.Strict {
		_ = b.Close()
		return nil, &AggregateError{Errors: errs}
	}

	return b, nil
}

func (b *Bridge) openSource(name string) error {
	in, err := b.driver.OpenInput(name)
	if err != nil {
		return fmt.Errorf("%w: input %q: %v", ErrDeviceOpen, name, err)
	}

	src := source.New(in.Name(), b.broadcaster,
		source.WithLogger(b.logger),
		source.WithVerbosity(b.cfg.SourceVerbosity),
		source.WithMetrics(b.metrics))

	stop, err := in.Listen(func(deltaTime float64, msg []byte) {
		b.postHardware(src, deltaTime, msg)
	})
	if err != nil {
		_ = in.Close()
		return fmt.Errorf("%w: input %q: listen: %v", ErrDeviceOpen, name, err)
	}

	b.inputs = append(b.inputs, in)
	b.stops = append(b.stops, stop)
	b.sources = append(b.sources, src)
	return nil
}

func (b *Bridge) logAvailableInputs() {
	infos, err := b.driver.Inputs()
	if err != nil {
		b.logger.Warn("Failed to list MIDI input ports", b.logger.Field().Error("error", err))
		return
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	b.logger.Info("Available MIDI input ports", b.logger.Field().Strings("ports", names))
}

// postHardware is called from driver goroutines. Hardware cannot be paused,
// so a full queue drops the event.
func (b *Bridge) postHardware(src *source.Adapter, deltaTime float64, msg []byte) {
	cp := append([]byte(nil), msg...)
	if b.loop.TryPost(func() { src.Process(deltaTime, cp) }) {
		return
	}
	select {
	case <-b.loop.Done():
		b.logger.Debug("MIDI event after shutdown; dropping MIDI event", b.logger.Field().String("port", src.Port()))
		b.metrics.Dropped("source", metrics.ReasonLoopStopped)
	default:
		b.logger.Warn("MIDI event queue full; dropping MIDI event", b.logger.Field().String("port", src.Port()))
		b.metrics.Dropped("source", metrics.ReasonQueueFull)
	}
}

// OnOpen starts note tracking for a new connection.
func (b *Bridge) OnOpen(id contracts.ConnID) {
	b.post(id, func() {
		if b.sink != nil {
			b.sink.Open(id)
		}
	})
}

// OnMessage handles one binary frame from a connection.
func (b *Bridge) OnMessage(id contracts.ConnID, data []byte) {
	b.post(id, func() {
		if b.sink == nil {
			b.logger.Debug("No MIDI sink configured; dropping message", b.logger.Field().String("conn", string(id)))
			return
		}
		b.sink.Handle(id, data)
	})
}

// OnClose releases every note the connection still holds. It returns once
// the sweep is queued; the transport may forget id afterwards.
func (b *Bridge) OnClose(id contracts.ConnID) {
	b.post(id, func() {
		if b.sink != nil {
			b.sink.Close(id)
		}
	})
}

func (b *Bridge) post(id contracts.ConnID, fn func()) {
	if err := b.loop.Post(context.Background(), fn); err != nil {
		// The loop only stops on shutdown; Close sweeps what is left.
		b.logger.Debug("Connection event after shutdown",
			b.logger.Field().String("conn", string(id)),
			b.logger.Field().Error("error", err))
	}
}

// Run processes events until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return fmt.Errorf("bridge already running")
	}
	b.logger.Info("MIDI bridge running",
		b.logger.Field().Int("sources", len(b.sources)),
		b.logger.Field().Int("sinks", len(b.registry.Names())))
	return b.loop.Run(ctx)
}

// Flush waits until every event posted before it has been processed.
func (b *Bridge) Flush(ctx context.Context) error {
	return b.loop.Do(ctx, func() {})
}

// Close stops the inputs, releases the notes of every connection still open
// and closes the outputs. It is safe to call more than once.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		for _, stop := range b.stops {
			stop()
		}
		var err error
		for _, in := range b.inputs {
			err = multierr.Append(err, in.Close())
		}

		sweep := func() {
			if b.sink != nil {
				if n := b.sink.CloseAll(); n > 0 {
					b.logger.Info("Released held notes on shutdown", b.logger.Field().Int("notes", n))
				}
			}
		}
		if !b.running.Load() || b.loop.Do(context.Background(), sweep) != nil {
			// Run never started or has returned: nothing else touches the sink.
			<-b.loopIdle()
			sweep()
		}

		if b.registry != nil {
			err = multierr.Append(err, b.registry.Close())
		}
		b.closeErr = err
	})
	return b.closeErr
}

func (b *Bridge) loopIdle() <-chan struct{} {
	if b.running.Load() {
		return b.loop.Done()
	}
	idle := make(chan struct{})
	close(idle)
	return idle
}

// Sources returns the source adapters that opened successfully.
func (b *Bridge) Sources() []*source.Adapter {
	return append([]*source.Adapter(nil), b.sources...)
}

// Sink returns the sink adapter, nil when no outputs are configured.
func (b *Bridge) Sink() *sink.Adapter {
	return b.sink
}

// Registry returns the output registry, nil when no outputs are configured.
func (b *Bridge) Registry() *registry.Registry {
	return b.registry
}
