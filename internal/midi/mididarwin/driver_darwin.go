//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midibridge/internal/midi/midimsg"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/youpy/go-coremidi"
	"gitlab.com/gomidi/midi/v2"
)

// Error definitions for MIDI connection and handling issues.
var (
	ErrInvalidMIDIDevice   = errors.New("invalid MIDI device")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
	ErrCreateOutputPort    = errors.New("error creating output port")
	ErrPortClosed          = errors.New("port closed")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// Driver opens CoreMIDI sources and destinations by name.
type Driver struct {
	logger contracts.Logger
	client coremidi.Client
	mu     sync.Mutex
	inputs []*Input
}

// NewDriver creates the CoreMIDI client named in options.CoreMIDIConfig.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	client, err := coremidi.NewClient(options.CoreMIDIConfig.ClientName)
	if err != nil {
		return nil, err
	}
	options.Logger.Info("MIDI client successfully created")

	return &Driver{logger: options.Logger, client: client}, nil
}

func (d *Driver) Inputs() ([]contracts.DeviceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		entity := source.Entity()
		devices[i] = contracts.DeviceInfo{
			Name:         source.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
		}
	}
	return devices, nil
}

func (d *Driver) Outputs() ([]contracts.DeviceInfo, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}
	devices := make([]contracts.DeviceInfo, len(destinations))
	for i, destination := range destinations {
		entity := destination.Entity()
		devices[i] = contracts.DeviceInfo{
			Name:         destination.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
		}
	}
	return devices, nil
}

func (d *Driver) OpenInput(name string) (contracts.Input, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	for _, source := range sources {
		if source.Name() != name {
			continue
		}
		in := &Input{logger: d.logger, client: d.client, source: source}
		d.mu.Lock()
		d.inputs = append(d.inputs, in)
		d.mu.Unlock()
		return in, nil
	}
	return nil, fmt.Errorf("%w: source %q", ErrInvalidMIDIDevice, name)
}

func (d *Driver) OpenOutput(name string) (contracts.Output, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI destinations: %w", err)
	}
	for _, destination := range destinations {
		if destination.Name() != name {
			continue
		}
		port, err := coremidi.NewOutputPort(d.client, "Output Port")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
		}
		return &Output{port: port, destination: destination}, nil
	}
	return nil, fmt.Errorf("%w: destination %q", ErrInvalidMIDIDevice, name)
}

// Close disconnects every input still listening.
func (d *Driver) Close() error {
	d.mu.Lock()
	inputs := d.inputs
	d.inputs = nil
	d.mu.Unlock()

	for _, in := range inputs {
		_ = in.Close()
	}
	return nil
}

// Input receives packets from one CoreMIDI source.
type Input struct {
	logger   contracts.Logger
	client   coremidi.Client
	source   coremidi.Source
	mu       sync.Mutex
	portConn internalPortConnection
	handler  contracts.MessageHandler
	last     time.Time
	closed   bool
	wg       sync.WaitGroup // In-flight packet callbacks.
}

func (in *Input) Name() string { return in.source.Name() }

func (in *Input) Listen(handler contracts.MessageHandler) (func(), error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil, ErrPortClosed
	}
	if in.portConn != nil {
		in.portConn.Disconnect()
		in.portConn = nil
	}

	inputPort, err := coremidi.NewInputPort(in.client, "Input Port", in.handlePacket)
	if err != nil {
		in.logger.Error(ErrCreateInputPort.Error())
		return nil, fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}
	in.portConn, err = inputPort.Connect(in.source)
	if err != nil {
		in.logger.Error(ErrMIDIConnectionError.Error())
		return nil, fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}
	in.handler = handler
	in.last = time.Time{}

	in.logger.Info("MIDI device successfully connected", in.logger.Field().String("deviceName", in.source.Name()))
	return in.stop, nil
}

// handlePacket splits a CoreMIDI packet into single messages. The delta of
// the first message is measured against the previous packet; the rest
// share its arrival time.
func (in *Input) handlePacket(_ coremidi.Source, packet coremidi.Packet) {
	in.wg.Add(1)
	defer in.wg.Done()

	in.mu.Lock()
	handler := in.handler
	now := time.Now()
	delta := 0.0
	if !in.last.IsZero() {
		delta = now.Sub(in.last).Seconds()
	}
	in.last = now
	in.mu.Unlock()

	if handler == nil {
		return
	}
	for _, msg := range midimsg.Split(packet.Data) {
		handler(delta, msg)
		delta = 0
	}
}

func (in *Input) stop() {
	in.mu.Lock()
	conn := in.portConn
	in.portConn = nil
	in.handler = nil
	in.mu.Unlock()

	if conn != nil {
		conn.Disconnect()
	}
	in.wg.Wait() // Wait for all ongoing MIDI event processing to complete
}

func (in *Input) Close() error {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
	in.stop()
	return nil
}

// Output writes packets to one CoreMIDI destination.
type Output struct {
	mu          sync.Mutex
	port        coremidi.OutputPort
	destination coremidi.Destination
	closed      bool
}

func (out *Output) Name() string { return out.destination.Name() }

func (out *Output) SendRaw(msg []byte) error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return ErrPortClosed
	}
	packet := coremidi.NewPacket(msg, 0)
	return packet.Send(&out.port, &out.destination)
}

func (out *Output) SendNoteOff(channel, note uint8) error {
	return out.SendRaw(midi.NoteOff(channel, note).Bytes())
}

func (out *Output) Close() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	out.closed = true
	return nil
}
