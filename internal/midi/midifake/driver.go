// Package midifake is an in-memory MIDI driver. It backs the "fake" driver
// used for dry runs and every test that needs hardware.
package midifake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

var (
	ErrPortNotFound = errors.New("port not found")
	ErrPortBusy     = errors.New("port already open")
	ErrClosed       = errors.New("port closed")
)

// Driver exposes a fixed set of input and output names.
type Driver struct {
	mu      sync.Mutex
	ins     []string
	outs    []string
	failing map[string]error
	inputs  map[string]*Input
	outputs map[string]*Output
}

// NewDriver returns a driver whose inputs and outputs are named ins and outs.
func NewDriver(ins, outs []string) *Driver {
	return &Driver{
		ins:     ins,
		outs:    outs,
		failing: map[string]error{},
		inputs:  map[string]*Input{},
		outputs: map[string]*Output{},
	}
}

// FailOpen makes every later open of name fail with err.
func (d *Driver) FailOpen(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing[name] = err
}

func (d *Driver) Inputs() ([]contracts.DeviceInfo, error) {
	return infos(d.ins), nil
}

func (d *Driver) Outputs() ([]contracts.DeviceInfo, error) {
	return infos(d.outs), nil
}

func (d *Driver) OpenInput(name string) (contracts.Input, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(name, d.ins); err != nil {
		return nil, err
	}
	if in, ok := d.inputs[name]; ok && !in.isClosed() {
		return nil, fmt.Errorf("%w: %s", ErrPortBusy, name)
	}
	in := &Input{name: name}
	d.inputs[name] = in
	return in, nil
}

func (d *Driver) OpenOutput(name string) (contracts.Output, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(name, d.outs); err != nil {
		return nil, err
	}
	if out, ok := d.outputs[name]; ok && !out.isClosed() {
		return nil, fmt.Errorf("%w: %s", ErrPortBusy, name)
	}
	out := &Output{name: name}
	d.outputs[name] = out
	return out, nil
}

func (d *Driver) check(name string, names []string) error {
	if err := d.failing[name]; err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPortNotFound, name)
}

// Input returns the most recently opened input called name.
func (d *Driver) Input(name string) *Input {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inputs[name]
}

// Output returns the most recently opened output called name.
func (d *Driver) Output(name string) *Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputs[name]
}

// Close closes every port opened through d.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, in := range d.inputs {
		_ = in.Close()
	}
	for _, out := range d.outputs {
		_ = out.Close()
	}
	return nil
}

func infos(names []string) []contracts.DeviceInfo {
	out := make([]contracts.DeviceInfo, len(names))
	for i, n := range names {
		out[i] = contracts.DeviceInfo{Name: n, EntityName: n, Manufacturer: "midifake"}
	}
	return out
}

// Input delivers messages injected with Emit.
type Input struct {
	mu      sync.Mutex
	name    string
	handler contracts.MessageHandler
	closed  bool
}

func (in *Input) Name() string { return in.name }

func (in *Input) Listen(handler contracts.MessageHandler) (func(), error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil, ErrClosed
	}
	in.handler = handler
	return func() {
		in.mu.Lock()
		in.handler = nil
		in.mu.Unlock()
	}, nil
}

// Emit delivers one message as if the hardware produced it. It reports
// whether a listener received it.
func (in *Input) Emit(deltaTime float64, msg []byte) bool {
	in.mu.Lock()
	h := in.handler
	in.mu.Unlock()
	if h == nil {
		return false
	}
	h(deltaTime, msg)
	return true
}

func (in *Input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.closed = true
	in.handler = nil
	return nil
}

func (in *Input) isClosed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.closed
}

// NoteOff is one SendNoteOff call.
type NoteOff struct {
	Channel uint8
	Note    uint8
}

// Output records everything written to it.
type Output struct {
	mu       sync.Mutex
	name     string
	raw      [][]byte
	noteOffs []NoteOff
	closed   bool
	sendErr  error
}

func (out *Output) Name() string { return out.name }

// FailSends makes later writes return err.
func (out *Output) FailSends(err error) {
	out.mu.Lock()
	defer out.mu.Unlock()
	out.sendErr = err
}

func (out *Output) SendRaw(msg []byte) error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return ErrClosed
	}
	if out.sendErr != nil {
		return out.sendErr
	}
	out.raw = append(out.raw, append([]byte(nil), msg...))
	return nil
}

func (out *Output) SendNoteOff(channel, note uint8) error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return ErrClosed
	}
	if out.sendErr != nil {
		return out.sendErr
	}
	out.noteOffs = append(out.noteOffs, NoteOff{Channel: channel, Note: note})
	out.raw = append(out.raw, midi.NoteOff(channel, note).Bytes())
	return nil
}

// Sent returns a copy of every message written, note-offs included.
func (out *Output) Sent() [][]byte {
	out.mu.Lock()
	defer out.mu.Unlock()
	return append([][]byte(nil), out.raw...)
}

// NoteOffs returns the SendNoteOff calls in order.
func (out *Output) NoteOffs() []NoteOff {
	out.mu.Lock()
	defer out.mu.Unlock()
	return append([]NoteOff(nil), out.noteOffs...)
}

func (out *Output) Close() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	out.closed = true
	return nil
}

func (out *Output) isClosed() bool {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.closed
}
