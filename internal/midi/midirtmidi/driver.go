// Package midirtmidi implements contracts.Driver on top of gomidi's rtmidi
// driver. It is the default driver on every platform built with cgo.
package midirtmidi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midibridge/internal/midi/midimsg"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/multierr"
)

var ErrPortNotFound = errors.New("port not found")

// Driver manages rtmidi ports opened by name.
type Driver struct {
	logger contracts.Logger
	drv    *rtmididrv.Driver

	mu     sync.Mutex
	opened []interface{ Close() error }
}

// NewDriver initializes rtmidi.
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	options.Logger.Info("MIDI driver successfully created", options.Logger.Field().String("driver", string(contracts.RtMIDIDriver)))
	return &Driver{logger: options.Logger, drv: drv}, nil
}

func (d *Driver) Inputs() ([]contracts.DeviceInfo, error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return infos(names), nil
}

func (d *Driver) Outputs() ([]contracts.DeviceInfo, error) {
	outs, err := d.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI outputs: %w", err)
	}
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return infos(names), nil
}

func (d *Driver) OpenInput(name string) (contracts.Input, error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: input %q", ErrPortNotFound, name)
	}
	if err := found.Open(); err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	d.track(found)
	return &Input{logger: d.logger, port: found}, nil
}

func (d *Driver) OpenOutput(name string) (contracts.Output, error) {
	outs, err := d.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI outputs: %w", err)
	}
	var found drivers.Out
	for _, out := range outs {
		if out.String() == name {
			found = out
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: output %q", ErrPortNotFound, name)
	}
	if err := found.Open(); err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	d.track(found)
	return &Output{port: found}, nil
}

func (d *Driver) track(p interface{ Close() error }) {
	d.mu.Lock()
	d.opened = append(d.opened, p)
	d.mu.Unlock()
}

// Close closes every port still open, then rtmidi itself.
func (d *Driver) Close() error {
	d.mu.Lock()
	opened := d.opened
	d.opened = nil
	d.mu.Unlock()

	var err error
	for _, p := range opened {
		err = multierr.Append(err, p.Close())
	}
	return multierr.Append(err, d.drv.Close())
}

func infos(names []string) []contracts.DeviceInfo {
	out := make([]contracts.DeviceInfo, len(names))
	for i, n := range names {
		out[i] = contracts.DeviceInfo{Name: n, EntityName: n}
	}
	return out
}

// Input adapts a gomidi input port.
type Input struct {
	logger contracts.Logger
	port   drivers.In
}

func (in *Input) Name() string { return in.port.String() }

// Listen converts rtmidi's running millisecond timestamps into per-message
// deltas in seconds.
func (in *Input) Listen(handler contracts.MessageHandler) (func(), error) {
	var clock midimsg.DeltaClock
	return in.port.Listen(func(msg []byte, ms int32) {
		handler(clock.Next(int64(ms)), msg)
	}, listenConfig(func(err error) {
		in.logger.Warn("MIDI listener error",
			in.logger.Field().String("port", in.port.String()),
			in.logger.Field().Error("error", err))
	}))
}

// listenConfig lets every message type through. rtmidi otherwise ignores
// SysEx, timing clock, MTC quarter frames and active sensing.
func listenConfig(onErr func(error)) drivers.ListenConfig {
	return drivers.ListenConfig{
		SysEx:       true,
		TimeCode:    true,
		ActiveSense: true,
		OnErr:       onErr,
	}
}

func (in *Input) Close() error { return in.port.Close() }

// Output adapts a gomidi output port.
type Output struct {
	port drivers.Out
}

func (out *Output) Name() string { return out.port.String() }

func (out *Output) SendRaw(msg []byte) error { return out.port.Send(msg) }

func (out *Output) SendNoteOff(channel, note uint8) error {
	return out.port.Send(midi.NoteOff(channel, note).Bytes())
}

func (out *Output) Close() error { return out.port.Close() }
