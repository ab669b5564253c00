//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/leandrodaf/midibridge/internal/midi/midimsg"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"golang.org/x/sys/windows"
)

var (
	ErrDeviceNotFound = errors.New("MIDI device not found")
	ErrLongMessage    = errors.New("system exclusive output is not supported")
	ErrPortClosed     = errors.New("port closed")
)

// Type definitions for MIDI handles
type (
	HMIDIIN  windows.Handle
	HMIDIOUT windows.Handle
)

// Constants for callback flags
const (
	CALLBACK_NULL     = 0x00000000 // No callback
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

// Struct representing MIDI input device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Struct representing MIDI output device capabilities
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// Load the winmm.dll library and required functions
var (
	winmm                 = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs  = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps  = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen        = winmm.NewProc("midiInOpen")
	procMidiInStart       = winmm.NewProc("midiInStart")
	procMidiInStop        = winmm.NewProc("midiInStop")
	procMidiInClose       = winmm.NewProc("midiInClose")
	procMidiOutGetNumDevs = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen       = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg   = winmm.NewProc("midiOutShortMsg")
	procMidiOutClose      = winmm.NewProc("midiOutClose")
)

// Windows caps the number of callbacks a process may create, so every input
// shares one and is found again through its instance id.
var (
	callbackOnce sync.Once
	callback     uintptr

	instancesMu  sync.Mutex
	instances    = map[uintptr]*Input{}
	nextInstance uintptr
)

func sharedCallback() uintptr {
	callbackOnce.Do(func() {
		callback = windows.NewCallback(midiInCallback)
	})
	return callback
}

// Driver opens winmm devices by product name.
type Driver struct {
	logger contracts.Logger
	mu     sync.Mutex
	opened []interface{ Close() error }
}

// NewDriver creates a MIDI driver for Windows
func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Info("MIDI client created for Windows")
	return &Driver{logger: options.Logger}, nil
}

func (d *Driver) Inputs() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			d.logger.Warn(fmt.Sprintf("Failed to get information for MIDI input %d", i))
			continue
		}
		devices = append(devices, deviceInfo(caps.szPname[:], caps.wMid, caps.wPid))
	}
	return devices, nil
}

func (d *Driver) Outputs() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	numDevices := uint32(r0)

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			d.logger.Warn(fmt.Sprintf("Failed to get information for MIDI output %d", i))
			continue
		}
		devices = append(devices, deviceInfo(caps.szPname[:], caps.wMid, caps.wPid))
	}
	return devices, nil
}

func deviceInfo(pname []uint16, mid, pid uint16) contracts.DeviceInfo {
	name := windows.UTF16ToString(pname)
	return contracts.DeviceInfo{
		Name:         name,
		EntityName:   name,
		Manufacturer: fmt.Sprintf("MID: %d PID: %d", mid, pid),
	}
}

func (d *Driver) inputID(name string) (uint32, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	for i := uint32(0); i < uint32(r0); i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(uintptr(i), uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r1 == 0 && windows.UTF16ToString(caps.szPname[:]) == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: input %q", ErrDeviceNotFound, name)
}

func (d *Driver) outputID(name string) (uint32, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	for i := uint32(0); i < uint32(r0); i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(uintptr(i), uintptr(unsafe.Pointer(&caps)), unsafe.Sizeof(caps))
		if r1 == 0 && windows.UTF16ToString(caps.szPname[:]) == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: output %q", ErrDeviceNotFound, name)
}

func (d *Driver) OpenInput(name string) (contracts.Input, error) {
	deviceID, err := d.inputID(name)
	if err != nil {
		return nil, err
	}

	in := &Input{logger: d.logger, name: name}
	instancesMu.Lock()
	nextInstance++
	in.instance = nextInstance
	instances[in.instance] = in
	instancesMu.Unlock()

	fdwOpen := CALLBACK_FUNCTION | MIDI_IO_STATUS
	r1, _, callErr := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&in.handle)),
		uintptr(deviceID),
		sharedCallback(),
		in.instance,
		uintptr(fdwOpen),
	)
	if r1 != 0 {
		in.forget()
		return nil, fmt.Errorf("failed to open MIDI input %q: %v", name, callErr)
	}

	d.track(in)
	d.logger.Info("MIDI input connected", d.logger.Field().String("deviceName", name))
	return in, nil
}

func (d *Driver) OpenOutput(name string) (contracts.Output, error) {
	deviceID, err := d.outputID(name)
	if err != nil {
		return nil, err
	}

	out := &Output{name: name}
	r1, _, callErr := procMidiOutOpen.Call(
		uintptr(unsafe.Pointer(&out.handle)),
		uintptr(deviceID),
		0,
		0,
		CALLBACK_NULL,
	)
	if r1 != 0 {
		return nil, fmt.Errorf("failed to open MIDI output %q: %v", name, callErr)
	}

	d.track(out)
	d.logger.Info("MIDI output connected", d.logger.Field().String("deviceName", name))
	return out, nil
}

func (d *Driver) track(p interface{ Close() error }) {
	d.mu.Lock()
	d.opened = append(d.opened, p)
	d.mu.Unlock()
}

// Close closes every device opened through d.
func (d *Driver) Close() error {
	d.mu.Lock()
	opened := d.opened
	d.opened = nil
	d.mu.Unlock()

	for _, p := range opened {
		_ = p.Close()
	}
	return nil
}

// Input is an opened winmm input device.
type Input struct {
	logger   contracts.Logger
	name     string
	handle   HMIDIIN
	instance uintptr

	mu      sync.Mutex
	handler contracts.MessageHandler
	clock   midimsg.DeltaClock
	started bool
	closed  bool
}

func (in *Input) Name() string { return in.name }

func (in *Input) Listen(handler contracts.MessageHandler) (func(), error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil, ErrPortClosed
	}

	in.handler = handler
	in.clock = midimsg.DeltaClock{}
	if !in.started {
		r1, _, err := procMidiInStart.Call(uintptr(in.handle))
		if r1 != 0 {
			in.handler = nil
			return nil, fmt.Errorf("failed to start MIDI capture: %v", err)
		}
		in.started = true
	}
	in.logger.Info("MIDI capture started", in.logger.Field().String("deviceName", in.name))

	return func() {
		in.mu.Lock()
		in.handler = nil
		in.mu.Unlock()
	}, nil
}

func (in *Input) deliver(param1, param2 uintptr) {
	in.mu.Lock()
	handler := in.handler
	delta := in.clock.Next(int64(param2))
	in.mu.Unlock()

	if handler == nil {
		return
	}
	msg := midimsg.Unpack(uint32(param1))
	if len(msg) == 0 {
		return
	}
	handler(delta, msg)
}

// Close stops capture and releases the device.
func (in *Input) Close() error {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil
	}
	in.closed = true
	in.handler = nil
	in.mu.Unlock()

	defer in.forget()
	if r1, _, err := procMidiInStop.Call(uintptr(in.handle)); r1 != 0 {
		in.logger.Error(fmt.Sprintf("Failed to stop MIDI capture: %v", err))
	}
	if r1, _, err := procMidiInClose.Call(uintptr(in.handle)); r1 != 0 {
		return fmt.Errorf("failed to close MIDI device: %v", err)
	}
	return nil
}

func (in *Input) forget() {
	instancesMu.Lock()
	delete(instances, in.instance)
	instancesMu.Unlock()
}

// midiInCallback processes incoming MIDI messages. For MIM_DATA dwParam1
// holds the packed message and dwParam2 the milliseconds since midiInStart.
func midiInCallback(hMidiIn, wMsg, dwInstance, dwParam1, dwParam2 uintptr) uintptr {
	instancesMu.Lock()
	in := instances[dwInstance]
	instancesMu.Unlock()
	if in == nil {
		return 0
	}

	switch wMsg {
	case MIM_OPEN:
		in.logger.Debug("MIDI device opened", in.logger.Field().String("deviceName", in.name))
	case MIM_CLOSE:
		in.logger.Debug("MIDI device closed", in.logger.Field().String("deviceName", in.name))
	case MIM_DATA:
		in.deliver(dwParam1, dwParam2)
	case MIM_ERROR, MIM_LONGERROR:
		in.logger.Error(fmt.Sprintf("MIDI error: msg=0x%X", wMsg))
	case MIM_MOREDATA:
		in.deliver(dwParam1, dwParam2)
	default:
		in.logger.Debug(fmt.Sprintf("Unknown MIDI message: 0x%X", wMsg))
	}
	return 0
}

// Output is an opened winmm output device.
type Output struct {
	mu     sync.Mutex
	name   string
	handle HMIDIOUT
	closed bool
}

func (out *Output) Name() string { return out.name }

// SendRaw writes one short message. SysEx needs midiOutLongMsg and is refused.
func (out *Output) SendRaw(msg []byte) error {
	if len(msg) == 0 || len(msg) > 3 || msg[0] == 0xF0 {
		return fmt.Errorf("%w: % X", ErrLongMessage, msg)
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return ErrPortClosed
	}
	r1, _, err := procMidiOutShortMsg.Call(uintptr(out.handle), uintptr(midimsg.Pack(msg)))
	if r1 != 0 {
		return fmt.Errorf("failed to send MIDI message: %v", err)
	}
	return nil
}

func (out *Output) SendNoteOff(channel, note uint8) error {
	return out.SendRaw(midi.NoteOff(channel, note).Bytes())
}

func (out *Output) Close() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return nil
	}
	out.closed = true
	if r1, _, err := procMidiOutClose.Call(uintptr(out.handle)); r1 != 0 {
		return fmt.Errorf("failed to close MIDI device: %v", err)
	}
	return nil
}
