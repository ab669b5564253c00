package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/midibridge/internal/midi/mididarwin"
	"github.com/leandrodaf/midibridge/internal/midi/midifake"
	"github.com/leandrodaf/midibridge/internal/midi/midirtmidi"
	"github.com/leandrodaf/midibridge/internal/midi/midiwindows"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

var (
	// ErrUnsupportedOS is returned when no native driver exists for the operating system.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// ErrUnknownDriver is returned for a driver name that is not registered.
	ErrUnknownDriver = errors.New("unknown MIDI driver")
)

type initializer func(*contracts.ClientOptions) (contracts.Driver, error)

// nativeInitializers maps OS names to corresponding native driver initializers.
var nativeInitializers = map[string]initializer{
	"darwin":  mididarwin.NewDriver,  // macOS (Darwin) CoreMIDI driver.
	"windows": midiwindows.NewDriver, // Windows winmm driver.
}

// driverInitializers maps driver names to initializers.
var driverInitializers = map[contracts.DriverName]initializer{
	contracts.RtMIDIDriver: midirtmidi.NewDriver,
	contracts.NativeDriver: newNativeDriver,
	contracts.FakeDriver:   newFakeDriver,
}

func newDriver(opts *contracts.ClientOptions) (contracts.Driver, error) {
	if init, exists := driverInitializers[opts.Driver]; exists {
		return init(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, opts.Driver)
}

// newNativeDriver initializes the driver for the current operating system.
func newNativeDriver(opts *contracts.ClientOptions) (contracts.Driver, error) {
	return nativeDriverFor(runtime.GOOS, opts)
}

func nativeDriverFor(goos string, opts *contracts.ClientOptions) (contracts.Driver, error) {
	if init, exists := nativeInitializers[goos]; exists {
		return init(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
}

// newFakeDriver exposes opts.FakePorts as both inputs and outputs.
func newFakeDriver(opts *contracts.ClientOptions) (contracts.Driver, error) {
	opts.Logger.Info("Using in-memory MIDI driver", opts.Logger.Field().Strings("ports", opts.FakePorts))
	return midifake.NewDriver(opts.FakePorts, opts.FakePorts), nil
}
