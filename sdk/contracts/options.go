package contracts

// DriverName selects the MIDI driver implementation.
type DriverName string

const (
	// RtMIDIDriver uses rtmidi through gomidi; available on every platform with cgo.
	RtMIDIDriver DriverName = "rtmidi"
	// NativeDriver uses the operating system API directly (CoreMIDI on macOS, winmm on Windows).
	NativeDriver DriverName = "native"
	// FakeDriver is an in-memory driver with no hardware behind it.
	FakeDriver DriverName = "fake"
)

// CoreMIDIConfig holds configuration for CoreMIDI.
type CoreMIDIConfig struct {
	ClientName string // Name of the MIDI client.
}

// ClientOptions defines the configuration options for the MIDI driver.
type ClientOptions struct {
	Logger         Logger          // Logger for logging events and errors.
	LogLevel       LogLevel        // Level of logging to use.
	LogFilePath    string          // File path for logging if file logging is enabled.
	Driver         DriverName      // Driver implementation, defaults to RtMIDIDriver.
	FakePorts      []string        // Port names exposed by FakeDriver, as both inputs and outputs.
	CoreMIDIConfig *CoreMIDIConfig // Configuration specific to CoreMIDI.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the MIDI driver.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the MIDI driver.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile directs log output to the given file.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithDriver selects the MIDI driver implementation.
func WithDriver(name DriverName) Option {
	return func(opts *ClientOptions) {
		opts.Driver = name
	}
}

// WithFakePorts sets the port names exposed by FakeDriver.
func WithFakePorts(names ...string) Option {
	return func(opts *ClientOptions) {
		opts.FakePorts = names
	}
}

// WithCoreMIDIConfig sets the CoreMIDI configuration for the MIDI driver.
func WithCoreMIDIConfig(config CoreMIDIConfig) Option {
	return func(opts *ClientOptions) {
		opts.CoreMIDIConfig = &config
	}
}
