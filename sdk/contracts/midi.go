package contracts

// MIDICommand is the high nibble of a MIDI status byte.
type MIDICommand byte

const (
	// NoteOff is the MIDI command for a Note Off event (0x80).
	NoteOff MIDICommand = 0x80
	// NoteOn is the MIDI command for a Note On event (0x90).
	NoteOn MIDICommand = 0x90
)

// MessageHandler receives one hardware MIDI message. deltaTime is the time in
// seconds since the previous message on the same input.
type MessageHandler func(deltaTime float64, msg []byte)

// Input is an opened hardware MIDI input.
type Input interface {
	Name() string                                  // Driver-assigned port name.
	Listen(handler MessageHandler) (func(), error) // Starts delivering messages; the returned func stops delivery.
	Close() error                                  // Stops listening and releases the port.
}

// Output is an opened hardware MIDI output.
type Output interface {
	Name() string                          // Driver-assigned port name.
	SendRaw(msg []byte) error              // Writes the bytes unmodified.
	SendNoteOff(channel, note uint8) error // Writes a note-off with velocity 0.
	Close() error                          // Releases the port.
}

// Driver opens hardware MIDI ports by name.
type Driver interface {
	Inputs() ([]DeviceInfo, error)          // Lists the currently available inputs.
	Outputs() ([]DeviceInfo, error)         // Lists the currently available outputs.
	OpenInput(name string) (Input, error)   // Opens the input with the exact given name.
	OpenOutput(name string) (Output, error) // Opens the output with the exact given name.
	Close() error                           // Releases the driver and every port it opened.
}
