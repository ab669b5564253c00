package contracts

// DeviceInfo contains information about a MIDI port as reported by the driver.
type DeviceInfo struct {
	Name         string // Driver-assigned port name, used as the logical port name.
	Manufacturer string // Device manufacturer, empty when the driver does not report it.
	EntityName   string // Name of the entity to which the port belongs.
}
