package midi

import (
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// NewDriver creates a MIDI driver with the specified options.
// It applies default options and initializes the driver they select.
//
// opts ...contracts.Option: A variadic list of option functions to customize the driver configuration.
//
// Returns:
//   - contracts.Driver: The MIDI driver.
//   - error: An error, if any occurred during the creation of the driver.
func NewDriver(opts ...contracts.Option) (contracts.Driver, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	return newDriver(&options)
}
