//go:build !darwin
// +build !darwin

package mididarwin

import (
	"errors"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

var ErrUnavailable = errors.New("CoreMIDI is not available on this platform")

func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Warn("CoreMIDI driver requested on a non-macOS system")
	return nil, ErrUnavailable
}
