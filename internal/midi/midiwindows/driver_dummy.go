//go:build !windows
// +build !windows

package midiwindows

import (
	"errors"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

var ErrUnavailable = errors.New("winmm is not available on this platform")

func NewDriver(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Warn("winmm driver requested on a non-Windows system")
	return nil, ErrUnavailable
}
