package registry

import (
	"errors"
	"testing"

	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/internal/midi/midifake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestRegistryOpensEveryName(t *testing.T) {
	drv := midifake.NewDriver(nil, []string{"USB MIDI Out", "Synth"})

	reg, err := New(drv, []string{"USB MIDI Out", "Synth"}, logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"USB MIDI Out", "Synth"}, reg.Names())
	assert.Same(t, drv.Output("USB MIDI Out"), reg.SelectPortName("USB MIDI Out"))
	assert.Same(t, drv.Output("Synth"), reg.SelectPortName("Synth"))
	assert.Empty(t, reg.Failures())
}

func TestRegistryBestEffort(t *testing.T) {
	drv := midifake.NewDriver(nil, []string{"A", "C"})
	drv.FailOpen("C", errors.New("device busy"))

	reg, err := New(drv, []string{"A", "B", "C", "A"}, logger.NewNopLogger())
	require.Error(t, err)
	require.NotNil(t, reg)

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.ErrorIs(t, e, ErrDeviceOpen)
	}
	assert.Contains(t, errs[0].Error(), `"B"`)
	assert.Contains(t, errs[1].Error(), "device busy")

	assert.Equal(t, []string{"A"}, reg.Names())
	assert.Len(t, reg.Failures(), 2)
	assert.NotNil(t, reg.SelectPortName("A"))
	assert.Nil(t, reg.SelectPortName("B"))
	assert.Nil(t, reg.SelectPortName("C"))
}

func TestSelectPortNameUnknownIsNil(t *testing.T) {
	reg, err := New(midifake.NewDriver(nil, nil), nil, logger.NewNopLogger())
	require.NoError(t, err)

	assert.Nil(t, reg.SelectPortName("nope"))
	_, err = reg.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownPort)

	var nilReg *Registry
	assert.Nil(t, nilReg.SelectPortName("nope"))
}

func TestRegistryRemoveAndClose(t *testing.T) {
	drv := midifake.NewDriver(nil, []string{"A", "B"})
	reg, err := New(drv, []string{"A", "B"}, logger.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, reg.Remove("A"))
	assert.Nil(t, reg.SelectPortName("A"))
	assert.Equal(t, []string{"B"}, reg.Names())
	assert.ErrorIs(t, drv.Output("A").SendRaw([]byte{0xF8}), midifake.ErrClosed)
	assert.ErrorIs(t, reg.Remove("A"), ErrUnknownPort)

	require.NoError(t, reg.Close())
	assert.Nil(t, reg.SelectPortName("B"))
	assert.ErrorIs(t, drv.Output("B").SendRaw([]byte{0xF8}), midifake.ErrClosed)
}
