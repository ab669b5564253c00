package midirtmidi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfos(t *testing.T) {
	got := infos([]string{"IAC Bus 1", "USB MIDI"})
	assert.Len(t, got, 2)
	assert.Equal(t, "IAC Bus 1", got[0].Name)
	assert.Equal(t, "USB MIDI", got[1].EntityName)
	assert.Empty(t, infos(nil))
}

func TestListenConfigPassesEveryMessageType(t *testing.T) {
	var got error
	cfg := listenConfig(func(err error) { got = err })

	assert.True(t, cfg.SysEx)
	assert.True(t, cfg.TimeCode, "MTC quarter frames (0xF1) and timing clock (0xF8)")
	assert.True(t, cfg.ActiveSense, "active sensing (0xFE)")

	require.NotNil(t, cfg.OnErr)
	cfg.OnErr(errors.New("overflow"))
	assert.EqualError(t, got, "overflow")
}
