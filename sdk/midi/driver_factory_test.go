package midi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDriverFake(t *testing.T) {
	drv, err := NewDriver(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithDriver(contracts.FakeDriver),
		contracts.WithFakePorts("Keys", "Synth"),
	)
	require.NoError(t, err)
	defer drv.Close()

	ins, err := drv.Inputs()
	require.NoError(t, err)
	require.Len(t, ins, 2)
	assert.Equal(t, "Keys", ins[0].Name)

	out, err := drv.OpenOutput("Synth")
	require.NoError(t, err)
	assert.Equal(t, "Synth", out.Name())

	_, err = drv.OpenInput("Missing")
	assert.Error(t, err)
}

func TestNewDriverUnknown(t *testing.T) {
	_, err := NewDriver(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithDriver("alsa"),
	)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestNativeDriverUnsupportedOS(t *testing.T) {
	opts, err := applyDefaultOptions(contracts.WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)

	_, err = nativeDriverFor("plan9", &opts)
	assert.ErrorIs(t, err, ErrUnsupportedOS)
}

func TestApplyDefaultOptions(t *testing.T) {
	opts, err := applyDefaultOptions()
	require.NoError(t, err)

	assert.NotNil(t, opts.Logger)
	assert.Equal(t, contracts.InfoLevel, opts.LogLevel)
	assert.Equal(t, contracts.RtMIDIDriver, opts.Driver)
	require.NotNil(t, opts.CoreMIDIConfig)
	assert.Equal(t, "GO MIDI Bridge", opts.CoreMIDIConfig.ClientName)

	opts, err = applyDefaultOptions(
		contracts.WithDriver(contracts.NativeDriver),
		contracts.WithCoreMIDIConfig(contracts.CoreMIDIConfig{ClientName: "Stage"}),
		contracts.WithLogLevel(contracts.DebugLevel),
	)
	require.NoError(t, err)
	assert.Equal(t, contracts.NativeDriver, opts.Driver)
	assert.Equal(t, "Stage", opts.CoreMIDIConfig.ClientName)
	assert.Equal(t, contracts.DebugLevel, opts.LogLevel)
}

func TestApplyDefaultOptionsLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	opts, err := applyDefaultOptions(contracts.WithLogger(logger.NewZapLogger()), contracts.WithLogFile(path))
	require.NoError(t, err)

	opts.Logger.Info("hello")
	logger.Sync(opts.Logger)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)

	_, err = applyDefaultOptions(
		contracts.WithLogger(logger.NewZapLogger()),
		contracts.WithLogFile(filepath.Join(t.TempDir(), "missing", "dir", "x.log")),
	)
	assert.Error(t, err)
}
