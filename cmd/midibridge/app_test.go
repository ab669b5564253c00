package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leandrodaf/midibridge/internal/config"
	"github.com/leandrodaf/midibridge/internal/envelope"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/internal/midi/midifake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
server:
  host: 127.0.0.1
  path: /midi
  metricsPath: /metrics
midiSource:
  ports: [Keys]
midiSink:
  ports: [Synth]
driver: fake
`

type running struct {
	app    *app
	addr   string
	cancel context.CancelFunc
	done   chan error
}

func start(t *testing.T, drv *midifake.Driver) *running {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	a, err := newApp(cfg, logger.NewNopLogger(), drv, reg, reg)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{app: a, addr: ln.Addr().String(), cancel: cancel, done: make(chan error, 1)}
	go func() { r.done <- a.run(ctx, ln) }()
	return r
}

func (r *running) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestAppEndToEnd(t *testing.T) {
	drv := midifake.NewDriver([]string{"Keys"}, []string{"Synth"})
	r := start(t, drv)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+r.addr+"/midi", nil)
	require.NoError(t, err)
	defer conn.Close()
	waitFor(t, func() bool { return r.app.server.Clients() == 1 })

	// Network to hardware.
	noteOn, ok := envelope.NewSink("Synth", []byte{0x90, 0x3C, 0x64})
	require.True(t, ok)
	frame, err := envelope.Encode(noteOn)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	out := drv.Output("Synth")
	require.NotNil(t, out)
	waitFor(t, func() bool { return len(out.Sent()) == 1 })

	// Hardware to network.
	require.True(t, drv.Input("Keys").Emit(0.5, []byte{0xB0, 0x07, 0x40}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)

	got, err := envelope.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, envelope.SourceTripple{
		SourceHeader: envelope.SourceHeader{Port: "Keys", DeltaTime: 0.5, CumulativeTime: 0.5},
		B0:           0xB0, B1: 0x07, B2: 0x40,
	}, got)

	// The client leaves with the note still held.
	require.NoError(t, conn.Close())
	waitFor(t, func() bool { return len(out.NoteOffs()) == 1 })
	assert.Equal(t, []midifake.NoteOff{{Channel: 0, Note: 0x3C}}, out.NoteOffs())

	resp, err := http.Get("http://" + r.addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `midibridge_notes_released_total{port="Synth"} 1`)

	r.stop(t)
}

func TestAppShutdownReleasesHeldNotes(t *testing.T) {
	drv := midifake.NewDriver(nil, []string{"Synth"})
	r := start(t, drv)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+r.addr+"/midi", nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, note := range []byte{0x3C, 0x40} {
		c, ok := envelope.NewSink("Synth", []byte{0x91, note, 0x50})
		require.True(t, ok)
		frame, err := envelope.Encode(c)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
	}
	out := drv.Output("Synth")
	waitFor(t, func() bool { return len(out.Sent()) == 2 })

	r.stop(t)

	assert.ElementsMatch(t, []midifake.NoteOff{{Channel: 1, Note: 0x3C}, {Channel: 1, Note: 0x40}}, out.NoteOffs())
}

func TestNewAppStrictFailure(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig + "strict: true\n"))
	require.NoError(t, err)

	drv := midifake.NewDriver(nil, []string{"Synth"})
	reg := prometheus.NewRegistry()
	_, err = newApp(cfg, logger.NewNopLogger(), drv, reg, reg)
	assert.Error(t, err)
}

func TestPrintPorts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printPorts(&buf, midifake.NewDriver([]string{"Keys"}, []string{"Synth", "Drums"})))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"Inputs:", "  Keys", "Outputs:", "  Synth", "  Drums"}, lines)
}

func TestFakePorts(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	assert.Equal(t, []string{"Keys", "Synth"}, fakePorts(cfg))
}

func TestNewLoggerVerbose(t *testing.T) {
	cfg, err := config.Parse([]byte("server: {}\nmidiSink: {ports: [a], logLevel: 2}\nlogging: {level: error, format: json}\n"))
	require.NoError(t, err)

	log, err := newLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, log)

	cfg.Logging.Level = "nope"
	_, err = newLogger(cfg)
	assert.Error(t, err)
}
