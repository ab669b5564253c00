package source

import (
	"math"
	"testing"

	"github.com/leandrodaf/midibridge/internal/envelope"
	"github.com/leandrodaf/midibridge/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	frames [][]byte
}

func (r *recorder) Broadcast(data []byte) {
	r.frames = append(r.frames, data)
}

func (r *recorder) decoded(t *testing.T) []envelope.Content {
	t.Helper()
	out := make([]envelope.Content, 0, len(r.frames))
	for _, f := range r.frames {
		c, err := envelope.Decode(f)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func TestProcessNoteOnScenario(t *testing.T) {
	rec := &recorder{}
	a := New("USB MIDI In", rec)

	a.Process(10, []byte{0x90, 0x40, 0x7F})

	got := rec.decoded(t)
	require.Len(t, got, 1)
	assert.Equal(t, envelope.AddressSourceTripple, got[0].Address())
	assert.Equal(t, envelope.SourceTripple{
		SourceHeader: envelope.SourceHeader{Port: "USB MIDI In", DeltaTime: 10, CumulativeTime: 10},
		B0:           0x90, B1: 0x40, B2: 0x7F,
	}, got[0])
}

func TestProcessArities(t *testing.T) {
	rec := &recorder{}
	a := New("in", rec)

	a.Process(0, []byte{0xF8})
	a.Process(0, []byte{0xC0, 0x01})
	a.Process(0, []byte{0xB0, 0x07, 0x64})

	got := rec.decoded(t)
	require.Len(t, got, 3)
	assert.Equal(t, envelope.AddressSourceSingle, got[0].Address())
	assert.Equal(t, []byte{0xF8}, got[0].Bytes())
	assert.Equal(t, envelope.AddressSourceDouble, got[1].Address())
	assert.Equal(t, []byte{0xC0, 0x01}, got[1].Bytes())
	assert.Equal(t, envelope.AddressSourceTripple, got[2].Address())
	assert.Equal(t, []byte{0xB0, 0x07, 0x64}, got[2].Bytes())
}

func TestProcessDropsUnsupportedLengths(t *testing.T) {
	rec := &recorder{}
	m := metrics.New(prometheus.NewRegistry())
	a := New("in", rec, WithMetrics(m), WithVerbosity(1))

	a.Process(1, nil)
	a.Process(1, []byte{})
	a.Process(1, []byte{0xF0, 0x7E, 0x7F, 0x09, 0x01, 0xF7})

	assert.Empty(t, rec.frames)
	assert.Equal(t, 3.0, a.CumulativeTime(), "dropped messages still advance time")

	a.Process(0.5, []byte{0xFA})
	got := rec.decoded(t)
	require.Len(t, got, 1)
	assert.Equal(t, 3.5, got[0].(envelope.SourceSingle).CumulativeTime)
}

func TestCumulativeTimeIsRunningPrefixSum(t *testing.T) {
	rec := &recorder{}
	a := New("in", rec)

	deltas := []float64{0, 0.001, 0.5, 0, 2, 0.25, 10}
	var sum float64
	var prev float64
	for _, d := range deltas {
		a.Process(d, []byte{0xF8})
		sum += d
		assert.Equal(t, sum, a.CumulativeTime())
	}

	for i, c := range rec.decoded(t) {
		s := c.(envelope.SourceSingle)
		assert.Equal(t, deltas[i], s.DeltaTime)
		assert.GreaterOrEqual(t, s.CumulativeTime, prev)
		prev = s.CumulativeTime
	}
	assert.Equal(t, sum, prev)
}

func TestInvalidDeltaIsClamped(t *testing.T) {
	rec := &recorder{}
	a := New("in", rec)

	a.Process(1, []byte{0xF8})
	a.Process(-5, []byte{0xF8})
	a.Process(math.NaN(), []byte{0xF8})
	a.Process(math.Inf(1), []byte{0xF8})

	assert.Equal(t, 1.0, a.CumulativeTime())
	for _, c := range rec.decoded(t) {
		assert.Equal(t, 1.0, c.(envelope.SourceSingle).CumulativeTime)
	}
}

func TestProcessCountsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	a := New("in", &recorder{}, WithMetrics(m))

	a.Process(0, []byte{0xF8})
	a.Process(0, []byte{0xF8, 0, 0, 0})

	n, err := testutil.GatherAndCount(reg, "midibridge_source_messages_total", "midibridge_dropped_messages_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
