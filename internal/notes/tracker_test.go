package notes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status byte
		want   Event
	}{
		{0x90, On},
		{0x9F, On},
		{0x80, Off},
		{0x8A, Off},
		{0xB0, Other},
		{0xA0, Other},
		{0xF8, Other},
		{0x40, Other},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.status), "status 0x%02X", tt.status)
	}
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, Key{Port: "out", Channel: 9, Note: 36}, KeyFor("out", 0x99, 36))
}

func TestTrackerSetSemantics(t *testing.T) {
	tr := NewTracker()
	k := Key{Port: "out", Channel: 0, Note: 0x40}

	tr.NoteOn(k)
	tr.NoteOn(k)
	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.Contains(k))

	tr.NoteOff(k)
	assert.Equal(t, 0, tr.Len())
	assert.False(t, tr.Contains(k))

	// note-off for a key never turned on is harmless
	tr.NoteOff(Key{Port: "out", Note: 1})
	assert.Equal(t, 0, tr.Len())
}

func TestTrackerTrack(t *testing.T) {
	tr := NewTracker()

	assert.Equal(t, On, tr.Track("out", 0x91, 60))
	assert.Equal(t, On, tr.Track("out", 0x90, 61))
	assert.Equal(t, Other, tr.Track("out", 0xB0, 7))
	assert.Equal(t, Off, tr.Track("out", 0x81, 60))

	assert.Equal(t, []Key{{Port: "out", Channel: 0, Note: 61}}, tr.Keys())
}

func TestTrackerVelocityZeroNoteOnStaysOn(t *testing.T) {
	tr := NewTracker()
	tr.Track("out", 0x90, 60)
	assert.Equal(t, On, tr.Track("out", 0x90, 60))
	assert.Equal(t, 1, tr.Len())
}

func TestTrackerDrainOnce(t *testing.T) {
	tr := NewTracker()
	tr.NoteOn(Key{Port: "b", Channel: 1, Note: 10})
	tr.NoteOn(Key{Port: "a", Channel: 2, Note: 5})
	tr.NoteOn(Key{Port: "a", Channel: 2, Note: 3})
	tr.NoteOn(Key{Port: "a", Channel: 0, Note: 90})

	drained := tr.Drain()
	require.Equal(t, []Key{
		{Port: "a", Channel: 0, Note: 90},
		{Port: "a", Channel: 2, Note: 3},
		{Port: "a", Channel: 2, Note: 5},
		{Port: "b", Channel: 1, Note: 10},
	}, drained)
	assert.Equal(t, 0, tr.Len())

	assert.Nil(t, tr.Drain())
	tr.NoteOn(Key{Port: "a", Note: 1})
	assert.Equal(t, 0, tr.Len())
	assert.Nil(t, tr.Drain())
}

func TestTrackersAreIndependent(t *testing.T) {
	a, b := NewTracker(), NewTracker()
	k := Key{Port: "out", Channel: 3, Note: 64}
	a.NoteOn(k)
	b.NoteOn(k)

	assert.Equal(t, []Key{k}, a.Drain())
	assert.True(t, b.Contains(k))
	assert.Equal(t, 1, b.Len())
}
