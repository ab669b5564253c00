// Package notes tracks which notes a single network connection currently
// holds down, so they can be released when the connection goes away.
package notes

import (
	"fmt"
	"sort"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// Key identifies a sounding note within one connection.
type Key struct {
	Port    string
	Channel uint8 // 0..15
	Note    uint8 // 0..127
}

func (k Key) String() string {
	return fmt.Sprintf("%s ch=%d note=%d", k.Port, k.Channel, k.Note)
}

// Event is the note classification of a status byte.
type Event int

const (
	Other Event = iota
	On
	Off
)

// Classify inspects the high nibble of a status byte. A note-on with
// velocity 0 is still On: the bridge is a byte pipe and does not interpret
// running-status conventions.
func Classify(status byte) Event {
	switch contracts.MIDICommand(status & 0xF0) {
	case contracts.NoteOn:
		return On
	case contracts.NoteOff:
		return Off
	}
	return Other
}

// KeyFor builds the key for a three-byte channel message on port.
func KeyFor(port string, status, note byte) Key {
	return Key{Port: port, Channel: status & 0x0F, Note: note}
}

// Tracker is the set of notes one connection has turned on and not yet
// turned off. It is not safe for concurrent use; the bridge event loop
// serializes access.
type Tracker struct {
	held    map[Key]struct{}
	drained bool
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{held: make(map[Key]struct{})}
}

// NoteOn records k. Re-triggering a held key is a no-op.
func (t *Tracker) NoteOn(k Key) {
	if t.drained {
		return
	}
	t.held[k] = struct{}{}
}

// NoteOff forgets k.
func (t *Tracker) NoteOff(k Key) {
	delete(t.held, k)
}

// Track applies a three-byte message sent to port and reports how it was classified.
func (t *Tracker) Track(port string, b0, b1 byte) Event {
	ev := Classify(b0)
	switch ev {
	case On:
		t.NoteOn(KeyFor(port, b0, b1))
	case Off:
		t.NoteOff(KeyFor(port, b0, b1))
	}
	return ev
}

// Contains reports whether k is held.
func (t *Tracker) Contains(k Key) bool {
	_, ok := t.held[k]
	return ok
}

// Len returns the number of held notes.
func (t *Tracker) Len() int {
	return len(t.held)
}

// Keys returns the held notes in a stable order without modifying the set.
func (t *Tracker) Keys() []Key {
	keys := make([]Key, 0, len(t.held))
	for k := range t.held {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Port != b.Port {
			return a.Port < b.Port
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.Note < b.Note
	})
	return keys
}

// Drain returns every held note and empties the tracker for good. Later
// calls return nil and later NoteOn calls are ignored.
func (t *Tracker) Drain() []Key {
	if t.drained {
		return nil
	}
	keys := t.Keys()
	t.held = map[Key]struct{}{}
	t.drained = true
	return keys
}
