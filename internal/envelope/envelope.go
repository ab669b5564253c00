// Package envelope implements the two-layer wire format shared with the
// WebSocket clients. The outer layer is a msgpack map {address, content}
// where content is itself a msgpack-encoded map, so a receiver can dispatch
// on address before decoding the payload.
package envelope

import (
	"errors"
	"fmt"
)

// ErrMalformedEnvelope is returned when either layer fails to decode or the
// content lacks a field required by its address.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Direction is the first address segment after /midi.
type Direction string

const (
	Source Direction = "source" // hardware to network
	Sink   Direction = "sink"   // network to hardware
)

// Arity is the number of MIDI bytes carried by a message.
type Arity int

const (
	Single  Arity = 1
	Double  Arity = 2
	Tripple Arity = 3
)

// String returns the address segment for the arity.
func (a Arity) String() string {
	switch a {
	case Single:
		return "single"
	case Double:
		return "double"
	case Tripple:
		return "tripple"
	}
	return fmt.Sprintf("arity(%d)", int(a))
}

// Address is a hierarchical topic of the form /midi/<direction>/<arity>.
type Address string

const (
	AddressSourceSingle  Address = "/midi/source/single"
	AddressSourceDouble  Address = "/midi/source/double"
	AddressSourceTripple Address = "/midi/source/tripple"
	AddressSinkSingle    Address = "/midi/sink/single"
	AddressSinkDouble    Address = "/midi/sink/double"
	AddressSinkTripple   Address = "/midi/sink/tripple"
)

var addresses = map[Address]struct {
	dir   Direction
	arity Arity
}{
	AddressSourceSingle:  {Source, Single},
	AddressSourceDouble:  {Source, Double},
	AddressSourceTripple: {Source, Tripple},
	AddressSinkSingle:    {Sink, Single},
	AddressSinkDouble:    {Sink, Double},
	AddressSinkTripple:   {Sink, Tripple},
}

// AddressFor builds the address for a direction and arity. ok is false for
// arities outside 1..3.
func AddressFor(dir Direction, arity Arity) (Address, bool) {
	if arity < Single || arity > Tripple {
		return "", false
	}
	if dir != Source && dir != Sink {
		return "", false
	}
	return Address("/midi/" + string(dir) + "/" + arity.String()), true
}

// Parse splits a known address into its direction and arity.
func (a Address) Parse() (Direction, Arity, bool) {
	v, ok := addresses[a]
	return v.dir, v.arity, ok
}

// Envelope is the outer wire layer. Content is the still-encoded payload.
type Envelope struct {
	Address Address `msgpack:"address"`
	Content []byte  `msgpack:"content"`
}
