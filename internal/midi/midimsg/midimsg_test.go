package midimsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLength(t *testing.T) {
	tests := map[byte]int{
		0x40: 0,
		0x80: 3,
		0x9F: 3,
		0xB3: 3,
		0xC0: 2,
		0xD5: 2,
		0xE0: 3,
		0xF0: 0,
		0xF1: 2,
		0xF2: 3,
		0xF3: 2,
		0xF6: 1,
		0xF8: 1,
		0xFE: 1,
	}
	for status, want := range tests {
		assert.Equal(t, want, Length(status), "status 0x%02X", status)
	}
}

func TestSplit(t *testing.T) {
	packet := []byte{
		0x90, 0x40, 0x7F, // note on
		0xF8,       // clock
		0xC0, 0x05, // program change
		0x12,                   // stray data byte
		0xF0, 0x7E, 0x01, 0xF7, // sysex
		0x80, 0x40, // truncated note off
	}
	assert.Equal(t, [][]byte{
		{0x90, 0x40, 0x7F},
		{0xF8},
		{0xC0, 0x05},
		{0xF0, 0x7E, 0x01, 0xF7},
	}, Split(packet))
	assert.Nil(t, Split(nil))
}

func TestPackUnpack(t *testing.T) {
	assert.Equal(t, uint32(0x7F4090), Pack([]byte{0x90, 0x40, 0x7F}))
	assert.Equal(t, []byte{0x90, 0x40, 0x7F}, Unpack(0x7F4090))
	assert.Equal(t, []byte{0xC3, 0x11}, Unpack(Pack([]byte{0xC3, 0x11})))
	assert.Equal(t, []byte{0xFA}, Unpack(0x0000FA))
	assert.Nil(t, Unpack(0x000040))
}

func TestHex(t *testing.T) {
	assert.Equal(t, "90 40 7f", Hex([]byte{0x90, 0x40, 0x7F}))
	assert.Equal(t, "", Hex(nil))
}
