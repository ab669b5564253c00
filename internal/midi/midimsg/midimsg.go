// Package midimsg holds wire-level helpers shared by the MIDI drivers.
package midimsg

import (
	"strconv"
	"strings"
)

const (
	sysExStart = 0xF0
	sysExEnd   = 0xF7
)

// Length returns the total length in bytes of the short message starting
// with status, or 0 when status is not a status byte or starts a SysEx.
func Length(status byte) int {
	if status < 0x80 {
		return 0
	}
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 2
	case 0xF0:
		switch status {
		case 0xF1, 0xF3:
			return 2
		case 0xF2:
			return 3
		case sysExStart:
			return 0
		}
		return 1
	}
	return 3
}

// Split cuts a packet holding several complete messages into individual
// messages. SysEx blocks are returned whole; stray data bytes are dropped.
func Split(data []byte) [][]byte {
	var msgs [][]byte
	for i := 0; i < len(data); {
		status := data[i]
		if status == sysExStart {
			end := i + 1
			for end < len(data) && data[end] != sysExEnd {
				end++
			}
			if end < len(data) {
				end++
			}
			msgs = append(msgs, data[i:end])
			i = end
			continue
		}
		n := Length(status)
		if n == 0 || i+n > len(data) {
			i++
			continue
		}
		msgs = append(msgs, data[i:i+n])
		i += n
	}
	return msgs
}

// Unpack extracts a short message from the little-endian packed form used by
// winmm (status in the low byte).
func Unpack(packed uint32) []byte {
	status := byte(packed)
	n := Length(status)
	if n == 0 {
		return nil
	}
	msg := []byte{status, byte(packed >> 8), byte(packed >> 16)}
	return msg[:n]
}

// Pack is the inverse of Unpack for messages of one to three bytes.
func Pack(msg []byte) uint32 {
	var packed uint32
	for i := 0; i < len(msg) && i < 3; i++ {
		packed |= uint32(msg[i]) << (8 * i)
	}
	return packed
}

// Hex renders msg as space separated hex bytes for logs.
func Hex(msg []byte) string {
	parts := make([]string, len(msg))
	for i, b := range msg {
		parts[i] = strconv.FormatUint(uint64(b), 16)
	}
	return strings.Join(parts, " ")
}
