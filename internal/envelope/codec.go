package envelope

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// wireContent is the inner msgpack map. Every field is a pointer so Decode
// can tell a missing field from a zero byte.
type wireContent struct {
	Port           *string  `msgpack:"port"`
	DeltaTime      *float64 `msgpack:"deltaTime,omitempty"`
	CumulativeTime *float64 `msgpack:"cumulativeTime,omitempty"`
	B0             *int64   `msgpack:"b0,omitempty"`
	B1             *int64   `msgpack:"b1,omitempty"`
	B2             *int64   `msgpack:"b2,omitempty"`
}

// Encode serializes c, then wraps it with its address in the outer layer.
func Encode(c Content) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("envelope: nil content")
	}
	raw, err := marshal(toWire(c))
	if err != nil {
		return nil, fmt.Errorf("envelope: encode content: %w", err)
	}
	data, err := marshal(Envelope{Address: c.Address(), Content: raw})
	if err != nil {
		return nil, fmt.Errorf("envelope: encode envelope: %w", err)
	}
	return data, nil
}

// Decode reverses Encode.
func Decode(data []byte) (Content, error) {
	env, err := Unwrap(data)
	if err != nil {
		return nil, err
	}
	return DecodeContent(env.Address, env.Content)
}

// Unwrap decodes only the outer layer, leaving Content encoded.
func Unwrap(data []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if _, _, ok := env.Address.Parse(); !ok {
		return Envelope{}, fmt.Errorf("%w: unknown address %q", ErrMalformedEnvelope, env.Address)
	}
	return env, nil
}

// DecodeContent decodes the inner layer for the given address.
func DecodeContent(addr Address, raw []byte) (Content, error) {
	dir, arity, ok := addr.Parse()
	if !ok {
		return nil, fmt.Errorf("%w: unknown address %q", ErrMalformedEnvelope, addr)
	}

	var w wireContent
	if err := msgpack.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %s content: %v", ErrMalformedEnvelope, addr, err)
	}
	if w.Port == nil {
		return nil, fmt.Errorf("%w: %s content has no port", ErrMalformedEnvelope, addr)
	}

	msg := make([]byte, 0, int(arity))
	for i, b := range []*int64{w.B0, w.B1, w.B2}[:arity] {
		if b == nil {
			return nil, fmt.Errorf("%w: %s content has no b%d", ErrMalformedEnvelope, addr, i)
		}
		if *b < 0 || *b > 0xFF {
			return nil, fmt.Errorf("%w: %s content b%d=%d is not a byte", ErrMalformedEnvelope, addr, i, *b)
		}
		msg = append(msg, byte(*b))
	}

	if dir == Sink {
		c, _ := NewSink(*w.Port, msg)
		return c, nil
	}

	if w.DeltaTime == nil || w.CumulativeTime == nil {
		return nil, fmt.Errorf("%w: %s content has no timing", ErrMalformedEnvelope, addr)
	}
	c, _ := NewSource(SourceHeader{
		Port:           *w.Port,
		DeltaTime:      *w.DeltaTime,
		CumulativeTime: *w.CumulativeTime,
	}, msg)
	return c, nil
}

func toWire(c Content) wireContent {
	port := c.PortName()
	w := wireContent{Port: &port}

	switch v := c.(type) {
	case SourceSingle:
		w.DeltaTime, w.CumulativeTime = &v.DeltaTime, &v.CumulativeTime
	case SourceDouble:
		w.DeltaTime, w.CumulativeTime = &v.DeltaTime, &v.CumulativeTime
	case SourceTripple:
		w.DeltaTime, w.CumulativeTime = &v.DeltaTime, &v.CumulativeTime
	case SinkSingle, SinkDouble, SinkTripple:
	}

	b := c.Bytes()
	fields := []**int64{&w.B0, &w.B1, &w.B2}
	for i := range b {
		n := int64(b[i])
		*fields[i] = &n
	}
	return w
}

func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
