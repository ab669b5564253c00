package envelope

// Content is the decoded payload of an envelope. It is a closed set: the six
// concrete types below are the only implementations.
type Content interface {
	Address() Address
	PortName() string
	Bytes() []byte
	isContent()
}

// SourceHeader is shared by every hardware-to-network message.
type SourceHeader struct {
	Port           string  // Driver-assigned input name.
	DeltaTime      float64 // Seconds since the previous message on the same input.
	CumulativeTime float64 // Running sum of DeltaTime since the source was created.
}

// SinkHeader is shared by every network-to-hardware message.
type SinkHeader struct {
	Port string // Logical output name resolved through the registry.
}

type SourceSingle struct {
	SourceHeader
	B0 uint8
}

type SourceDouble struct {
	SourceHeader
	B0, B1 uint8
}

type SourceTripple struct {
	SourceHeader
	B0, B1, B2 uint8
}

type SinkSingle struct {
	SinkHeader
	B0 uint8
}

type SinkDouble struct {
	SinkHeader
	B0, B1 uint8
}

type SinkTripple struct {
	SinkHeader
	B0, B1, B2 uint8
}

func (SourceSingle) Address() Address  { return AddressSourceSingle }
func (SourceDouble) Address() Address  { return AddressSourceDouble }
func (SourceTripple) Address() Address { return AddressSourceTripple }
func (SinkSingle) Address() Address    { return AddressSinkSingle }
func (SinkDouble) Address() Address    { return AddressSinkDouble }
func (SinkTripple) Address() Address   { return AddressSinkTripple }

func (c SourceHeader) PortName() string { return c.Port }
func (c SinkHeader) PortName() string   { return c.Port }

func (c SourceSingle) Bytes() []byte  { return []byte{c.B0} }
func (c SourceDouble) Bytes() []byte  { return []byte{c.B0, c.B1} }
func (c SourceTripple) Bytes() []byte { return []byte{c.B0, c.B1, c.B2} }
func (c SinkSingle) Bytes() []byte    { return []byte{c.B0} }
func (c SinkDouble) Bytes() []byte    { return []byte{c.B0, c.B1} }
func (c SinkTripple) Bytes() []byte   { return []byte{c.B0, c.B1, c.B2} }

func (SourceSingle) isContent()  {}
func (SourceDouble) isContent()  {}
func (SourceTripple) isContent() {}
func (SinkSingle) isContent()    {}
func (SinkDouble) isContent()    {}
func (SinkTripple) isContent()   {}

// NewSource builds the source content matching len(msg). ok is false when
// msg is not 1, 2 or 3 bytes long.
func NewSource(h SourceHeader, msg []byte) (Content, bool) {
	switch len(msg) {
	case 1:
		return SourceSingle{SourceHeader: h, B0: msg[0]}, true
	case 2:
		return SourceDouble{SourceHeader: h, B0: msg[0], B1: msg[1]}, true
	case 3:
		return SourceTripple{SourceHeader: h, B0: msg[0], B1: msg[1], B2: msg[2]}, true
	}
	return nil, false
}

// NewSink builds the sink content matching len(msg). ok is false when msg is
// not 1, 2 or 3 bytes long.
func NewSink(port string, msg []byte) (Content, bool) {
	h := SinkHeader{Port: port}
	switch len(msg) {
	case 1:
		return SinkSingle{SinkHeader: h, B0: msg[0]}, true
	case 2:
		return SinkDouble{SinkHeader: h, B0: msg[0], B1: msg[1]}, true
	case 3:
		return SinkTripple{SinkHeader: h, B0: msg[0], B1: msg[1], B2: msg[2]}, true
	}
	return nil, false
}
