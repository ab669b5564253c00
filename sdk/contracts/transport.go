package contracts

// ConnID identifies one network connection for its whole lifetime. Transports
// never reuse an id.
type ConnID string

// Broadcaster sends one binary frame to every connected client. It must not
// block on slow clients.
type Broadcaster interface {
	Broadcast(data []byte)
}

// ConnListener receives connection lifecycle and message events from a transport.
type ConnListener interface {
	OnOpen(id ConnID)
	OnMessage(id ConnID, data []byte)
	OnClose(id ConnID)
}
