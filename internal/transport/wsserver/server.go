// Package wsserver is the WebSocket connection multiplexer in front of the
// bridge: it fans binary frames out to every client and reports connection
// lifecycle and inbound frames to a contracts.ConnListener.
package wsserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024

	// DefaultSendBuffer is the number of frames queued per client before
	// broadcasts to it are dropped.
	DefaultSendBuffer = 256
)

// Server upgrades HTTP requests and tracks the resulting connections.
type Server struct {
	listener   contracts.ConnListener
	logger     contracts.Logger
	upgrader   websocket.Upgrader
	sendBuffer int

	mu      sync.RWMutex
	clients map[contracts.ConnID]*client
	closed  bool
	wg      sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l contracts.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithSendBuffer sets the per-client outbound queue length.
func WithSendBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// WithCheckOrigin replaces the origin check. The default accepts every origin.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// New creates a server reporting to listener.
func New(listener contracts.ConnListener, opts ...Option) *Server {
	s := &Server{
		listener:   listener,
		sendBuffer: DefaultSendBuffer,
		clients:    make(map[contracts.ConnID]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.NewNopLogger()
	}
	return s
}

// SetListener replaces the listener. It must be called before serving.
func (s *Server) SetListener(l contracts.ConnListener) {
	s.listener = l
}

type client struct {
	id        contracts.ConnID
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade WebSocket connection", s.logger.Field().Error("error", err))
		return
	}

	c := &client{
		id:   contracts.ConnID(uuid.NewString()),
		conn: conn,
		send: make(chan []byte, s.sendBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	s.clients[c.id] = c
	count := len(s.clients)
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Client connected",
		s.logger.Field().String("conn", string(c.id)),
		s.logger.Field().String("remote", r.RemoteAddr),
		s.logger.Field().Int("clients", count))

	s.listener.OnOpen(c.id)

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		count := len(s.clients)
		s.mu.Unlock()

		s.listener.OnClose(c.id)
		c.close()
		_ = c.conn.Close()

		s.logger.Info("Client disconnected",
			s.logger.Field().String("conn", string(c.id)),
			s.logger.Field().Int("clients", count))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Warn("WebSocket read error",
					s.logger.Field().String("conn", string(c.id)),
					s.logger.Field().Error("error", err))
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			s.logger.Debug("Ignoring non-binary frame", s.logger.Field().String("conn", string(c.id)))
			continue
		}
		s.listener.OnMessage(c.id, data)
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}

// Broadcast queues data for every connected client. Clients whose queue is
// full miss the frame.
func (s *Server) Broadcast(data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.logger.Warn("Client send buffer full; dropping frame", s.logger.Field().String("conn", string(c.id)))
		}
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client and waits until each one has been reported
// to the listener as closed. New connections are refused afterwards.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	s.wg.Wait()
	return nil
}
