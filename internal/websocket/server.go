package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/flightbrief/internal/briefing"
	"github.com/yegors/flightbrief/pkg/logger"
)

// Message types of the admin activity feed
const (
	MessageTypeAttempt      = "attempt"       // Server sends one finished briefing attempt
	MessageTypeFilterUpdate = "filter_update" // Client sends the outcomes it wants
	MessageTypeFilterAck    = "filter_ack"    // Server confirms the active filter
)

const (
	sendBufferSize      = 256
	broadcastBufferSize = 64
	writeWait           = 10 * time.Second
)

// Message represents a WebSocket message
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ClientFilters restricts which outcomes a client receives. Empty means all.
type ClientFilters struct {
	Outcomes map[briefing.Outcome]bool `json:"outcomes"`
}

// Client represents a WebSocket client
type Client struct {
	conn    *websocket.Conn
	send    chan *Message
	server  *Server
	mu      sync.Mutex
	closed  bool
	filters *ClientFilters
}

// Server is the admin live feed hub. It implements briefing.AttemptRecorder.
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
	done       chan struct{}
}

// NewServer creates a new WebSocket server
func NewServer(logger *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, broadcastBufferSize),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Admin auth happens before the upgrade
			},
		},
		logger: logger.Named("web-socket"),
	}
}

// Run drives the hub until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting activity feed")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				client.markClosed()
			}
			s.mu.Unlock()
			s.logger.Info("Activity feed stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.markClosed()
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.deliver(message)
		}
	}
}

func (s *Server) deliver(message *Message) {
	s.mu.RLock()
	clientsToRemove := make([]*Client, 0)
	for client := range s.clients {
		if !client.wants(message) {
			continue
		}
		if !client.SendMessage(message) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	s.mu.RUnlock()

	// Clean up slow or closed clients
	if len(clientsToRemove) > 0 {
		s.mu.Lock()
		for _, client := range clientsToRemove {
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.markClosed()
			}
		}
		s.mu.Unlock()
		s.logger.Debug("Dropped slow clients", logger.Int("dropped", len(clientsToRemove)))
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleConnection upgrades the request and attaches the client to the feed
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("Activity feed client connected",
		logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:   conn,
		send:   make(chan *Message, sendBufferSize),
		server: s,
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for every interested client. It never blocks;
// messages are dropped when the hub is saturated.
func (s *Server) Broadcast(message *Message) bool {
	select {
	case s.broadcast <- message:
		return true
	default:
		s.logger.Warn("Activity feed saturated, dropping message",
			logger.String("message_type", message.Type))
		return false
	}
}

// Record implements briefing.AttemptRecorder
func (s *Server) Record(ctx context.Context, a *briefing.Attempt) error {
	cp := *a
	s.Broadcast(&Message{Type: MessageTypeAttempt, Data: &cp})
	return nil
}

// readPump handles filter updates from the client until the connection closes
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Warn("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		switch message.Type {
		case MessageTypeFilterUpdate:
			var req struct {
				Outcomes []briefing.Outcome `json:"outcomes"`
			}
			if err := json.Unmarshal(message.Data, &req); err != nil {
				c.server.logger.Warn("Invalid filter update", logger.Error(err))
				continue
			}
			filters := &ClientFilters{Outcomes: make(map[briefing.Outcome]bool, len(req.Outcomes))}
			for _, o := range req.Outcomes {
				filters.Outcomes[o] = true
			}
			c.UpdateFilters(filters)
			c.SendMessage(&Message{Type: MessageTypeFilterAck, Data: req})
		default:
			c.server.logger.Debug("Ignoring WebSocket message", logger.String("type", message.Type))
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		data, err := json.Marshal(message)
		if err != nil {
			c.server.logger.Error("Failed to marshal message", logger.Error(err))
			continue
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Channel closed by the hub
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// markClosed stops further sends and ends the write pump. Callers hold the
// server lock so this runs once per client.
func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// SendMessage sends a message to this client without blocking
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		// Channel is full, drop message
		return false
	}
}

// UpdateFilters updates the client's active filters
func (c *Client) UpdateFilters(filters *ClientFilters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = filters
}

func (c *Client) wants(message *Message) bool {
	if message.Type != MessageTypeAttempt {
		return true
	}
	a, ok := message.Data.(*briefing.Attempt)
	if !ok {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filters == nil || len(c.filters.Outcomes) == 0 {
		return true
	}
	return c.filters.Outcomes[a.Outcome]
}
