package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrUnknownConnection is returned when a connection id is not registered.
var ErrUnknownConnection = errors.New("unknown connection")

// Dispatcher receives connection lifecycle events and inbound frames.
type Dispatcher interface {
	Connect(connectionID string) error
	Deliver(connectionID string, data []byte) error
	Pong(connectionID string) error
	Disconnect(connectionID string) error
}

// ConnectionManager owns the WebSocket connections of a room and implements
// the coordinator's transport.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	upgrader   websocket.Upgrader
	config     ConnectionConfig
	dispatcher Dispatcher
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		MaxMessageSize:  16 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// NewConnectionManager creates a connection manager. The dispatcher is set
// by the Service once the coordinator exists.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and hands it to
// the dispatcher.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)
	if err := cm.dispatcher.Connect(connection.ID); err != nil {
		cm.unregisterConnection(connection)
		conn.Close()
		return nil, fmt.Errorf("failed to register connection: %w", err)
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and closes its send channel; the
// write pump then flushes what is queued and closes the socket. It reports
// whether the connection was still registered.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn.ID]; !exists {
		return false
	}
	delete(cm.connections, conn.ID)
	close(conn.Send)

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection unregistered")
	return true
}

func (cm *ConnectionManager) lookup(connectionID string) (*Connection, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	conn, ok := cm.connections[connectionID]
	return conn, ok
}

// offer queues payload without blocking. Callers hold cm.mu.
func offer(conn *Connection, payload []byte) bool {
	select {
	case conn.Send <- payload:
		return true
	default:
		return false
	}
}

func (cm *ConnectionManager) dropSlow(conn *Connection) {
	log.Warn().
		Str("connection_id", conn.ID).
		Msg("connection send buffer full, closing connection")
	cm.unregisterConnection(conn)
}

// Send queues a frame for one connection.
func (cm *ConnectionManager) Send(connectionID string, payload []byte) {
	cm.mu.RLock()
	conn, ok := cm.connections[connectionID]
	full := ok && !offer(conn, payload)
	cm.mu.RUnlock()

	if full {
		cm.dropSlow(conn)
	}
}

// Broadcast queues a frame for every connection.
func (cm *ConnectionManager) Broadcast(payload []byte) {
	cm.mu.RLock()
	var slow []*Connection
	for _, conn := range cm.connections {
		if !offer(conn, payload) {
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		cm.dropSlow(conn)
	}
}

// Ping sends a WebSocket ping control frame.
func (cm *ConnectionManager) Ping(connectionID string) error {
	conn, ok := cm.lookup(connectionID)
	if !ok {
		return ErrUnknownConnection
	}
	deadline := time.Now().Add(cm.config.WriteTimeout)
	if err := conn.Conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		return fmt.Errorf("ping %s: %w", connectionID, err)
	}
	return nil
}

// Close flushes queued frames and closes the connection.
func (cm *ConnectionManager) Close(connectionID string) {
	if conn, ok := cm.lookup(connectionID); ok {
		cm.unregisterConnection(conn)
	}
}

// CloseAll closes every connection.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

// ConnectionStats summarizes active connections.
type ConnectionStats struct {
	TotalConnections int `json:"total_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return ConnectionStats{TotalConnections: len(cm.connections)}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Error().
				Err(err).
				Str("connection_id", c.ID).
				Msg("failed to write message to WebSocket")
			c.Manager.unregisterConnection(c)
			return
		}
	}

	// Channel was closed
	c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
	c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
		if err := c.Manager.dispatcher.Disconnect(c.ID); err != nil {
			log.Debug().Err(err).Str("connection_id", c.ID).Msg("disconnect not delivered")
		}
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetPongHandler(func(string) error {
		return c.Manager.dispatcher.Pong(c.ID)
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		if err := c.Manager.dispatcher.Deliver(c.ID, message); err != nil {
			log.Debug().Err(err).Str("connection_id", c.ID).Msg("message not delivered")
			return
		}
	}
}
