package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages the WebSocket connections of every room and
// implements session.Transport on top of them.
type ConnectionManager struct {
	// Connection pools organized by room ID
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	// Outbound deliveries, processed in order by Start
	deliveryCh chan delivery
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID       string
	PlayerID string
	RoomID   string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	// QueueSize bounds the shared outbound queue.
	QueueSize int
	// DropTimeout is how long a Drop waits for queue space before closing
	// the connections directly.
	DropTimeout time.Duration
	CheckOrigin func(r *http.Request) bool
}

type deliveryKind int

const (
	deliverRoom deliveryKind = iota
	deliverPlayer
	dropPlayer
)

// delivery is one queued outbound operation. Everything goes through a
// single queue so a player sees messages in the order the room produced them.
type delivery struct {
	kind     deliveryKind
	roomID   string
	playerID string
	data     []byte
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    54 * time.Second,
		MaxMessageSize:  8192,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		QueueSize:       1024,
		DropTimeout:     2 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	if config.DropTimeout <= 0 {
		config.DropTimeout = 2 * time.Second
	}
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:     config,
		deliveryCh: make(chan delivery, config.QueueSize),
	}
}

// Start processes queued deliveries until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case d := <-cm.deliveryCh:
			cm.handleDelivery(d)
		}
	}
}

// Upgrade upgrades an HTTP connection to WebSocket, registers it and starts
// its write pump. The caller owns the read side (see Connection.ReadPump).
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, roomID, playerID string) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		RoomID:      roomID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)
	go connection.writePump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("player_id", playerID).
		Str("room_id", roomID).
		Msg("WebSocket connection established")

	return connection, nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roomConnections[conn.RoomID] == nil {
		cm.roomConnections[conn.RoomID] = make(map[*Connection]bool)
	}
	cm.roomConnections[conn.RoomID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_id", conn.RoomID).
		Int("total_connections", len(cm.roomConnections[conn.RoomID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager. It reports
// whether the connection was still registered.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.roomConnections[conn.RoomID]
	if !exists || !connections[conn] {
		return false
	}
	delete(connections, conn)
	close(conn.Send)

	if len(connections) == 0 {
		delete(cm.roomConnections, conn.RoomID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("player_id", conn.PlayerID).
		Str("room_id", conn.RoomID).
		Msg("connection unregistered")
	return true
}

// PlayerConnected reports whether the player still has an open connection in the room.
func (cm *ConnectionManager) PlayerConnected(roomID, playerID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for conn := range cm.roomConnections[roomID] {
		if conn.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Broadcast queues msg for every connection in the room.
func (cm *ConnectionManager) Broadcast(roomID string, msg []byte) {
	cm.enqueue(delivery{kind: deliverRoom, roomID: roomID, data: msg})
}

// Send queues msg for every connection the player holds in the room.
func (cm *ConnectionManager) Send(roomID, playerID string, msg []byte) {
	cm.enqueue(delivery{kind: deliverPlayer, roomID: roomID, playerID: playerID, data: msg})
}

// Drop closes the player's connections once everything queued before it was written.
func (cm *ConnectionManager) Drop(roomID, playerID string) {
	cm.enqueue(delivery{kind: dropPlayer, roomID: roomID, playerID: playerID})
}

func (cm *ConnectionManager) enqueue(d delivery) {
	if d.kind == dropPlayer {
		cm.enqueueDrop(d)
		return
	}
	select {
	case cm.deliveryCh <- d:
	default:
		log.Warn().
			Str("room_id", d.roomID).
			Str("player_id", d.playerID).
			Msg("delivery channel full, dropping message")
	}
}

// enqueueDrop never loses a drop: a kicked player's socket must close even
// when the queue is saturated, at the cost of unflushed messages.
func (cm *ConnectionManager) enqueueDrop(d delivery) {
	timer := time.NewTimer(cm.config.DropTimeout)
	defer timer.Stop()

	select {
	case cm.deliveryCh <- d:
	case <-timer.C:
		log.Warn().
			Str("room_id", d.roomID).
			Str("player_id", d.playerID).
			Msg("delivery channel full, closing player connections directly")
		cm.handleDelivery(d)
	}
}

// handleDelivery processes one queued delivery
func (cm *ConnectionManager) handleDelivery(d delivery) {
	if d.kind == dropPlayer {
		for _, conn := range cm.connectionsFor(d.roomID, d.playerID) {
			// closing Send lets the write pump flush what is queued, then close the socket
			cm.unregisterConnection(conn)
		}
		return
	}

	playerID := ""
	if d.kind == deliverPlayer {
		playerID = d.playerID
	}

	// Sends happen under the read lock so a concurrent unregister cannot close Send mid-write.
	var slow []*Connection
	cm.mu.RLock()
	sent := 0
	for conn := range cm.roomConnections[d.roomID] {
		if playerID != "" && conn.PlayerID != playerID {
			continue
		}
		select {
		case conn.Send <- d.data:
			sent++
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("player_id", conn.PlayerID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("room_id", d.roomID).
		Str("player_id", playerID).
		Int("connections", sent).
		Msg("message delivered")
}

func (cm *ConnectionManager) connectionsFor(roomID, playerID string) []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	var out []*Connection
	for conn := range cm.roomConnections[roomID] {
		if conn.PlayerID == playerID {
			out = append(out, conn)
		}
	}
	return out
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.roomConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// ConnectionStats is the payload of the stats endpoint.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{RoomConnections: make(map[string]int, len(cm.roomConnections))}
	for roomID, connections := range cm.roomConnections {
		stats.TotalConnections += len(connections)
		stats.RoomConnections[roomID] = len(connections)
	}
	stats.ActiveRooms = len(cm.roomConnections)
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// ReadPump reads client messages and hands each to onMessage until the
// connection fails or is closed. It blocks; the connection is unregistered
// and closed on return.
func (c *Connection) ReadPump(onMessage func([]byte)) {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		onMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
