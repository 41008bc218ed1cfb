package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	TypeNotification = "notification"
	TypeProject      = "project_update"
	TypeStatus       = "status"
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Message is the frame exchanged with clients
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Channel   string                 `json:"channel,omitempty"`
	Target    string                 `json:"target,omitempty"`
}

// Manager handles WebSocket connections and message routing
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	closed      bool
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID           string
	UserID       string
	Conn         *websocket.Conn
	Send         chan Message
	ConnectedAt  time.Time
	LastActivity time.Time
	UserAgent    string
	IPAddress    string

	mu         sync.Mutex
	projectIDs map[string]bool
	closeOnce  sync.Once
}

// NewManager creates a new WebSocket manager. allowedOrigins of nil or "*" allow any origin.
func NewManager(allowedOrigins []string, logger *zap.Logger) *Manager {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Manager{
		connections: make(map[string]*Connection),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
			},
		},
	}
}

// HandleConnection upgrades an authenticated request and starts its pumps
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:           uuid.New().String(),
		UserID:       userID,
		Conn:         conn,
		Send:         make(chan Message, sendBuffer),
		ConnectedAt:  now,
		LastActivity: now,
		UserAgent:    r.Header.Get("User-Agent"),
		IPAddress:    r.RemoteAddr,
		projectIDs:   make(map[string]bool),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return nil, fmt.Errorf("manager closed")
	}
	m.connections[connection.ID] = connection
	m.mu.Unlock()

	m.logger.Debug("WebSocket connected", zap.String("connection_id", connection.ID), zap.String("user_id", userID))

	go m.readPump(connection)
	go m.writePump(connection)

	connection.enqueue(Message{
		Type:      TypeStatus,
		Data:      map[string]interface{}{"status": "connected", "connection_id": connection.ID},
		Timestamp: now,
		Channel:   "private",
		Target:    userID,
	})
	return connection, nil
}

func (m *Manager) remove(conn *Connection) {
	m.mu.Lock()
	if _, ok := m.connections[conn.ID]; ok {
		delete(m.connections, conn.ID)
		conn.close()
	}
	m.mu.Unlock()
	m.logger.Debug("WebSocket disconnected", zap.String("connection_id", conn.ID), zap.String("user_id", conn.UserID))
}

// readPump reads subscription frames until the client goes away
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		m.remove(conn)
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(4096)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("WebSocket read error", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		conn.mu.Lock()
		conn.LastActivity = time.Now()
		conn.mu.Unlock()

		m.handleMessage(conn, &msg)
	}
}

// writePump drains the send queue and keeps the connection alive with pings
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage applies project subscribe/unsubscribe requests
func (m *Manager) handleMessage(conn *Connection, msg *Message) {
	switch msg.Type {
	case TypeSubscribe, TypeUnsubscribe:
		ids, _ := msg.Data["project_ids"].([]interface{})
		conn.mu.Lock()
		for _, id := range ids {
			s, ok := id.(string)
			if !ok {
				continue
			}
			if _, err := uuid.Parse(s); err != nil {
				continue
			}
			if msg.Type == TypeSubscribe {
				conn.projectIDs[s] = true
			} else {
				delete(conn.projectIDs, s)
			}
		}
		subscribed := make([]string, 0, len(conn.projectIDs))
		for id := range conn.projectIDs {
			subscribed = append(subscribed, id)
		}
		conn.mu.Unlock()

		conn.enqueue(Message{
			Type:      TypeStatus,
			Data:      map[string]interface{}{"subscribed": subscribed},
			Timestamp: time.Now(),
			Channel:   "private",
			Target:    conn.UserID,
		})
	default:
		m.logger.Debug("Unknown websocket message type", zap.String("type", msg.Type))
	}
}

// enqueue drops the frame when the client is too slow to keep up
func (c *Connection) enqueue(msg Message) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *Connection) subscribed(projectID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectIDs[projectID]
}

// SendToUser delivers message to every connection of userID and returns how many accepted it
func (m *Manager) SendToUser(userID string, message Message) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	message.Target = userID
	message.Channel = "private"
	sent := 0
	for _, conn := range m.connections {
		if conn.UserID == userID && conn.enqueue(message) {
			sent++
		}
	}
	return sent
}

// SendToProject delivers message to every connection subscribed to projectID
func (m *Manager) SendToProject(projectID string, message Message) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	message.Target = projectID
	message.Channel = "project"
	sent := 0
	for _, conn := range m.connections {
		if conn.subscribed(projectID) && conn.enqueue(message) {
			sent++
		}
	}
	return sent
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Close closes the WebSocket manager and all connections
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for id, conn := range m.connections {
		conn.close()
		conn.Conn.Close()
		delete(m.connections, id)
	}
}
