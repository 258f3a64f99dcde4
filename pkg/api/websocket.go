package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/pyrex41/reelflow/pkg/runtime"
)

// WebSocketManager fans run events out to WebSocket clients. A client that
// sends no subscription receives every event; subscribing narrows it to
// specific runs.
type WebSocketManager struct {
	upgrader websocket.Upgrader
	logger   hclog.Logger

	mu            sync.RWMutex
	subscriptions map[*websocket.Conn]map[string]bool
	writeLocks    map[*websocket.Conn]*sync.Mutex
}

// wsMessage is an incoming client message.
type wsMessage struct {
	Type  string `json:"type"` // "subscribe", "unsubscribe", "ping"
	RunID string `json:"run_id,omitempty"`
}

// NewWebSocketManager creates a WebSocket manager.
func NewWebSocketManager(logger hclog.Logger) *WebSocketManager {
	return &WebSocketManager{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:        logger.Named("websocket"),
		subscriptions: make(map[*websocket.Conn]map[string]bool),
		writeLocks:    make(map[*websocket.Conn]*sync.Mutex),
	}
}

// HandleWebSocket upgrades the connection and serves it until the client
// disconnects.
func (m *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	m.mu.Lock()
	m.subscriptions[conn] = make(map[string]bool)
	m.writeLocks[conn] = &sync.Mutex{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.subscriptions, conn)
		delete(m.writeLocks, conn)
		m.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "subscribe":
			if msg.RunID != "" {
				m.mu.Lock()
				m.subscriptions[conn][msg.RunID] = true
				m.mu.Unlock()
			}
		case "unsubscribe":
			m.mu.Lock()
			delete(m.subscriptions[conn], msg.RunID)
			m.mu.Unlock()
		case "ping":
			m.send(conn, map[string]string{"type": "pong"})
		}
	}
}

// Publish implements runtime.EventPublisher.
func (m *WebSocketManager) Publish(event runtime.Event) {
	m.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(m.subscriptions))
	for conn, runs := range m.subscriptions {
		if len(runs) == 0 || runs[event.RunID] {
			targets = append(targets, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range targets {
		m.send(conn, event)
	}
}

func (m *WebSocketManager) send(conn *websocket.Conn, payload interface{}) {
	m.mu.RLock()
	lock, ok := m.writeLocks[conn]
	m.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("failed to encode websocket payload", "error", err)
		return
	}

	lock.Lock()
	defer lock.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.Debug("websocket write failed", "error", err)
	}
}
