package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/darasahq/darasa/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultBufferSize = 64
)

// Event names pushed over the notifications stream.
const (
	EventDispatched = "notification.dispatched"
	EventDigest     = "notification.digest"
	EventRead       = "notification.read"
)

// Message represents a JSON payload delivered to realtime subscribers.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type connection struct {
	ws   *websocket.Conn
	send chan Message
}

// Hub fans notification events out to a user's live WebSocket connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*connection]struct{}

	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // auth happens before the upgrade
			},
		},
		log: logger.WithModule("realtime"),
	}
}

// Serve upgrades the HTTP connection to a WebSocket and registers the user subscriber.
func (h *Hub) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &connection{
		ws:   ws,
		send: make(chan Message, defaultBufferSize),
	}

	h.addClient(userID, conn)
	defer h.removeClient(userID, conn)

	go h.writeLoop(conn)
	h.readLoop(conn)
}

// BroadcastToUser delivers an event to every live connection of the user.
// Connections with a full buffer are skipped rather than blocking the sender.
func (h *Hub) BroadcastToUser(userID string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.clients[userID] {
		select {
		case conn.send <- msg:
		default:
		}
	}
}

// ConnectionCount reports the number of live connections for a user.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) addClient(userID string, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*connection]struct{})
	}
	h.clients[userID][conn] = struct{}{}
}

func (h *Hub) removeClient(userID string, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
	close(conn.send)
	_ = conn.ws.Close()
}

func (h *Hub) writeLoop(conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(conn *connection) {
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only listen; drain control frames until the peer goes away.
	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			return
		}
	}
}
