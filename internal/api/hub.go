package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/screener/pkg/logger"
)

// Message is the envelope sent to stream clients
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MsgTypeStatus is sent once to each client on connect
const MsgTypeStatus = "status"

const writeWait = 10 * time.Second

// client wraps a connection; gorilla allows one concurrent writer
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub fans scan events out to WebSocket clients
// ⭐ SSOT: 실시간 스캔 이벤트 전달은 이 허브에서만
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.Mutex

	upgrader websocket.Upgrader
	snapshot func() interface{}
	logger   *logger.Logger
}

// NewHub creates a hub. snapshot, when set, supplies the status sent to new clients.
func NewHub(snapshot func() interface{}, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		snapshot: snapshot,
		logger:   log,
	}
}

// Run dispatches events until ctx ends, then closes every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.conn.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("clients", n).Debug("Stream client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.conn.Close()
			}
			h.mu.Unlock()
			h.logger.Debug("Stream client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			clients := make([]*client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.Unlock()

			// Write outside the lock
			for _, c := range clients {
				if err := c.writeJSON(msg); err != nil {
					h.logger.WithError(err).Debug("Dropping stream client")
					h.mu.Lock()
					delete(h.clients, c)
					h.mu.Unlock()
					c.conn.Close()
				}
			}
		}
	}
}

// Broadcast queues an event; drops it when the queue is full
func (h *Hub) Broadcast(eventType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: eventType, Data: data}:
	default:
		h.logger.WithField("type", eventType).Warn("Stream queue full, event dropped")
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams events until the client goes away
// GET /ws
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	c := &client{conn: conn}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	if h.snapshot != nil {
		if err := c.writeJSON(Message{Type: MsgTypeStatus, Data: h.snapshot()}); err != nil {
			h.leave(c)
			return
		}
	}

	// Read loop; clients only send control frames
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.leave(c)
			return
		}
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.conn.Close()
	}
}
