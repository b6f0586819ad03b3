package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// client is one panel connection. Only writePump writes to conn.
type client struct {
	conn *websocket.Conn
	send chan Message
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan Message, sendBuffer)}
}

// queue adds msg to the client's outbox, reporting false when it is full.
func (c *client) queue(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub fans panel messages out to every connected browser. A client that
// cannot keep up is disconnected instead of stalling the others.
type Hub struct {
	clients    map[*client]struct{}
	mu         sync.Mutex
	broadcast  chan Message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan Message, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It returns after Stop, disconnecting every
// panel on the way out.
func (h *Hub) Run() {
	logger := log.With().Str("component", "hub").Logger()
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			logger.Info().Msg("Hub stopped")
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			logger.Info().Str("remote", c.conn.RemoteAddr().String()).Msg("Panel connected")
		case c := <-h.unregister:
			if h.drop(c) {
				logger.Info().Str("remote", c.conn.RemoteAddr().String()).Msg("Panel disconnected")
			}
		case msg := <-h.broadcast:
			h.mu.Lock()
			var slow []*client
			for c := range h.clients {
				if !c.queue(msg) {
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()
			for _, c := range slow {
				if h.drop(c) {
					logger.Warn().Str("remote", c.conn.RemoteAddr().String()).Str("type", msg.Type).Msg("Panel too slow, dropped")
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	return true
}

// Stop ends Run. Later calls to Broadcast are dropped.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// join registers c, reporting false once the hub has stopped.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
