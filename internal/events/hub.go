// Package events fans keypad state snapshots out to websocket clients.
package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

const (
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
	sendBuffer          = 8
)

// Message types on the wire.
const (
	TypeSnapshot = "snapshot"
	TypePing     = "ping"
	TypePong     = "pong"
)

// Message is the envelope for every frame the hub writes.
type Message struct {
	Type     string           `json:"type"`
	Snapshot *keypad.Snapshot `json:"snapshot,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // LAN clients connect from arbitrary origins
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the latest snapshot and pushes every new one to connected
// clients. A client that falls behind is dropped rather than slowing the
// keypad loop.
type Hub struct {
	logger       *log.Logger
	pingInterval time.Duration

	mu      sync.RWMutex
	latest  *keypad.Snapshot
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger:       logger,
		pingInterval: defaultPingInterval,
		clients:      make(map[*client]struct{}),
	}
}

var _ keypad.Publisher = (*Hub)(nil)

// Publish stores snap and broadcasts it unchanged; Sequence is the
// controller's. Safe to call from the keypad loop.
func (h *Hub) Publish(snap keypad.Snapshot) {
	h.mu.Lock()
	h.latest = &snap
	h.mu.Unlock()

	frame, err := json.Marshal(Message{Type: TypeSnapshot, Snapshot: &snap})
	if err != nil {
		h.logger.Printf("Failed to encode snapshot: %v", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Printf("Dropping slow events client %s", c.conn.RemoteAddr())
		h.remove(c)
	}
}

// Latest returns the most recent snapshot, if any has been published.
func (h *Hub) Latest() (keypad.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return keypad.Snapshot{}, false
	}
	return *h.latest, true
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams snapshots until the client
// disconnects. The latest snapshot is sent first.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade failed - error already written to response
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.latest != nil {
		if frame, err := json.Marshal(Message{Type: TypeSnapshot, Snapshot: h.latest}); err == nil {
			c.send <- frame
		}
	}
	h.mu.Unlock()
	h.logger.Printf("Events client connected: %s", conn.RemoteAddr())

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readLoop drains client frames. Clients may send {"type":"ping"}; the hub
// answers with the latest snapshot so a monitor can resync.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		h.logger.Printf("Events client disconnected: %s", c.conn.RemoteAddr())
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var incoming Message
		if err := json.Unmarshal(data, &incoming); err != nil {
			h.logger.Printf("Failed to parse events message: %v", err)
			continue
		}
		if incoming.Type != TypePing {
			continue
		}
		reply := Message{Type: TypePong}
		if snap, ok := h.Latest(); ok {
			reply.Snapshot = &snap
		}
		frame, err := json.Marshal(reply)
		if err != nil {
			continue
		}
		h.mu.RLock()
		_, open := h.clients[c]
		if open {
			select {
			case c.send <- frame:
			default:
			}
		}
		h.mu.RUnlock()
	}
}
