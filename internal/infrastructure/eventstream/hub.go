package eventstream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"wallet_orchestrator/internal/app/port"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultMaxClients    = 256
	clientSendBufferSize = 64
	writeDeadline        = 10 * time.Second
	pongWait             = 60 * time.Second
	pingInterval         = 54 * time.Second
	clientReadLimitBytes = 512
)

// envelope is the wire shape of every stream message.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans application events out to websocket subscribers. It implements
// port.EventSink; Publish never blocks the caller, slow clients are dropped.
type Hub struct {
	logger     port.Logger
	upgrader   websocket.Upgrader
	maxClients int

	mu         sync.RWMutex
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	outbound   chan []byte
}

// NewHub creates a hub. Start must be called before clients connect.
func NewHub(l port.Logger) *Hub {
	return &Hub{
		logger:     l,
		maxClients: defaultMaxClients,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		outbound:   make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Start runs the hub loop until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case message := <-h.outbound:
			h.fanOut(message)
		}
	}
}

// Publish implements port.EventSink. Marshalling failures and a full outbound
// queue drop the event; the stream is observational, never load-bearing.
func (h *Hub) Publish(topic string, payload any) {
	data, err := json.Marshal(envelope{Type: topic, Data: payload})
	if err != nil {
		h.logger.Warn("Failed to marshal stream event", "topic", topic, "error", err)
		return
	}
	select {
	case h.outbound <- data:
	default:
		h.logger.Warn("Event stream queue full, dropping event", "topic", topic)
	}
}

// HandleUpgrade upgrades an HTTP request to a websocket subscription.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	c := &client{
		id:   fmt.Sprintf("client_%d", time.Now().UnixNano()),
		conn: conn,
		send: make(chan []byte, clientSendBufferSize),
	}
	h.register <- c
	go c.readPump(h.unregister)
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= h.maxClients {
		h.logger.Warn("Client limit reached, rejecting subscriber", "client_id", c.id)
		close(c.send)
		return
	}
	h.clients[c] = struct{}{}
	go c.writePump()
	h.logger.Debug("Stream subscriber connected", "client_id", c.id, "client_count", len(h.clients))
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Debug("Stream subscriber disconnected", "client_id", c.id, "client_count", len(h.clients))
	}
}

func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- message:
		default:
			// Backpressure from one slow reader must not stall the rest.
			h.logger.Warn("Subscriber send buffer full, dropping client", "client_id", c.id)
			go func(stale *client) { h.unregister <- stale }(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(unregister chan<- *client) {
	defer func() {
		unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(clientReadLimitBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
