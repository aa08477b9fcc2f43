package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wellsgz/pingheat/internal/collector"
	"github.com/wellsgz/pingheat/internal/probe"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    string   `json:"type"`    // "subscribe" or "unsubscribe"
	Targets []string `json:"targets"` // Target names or ["all"]
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type string      `json:"type"` // "sample" or "error"
	Data interface{} `json:"data"`
}

// SampleMessage is the payload of a "sample" message
type SampleMessage struct {
	Target      string    `json:"target"`
	Timestamp   time.Time `json:"timestamp"`
	AvgMs       int       `json:"avg_ms"` // -1 when unreachable
	MinMs       int       `json:"min_ms"`
	MaxMs       int       `json:"max_ms"`
	JitterMs    int       `json:"jitter_ms"`
	LossPercent float64   `json:"loss_pct"`
	Error       string    `json:"error,omitempty"`
}

func newSampleMessage(s probe.Sample) SampleMessage {
	return SampleMessage{
		Target:      s.Target,
		Timestamp:   s.Timestamp,
		AvgMs:       s.AvgPing(),
		MinMs:       s.MinPing(),
		MaxMs:       s.MaxPing(),
		JitterMs:    s.Jitter(),
		LossPercent: s.LossPercent(),
		Error:       s.Error,
	}
}

// Hub maintains the set of active clients and pushes every sample to the
// clients subscribed to its target
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan SampleMessage
	register   chan *Client
	unregister chan *Client

	collectorSub <-chan probe.Sample

	done     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan SampleMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetCollector subscribes the hub to the collector's samples. It must be
// called before Run.
func (h *Hub) SetCollector(c *collector.Collector) {
	h.collectorSub = c.Subscribe()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	if h.collectorSub != nil {
		go h.listenCollector()
	}

	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			log.Println("[WebSocket] Hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WebSocket] Client connected (total: %d)", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WebSocket] Client disconnected (total: %d)", total)

		case sample := <-h.broadcast:
			h.deliver(sample)
		}
	}
}

// deliver sends a sample to every subscribed client, dropping clients
// whose send buffer is full
func (h *Hub) deliver(sample SampleMessage) {
	msg := ServerMessage{Type: "sample", Data: sample}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.isSubscribed(sample.Target) {
			continue
		}
		select {
		case client.send <- msg:
		default:
			h.drop(client)
		}
	}
}

// drop forgets a client and closes its send channel. Callers hold h.mu.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	if !client.closed {
		client.closed = true
		close(client.send)
	}
}

// Stop signals the hub to shutdown. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// listenCollector forwards collector samples until the subscription
// closes or the hub stops
func (h *Hub) listenCollector() {
	for sample := range h.collectorSub {
		select {
		case h.broadcast <- newSampleMessage(sample):
		case <-h.done:
			return
		}
	}
}

// Client represents a WebSocket client
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan ServerMessage

	// closed is guarded by hub.mu and set once send is closed
	closed bool

	// Subscribed targets; nothing is delivered until the client subscribes
	targets    map[string]bool
	allTargets bool
	mu         sync.RWMutex
}

// isSubscribed checks if client is subscribed to a target
func (c *Client) isSubscribed(target string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.allTargets {
		return true
	}
	return c.targets[target]
}

// subscribe adds targets to subscription
func (c *Client) subscribe(targets []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range targets {
		if t == "all" {
			c.allTargets = true
			return
		}
		c.targets[t] = true
	}
}

// unsubscribe removes targets from subscription
func (c *Client) unsubscribe(targets []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range targets {
		if t == "all" {
			c.allTargets = false
			c.targets = make(map[string]bool)
			return
		}
		delete(c.targets, t)
	}
}

// readPump handles subscription messages until the connection closes
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WebSocket] Read error: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("Invalid message format")
			continue
		}

		switch msg.Type {
		case "subscribe":
			c.subscribe(msg.Targets)
			log.Printf("[WebSocket] Client subscribed to: %v", msg.Targets)
		case "unsubscribe":
			c.unsubscribe(msg.Targets)
			log.Printf("[WebSocket] Client unsubscribed from: %v", msg.Targets)
		default:
			c.sendError("Unknown message type: " + msg.Type)
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("[WebSocket] Marshal error: %v", err)
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError queues an error for the client without blocking. Nothing is
// queued once the hub has dropped the client.
func (c *Client) sendError(msg string) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if c.closed {
		return
	}
	select {
	case c.send <- ServerMessage{Type: "error", Data: msg}:
	default:
	}
}

// ServeWebSocket upgrades a request and registers the client with the hub
func ServeWebSocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WebSocket] Upgrade error: %v", err)
			return
		}

		client := &Client{
			hub:     hub,
			conn:    conn,
			send:    make(chan ServerMessage, 256),
			targets: make(map[string]bool),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
