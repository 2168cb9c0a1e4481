package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"stocktracker_backend/models"

	"github.com/gorilla/websocket"
)

// Hub limits and timeouts
const (
	MaxClients            = 100
	clientSendBuffer      = 64
	webSocketWriteTimeout = 10 * time.Second
	webSocketPongTimeout  = 60 * time.Second
	webSocketPingInterval = 30 * time.Second
)

// Message is the envelope pushed to connected clients
type Message struct {
	Type string      `json:"type"` // price, alert
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// Client represents one WebSocket connection
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans price snapshots and triggered alerts out to WebSocket clients as
// each tick produces them. It satisfies both the price store's SnapshotSink
// and the tick runner's AlertSink.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewHub creates and starts a stream hub
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	go h.run()
	return h
}

// SnapshotStored broadcasts a committed price snapshot (prices.SnapshotSink)
func (h *Hub) SnapshotStored(snapshot *models.PriceSnapshot) {
	h.publish(Message{
		Type: "price",
		Data: snapshot,
		Time: time.Now().UTC().Format(time.RFC3339),
	})
}

// AlertsTriggered broadcasts alerts triggered during a tick (jobs.AlertSink)
func (h *Hub) AlertsTriggered(triggered []models.Alert) {
	h.publish(Message{
		Type: "alert",
		Data: triggered,
		Time: time.Now().UTC().Format(time.RFC3339),
	})
}

// publish enqueues a message, dropping it when the hub is saturated
func (h *Hub) publish(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		log.Println("Stream hub broadcast buffer full, dropping message")
	}
}

// run is the hub event loop
func (h *Hub) run() {
	for {
		select {
		case <-h.shutdown:
			return

		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxClients {
				h.mu.Unlock()
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				client.conn.Close()
				log.Printf("WebSocket client rejected: max clients reached (%d)", MaxClients)
				continue
			}
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected. Total clients: %d", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total clients: %d", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("Error marshaling broadcast message: %v", err)
				continue
			}

			h.mu.Lock()
			var dead []*Client
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// client buffer full, drop the connection
					dead = append(dead, client)
				}
			}
			for _, client := range dead {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		}
	}
}

// HandleWebSocket upgrades an HTTP request into a streaming connection
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	atCapacity := len(h.clients) >= MaxClients
	h.mu.RUnlock()
	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client connection and stops the hub
func (h *Hub) Shutdown() {
	close(h.shutdown)

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	log.Println("Stream hub shutdown complete")
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(webSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(webSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(webSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pings/pongs keep flowing; the stream is
// one-way, inbound payloads are discarded
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(webSocketPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(webSocketPongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}
	}
}
