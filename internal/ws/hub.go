package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/events"
)

const (
	writeWait       = 10 * time.Second
	clientSendBuf   = 256
	hubBroadcastBuf = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is public market data; cross-origin browser clients are fine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client represents a single WebSocket client connection.
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans exchange events out to connected WebSocket clients. It implements
// events.Sink, so the core services never touch the transport directly.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, hubBroadcastBuf),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Deliver implements events.Sink. Non-blocking: if the broadcast buffer is
// full the event is dropped, never stalling the matching path.
func (h *Hub) Deliver(event events.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Msg("failed to marshal event")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		log.Warn().Str("event_type", event.Type).Msg("broadcast buffer full, dropping event")
	}
}

// Run processes registrations and broadcasts until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	logger := log.With().Str("component", "ws_hub").Logger()
	logger.Info().Msg("starting websocket hub")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down websocket hub")
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug().Str("remote", client.conn.RemoteAddr().String()).Msg("client registered")

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			stalled := make([]*Client, 0)
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					stalled = append(stalled, client)
				}
			}
			h.mu.RUnlock()

			// Slow consumers get disconnected rather than backing up the hub.
			for _, client := range stalled {
				h.removeClient(client)
			}
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler upgrades an HTTP request to a WebSocket subscription on the
// event feed.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan []byte, clientSendBuf),
		}
		h.register <- client

		go client.writePump()
		go client.readPump(h)
	}
}

// writePump pumps hub messages to the websocket connection.
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	// Hub closed the send channel: tell the peer we are going away.
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains the connection so pings and close frames are processed.
// The feed is broadcast-only; inbound payloads are discarded.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
