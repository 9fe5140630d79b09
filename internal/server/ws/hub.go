// Package ws bridges the in-process event bus to WebSocket clients. Two
// stream flavours exist: the global stream carries every event verbatim,
// while an authenticated per-user stream replaces events targeted at other
// users with heartbeat frames so a user can never observe another user's
// targeted notifications, not even their timing relative to real traffic.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DemolaJames/xo-market-api/internal/bus"
	"github.com/DemolaJames/xo-market-api/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds incoming frames; clients have nothing to say.
	maxMessageSize = 512

	// sendBufferSize is the per-client outgoing buffer.
	sendBufferSize = 256
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// client is a single WebSocket connection. userID is nil on the global
// stream.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID *int64
}

// Hub fans events from the bus out to connected WebSocket clients as JSON
// text frames.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	events     *bus.Bus
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a Hub reading from the given bus.
func NewHub(events *bus.Bus, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     events,
		logger:     logger.With(slog.String("component", "ws")),
	}
}

// Run is the hub's main loop: client registration and event fan-out. It exits
// when the context is cancelled or the bus shuts down.
func (h *Hub) Run(ctx context.Context) error {
	sub := h.events.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("client connected",
				slog.Bool("per_user", c.userID != nil),
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected",
				slog.Int("total_clients", h.clientCount()),
			)

		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			h.fanOut(ev)
		}
	}
}

// fanOut serializes the event per client, applying the per-user projection
// where the connection is authenticated. A client whose buffer is full has
// the frame dropped.
func (h *Hub) fanOut(ev domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		out := ev
		if c.userID != nil {
			out = bus.ForUser(ev, *c.userID)
		}

		frame, err := json.Marshal(out)
		if err != nil {
			h.logger.Error("marshal event", slog.String("error", err.Error()))
			return
		}

		select {
		case c.send <- frame:
		default:
			h.logger.Warn("dropping frame for slow client",
				slog.String("type", string(out.Type)),
			)
		}
	}
}

// ServeGlobal upgrades the request to the global event stream.
// GET /ws
func (h *Hub) ServeGlobal(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, nil)
}

// ServeUser upgrades the request to the per-user stream for userID.
// GET /ws/me
func (h *Hub) ServeUser(w http.ResponseWriter, r *http.Request, userID int64) {
	h.serve(w, r, &userID)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, userID *int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
	}

	h.register <- c

	go c.writePump()
	go c.readPump()
}

// clientCount returns the number of connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump drains the connection so control frames are processed, and
// unregisters the client on close. Clients send no application messages.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close",
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump pumps frames from the hub to the connection as JSON text
// messages, with periodic pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
