// Admin websocket event stream
// This file implements a Hook that fans out events to connected websocket
// admin clients, in addition to (not instead of) the HTTP webhook hook.
package hooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	adminWSWriteWait  = 10 * time.Second
	adminWSPongWait   = 60 * time.Second
	adminWSPingPeriod = adminWSPongWait * 9 / 10
	adminWSSendBuffer = 32
)

var adminWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// adminWSClient is one connected admin dashboard, with its own outbound
// buffer so a slow reader can't stall the broadcast to everyone else.
type adminWSClient struct {
	hub  *AdminWSHub
	conn *websocket.Conn
	send chan []byte
}

// AdminWSHub tracks connected admin websocket clients and fans events out to
// them. It implements Hook so the hook manager can trigger it exactly like
// any script or webhook hook, just without an event-type filter — admins see
// everything.
type AdminWSHub struct {
	id string
	mu sync.Mutex

	clients    map[*adminWSClient]struct{}
	register   chan *adminWSClient
	unregister chan *adminWSClient
	broadcast  chan []byte

	log *slog.Logger
}

// NewAdminWSHub creates a hub and starts its event loop goroutine. Callers
// must mount ServeHTTP on some route for clients to connect.
func NewAdminWSHub(logger *slog.Logger) *AdminWSHub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &AdminWSHub{
		id:         "admin_ws",
		clients:    make(map[*adminWSClient]struct{}),
		register:   make(chan *adminWSClient),
		unregister: make(chan *adminWSClient),
		broadcast:  make(chan []byte, 256),
		log:        logger.With("component", "admin_ws_hub"),
	}
	go h.run()
	return h
}

func (h *AdminWSHub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("admin client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer: drop it rather than block the whole hub.
					delete(h.clients, c)
					close(c.send)
					go c.conn.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ServeHTTP upgrades the request to a websocket and registers the resulting
// client with the hub. Admin clients are read-only subscribers: anything
// they send is drained and discarded, it only exists to drive pong replies.
func (h *AdminWSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := adminWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("admin websocket upgrade failed", "error", err)
		return
	}

	c := &adminWSClient{hub: h, conn: conn, send: make(chan []byte, adminWSSendBuffer)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// Execute implements Hook: it marshals the event to JSON and broadcasts it
// to every connected admin client, non-blocking.
func (h *AdminWSHub) Execute(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn("admin ws broadcast queue full, dropping event", "event_type", event.Type)
	}
	return nil
}

// Type returns the hook type identifier.
func (h *AdminWSHub) Type() string { return "websocket" }

// ID returns the hook's unique identifier.
func (h *AdminWSHub) ID() string { return h.id }

func (c *adminWSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(adminWSPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(adminWSPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *adminWSClient) writePump() {
	ticker := time.NewTicker(adminWSPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(adminWSWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(adminWSWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
