package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types sent to WebSocket clients
const (
	MessageTypeStatus = "status"
	MessageTypeRun    = "run"
	MessageTypeMacro  = "macro"
)

// envelope is the wire format of every WebSocket frame
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	defaultSendBuf      = 32
	defaultBroadcastBuf = 128
)

// Hub fans status frames out to connected clients. Clients that cannot keep
// up are disconnected instead of blocking the others.
type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	// closed when Run returns
	done chan struct{}

	sendBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, sendBuf, broadcastBuf int) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if sendBuf <= 0 {
		sendBuf = defaultSendBuf
	}
	if broadcastBuf <= 0 {
		broadcastBuf = defaultBroadcastBuf
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, broadcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		done:       make(chan struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled, then disconnects everyone
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("WebSocket client connected", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// join hands c to Run. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave hands c back to Run, or gives up once the hub has stopped
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.closeSend()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.closeSend()

	h.logger.Debug("WebSocket client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
}

// BroadcastMessage wraps data in an envelope and queues it for every client.
// It never blocks; a full queue drops the message.
func (h *Hub) BroadcastMessage(msgType string, data any) {
	msg, err := encodeEnvelope(msgType, data)
	if err != nil {
		h.logger.Warn("Failed to marshal broadcast", "type", msgType, "error", err)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast queue full, dropping message", "type", msgType)
	}
}

func encodeEnvelope(msgType string, data any) ([]byte, error) {
	now := time.Now().UTC()
	return json.Marshal(envelope{Type: msgType, Ts: &now, Data: data})
}

// Client is one WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	logger     *slog.Logger

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.sendBuf),
		remoteAddr: remoteAddr,
		logger:     hub.logger,
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

// writePump drains the send queue into the connection and keeps it alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("write", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("ping", err)
				return
			}
		}
	}
}

// readPump discards client frames and unregisters on disconnect
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("read", err)
			c.hub.leave(c)
			return
		}
	}
}

func (c *Client) logExit(op string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Debug("WebSocket closed", "op", op, "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Debug("WebSocket error", "op", op, "remote_addr", c.remoteAddr, "error", err)
}
