package www

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub tracks the connected websocket clients. Broadcasts fan out over
// each client's buffered channel so a stalled connection never blocks
// the coordinator's subscriber callback.
type Hub struct {
	logger  *slog.Logger
	mutex   sync.Mutex
	clients map[*Client]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) Broadcast(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		c.enqueue(message)
	}
}

func (h *Hub) add(c *Client) {
	h.logger.Debug("websocket client connected", slog.String("client", c.name))
	h.mutex.Lock()
	h.clients[c] = struct{}{}
	h.mutex.Unlock()
}

// remove closes the client's send channel exactly once. Sends happen
// under the same mutex, so no send can race the close.
func (h *Hub) remove(c *Client) {
	h.mutex.Lock()
	_, active := h.clients[c]
	delete(h.clients, c)
	if active {
		close(c.send)
	}
	h.mutex.Unlock()

	if active {
		h.logger.Debug("websocket client disconnected", slog.String("client", c.name))
	}
}

// Client is a single websocket connection. The write pump owns all
// writes; the read pump exists to service the pong control frames.
type Client struct {
	logger *slog.Logger
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	name   string
}

// NewClient upgrades the request, registers the client with the hub and
// starts both pumps. The connection is torn down when either pump exits.
func NewClient(hub *Hub, w http.ResponseWriter, r *http.Request, name string) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		logger: hub.logger.With(slog.String("client", name)),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		name:   name,
	}

	hub.add(c)
	go c.readPump()
	go c.writePump()

	return c, nil
}

// Push queues a message for this client alone, used to hand a newcomer
// the current state without a full broadcast.
func (c *Client) Push(message []byte) {
	c.hub.mutex.Lock()
	defer c.hub.mutex.Unlock()
	if _, active := c.hub.clients[c]; active {
		c.enqueue(message)
	}
}

// enqueue drops the message when the buffer is full rather than block
// the caller. Callers hold the hub mutex.
func (c *Client) enqueue(message []byte) {
	select {
	case c.send <- message:
	default:
		c.logger.Warn("send buffer full, dropping message")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.remove(c)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(ws.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, message); err != nil {
				c.logger.Warn("websocket write failed", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the API is push-only. Pongs extend
// the read deadline, so a dead peer is noticed within pongWait.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
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
