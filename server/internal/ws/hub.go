package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/uvdose/uvdose/server/internal/api"
	"github.com/uvdose/uvdose/server/internal/history"
)

const (
	writeTimeout = 10 * time.Second

	// pongWait is how long a client may stay silent before it is dropped.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBufSize = 8

	// DefaultFeedSize is the number of records sent per message.
	DefaultFeedSize = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON envelope pushed to feed clients.
type Message struct {
	Event string              `json:"event"`
	Data  api.HistoryResponse `json:"data"`
}

// Hub pushes the recent calculation feed to connected clients. A message is
// sent on connect and then on each tick where the feed has changed.
type Hub struct {
	history  *history.Store
	interval time.Duration
	size     int

	mu      sync.RWMutex
	clients map[*feedClient]struct{}
	lastID  string
	lastN   int
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that reads from hist every interval. size <= 0 means
// DefaultFeedSize.
func New(hist *history.Store, interval time.Duration, size int) *Hub {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Hub{
		history:  hist,
		interval: interval,
		size:     size,
		clients:  make(map[*feedClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.publish()
		}
	}
}

// ServeHTTP upgrades the connection and streams the feed until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, sendBufSize)}
	h.register(c)
	defer h.unregister(c)

	if data, err := h.encode(); err == nil {
		h.mu.RLock()
		if _, ok := h.clients[c]; ok {
			c.offer(data)
		}
		h.mu.RUnlock()
	}

	go c.writeLoop()
	c.readLoop()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *feedClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *feedClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// changed reports whether the newest record or the live count moved since
// the last publish, and remembers the new state.
func (h *Hub) changed(resp api.HistoryResponse) bool {
	id := ""
	if len(resp.Records) > 0 {
		id = resp.Records[0].ID
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if id == h.lastID && resp.Count == h.lastN {
		return false
	}
	h.lastID, h.lastN = id, resp.Count
	return true
}

func (h *Hub) publish() {
	resp := api.BuildHistory(h.history, h.size)
	if !h.changed(resp) {
		return
	}
	data, err := json.Marshal(Message{Event: "history", Data: resp})
	if err != nil {
		slog.Error("ws: encode feed", "err", err)
		return
	}

	// Sends happen under the read lock so unregister cannot close a channel
	// mid-send; slow consumers are dropped once it is released.
	var slow []*feedClient
	h.mu.RLock()
	for c := range h.clients {
		if !c.offer(data) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}
}

func (h *Hub) encode() ([]byte, error) {
	return json.Marshal(Message{Event: "history", Data: api.BuildHistory(h.history, h.size)})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// offer queues data without blocking and reports whether there was room.
// The caller must hold the hub lock and c must still be registered.
func (c *feedClient) offer(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *feedClient) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop only services control frames; clients never send data.
func (c *feedClient) readLoop() {
	defer func() { _ = c.conn.Close() }()
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
