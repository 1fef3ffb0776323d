package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Makepad-fr/basket/internal/feed"
	"github.com/Makepad-fr/basket/internal/model"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageSize  = 512
	sendBuffer      = 64
	cleanupInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Share links are opened from anywhere; the API key, when set, is the
	// only gate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks the websocket clients of every room. Each client holds its
// own subscription on the feed, so snapshots reach it in commit order.
type Hub struct {
	feed *feed.Local
	log  *zap.Logger

	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	room      string
	send      chan []byte
	quit      chan struct{}
	closed    int32
	lastPing  atomic.Int64 // unix nanos
	createdAt time.Time
}

func NewHub(f *feed.Local, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		feed:       f,
		log:        log,
		register:   make(chan *client, 256),
		unregister: make(chan *client, 256),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*client]struct{}),
	}
}

// Run owns the registry until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case <-ticker.C:
			h.cleanupExpired(pongWait)
		case <-ctx.Done():
			h.shutdown()
			for {
				select {
				case c := <-h.register:
					c.close()
				default:
					return nil
				}
			}
		}
	}
}

// RoomStatus describes one room's connections.
type RoomStatus struct {
	Clients int `json:"clients"`
}

// Status is the body of GET /api/status.
type Status struct {
	TotalRooms       int                   `json:"total_rooms"`
	TotalConnections int                   `json:"total_connections"`
	Rooms            map[string]RoomStatus `json:"rooms"`
}

func (h *Hub) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := Status{Rooms: make(map[string]RoomStatus, len(h.rooms))}
	for room, clients := range h.rooms {
		n := 0
		for c := range clients {
			if !c.isClosed() {
				n++
			}
		}
		st.Rooms[room] = RoomStatus{Clients: n}
		st.TotalConnections += n
	}
	st.TotalRooms = len(st.Rooms)
	return st
}

// Serve upgrades the request and streams the room's snapshots until the
// peer goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.log.Debug("websocket upgrade failed", zap.String("room", room), zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{
		hub:       h,
		conn:      conn,
		room:      room,
		send:      make(chan []byte, sendBuffer),
		quit:      make(chan struct{}),
		createdAt: time.Now(),
	}
	c.touch()

	unsub, err := h.feed.Subscribe(r.Context(), room, c.snapshot)
	if err != nil {
		h.log.Warn("subscribe failed", zap.String("room", room), zap.Error(err))
		// no write pump yet: answer on the connection directly
		deadline := time.Now().Add(writeWait)
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.WriteJSON(feed.Message{
			Type:      feed.MessageError,
			Room:      room,
			Error:     "could not read room",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""), deadline)
		return
	}
	defer unsub()

	select {
	case h.register <- c:
	case <-h.done:
		c.close()
		return
	}
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	go c.writePump()
	c.readPump()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.room] == nil {
		h.rooms[c.room] = make(map[*client]struct{})
	}
	h.rooms[c.room][c] = struct{}{}
	h.log.Debug("client connected", zap.String("room", c.room), zap.String("remote", c.conn.RemoteAddr().String()))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[c.room]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, c.room)
		}
	}
	c.close()
	h.log.Debug("client disconnected", zap.String("room", c.room))
}

func (h *Hub) cleanupExpired(timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, clients := range h.rooms {
		for c := range clients {
			if c.isClosed() || c.expired(timeout) {
				delete(clients, c)
				c.close()
			}
		}
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for c := range clients {
			c.close()
		}
	}
	h.rooms = make(map[string]map[*client]struct{})
	h.log.Info("websocket hub stopped")
}

// snapshot is the client's feed callback. It never blocks: a client whose
// queue is full is dropped and has to reconnect.
func (c *client) snapshot(s model.Snapshot) {
	if s == nil {
		s = model.Snapshot{}
	}
	c.enqueue(feed.Message{
		Type:      feed.MessageSnapshot,
		Room:      c.room,
		Items:     s,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (c *client) enqueue(msg feed.Message) {
	if c.isClosed() {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Error("marshal frame", zap.Error(err))
		return
	}
	select {
	case c.send <- b:
	default:
		c.hub.log.Warn("client queue full, dropping connection", zap.String("room", c.room))
		c.close()
	}
}

func (c *client) readPump() {
	defer c.close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// clients only listen; anything they send is discarded
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Debug("websocket read", zap.String("room", c.room), zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		close(c.quit)
		// the read pump unblocks on its own once the close frame lands;
		// the deadline bounds a peer that never answers
		_ = c.conn.SetReadDeadline(time.Now().Add(writeWait))
	}
}

func (c *client) isClosed() bool { return atomic.LoadInt32(&c.closed) == 1 }

func (c *client) touch() { c.lastPing.Store(time.Now().UnixNano()) }

func (c *client) expired(timeout time.Duration) bool {
	return time.Since(time.Unix(0, c.lastPing.Load())) > timeout
}
